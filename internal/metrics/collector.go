/*
Package metrics
File: collector.go
Description:
    Prometheus instrumentation for a running simulation. The Collector is
    plugged into the event-log fan-out so it sees every transition, and the
    stepping loop reports each finished step to it.
*/

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/everforgeworks/outbreak/internal/world"
)

// Collector exports population gauges and event counters.
type Collector struct {
	reg      *prometheus.Registry
	agents   *prometheus.GaugeVec
	events   *prometheus.CounterVec
	steps    prometheus.Counter
	duration prometheus.Histogram
}

// NewCollector registers the outbreak metrics on reg. A nil reg gets a
// fresh registry.
func NewCollector(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		reg: reg,
		agents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "outbreak_agents",
			Help: "Agents per infection status after the latest step.",
		}, []string{"status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbreak_events_total",
			Help: "Logged transitions by kind.",
		}, []string{"kind"}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbreak_steps_total",
			Help: "Completed simulation steps.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbreak_step_duration_seconds",
			Help:    "Wall time spent computing one step.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	for _, col := range []prometheus.Collector{c.agents, c.events, c.steps, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Registry returns the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// ObserveStep records a finished step and refreshes the status gauges.
func (c *Collector) ObserveStep(snap world.Snapshot, took time.Duration) {
	c.steps.Inc()
	c.duration.Observe(took.Seconds())
	c.SetCounts(snap.Counts)
}

// SetCounts sets the status gauges without counting a step.
func (c *Collector) SetCounts(counts world.Counts) {
	for _, s := range world.Statuses {
		c.agents.WithLabelValues(s.String()).Set(float64(counts.Of(s)))
	}
}

func (c *Collector) SetTime(int) error { return nil }

func (c *Collector) Infected(int, int, float64) error {
	c.events.WithLabelValues("infected").Inc()
	return nil
}

func (c *Collector) Recovered(int) error {
	c.events.WithLabelValues("recovered").Inc()
	return nil
}

func (c *Collector) Died(int) error {
	c.events.WithLabelValues("died").Inc()
	return nil
}

func (c *Collector) Finalize() error { return nil }
