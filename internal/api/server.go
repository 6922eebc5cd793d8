/*
Package api
File: server.go
Description:
    The live view of one simulation run. The Server owns the simulation and
    advances it on a ticker, one step per tick, so a browser can animate the
    epidemic as it spreads.

    Key Responsibilities:
    - Pacing (Animate pulls a step every interval)
    - Publishing (latest snapshot, count history, WebSocket broadcast)
    - Thread Safety (DataLock guards everything the handlers read)
*/

package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/everforgeworks/outbreak/internal/eventlog"
	"github.com/everforgeworks/outbreak/internal/metrics"
	"github.com/everforgeworks/outbreak/internal/sim"
	"github.com/everforgeworks/outbreak/internal/world"
)

// StepPayload is the body of a "step" message.
type StepPayload struct {
	world.Snapshot
	Events []eventlog.Event `json:"events"`
}

// HistoryPoint is one row of the count table.
type HistoryPoint struct {
	Step int `json:"step"`
	world.Counts
}

// Summary is the body of the final "done" message.
type Summary struct {
	Steps  int          `json:"steps"`
	Counts world.Counts `json:"counts"`
	Reason string       `json:"reason"` // "completed", "extinct", "cancelled" or "error"
}

// Options wires optional collaborators into a Server.
type Options struct {
	// Recorder must also be part of the simulation's event log for step
	// messages to carry events.
	Recorder *eventlog.Recorder
	Metrics  *metrics.Collector
}

// Server publishes a simulation over HTTP and WebSocket.
type Server struct {
	DataLock sync.RWMutex

	sim     *sim.Simulation
	hub     *Hub
	rec     *eventlog.Recorder
	metrics *metrics.Collector

	latest  world.Snapshot
	history []HistoryPoint
	summary *Summary
}

// NewServer prepares a Server around s. The hub must be running.
func NewServer(s *sim.Simulation, hub *Hub, opts Options) *Server {
	first := s.Snapshot()
	srv := &Server{
		sim:     s,
		hub:     hub,
		rec:     opts.Recorder,
		metrics: opts.Metrics,
		latest:  first,
		history: []HistoryPoint{{Step: first.Step, Counts: first.Counts}},
	}
	if srv.metrics != nil {
		srv.metrics.SetCounts(first.Counts)
	}
	return srv
}

// Animate advances the simulation one step per interval. steps <= 0 keeps
// going until no agent is infected. The simulation is closed when Animate
// returns, whatever the reason.
func (s *Server) Animate(ctx context.Context, interval time.Duration, steps int) (err error) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	reason := "completed"
	defer func() {
		if cerr := s.sim.Close(); cerr != nil && err == nil {
			err = cerr
			reason = "error"
		}
		s.finish(reason)
	}()

	for i := 0; steps <= 0 || i < steps; i++ {
		select {
		case <-ctx.Done():
			reason = "cancelled"
			return ctx.Err()
		case <-ticker.C:
		}

		start := time.Now()
		snap, stepErr := s.sim.Step()
		if stepErr != nil {
			reason = "error"
			return stepErr
		}
		s.publish(snap, time.Since(start))

		if steps <= 0 && snap.Counts.Infected == 0 {
			reason = "extinct"
			return nil
		}
	}
	return nil
}

func (s *Server) publish(snap world.Snapshot, took time.Duration) {
	var events []eventlog.Event
	if s.rec != nil {
		events = s.rec.Drain()
	}

	s.DataLock.Lock()
	s.latest = snap
	s.history = append(s.history, HistoryPoint{Step: snap.Step, Counts: snap.Counts})
	s.DataLock.Unlock()

	if s.metrics != nil {
		s.metrics.ObserveStep(snap, took)
	}
	s.hub.Publish(Message{Type: "step", Payload: StepPayload{Snapshot: snap, Events: events}, Sender: "engine"})
}

func (s *Server) finish(reason string) {
	s.DataLock.Lock()
	sum := Summary{Steps: s.latest.Step, Counts: s.latest.Counts, Reason: reason}
	s.summary = &sum
	s.DataLock.Unlock()

	s.hub.Publish(Message{Type: "done", Payload: sum, Sender: "engine"})
	log.Printf("SIM: run %s after %d steps (%d healthy, %d infected, %d recovered, %d dead)",
		reason, sum.Steps, sum.Counts.Healthy, sum.Counts.Infected, sum.Counts.Recovered, sum.Counts.Dead)
}

// Latest returns the most recent published snapshot.
func (s *Server) Latest() world.Snapshot {
	s.DataLock.RLock()
	defer s.DataLock.RUnlock()
	return s.latest
}

// History returns a copy of the count table so far.
func (s *Server) History() []HistoryPoint {
	s.DataLock.RLock()
	defer s.DataLock.RUnlock()
	return append([]HistoryPoint(nil), s.history...)
}

// Routes builds the HTTP mux for the server.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Information Endpoints
	mux.HandleFunc("/api/world", s.handleGetWorld)
	mux.HandleFunc("/api/snapshot", s.handleGetSnapshot)
	mux.HandleFunc("/api/history", s.handleGetHistory)
	mux.HandleFunc("/api/summary", s.handleGetSummary)

	// Real-Time WebSocket Endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(s.hub, w, r)
	})

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return corsMiddleware(mux)
}

// corsMiddleware lets a viewer served from another origin read the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
