package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/everforgeworks/outbreak/internal/world"
)

// memLog records calls as strings tagged with the current time.
type memLog struct {
	t         int
	lines     []string
	times     []int
	finalized int
	failOn    string
}

func (m *memLog) SetTime(t int) error {
	m.t = t
	m.times = append(m.times, t)
	return nil
}

func (m *memLog) record(line string) error {
	if m.failOn != "" && strings.HasPrefix(line, m.failOn) {
		return errors.New("disk full")
	}
	m.lines = append(m.lines, fmt.Sprintf("%d %s", m.t, line))
	return nil
}

func (m *memLog) Infected(source, target int, d float64) error {
	return m.record(fmt.Sprintf("infected %d %d %.6f", source, target, d))
}
func (m *memLog) Recovered(target int) error { return m.record(fmt.Sprintf("recovered %d", target)) }
func (m *memLog) Died(target int) error      { return m.record(fmt.Sprintf("died %d", target)) }
func (m *memLog) Finalize() error {
	m.finalized++
	return nil
}

type zeroSource struct{}

func (zeroSource) Float64() float64     { return 0 }
func (zeroSource) NormFloat64() float64 { return 0 }

func quietConfig(n int) world.Config {
	cfg := world.DefaultConfig()
	cfg.Population = n
	cfg.TransmissionRate = 0
	cfg.RecoveryRate = 0
	cfg.DeathRate = 0
	cfg.MovementSpeed = 0
	cfg.MovementTurnRate = 0
	cfg.BatchSize = 0
	return cfg
}

func newPopulation(t *testing.T, cfg world.Config, rng world.Source) *world.Population {
	t.Helper()
	p, err := world.NewPopulation(cfg, rng)
	if err != nil {
		t.Fatalf("NewPopulation: %v", err)
	}
	return p
}

func TestScenarioTransmissionAtZeroDistance(t *testing.T) {
	cfg := quietConfig(2)
	cfg.TransmissionRate = 1
	cfg.LocalityFactor = 0
	pop := newPopulation(t, cfg, zeroSource{})
	pop.SetStatus(0, world.Infected)
	log := &memLog{}
	s := New(pop, Options{Log: log})

	snap, err := s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap.Status[1] != world.Infected {
		t.Fatalf("agent 1 is %s, want infected", snap.Status[1])
	}
	if len(log.lines) != 1 || log.lines[0] != "0 infected 0 1 0.000000" {
		t.Fatalf("unexpected log %v", log.lines)
	}
}

func TestScenarioDeathBeforeRecovery(t *testing.T) {
	cfg := quietConfig(1)
	cfg.DeathRate = 1
	cfg.RecoveryRate = 1
	pop := newPopulation(t, cfg, zeroSource{})
	pop.SetStatus(0, world.Infected)
	log := &memLog{}
	s := New(pop, Options{Log: log})

	snap, err := s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap.Status[0] != world.Dead {
		t.Fatalf("agent 0 is %s, want dead", snap.Status[0])
	}
	if len(log.lines) != 1 || log.lines[0] != "0 died 0" {
		t.Fatalf("unexpected log %v", log.lines)
	}
}

func TestScenarioRecoveryAfterOneStep(t *testing.T) {
	cfg := quietConfig(1)
	cfg.RecoveryRate = 1
	pop := newPopulation(t, cfg, zeroSource{})
	pop.SetStatus(0, world.Infected)
	log := &memLog{}
	s := New(pop, Options{Log: log})

	snap, err := s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap.Status[0] != world.Recovered || pop.InfectionAge(0) != 1 {
		t.Fatalf("agent 0 is %s at age %d, want recovered at age 1", snap.Status[0], pop.InfectionAge(0))
	}
	if len(log.lines) != 1 || log.lines[0] != "0 recovered 0" {
		t.Fatalf("unexpected log %v", log.lines)
	}
}

func TestNewlyInfectedWaitForNextStep(t *testing.T) {
	cfg := quietConfig(2)
	cfg.TransmissionRate = 1
	cfg.LocalityFactor = 0
	cfg.RecoveryRate = 1
	pop := newPopulation(t, cfg, zeroSource{})
	pop.SetStatus(0, world.Infected)
	log := &memLog{}
	s := New(pop, Options{Log: log})

	snap, err := s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap.Status[0] != world.Recovered || snap.Status[1] != world.Infected || pop.InfectionAge(1) != 0 {
		t.Fatalf("after step 1: statuses %v, age of agent 1 %d", snap.Status, pop.InfectionAge(1))
	}
	snap, err = s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap.Status[1] != world.Recovered || pop.InfectionAge(1) != 1 {
		t.Fatalf("after step 2: agent 1 is %s at age %d", snap.Status[1], pop.InfectionAge(1))
	}
	want := []string{"0 infected 0 1 0.000000", "0 recovered 0", "1 recovered 1"}
	if strings.Join(log.lines, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected log %v", log.lines)
	}
}

func TestAutoSeedBeforeFirstTransmission(t *testing.T) {
	cfg := quietConfig(2)
	cfg.TransmissionRate = 1
	cfg.LocalityFactor = 0
	pop := newPopulation(t, cfg, zeroSource{})
	log := &memLog{}
	s := New(pop, Options{Log: log})

	snap, err := s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap.Status[0] != world.Infected || snap.Status[1] != world.Infected {
		t.Fatalf("statuses after seeded step: %v", snap.Status)
	}
	if len(log.lines) != 1 || log.lines[0] != "0 infected 0 1 0.000000" {
		t.Fatalf("seeded agent should have transmitted in step 0, log %v", log.lines)
	}
}

func TestAutoSeedOnlyWhenNobodyIsInfected(t *testing.T) {
	pop := newPopulation(t, quietConfig(5), zeroSource{})
	pop.SetStatus(3, world.Infected)
	s := New(pop, Options{})
	snap, err := s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap.Status[0] != world.Healthy || snap.Counts.Infected != 1 {
		t.Fatalf("unexpected seeding: %v", snap.Status)
	}

	empty := newPopulation(t, quietConfig(5), zeroSource{})
	snap, err = New(empty, Options{}).Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap.Status[0] != world.Infected || snap.Counts.Infected != 1 {
		t.Fatalf("expected exactly agent 0 seeded, got %v", snap.Status)
	}
}

func TestBatchSizeResolution(t *testing.T) {
	cfg := quietConfig(10)
	cfg.BatchSize = 4
	pop := newPopulation(t, cfg, zeroSource{})
	if got := New(pop, Options{}).BatchSize(); got != 4 {
		t.Fatalf("config batch size ignored: %d", got)
	}
	if got := New(pop, Options{BatchSize: 3}).BatchSize(); got != 3 {
		t.Fatalf("option batch size ignored: %d", got)
	}
	if got := New(pop, Options{BatchSize: 50}).BatchSize(); got != 10 {
		t.Fatalf("oversized batch not capped: %d", got)
	}
	cfg.BatchSize = 0
	if got := New(newPopulation(t, cfg, zeroSource{}), Options{}).BatchSize(); got != 10 {
		t.Fatalf("zero batch size should mean whole population, got %d", got)
	}
}

func TestInvariantsHoldAcrossRun(t *testing.T) {
	cfg := world.DefaultConfig()
	cfg.Population = 80
	cfg.TransmissionRate = 0.3
	cfg.RecoveryRate = 0.05
	cfg.DeathRate = 0.03
	cfg.MovementSpeed = 0.05
	cfg.MovementTurnRate = 0.5
	cfg.LocalityFactor = 3
	cfg.BatchSize = 7
	pop := newPopulation(t, cfg, rand.New(rand.NewSource(21)))
	pop.Spawn()
	s := New(pop, Options{})

	prev := s.Snapshot()
	prevAge := make([]int, pop.Len())
	for step := 0; step < 60; step++ {
		snap, err := s.Step()
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		total := snap.Counts.Healthy + snap.Counts.Infected + snap.Counts.Recovered + snap.Counts.Dead
		if total != pop.Len() || snap.Counts.Alive != pop.Len()-snap.Counts.Dead {
			t.Fatalf("step %d counts do not partition the population: %+v", snap.Step, snap.Counts)
		}
		for i := 0; i < pop.Len(); i++ {
			st, was := snap.Status[i], prev.Status[i]
			if st > world.Dead {
				t.Fatalf("agent %d has invalid status %d", i, st)
			}
			if snap.X[i] < 0 || snap.X[i] > 1 || snap.Y[i] < 0 || snap.Y[i] > 1 {
				t.Fatalf("agent %d left the square: (%v, %v)", i, snap.X[i], snap.Y[i])
			}
			age := pop.InfectionAge(i)
			switch was {
			case world.Dead:
				if st != world.Dead || snap.X[i] != prev.X[i] || snap.Y[i] != prev.Y[i] || age != prevAge[i] {
					t.Fatalf("dead agent %d changed at step %d", i, snap.Step)
				}
			case world.Recovered:
				if st != world.Recovered {
					t.Fatalf("recovered agent %d became %s", i, st)
				}
			case world.Infected:
				if st == world.Healthy {
					t.Fatalf("infected agent %d became healthy", i)
				}
				if st == world.Infected && age != prevAge[i]+1 {
					t.Fatalf("agent %d age went %d -> %d while infected", i, prevAge[i], age)
				}
			case world.Healthy:
				if st == world.Infected && age != 0 {
					t.Fatalf("newly infected agent %d starts at age %d", i, age)
				}
				if st == world.Recovered || st == world.Dead {
					t.Fatalf("healthy agent %d skipped infection", i)
				}
			}
			prevAge[i] = age
		}
		prev = snap
	}
}

func TestLogIsTimeOrderedAndFinalizedOnce(t *testing.T) {
	cfg := world.DefaultConfig()
	cfg.Population = 40
	cfg.TransmissionRate = 0.5
	cfg.RecoveryRate = 0.1
	cfg.DeathRate = 0.05
	cfg.LocalityFactor = 1
	cfg.BatchSize = 9
	pop := newPopulation(t, cfg, rand.New(rand.NewSource(8)))
	log := &memLog{}
	s := New(pop, Options{Log: log})

	steps := 0
	if err := s.Run(context.Background(), 12, func(snap world.Snapshot) bool {
		steps++
		return true
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if steps != 12 || s.StepCount() != 12 {
		t.Fatalf("ran %d steps, count %d", steps, s.StepCount())
	}
	for k, tm := range log.times {
		if tm != k {
			t.Fatalf("SetTime sequence %v", log.times)
		}
	}
	last := -1
	for _, line := range log.lines {
		var tm int
		fmt.Sscanf(line, "%d", &tm)
		if tm < last {
			t.Fatalf("log went back in time: %v", log.lines)
		}
		last = tm
	}
	if len(log.lines) == 0 {
		t.Fatalf("expected some events")
	}
	if log.finalized != 1 {
		t.Fatalf("finalized %d times", log.finalized)
	}
	if err := s.Close(); err != nil || log.finalized != 1 {
		t.Fatalf("second close reached the log: err %v count %d", err, log.finalized)
	}
	if _, err := s.Step(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestEarlyStopLeavesLogOpenUntilClose(t *testing.T) {
	pop := newPopulation(t, quietConfig(4), zeroSource{})
	log := &memLog{}
	s := New(pop, Options{Log: log})

	seen := 0
	for snap, err := range s.Steps(0) {
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		seen++
		if snap.Step == 3 {
			break
		}
	}
	if seen != 3 || log.finalized != 0 {
		t.Fatalf("seen %d finalized %d", seen, log.finalized)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if log.finalized != 1 {
		t.Fatalf("finalized %d times", log.finalized)
	}
}

func TestRunHonoursObserverAndContext(t *testing.T) {
	s := New(newPopulation(t, quietConfig(3), zeroSource{}), Options{})
	if err := s.Run(context.Background(), 10, func(snap world.Snapshot) bool { return snap.Step < 4 }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.StepCount() != 4 {
		t.Fatalf("observer stop after 4 steps, got %d", s.StepCount())
	}

	ctx, cancel := context.WithCancel(context.Background())
	err := s.Run(ctx, 10, func(snap world.Snapshot) bool {
		cancel()
		return true
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.StepCount() != 5 {
		t.Fatalf("cancel should stop after the current step, got %d", s.StepCount())
	}
}

func TestLogErrorsPropagate(t *testing.T) {
	cfg := quietConfig(2)
	cfg.TransmissionRate = 1
	cfg.LocalityFactor = 0
	pop := newPopulation(t, cfg, zeroSource{})
	s := New(pop, Options{Log: &memLog{failOn: "infected"}})
	if _, err := s.Step(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestBatchingDoesNotBiasTransitions(t *testing.T) {
	const (
		trials = 300
		n      = 60
	)
	cfg := world.DefaultConfig()
	cfg.Population = n
	cfg.TransmissionRate = 0.05
	cfg.LocalityFactor = 2
	cfg.DeathRate = 0.1
	cfg.RecoveryRate = 0.2
	cfg.MovementSpeed = 0.01

	type tally struct{ infected, died, recovered float64 }
	run := func(batch int) (tally, int) {
		var sum tally
		maxInfected := 0
		for trial := 0; trial < trials; trial++ {
			pop := newPopulation(t, cfg, rand.New(rand.NewSource(int64(1000+trial))))
			for i := 0; i < 6; i++ {
				pop.SetStatus(i*10, world.Infected)
			}
			log := &memLog{}
			if _, err := New(pop, Options{BatchSize: batch, Log: log}).Step(); err != nil {
				t.Fatalf("Step: %v", err)
			}
			infected := 0
			for _, line := range log.lines {
				switch strings.Fields(line)[1] {
				case "infected":
					infected++
					sum.infected++
				case "died":
					sum.died++
				case "recovered":
					sum.recovered++
				}
			}
			maxInfected = max(maxInfected, infected)
		}
		return tally{sum.infected / trials, sum.died / trials, sum.recovered / trials}, maxInfected
	}

	small, smallMax := run(10)
	large, largeMax := run(30)
	if smallMax > n-6 || largeMax > n-6 {
		t.Fatalf("more infections than healthy agents: %d %d", smallMax, largeMax)
	}
	if small.infected == 0 || large.infected == 0 || small.recovered == 0 || small.died == 0 {
		t.Fatalf("degenerate trial parameters: %+v %+v", small, large)
	}
	if d := math.Abs(small.infected - large.infected); d > 1.0 {
		t.Fatalf("mean infections differ by %v: %+v vs %+v", d, small, large)
	}
	if d := math.Abs(small.died - large.died); d > 0.3 {
		t.Fatalf("mean deaths differ by %v: %+v vs %+v", d, small, large)
	}
	if d := math.Abs(small.recovered - large.recovered); d > 0.4 {
		t.Fatalf("mean recoveries differ by %v: %+v vs %+v", d, small, large)
	}
}

func TestReportTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReportHeader(&buf); err != nil {
		t.Fatalf("header: %v", err)
	}
	snap := world.Snapshot{Step: 3, Counts: world.Counts{Healthy: 7, Infected: 2, Recovered: 1}}
	if err := WriteReportRow(&buf, snap); err != nil {
		t.Fatalf("row: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "    timestep      healthy") {
		t.Fatalf("header %q", lines[0])
	}
	if want := "           3            7            2            1            0"; lines[2] != want {
		t.Fatalf("row %q, want %q", lines[2], want)
	}
}
