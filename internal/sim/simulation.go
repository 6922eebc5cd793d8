/*
Package sim
File: simulation.go
Description:
    Drives a world.Population through discrete steps.

    A step moves every living agent once, then walks the index range in
    contiguous batches and, per batch, runs transmission followed by death and
    recovery for the agents of that batch that were Infected when the step
    began. Transitions are reported to an optional EventLog as they happen.
*/

package sim

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/everforgeworks/outbreak/internal/world"
)

// ErrClosed is returned when stepping a simulation whose log has been finalised.
var ErrClosed = errors.New("simulation closed")

// EventLog receives every transition of a run. SetTime is called once per
// step before any event of that step; Finalize is called exactly once.
type EventLog interface {
	SetTime(t int) error
	Infected(source, target int, distance float64) error
	Recovered(target int) error
	Died(target int) error
	Finalize() error
}

// Options configures a Simulation.
type Options struct {
	// BatchSize overrides the population's configured batch size when positive.
	BatchSize int
	// Log receives transition events. Optional.
	Log EventLog
}

// Simulation owns a population for the lifetime of a run.
// It is not safe for concurrent use.
type Simulation struct {
	pop       *world.Population
	batchSize int
	log       EventLog

	step   int
	seeded bool
	closed bool
}

// New binds a simulation to pop. The effective batch size is opts.BatchSize,
// else the world's batch_size, else the whole population.
func New(pop *world.Population, opts Options) *Simulation {
	n := pop.Len()
	b := opts.BatchSize
	if b <= 0 {
		b = pop.Config().BatchSize
	}
	if b <= 0 || b > n {
		b = n
	}
	return &Simulation{pop: pop, batchSize: b, log: opts.Log}
}

// Population exposes the live store for setup before the first step.
// Consumers of a running simulation should use snapshots instead.
func (s *Simulation) Population() *world.Population { return s.pop }

// BatchSize returns the number of agents processed per batch.
func (s *Simulation) BatchSize() int { return s.batchSize }

// StepCount returns how many steps have completed.
func (s *Simulation) StepCount() int { return s.step }

// Snapshot copies the current state without advancing.
func (s *Simulation) Snapshot() world.Snapshot { return s.pop.Snapshot(s.step) }

// Step advances the world by one step and returns a snapshot of the result.
// Before the very first step, agent 0 is infected if nobody else is.
func (s *Simulation) Step() (world.Snapshot, error) {
	if s.closed {
		return world.Snapshot{}, ErrClosed
	}
	if !s.seeded {
		s.seeded = true
		if s.pop.Counts().Infected == 0 {
			s.pop.Spawn()
		}
	}

	t := s.step
	if s.log != nil {
		if err := s.log.SetTime(t); err != nil {
			return world.Snapshot{}, fmt.Errorf("log step %d: %w", t, err)
		}
	}

	s.pop.Move()

	carriers := s.pop.Infected()
	n := s.pop.Len()
	for lo := 0; lo < n; lo += s.batchSize {
		hi := min(lo+s.batchSize, n)
		if err := s.runBatch(carriers, lo, hi); err != nil {
			return world.Snapshot{}, fmt.Errorf("log step %d: %w", t, err)
		}
	}

	s.step++
	return s.pop.Snapshot(s.step), nil
}

// runBatch applies transmission, then death and recovery, to the carriers in [lo, hi).
// Agents infected earlier in the same step are not carriers, so they neither
// transmit nor age, die or recover until the next step; this keeps every
// agent to one evaluation per step whatever the batch size.
func (s *Simulation) runBatch(carriers []bool, lo, hi int) error {
	var sources []int
	for i := lo; i < hi; i++ {
		if carriers[i] {
			sources = append(sources, i)
		}
	}
	if len(sources) == 0 {
		return nil
	}

	infections := s.pop.Transmit(sources)
	died, recovered := s.pop.Progress(sources)
	if s.log == nil {
		return nil
	}

	for _, inf := range infections {
		if err := s.log.Infected(inf.Source, inf.Target, inf.Distance); err != nil {
			return err
		}
	}
	for _, i := range died {
		if err := s.log.Died(i); err != nil {
			return err
		}
	}
	for _, i := range recovered {
		if err := s.log.Recovered(i); err != nil {
			return err
		}
	}
	return nil
}

// Steps returns a pull-driven sequence of at most n steps (unbounded when
// n <= 0). Each step is computed only when the consumer asks for it, and the
// consumer stops the run by breaking out of the loop. When all n steps have
// been produced the log is finalised; after an early stop call Close.
func (s *Simulation) Steps(n int) iter.Seq2[world.Snapshot, error] {
	return func(yield func(world.Snapshot, error) bool) {
		for k := 0; n <= 0 || k < n; k++ {
			snap, err := s.Step()
			if err != nil {
				yield(world.Snapshot{}, err)
				return
			}
			if !yield(snap, nil) {
				return
			}
		}
		if err := s.Close(); err != nil {
			yield(world.Snapshot{}, err)
		}
	}
}

// Run steps the simulation n times (forever when n <= 0), handing each
// snapshot to observe. It stops early when observe returns false or ctx is
// done; in those cases the caller is responsible for Close.
func (s *Simulation) Run(ctx context.Context, n int, observe func(world.Snapshot) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for snap, err := range s.Steps(n) {
		if err != nil {
			return err
		}
		if observe != nil && !observe(snap) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close finalises the event log. It is safe to call more than once; only the
// first call reaches the log.
func (s *Simulation) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.log == nil {
		return nil
	}
	if err := s.log.Finalize(); err != nil {
		return fmt.Errorf("finalize log: %w", err)
	}
	return nil
}
