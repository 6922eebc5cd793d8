/*
Package eventlog
File: events.go
Description:
    Sinks for the transition log of a simulation run.

    Every sink implements the same five calls: SetTime marks the start of a
    step, Infected/Recovered/Died append one event stamped with that step,
    and Finalize flushes and releases the sink exactly once at run end.

    Available sinks:
    - File:     the classic one-line-per-event text log.
    - SQL:      an 'events' table in SQLite or Postgres, one transaction per step.
    - Archive:  a File that is uploaded to S3 when the run ends.
    - Recorder: an in-memory list, used by the live server and in tests.
    - Tee:      fans every call out to several sinks.
*/

package eventlog

import (
	"errors"
	"fmt"
)

// Sink receives the transitions of one run.
type Sink interface {
	SetTime(t int) error
	Infected(source, target int, distance float64) error
	Recovered(target int) error
	Died(target int) error
	Finalize() error
}

// Kind names a transition.
type Kind string

const (
	KindInfected  Kind = "infected"
	KindRecovered Kind = "recovered"
	KindDied      Kind = "died"
)

// NoSource marks events that have no source agent.
const NoSource = -1

// Event is one logged transition.
type Event struct {
	Step     int     `json:"step"`
	Kind     Kind    `json:"kind"`
	Source   int     `json:"source"` // NoSource unless Kind is KindInfected
	Target   int     `json:"target"`
	Distance float64 `json:"distance,omitempty"`
}

func (e Event) String() string {
	switch e.Kind {
	case KindInfected:
		return fmt.Sprintf("%d %d infected %d at a distance of %.6f", e.Step, e.Source, e.Target, e.Distance)
	default:
		return fmt.Sprintf("%d %d %s", e.Step, e.Target, e.Kind)
	}
}

// ErrFinalized is returned by sinks that are used after Finalize.
var ErrFinalized = errors.New("event log already finalized")

type tee []Sink

// Tee returns a sink that forwards every call to each non-nil sink in order.
// SetTime and the event calls stop at the first error; Finalize reaches
// every sink and joins their errors.
func Tee(sinks ...Sink) Sink {
	var t tee
	for _, s := range sinks {
		if s != nil {
			t = append(t, s)
		}
	}
	return t
}

func (t tee) SetTime(step int) error {
	for _, s := range t {
		if err := s.SetTime(step); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Infected(source, target int, distance float64) error {
	for _, s := range t {
		if err := s.Infected(source, target, distance); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Recovered(target int) error {
	for _, s := range t {
		if err := s.Recovered(target); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Died(target int) error {
	for _, s := range t {
		if err := s.Died(target); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Finalize() error {
	var errs []error
	for _, s := range t {
		if err := s.Finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
