/*
Package eventlog
File: recorder.go
Description:
    In-memory event sink drained by the live server after every step.
*/

package eventlog

import "sync"

// Recorder keeps events in memory. It is safe for concurrent use so that a
// server can drain it from a different goroutine than the one stepping.
type Recorder struct {
	mu        sync.Mutex
	t         int
	events    []Event
	finalized bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) SetTime(t int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return ErrFinalized
	}
	r.t = t
	return nil
}

func (r *Recorder) add(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return ErrFinalized
	}
	e.Step = r.t
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Infected(source, target int, distance float64) error {
	return r.add(Event{Kind: KindInfected, Source: source, Target: target, Distance: distance})
}

func (r *Recorder) Recovered(target int) error {
	return r.add(Event{Kind: KindRecovered, Source: NoSource, Target: target})
}

func (r *Recorder) Died(target int) error {
	return r.add(Event{Kind: KindDied, Source: NoSource, Target: target})
}

func (r *Recorder) Finalize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return ErrFinalized
	}
	r.finalized = true
	return nil
}

// Events returns a copy of everything recorded and not yet drained.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Drain returns the recorded events and forgets them.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

// Finalized reports whether Finalize has been called.
func (r *Recorder) Finalized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalized
}
