// Package clock provides the injectable time source used by every
// time-dependent component (spec §4.1). No component reads
// time.Now() directly; all of them accept a Clock so tests can run a
// fixed or advancing instant instead of the wall clock.
package clock

import (
	"sync"
	"time"
)

// Clock exposes wall-clock and monotonic time. Implementations must be
// safe for concurrent use.
type Clock interface {
	// Now returns the current civil wall-clock time, UTC.
	Now() time.Time
	// Today returns the current calendar date at midnight UTC.
	Today() time.Time
	// Monotonic returns elapsed time since the clock was created,
	// suitable for measuring durations but not wall-clock comparisons.
	Monotonic() time.Duration
}

// System is the production Clock backed by the OS clock.
type System struct {
	start time.Time
}

// NewSystem returns a Clock backed by time.Now(), UTC-normalized.
func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) Now() time.Time {
	return time.Now().UTC()
}

func (s *System) Today() time.Time {
	now := s.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *System) Monotonic() time.Duration {
	return time.Since(s.start)
}

// Fixed is a Clock that never advances, for deterministic tests.
type Fixed struct {
	At time.Time
}

// NewFixed returns a Clock pinned at t (normalized to UTC).
func NewFixed(t time.Time) *Fixed {
	return &Fixed{At: t.UTC()}
}

func (f *Fixed) Now() time.Time { return f.At }

func (f *Fixed) Today() time.Time {
	return time.Date(f.At.Year(), f.At.Month(), f.At.Day(), 0, 0, 0, 0, time.UTC)
}

func (f *Fixed) Monotonic() time.Duration { return 0 }

// Advancing is a Clock whose Now() moves forward by a fixed step every
// time it is read, useful for simulating a scheduler tick-by-tick.
type Advancing struct {
	mu   sync.Mutex
	at   time.Time
	step time.Duration
}

// NewAdvancing returns a Clock starting at t and advancing by step on
// every call to Now().
func NewAdvancing(t time.Time, step time.Duration) *Advancing {
	return &Advancing{at: t.UTC(), step: step}
}

func (a *Advancing) Now() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	current := a.at
	a.at = a.at.Add(a.step)
	return current
}

func (a *Advancing) Today() time.Time {
	a.mu.Lock()
	now := a.at
	a.mu.Unlock()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (a *Advancing) Monotonic() time.Duration { return 0 }
