// Package monitor holds the long-lived consumers that poll upstream sources
// and expose derived views: the flood monitor and the weather watcher.
package monitor

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler runs work on a fixed interval against an injectable clock, so
// tests can advance virtual time.
type Scheduler struct {
	clock clockwork.Clock
}

// NewScheduler creates a scheduler. A nil clock uses real time.
func NewScheduler(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{clock: clock}
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Every calls fn immediately and then once per interval until ctx is done.
// Calls never overlap; a tick that fires during a slow call is coalesced.
func (s *Scheduler) Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if ctx.Err() != nil {
		return
	}
	fn(ctx)

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			fn(ctx)
		}
	}
}
