package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Colombo is Sri Lanka Standard Time (UTC+05:30, no daylight saving).
var Colombo = time.FixedZone("Asia/Colombo", 5*60*60+30*60)

// clock is a package-level time source so tests can freeze time via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for timestamps and "today". Pass nil to
// reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the package clock.
func Now() time.Time {
	return clock.Now()
}

// Today returns the current calendar date in Colombo as YYYY-MM-DD.
func Today() string {
	return DateString(clock.Now())
}

// DateString formats t as a Colombo calendar date.
func DateString(t time.Time) string {
	return t.In(Colombo).Format(time.DateOnly)
}
