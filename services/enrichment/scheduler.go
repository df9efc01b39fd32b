package enrichment

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the call from running. It returns false if the call already ran or was stopped.
	Stop() bool
}

// Scheduler runs fn once after delay.
type Scheduler interface {
	AfterFunc(delay time.Duration, fn func()) Timer
}

// ClockScheduler schedules on a clockwork clock.
type ClockScheduler struct {
	Clock clockwork.Clock
}

// NewClockScheduler returns a scheduler on clock, or on the real clock when clock is nil.
func NewClockScheduler(clock clockwork.Clock) ClockScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return ClockScheduler{Clock: clock}
}

func (s ClockScheduler) AfterFunc(delay time.Duration, fn func()) Timer {
	return s.Clock.AfterFunc(delay, fn)
}
