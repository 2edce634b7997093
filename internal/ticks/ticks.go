// internal/ticks/ticks.go
package ticks

import (
	"context"
	"time"
)

// Ticks is a count of scheduler ticks. All periods, delays and deadlines in
// the controller are expressed in ticks.
type Ticks uint32

// DefaultTick is one scheduler tick (1 kHz tick rate).
const DefaultTick = time.Millisecond

// Timebase converts ticks into wall-clock durations.
type Timebase struct {
	Tick time.Duration
}

// New returns a timebase; a non-positive tick falls back to DefaultTick.
func New(tick time.Duration) Timebase {
	if tick <= 0 {
		tick = DefaultTick
	}
	return Timebase{Tick: tick}
}

func (tb Timebase) tick() time.Duration {
	if tb.Tick <= 0 {
		return DefaultTick
	}
	return tb.Tick
}

// Duration converts n ticks to a duration.
func (tb Timebase) Duration(n Ticks) time.Duration {
	return time.Duration(n) * tb.tick()
}

// PerSecond is the tick rate. It is at least 1.
func (tb Timebase) PerSecond() Ticks {
	n := time.Second / tb.tick()
	if n < 1 {
		return 1
	}
	return Ticks(n)
}

// Delay blocks for n ticks or until ctx ends.
func (tb Timebase) Delay(ctx context.Context, n Ticks) error {
	if n == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(tb.Duration(n))
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WithDeadline bounds a blocking operation to n ticks.
// Expiry surfaces as context.DeadlineExceeded.
func (tb Timebase) WithDeadline(ctx context.Context, n Ticks) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, tb.Duration(n))
}
