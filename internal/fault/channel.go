// internal/fault/channel.go
package fault

import (
	"context"
	"sync/atomic"
)

// Signaler is the fire-and-forget side of the event register.
// Implementations MUST NOT block: Signal is called from the demand-pulse path.
type Signaler interface {
	Signal(k Kind)
}

// Channel is the process-wide event register.
//
// Signal ORs a kind into the register and never blocks.
// WaitAndConsume blocks until the register is non-zero, then reads and clears it
// in one atomic swap.
//
// Kinds signaled before the consumer gets to them are coalesced into one
// pattern. Two distinct kinds raised back to back are read as a single
// multi-bit pattern, not as two events.
type Channel struct {
	bits atomic.Uint32
	wake chan struct{}
}

// NewChannel creates an empty register.
func NewChannel() *Channel {
	return &Channel{wake: make(chan struct{}, 1)}
}

// Signal sets the bit(s) of k. Safe from any goroutine.
func (c *Channel) Signal(k Kind) {
	if c == nil || k == 0 {
		return
	}
	c.bits.Or(uint32(k))

	// Non-blocking wake: a pending wake already covers this signal.
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// WaitAndConsume blocks with no timeout until at least one bit is set and
// returns the pattern it cleared. It only returns early when ctx ends.
func (c *Channel) WaitAndConsume(ctx context.Context) (Kind, error) {
	for {
		if v := c.bits.Swap(0); v != 0 {
			return Kind(v), nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-c.wake:
		}
	}
}

// Pending returns the current pattern without consuming it.
func (c *Channel) Pending() Kind {
	return Kind(c.bits.Load())
}

// SignalerFunc adapts a function to Signaler.
type SignalerFunc func(Kind)

func (f SignalerFunc) Signal(k Kind) { f(k) }
