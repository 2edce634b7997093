// internal/sampler/queue.go
package sampler

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by TryPush when the queue holds Cap() samples.
var ErrQueueFull = errors.New("sampler: queue full")

// Queue is the bounded FIFO of raw readings between the sampler and the
// supervisor. One producer, one consumer.
type Queue struct {
	ch chan uint32
}

func NewQueue(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, errors.New("sampler: queue capacity must be > 0")
	}
	return &Queue{ch: make(chan uint32, capacity)}, nil
}

// TryPush enqueues v without blocking.
func (q *Queue) TryPush(v uint32) error {
	select {
	case q.ch <- v:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop dequeues the oldest sample, blocking until one is available or ctx
// ends. Pass a deadline context for a bounded wait.
func (q *Queue) Pop(ctx context.Context) (uint32, error) {
	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (q *Queue) Len() int { return len(q.ch) }
func (q *Queue) Cap() int { return cap(q.ch) }
