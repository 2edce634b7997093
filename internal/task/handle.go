// internal/task/handle.go
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrStopped is returned from Checkpoint when the task's context ends.
var ErrStopped = errors.New("task: stopped")

// Handle is the suspend/resume control surface of one long-running task.
//
// Suspension is cooperative: the task observes it at Checkpoint, which
// parks while the handle is suspended.
type Handle struct {
	name string

	mu        sync.Mutex
	suspended bool
	resumed   chan struct{}
}

// NewHandle creates a running handle.
func NewHandle(name string) *Handle {
	return &Handle{name: name}
}

func (h *Handle) Name() string { return h.name }

// Suspend marks the task suspended. It reports whether the state changed.
func (h *Handle) Suspend() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.suspended {
		return false
	}
	h.suspended = true
	h.resumed = make(chan struct{})
	return true
}

// Resume releases a suspended task. It reports whether the state changed.
func (h *Handle) Resume() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.suspended {
		return false
	}
	h.suspended = false
	close(h.resumed)
	h.resumed = nil
	return true
}

// Suspended reports the current state.
func (h *Handle) Suspended() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.suspended
}

// Checkpoint returns immediately while running and blocks while suspended.
func (h *Handle) Checkpoint(ctx context.Context) error {
	for {
		h.mu.Lock()
		if !h.suspended {
			h.mu.Unlock()
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w (task=%s): %w", ErrStopped, h.name, err)
			}
			return nil
		}
		wait := h.resumed
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (task=%s): %w", ErrStopped, h.name, ctx.Err())
		case <-wait:
		}
	}
}

// SuspendAll suspends handles from the last to the first.
func SuspendAll(handles []*Handle) {
	for i := len(handles) - 1; i >= 0; i-- {
		handles[i].Suspend()
	}
}

// ResumeAll resumes handles from the last to the first.
func ResumeAll(handles []*Handle) {
	for i := len(handles) - 1; i >= 0; i-- {
		handles[i].Resume()
	}
}
