// internal/admission/controller.go
package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tamzrod/thermogate/internal/fault"
	"github.com/tamzrod/thermogate/internal/indicator"
	"github.com/tamzrod/thermogate/internal/task"
	"github.com/tamzrod/thermogate/internal/ticks"
)

// Config is the runtime config of the resource pool.
type Config struct {
	Slots     int
	BusySteps int
	StepTicks ticks.Ticks
}

// Controller gates a fixed pool of resource slots behind a demand pulse.
//
// Two primitives are shared between the pulse path and the slot workers:
//
//	free    counting semaphore of available units (buffered channel, N tokens)
//	trigger binary semaphore authorizing one worker (buffered channel, cap 1)
//
// OnDemandPulse only peeks at free; the workers' blocking acquire on free is
// the real gate. A trigger produced while the last unit is being taken is
// banked and served once a unit is released.
type Controller struct {
	cfg     Config
	tb      ticks.Timebase
	events  fault.Signaler
	free    chan struct{}
	trigger chan struct{}

	slots   []indicator.Indicator
	handles []*task.Handle

	busy     atomic.Int32
	admitted atomic.Uint64
	rejected atomic.Uint64
	observer Observer
}

// Observer is notified of slot activity. Calls happen on the worker goroutine
// (or the pulse caller for OnReject) and must not block.
type Observer interface {
	OnAdmit(slot int)
	OnRelease(slot int)
	OnReject()
}

// New creates the pool primitives and one task handle per slot.
// Each slot is bound to the indicator at the same index.
func New(cfg Config, tb ticks.Timebase, events fault.Signaler, slots []indicator.Indicator) (*Controller, error) {
	if cfg.Slots <= 0 {
		return nil, errors.New("admission: slots must be > 0")
	}
	if len(slots) != cfg.Slots {
		return nil, fmt.Errorf("admission: %d indicators for %d slots", len(slots), cfg.Slots)
	}
	if cfg.BusySteps <= 0 {
		return nil, errors.New("admission: busy steps must be > 0")
	}
	if events == nil {
		return nil, errors.New("admission: event signaler required")
	}

	c := &Controller{
		cfg:     cfg,
		tb:      tb,
		events:  events,
		free:    make(chan struct{}, cfg.Slots),
		trigger: make(chan struct{}, 1),
		slots:   slots,
	}
	for i := 0; i < cfg.Slots; i++ {
		c.free <- struct{}{}
		c.handles = append(c.handles, task.NewHandle(fmt.Sprintf("slot-%d", i)))
	}
	return c, nil
}

// SetObserver installs an observer. Call before Run.
func (c *Controller) SetObserver(o Observer) { c.observer = o }

// OnDemandPulse is the interrupt-context entry point. It never blocks.
func (c *Controller) OnDemandPulse() {
	// Peek only: not atomic with the worker's acquire.
	if len(c.free) == 0 {
		c.rejected.Add(1)
		c.events.Signal(fault.ResourceExhausted)
		if c.observer != nil {
			c.observer.OnReject()
		}
		return
	}

	if c.trigger == nil {
		c.events.Signal(fault.InvalidResourceHandle)
		return
	}

	// Binary semaphore: a pending trigger already covers this pulse.
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Run starts one worker per slot and blocks until ctx ends and every worker
// has returned.
func (c *Controller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := range c.slots {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			c.worker(ctx, slot)
		}(i)
	}
	wg.Wait()
}

func (c *Controller) worker(ctx context.Context, slot int) {
	h := c.handles[slot]
	led := c.slots[slot]

	for {
		if err := h.Checkpoint(ctx); err != nil {
			return
		}

		// Wait for work: unbounded.
		select {
		case <-ctx.Done():
			return
		case <-c.trigger:
		}

		// A pool suspended while this worker was parked keeps the trigger
		// banked here until resumed.
		if err := h.Checkpoint(ctx); err != nil {
			return
		}

		// The real gate: unbounded, FIFO across waiting workers.
		select {
		case <-ctx.Done():
			return
		case <-c.free:
		}

		c.busy.Add(1)
		c.admitted.Add(1)
		if c.observer != nil {
			c.observer.OnAdmit(slot)
		}

		err := c.occupy(ctx, h, led)

		c.busy.Add(-1)
		c.free <- struct{}{}
		if c.observer != nil {
			c.observer.OnRelease(slot)
		}

		if err != nil {
			return
		}
	}
}

// occupy holds the slot for the fixed busy period, toggling its indicator
// once per step.
func (c *Controller) occupy(ctx context.Context, h *task.Handle, led indicator.Indicator) error {
	for i := 0; i < c.cfg.BusySteps; i++ {
		if err := c.tb.Delay(ctx, c.cfg.StepTicks); err != nil {
			return err
		}
		led.Toggle()
		if err := h.Checkpoint(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Handles returns the task handles in slot order.
func (c *Controller) Handles() []*task.Handle {
	out := make([]*task.Handle, len(c.handles))
	copy(out, c.handles)
	return out
}

// Available is the current number of free units.
func (c *Controller) Available() int { return len(c.free) }

// Busy is the number of slots currently holding a unit.
func (c *Controller) Busy() int { return int(c.busy.Load()) }

// Capacity is N.
func (c *Controller) Capacity() int { return c.cfg.Slots }

// Admitted counts units acquired since start.
func (c *Controller) Admitted() uint64 { return c.admitted.Load() }

// Rejected counts pulses turned away because the pool was exhausted.
func (c *Controller) Rejected() uint64 { return c.rejected.Load() }
