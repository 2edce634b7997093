// internal/alarm/reporter.go
package alarm

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/tamzrod/thermogate/internal/fault"
	"github.com/tamzrod/thermogate/internal/indicator"
	"github.com/tamzrod/thermogate/internal/output"
	"github.com/tamzrod/thermogate/internal/ticks"
)

// Blink is a visual pattern: Pairs on/off toggle pairs at HalfPeriod.
type Blink struct {
	Pairs      int
	HalfPeriod ticks.Ticks
}

// Config is the reporter's runtime config.
type Config struct {
	WriteDeadline ticks.Ticks
	Exhausted     Blink // pattern == ResourceExhausted
	Generic       Blink // pattern == Generic
}

// Observer sees every consumed pattern. It must not block.
type Observer interface {
	OnAlarm(pattern fault.Kind, message string)
}

// Reporter is the single consumer of the event register.
type Reporter struct {
	cfg    Config
	tb     ticks.Timebase
	events *fault.Channel
	out    output.Writer
	led    indicator.Indicator

	observer Observer
	last     atomic.Uint32
	reported atomic.Uint64
}

func New(cfg Config, tb ticks.Timebase, events *fault.Channel, out output.Writer, led indicator.Indicator) (*Reporter, error) {
	if events == nil {
		return nil, errors.New("alarm: event channel required")
	}
	if out == nil {
		return nil, errors.New("alarm: output required")
	}
	if led == nil {
		return nil, errors.New("alarm: indicator required")
	}
	return &Reporter{cfg: cfg, tb: tb, events: events, out: out, led: led}, nil
}

// SetObserver installs an observer. Call before Run.
func (r *Reporter) SetObserver(o Observer) { r.observer = o }

// Run consumes the event register until ctx ends.
func (r *Reporter) Run(ctx context.Context) {
	for {
		pattern, err := r.events.WaitAndConsume(ctx)
		if err != nil {
			return
		}
		if err := r.Report(ctx, pattern); err != nil {
			return
		}
	}
}

// Report renders one consumed pattern: the message line, then the blink
// pattern if the pattern has one. A failed write re-signals
// OutputWriteFailed for a later iteration. The only returned error is ctx's.
func (r *Reporter) Report(ctx context.Context, pattern fault.Kind) error {
	msg := fault.Message(pattern)

	r.last.Store(uint32(pattern))
	r.reported.Add(1)
	if r.observer != nil {
		r.observer.OnAlarm(pattern, msg)
	}

	if err := r.writeLine(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.events.Signal(fault.OutputWriteFailed)
	}

	switch pattern {
	case fault.ResourceExhausted:
		return r.blink(ctx, r.cfg.Exhausted)
	case fault.Generic:
		return r.blink(ctx, r.cfg.Generic)
	}
	return nil
}

func (r *Reporter) writeLine(ctx context.Context, msg string) error {
	wctx, cancel := r.tb.WithDeadline(ctx, r.cfg.WriteDeadline)
	defer cancel()
	return r.out.Write(wctx, []byte(msg+"\r\n"))
}

func (r *Reporter) blink(ctx context.Context, b Blink) error {
	for i := 0; i < b.Pairs; i++ {
		r.led.Toggle()
		if err := r.tb.Delay(ctx, b.HalfPeriod); err != nil {
			return err
		}
		r.led.Toggle()
		if err := r.tb.Delay(ctx, b.HalfPeriod); err != nil {
			return err
		}
	}
	return nil
}

// Last returns the most recently consumed pattern.
func (r *Reporter) Last() fault.Kind { return fault.Kind(r.last.Load()) }

// Reported counts consumed patterns.
func (r *Reporter) Reported() uint64 { return r.reported.Load() }
