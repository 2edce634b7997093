// internal/supervisor/supervisor.go
package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/tamzrod/thermogate/internal/fault"
	"github.com/tamzrod/thermogate/internal/output"
	"github.com/tamzrod/thermogate/internal/task"
	"github.com/tamzrod/thermogate/internal/ticks"
)

// Source is the consumer side of the sample queue.
type Source interface {
	Pop(ctx context.Context) (uint32, error)
}

// Clock is the 64-bit monotonic tick source. Only the supervisor calls it.
type Clock interface {
	Now() uint64
}

// Config is the consumer's runtime config.
type Config struct {
	Period              ticks.Ticks
	DequeueDeadline     ticks.Ticks
	WriteDeadline       ticks.Ticks
	ResumeWriteDeadline ticks.Ticks
	ResumeAfter         ticks.Ticks // strictly more than this many ticks in band

	MinTemp          float64
	MaxTemp          float64
	FullScaleVoltage float64
	Resolution       uint32
}

// State is what the supervisor exposes to readers on other goroutines.
type State struct {
	HaveReading    bool
	Raw            uint32
	Temp           float64
	Suspended      bool
	SuspendedSince time.Time // wall clock of the Running to Suspended transition
	Readings       uint64
	Resumes        uint64
}

// Observer is notified on the supervisor goroutine. It must not block.
type Observer interface {
	OnReading(raw uint32, temp float64)
	OnSuspend(reason fault.Kind, temp float64)
	OnResume()
}

// Supervisor decodes samples, reports them, and suspends the worker pool
// while readings are outside (MinTemp, MaxTemp).
type Supervisor struct {
	cfg     Config
	tb      ticks.Timebase
	source  Source
	out     output.Writer
	events  fault.Signaler
	handles []*task.Handle
	clock   Clock

	// single writer: the supervisor goroutine
	suspended bool
	since     uint64
	st        State

	published atomic.Pointer[State]
	observer  Observer
}

func New(cfg Config, tb ticks.Timebase, source Source, out output.Writer, events fault.Signaler, handles []*task.Handle, clock Clock) (*Supervisor, error) {
	if source == nil {
		return nil, errors.New("supervisor: sample source required")
	}
	if out == nil {
		return nil, errors.New("supervisor: output required")
	}
	if events == nil {
		return nil, errors.New("supervisor: event signaler required")
	}
	if clock == nil {
		return nil, errors.New("supervisor: clock required")
	}
	if cfg.MinTemp >= cfg.MaxTemp {
		return nil, errors.New("supervisor: min_temp must be below max_temp")
	}
	if cfg.Resolution == 0 {
		return nil, errors.New("supervisor: resolution must be > 0")
	}

	s := &Supervisor{
		cfg:     cfg,
		tb:      tb,
		source:  source,
		out:     out,
		events:  events,
		handles: handles,
		clock:   clock,
	}
	s.publish()
	return s, nil
}

// SetObserver installs an observer. Call before Run.
func (s *Supervisor) SetObserver(o Observer) { s.observer = o }

// Run discards the first queued sample, then processes one sample per Period
// until ctx ends.
func (s *Supervisor) Run(ctx context.Context) {
	if _, err := s.source.Pop(ctx); err != nil {
		return
	}

	for {
		s.Step(ctx)
		if err := s.tb.Delay(ctx, s.cfg.Period); err != nil {
			return
		}
	}
}

// Step dequeues under DequeueDeadline and processes the sample. A missed
// dequeue is signaled and the cycle evaluates nothing.
func (s *Supervisor) Step(ctx context.Context) {
	pctx, cancel := s.tb.WithDeadline(ctx, s.cfg.DequeueDeadline)
	raw, err := s.source.Pop(pctx)
	cancel()

	if err != nil {
		if ctx.Err() == nil {
			s.events.Signal(fault.TempSampleMissedDeadline)
		}
		return
	}
	s.Process(ctx, raw)
}

// Process decodes, reports and evaluates one raw sample.
func (s *Supervisor) Process(ctx context.Context, raw uint32) {
	temp := Decode(raw, s.cfg.FullScaleVoltage, s.cfg.Resolution)

	s.st.HaveReading = true
	s.st.Raw = raw
	s.st.Temp = temp
	s.st.Readings++
	if s.observer != nil {
		s.observer.OnReading(raw, temp)
	}

	s.write(ctx, FormatReading(temp), s.cfg.WriteDeadline)
	s.Evaluate(ctx, temp)
}

// Evaluate applies the band to one decoded temperature.
func (s *Supervisor) Evaluate(ctx context.Context, temp float64) {
	defer s.publish()

	switch {
	case temp < s.cfg.MinTemp:
		s.enterSuspended(fault.TempTooLow, temp)

	case temp > s.cfg.MaxTemp:
		s.enterSuspended(fault.TempTooHigh, temp)

	case s.suspended:
		if s.clock.Now()-s.since <= uint64(s.cfg.ResumeAfter) {
			return
		}
		s.write(ctx, ResumeLine, s.cfg.ResumeWriteDeadline)
		task.ResumeAll(s.handles)
		s.suspended = false
		s.st.Suspended = false
		s.st.Resumes++
		if s.observer != nil {
			s.observer.OnResume()
		}
	}
}

// enterSuspended restarts the resume timer on every out-of-range sample.
// The reported suspension start is taken on entry only; suspending an
// already suspended pool is a no-op.
func (s *Supervisor) enterSuspended(reason fault.Kind, temp float64) {
	s.events.Signal(reason)
	s.since = s.clock.Now()

	if s.suspended {
		return
	}
	task.SuspendAll(s.handles)
	s.suspended = true
	s.st.Suspended = true
	s.st.SuspendedSince = time.Now()
	if s.observer != nil {
		s.observer.OnSuspend(reason, temp)
	}
}

func (s *Supervisor) write(ctx context.Context, line string, deadline ticks.Ticks) {
	wctx, cancel := s.tb.WithDeadline(ctx, deadline)
	defer cancel()

	if err := s.out.Write(wctx, []byte(line)); err != nil && ctx.Err() == nil {
		s.events.Signal(fault.OutputWriteFailed)
	}
}

func (s *Supervisor) publish() {
	st := s.st
	s.published.Store(&st)
}

// Snapshot returns the latest published state. Safe from any goroutine.
func (s *Supervisor) Snapshot() State {
	return *s.published.Load()
}

// Suspended reports the pool state as last decided by the supervisor.
func (s *Supervisor) Suspended() bool { return s.Snapshot().Suspended }
