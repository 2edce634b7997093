// internal/sampler/sampler.go
package sampler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/tamzrod/thermogate/internal/fault"
	"github.com/tamzrod/thermogate/internal/sensor"
	"github.com/tamzrod/thermogate/internal/ticks"
)

// Config is the producer's runtime config.
type Config struct {
	Warmup   ticks.Ticks
	Period   ticks.Ticks
	Deadline ticks.Ticks
}

// Sampler periodically converts the sensor and pushes the raw reading.
// It never blocks on the sensor past Deadline and never blocks on the queue.
type Sampler struct {
	cfg    Config
	tb     ticks.Timebase
	sensor sensor.Sensor
	queue  *Queue
	events fault.Signaler

	cached uint32 // last successful conversion, starts at 0

	missed  atomic.Uint64
	dropped atomic.Uint64
}

func New(cfg Config, tb ticks.Timebase, s sensor.Sensor, q *Queue, events fault.Signaler) (*Sampler, error) {
	if s == nil {
		return nil, errors.New("sampler: sensor required")
	}
	if q == nil {
		return nil, errors.New("sampler: queue required")
	}
	if events == nil {
		return nil, errors.New("sampler: event signaler required")
	}
	if cfg.Period == 0 {
		return nil, errors.New("sampler: period must be > 0")
	}
	return &Sampler{cfg: cfg, tb: tb, sensor: s, queue: q, events: events}, nil
}

// Run waits out the warm-up, then samples every Period until ctx ends.
func (s *Sampler) Run(ctx context.Context) {
	if err := s.tb.Delay(ctx, s.cfg.Warmup); err != nil {
		return
	}

	ticker := time.NewTicker(s.tb.Duration(s.cfg.Period))
	defer ticker.Stop()

	for {
		s.SampleOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SampleOnce runs one cycle and returns the value it tried to enqueue.
func (s *Sampler) SampleOnce(ctx context.Context) uint32 {
	sctx, cancel := s.tb.WithDeadline(ctx, s.cfg.Deadline)
	v, err := s.sensor.Sample(sctx)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return s.cached
		}
		// stale reuse
		s.missed.Add(1)
		s.events.Signal(fault.TempSampleMissedDeadline)
	} else {
		s.cached = v
	}

	if err := s.queue.TryPush(s.cached); err != nil {
		s.dropped.Add(1)
		s.events.Signal(fault.TempQueueFull)
	}
	return s.cached
}

// Missed counts conversions that failed or exceeded the deadline.
func (s *Sampler) Missed() uint64 { return s.missed.Load() }

// Dropped counts samples lost to a full queue.
func (s *Sampler) Dropped() uint64 { return s.dropped.Load() }
