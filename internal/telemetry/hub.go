// internal/telemetry/hub.go
package telemetry

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tamzrod/thermogate/internal/fault"
)

// RecordType classifies a telemetry record.
type RecordType string

const (
	TypeLine    RecordType = "line"
	TypeAlarm   RecordType = "alarm"
	TypeReading RecordType = "reading"
	TypeSuspend RecordType = "suspend"
	TypeResume  RecordType = "resume"
	TypeAdmit   RecordType = "admit"
	TypeRelease RecordType = "release"
	TypeReject  RecordType = "reject"
)

// Record is one controller event as seen by the outside world.
type Record struct {
	At      time.Time  `json:"at"`
	RunID   string     `json:"run_id"`
	Type    RecordType `json:"type"`
	Line    string     `json:"line,omitempty"`
	Event   fault.Kind `json:"event,omitempty"`
	Message string     `json:"message,omitempty"`
	Raw     uint32     `json:"raw,omitempty"`
	TempC   float64    `json:"temp_c,omitempty"`
	Slot    int        `json:"slot"`
}

// Sink delivers records to one remote system.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, r Record) error
	Close() error
}

// BreakerConfig trips a sink's breaker after consecutive failures.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	Interval            time.Duration
}

type boundSink struct {
	sink    Sink
	cb      *gobreaker.CircuitBreaker
	failing bool
}

// Hub fans records out to sinks on its own goroutine. Publishing never
// blocks: when the buffer is full the record is dropped and counted.
type Hub struct {
	runID   string
	in      chan Record
	sinks   []*boundSink
	timeout time.Duration

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// HubConfig sizes the hub.
type HubConfig struct {
	RunID          string
	Buffer         int
	DeliverTimeout time.Duration
	Breaker        BreakerConfig
}

func NewHub(cfg HubConfig, sinks ...Sink) *Hub {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = 2 * time.Second
	}
	if cfg.Breaker.ConsecutiveFailures == 0 {
		cfg.Breaker.ConsecutiveFailures = 5
	}
	if cfg.Breaker.OpenTimeout <= 0 {
		cfg.Breaker.OpenTimeout = 30 * time.Second
	}

	h := &Hub{
		runID:   cfg.RunID,
		in:      make(chan Record, cfg.Buffer),
		timeout: cfg.DeliverTimeout,
	}
	for _, s := range sinks {
		h.sinks = append(h.sinks, &boundSink{sink: s, cb: newBreaker(s.Name(), cfg.Breaker)})
	}
	return h
}

func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: cfg.Interval,
		Timeout:  cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("telemetry: breaker %s -> %s (sink=%s)", from, to, name)
		},
	})
}

// Publish enqueues r without blocking.
func (h *Hub) Publish(r Record) {
	if h == nil {
		return
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	r.RunID = h.runID

	select {
	case h.in <- r:
		h.published.Add(1)
	default:
		h.dropped.Add(1)
	}
}

// Run delivers records until ctx ends, then closes every sink.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeSinks()

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-h.in:
			h.deliver(ctx, r)
		}
	}
}

func (h *Hub) deliver(ctx context.Context, r Record) {
	for _, b := range h.sinks {
		_, err := b.cb.Execute(func() (interface{}, error) {
			dctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			return nil, b.sink.Deliver(dctx, r)
		})

		switch {
		case err != nil:
			h.failed.Add(1)
			if !b.failing && !errors.Is(err, gobreaker.ErrOpenState) {
				log.Printf("telemetry: delivery failed (sink=%s type=%s): %v", b.sink.Name(), r.Type, err)
			}
			b.failing = true
		case b.failing:
			log.Printf("telemetry: delivery recovered (sink=%s)", b.sink.Name())
			b.failing = false
		}
	}
}

func (h *Hub) closeSinks() {
	for _, b := range h.sinks {
		if err := b.sink.Close(); err != nil {
			log.Printf("telemetry: close failed (sink=%s): %v", b.sink.Name(), err)
		}
	}
}

// Published counts accepted records.
func (h *Hub) Published() uint64 { return h.published.Load() }

// Dropped counts records lost to a full buffer.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Failed counts per-sink delivery failures, breaker rejections included.
func (h *Hub) Failed() uint64 { return h.failed.Load() }

// ---- controller observers ----

// PublishLine mirrors an output line.
func (h *Hub) PublishLine(line []byte) {
	text := strings.TrimRight(string(line), "\r\n")
	if text == "" {
		return
	}
	h.Publish(Record{Type: TypeLine, Line: text})
}

func (h *Hub) OnAlarm(pattern fault.Kind, message string) {
	h.Publish(Record{Type: TypeAlarm, Event: pattern, Message: message})
}

func (h *Hub) OnReading(raw uint32, temp float64) {
	h.Publish(Record{Type: TypeReading, Raw: raw, TempC: temp})
}

func (h *Hub) OnSuspend(reason fault.Kind, temp float64) {
	h.Publish(Record{Type: TypeSuspend, Event: reason, Message: fault.Message(reason), TempC: temp})
}

func (h *Hub) OnResume() {
	h.Publish(Record{Type: TypeResume})
}

func (h *Hub) OnAdmit(slot int)   { h.Publish(Record{Type: TypeAdmit, Slot: slot}) }
func (h *Hub) OnRelease(slot int) { h.Publish(Record{Type: TypeRelease, Slot: slot}) }
func (h *Hub) OnReject()          { h.Publish(Record{Type: TypeReject}) }
