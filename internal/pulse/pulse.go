// internal/pulse/pulse.go
package pulse

import (
	"bufio"
	"context"
	"io"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Target receives demand pulses. OnDemandPulse must not block.
type Target interface {
	OnDemandPulse()
}

// TargetFunc adapts a function to Target.
type TargetFunc func()

func (f TargetFunc) OnDemandPulse() { f() }

// ---- DEBOUNCE ----

// Debounce forwards at most one pulse per window; the rest are contact
// bounce and are dropped.
type Debounce struct {
	next    Target
	lim     *rate.Limiter
	dropped atomic.Uint64
}

func NewDebounce(next Target, window time.Duration) *Debounce {
	return &Debounce{
		next: next,
		lim:  rate.NewLimiter(rate.Every(window), 1),
	}
}

func (d *Debounce) OnDemandPulse() {
	if !d.lim.Allow() {
		d.dropped.Add(1)
		return
	}
	d.next.OnDemandPulse()
}

// Dropped counts pulses discarded as bounce.
func (d *Debounce) Dropped() uint64 { return d.dropped.Load() }

// ---- LINE SOURCE ----

// Lines turns text lines into pulses: an empty line (or any text) is one
// pulse, a positive integer N is a burst of N pulses.
type Lines struct {
	r      io.Reader
	target Target
}

func NewLines(r io.Reader, target Target) *Lines {
	return &Lines{r: r, target: target}
}

// maxBurst caps one line's burst.
const maxBurst = 64

// Run reads until EOF or ctx ends. The underlying reader is not closed.
func (l *Lines) Run(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		sc := bufio.NewScanner(l.r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case text := <-lines:
			for i := 0; i < burstSize(text); i++ {
				l.target.OnDemandPulse()
			}
		}
	}
}

func burstSize(text string) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 {
		return 1
	}
	if n > maxBurst {
		return maxBurst
	}
	return n
}

// ---- MODBUS DISCRETE INPUT ----

// InputReader is the Modbus operation a push-button input needs.
type InputReader interface {
	ReadDiscreteInputs(ctx context.Context, unitID uint8, addr, qty uint16) ([]bool, error)
}

// EdgeConfig addresses one discrete input.
type EdgeConfig struct {
	Name     string
	UnitID   uint8
	Address  uint16
	Interval time.Duration
	Timeout  time.Duration
}

// Edge polls a discrete input and fires one pulse per rising edge.
// The first successful read only establishes the baseline.
type Edge struct {
	cfg    EdgeConfig
	r      InputReader
	target Target

	primed bool
	last   bool
}

func NewEdge(cfg EdgeConfig, r InputReader, target Target) *Edge {
	if cfg.Interval <= 0 {
		cfg.Interval = 20 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &Edge{cfg: cfg, r: r, target: target}
}

// PollOnce performs one read and reports whether a pulse was fired.
func (e *Edge) PollOnce(ctx context.Context) (bool, error) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	bits, err := e.r.ReadDiscreteInputs(rctx, e.cfg.UnitID, e.cfg.Address, 1)
	if err != nil {
		return false, err
	}
	if len(bits) == 0 {
		return false, nil
	}

	cur := bits[0]
	fired := e.primed && cur && !e.last
	e.primed = true
	e.last = cur

	if fired {
		e.target.OnDemandPulse()
	}
	return fired, nil
}

// Run polls on a ticker until ctx ends. No overlap. No retries.
func (e *Edge) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	var failing bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := e.PollOnce(ctx)
			switch {
			case err != nil && !failing:
				log.Printf("pulse: discrete input read failed (name=%s addr=%d): %v", e.cfg.Name, e.cfg.Address, err)
				failing = true
			case err == nil && failing:
				log.Printf("pulse: discrete input recovered (name=%s)", e.cfg.Name)
				failing = false
			}
		}
	}
}
