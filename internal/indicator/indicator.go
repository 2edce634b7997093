// internal/indicator/indicator.go
package indicator

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Indicator is a two-state visual output (LED, stack light, coil).
// Calls never fail from the caller's point of view; hardware errors are the
// implementation's concern.
type Indicator interface {
	On()
	Off()
	Toggle()
	State() bool
}

// Memory is an in-process indicator. It also counts transitions.
type Memory struct {
	name  string
	state atomic.Bool
	flips atomic.Uint64
}

func NewMemory(name string) *Memory {
	return &Memory{name: name}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) On() {
	if !m.state.Swap(true) {
		m.flips.Add(1)
	}
}

func (m *Memory) Off() {
	if m.state.Swap(false) {
		m.flips.Add(1)
	}
}

func (m *Memory) Toggle() {
	for {
		old := m.state.Load()
		if m.state.CompareAndSwap(old, !old) {
			m.flips.Add(1)
			return
		}
	}
}

func (m *Memory) State() bool { return m.state.Load() }

// Transitions returns how many times the state changed.
func (m *Memory) Transitions() uint64 { return m.flips.Load() }

// CoilWriter is the Modbus operation a Coil needs.
type CoilWriter interface {
	WriteSingleCoil(ctx context.Context, unitID uint8, addr uint16, on bool) error
}

// Coil drives a Modbus coil on a remote IO module. The logical state is kept
// locally so Toggle does not need a read-back.
type Coil struct {
	name    string
	w       CoilWriter
	unitID  uint8
	addr    uint16
	timeout time.Duration

	mu    sync.Mutex
	state bool
}

// CoilConfig addresses one coil.
type CoilConfig struct {
	Name    string
	UnitID  uint8
	Address uint16
	Timeout time.Duration
}

func NewCoil(cfg CoilConfig, w CoilWriter) *Coil {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	return &Coil{
		name:    cfg.Name,
		w:       w,
		unitID:  cfg.UnitID,
		addr:    cfg.Address,
		timeout: cfg.Timeout,
	}
}

func (c *Coil) On()     { c.set(func(bool) bool { return true }) }
func (c *Coil) Off()    { c.set(func(bool) bool { return false }) }
func (c *Coil) Toggle() { c.set(func(s bool) bool { return !s }) }

func (c *Coil) State() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coil) set(next func(bool) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = next(c.state)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.w.WriteSingleCoil(ctx, c.unitID, c.addr, c.state); err != nil {
		log.Printf("indicator: coil write failed (name=%s addr=%d): %v", c.name, c.addr, err)
	}
}
