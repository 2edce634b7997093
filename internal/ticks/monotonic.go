// internal/ticks/monotonic.go
package ticks

import "time"

// Counter is a free-running 32-bit tick register that wraps to zero.
type Counter interface {
	Count() uint32
}

// SysCounter derives a wrapping 32-bit tick register from the process clock.
type SysCounter struct {
	start time.Time
	tb    Timebase
}

// NewSysCounter starts counting at zero now.
func NewSysCounter(tb Timebase) *SysCounter {
	return &SysCounter{start: time.Now(), tb: tb}
}

// Count returns ticks since start, truncated to 32 bits.
func (c *SysCounter) Count() uint32 {
	return uint32(uint64(time.Since(c.start) / c.tb.tick()))
}

// Monotonic extends a wrapping counter to 64 bits.
//
// A reading smaller than the previous one is taken as a wrap and bumps the
// high word. Not safe for concurrent use: exactly one goroutine may call Now.
type Monotonic struct {
	src  Counter
	high uint32
	low  uint32
}

// NewMonotonic wraps src.
func NewMonotonic(src Counter) *Monotonic {
	return &Monotonic{src: src}
}

// Now returns the extended tick count.
func (m *Monotonic) Now() uint64 {
	raw := m.src.Count()
	if raw < m.low {
		m.high++
	}
	m.low = raw
	return uint64(m.high)<<32 | uint64(raw)
}
