// internal/sensor/sensor.go
package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sensor triggers one conversion and returns the raw reading, bounded by the
// converter's resolution. Implementations must honor ctx's deadline.
type Sensor interface {
	Sample(ctx context.Context) (uint32, error)
}

// ErrOutOfRange is returned for readings at or above the resolution.
var ErrOutOfRange = errors.New("sensor: reading out of range")

// RegisterReader is the Modbus operation a remote ADC needs.
type RegisterReader interface {
	ReadInputRegisters(ctx context.Context, unitID uint8, addr, qty uint16) ([]uint16, error)
}

// ModbusConfig addresses one ADC channel exposed as an input register.
type ModbusConfig struct {
	UnitID     uint8
	Register   uint16
	Resolution uint32
}

// Modbus reads the raw conversion result from an IO module.
type Modbus struct {
	cfg ModbusConfig
	r   RegisterReader
}

func NewModbus(cfg ModbusConfig, r RegisterReader) (*Modbus, error) {
	if r == nil {
		return nil, errors.New("sensor: register reader required")
	}
	if cfg.Resolution == 0 {
		return nil, errors.New("sensor: resolution must be > 0")
	}
	return &Modbus{cfg: cfg, r: r}, nil
}

func (m *Modbus) Sample(ctx context.Context) (uint32, error) {
	regs, err := m.r.ReadInputRegisters(ctx, m.cfg.UnitID, m.cfg.Register, 1)
	if err != nil {
		return 0, fmt.Errorf("sensor: read unit=%d reg=%d: %w", m.cfg.UnitID, m.cfg.Register, err)
	}
	if len(regs) != 1 {
		return 0, fmt.Errorf("sensor: expected 1 register, got %d", len(regs))
	}
	v := uint32(regs[0])
	if v >= m.cfg.Resolution {
		return 0, fmt.Errorf("%w: %d >= %d", ErrOutOfRange, v, m.cfg.Resolution)
	}
	return v, nil
}

// SimulatedConfig describes a triangle wave between two temperatures.
type SimulatedConfig struct {
	LowC             float64
	HighC            float64
	Steps            int // samples from low to high
	FullScaleVoltage float64
	Resolution       uint32
	Latency          time.Duration // conversion time per sample
}

// Simulated produces raw readings for a temperature sweeping between LowC
// and HighC and back, one step per Sample call.
type Simulated struct {
	cfg SimulatedConfig

	mu  sync.Mutex
	pos int
	dir int
}

func NewSimulated(cfg SimulatedConfig) (*Simulated, error) {
	if cfg.Resolution == 0 || cfg.FullScaleVoltage <= 0 {
		return nil, errors.New("sensor: simulated converter needs resolution and full scale")
	}
	if cfg.Steps <= 0 {
		cfg.Steps = 1
	}
	return &Simulated{cfg: cfg, dir: 1}, nil
}

func (s *Simulated) Sample(ctx context.Context) (uint32, error) {
	if s.cfg.Latency > 0 {
		t := time.NewTimer(s.cfg.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	frac := float64(s.pos) / float64(s.cfg.Steps)
	s.pos += s.dir
	if s.pos >= s.cfg.Steps || s.pos <= 0 {
		s.dir = -s.dir
	}
	s.mu.Unlock()

	temp := s.cfg.LowC + (s.cfg.HighC-s.cfg.LowC)*frac
	return s.raw(temp), nil
}

// raw is the inverse of the supervisor decode: raw = temp*res / (fs*100).
func (s *Simulated) raw(tempC float64) uint32 {
	if tempC <= 0 {
		return 0
	}
	v := tempC * float64(s.cfg.Resolution) / (s.cfg.FullScaleVoltage * 100)
	if v >= float64(s.cfg.Resolution) {
		return s.cfg.Resolution - 1
	}
	return uint32(v)
}
