package sensor

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeReader struct {
	regs []uint16
	err  error
}

func (f *fakeReader) ReadInputRegisters(ctx context.Context, unitID uint8, addr, qty uint16) ([]uint16, error) {
	return f.regs, f.err
}

func TestModbusSample(t *testing.T) {
	m, err := NewModbus(ModbusConfig{UnitID: 1, Register: 3, Resolution: 4096}, &fakeReader{regs: []uint16{1922}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	v, err := m.Sample(context.Background())
	if err != nil || v != 1922 {
		t.Fatalf("got=%d err=%v", v, err)
	}
}

func TestModbusSampleRejectsOutOfRange(t *testing.T) {
	m, _ := NewModbus(ModbusConfig{Resolution: 4096}, &fakeReader{regs: []uint16{4096}})
	if _, err := m.Sample(context.Background()); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
}

func TestModbusSamplePropagatesTransportError(t *testing.T) {
	m, _ := NewModbus(ModbusConfig{Resolution: 4096}, &fakeReader{err: context.DeadlineExceeded})
	if _, err := m.Sample(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestSimulatedSweepsAndReverses(t *testing.T) {
	s, err := NewSimulated(SimulatedConfig{
		LowC: 10, HighC: 30, Steps: 2,
		FullScaleVoltage: 5.0, Resolution: 4096,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var got []uint32
	for i := 0; i < 5; i++ {
		v, err := s.Sample(context.Background())
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		got = append(got, v)
	}

	// 10C, 20C, 30C, 20C, 10C
	if got[0] != got[4] || got[1] != got[3] || !(got[0] < got[1] && got[1] < got[2]) {
		t.Fatalf("unexpected sweep: %v", got)
	}
	// 20C -> 20*4096/500 = 163.84
	if got[1] != 163 {
		t.Fatalf("20C raw: got=%d want=163", got[1])
	}
}

func TestSimulatedHonorsDeadline(t *testing.T) {
	s, _ := NewSimulated(SimulatedConfig{
		LowC: 20, HighC: 20, FullScaleVoltage: 5, Resolution: 4096,
		Latency: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	if _, err := s.Sample(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}
