package ticks

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCounter struct {
	seq []uint32
	i   int
}

func (f *fakeCounter) Count() uint32 {
	v := f.seq[f.i]
	if f.i < len(f.seq)-1 {
		f.i++
	}
	return v
}

func TestMonotonicSurvivesWrap(t *testing.T) {
	src := &fakeCounter{seq: []uint32{
		10,
		0xFFFFFFF0,
		0xFFFFFFFF,
		3,
		3,
		50,
		1,
	}}
	m := NewMonotonic(src)

	var prev uint64
	for i := 0; i < len(src.seq); i++ {
		now := m.Now()
		if now < prev {
			t.Fatalf("step %d: went backwards: %d < %d", i, now, prev)
		}
		prev = now
	}

	// two wraps observed (0xFFFFFFFF->3, 50->1)
	if want := uint64(2)<<32 | 1; prev != want {
		t.Fatalf("final value: got=%#x want=%#x", prev, want)
	}
}

func TestMonotonicFirstReading(t *testing.T) {
	m := NewMonotonic(&fakeCounter{seq: []uint32{7}})
	if got := m.Now(); got != 7 {
		t.Fatalf("got=%d want=7", got)
	}
}

func TestTimebaseConversions(t *testing.T) {
	tb := New(time.Millisecond)
	if tb.PerSecond() != 1000 {
		t.Fatalf("per second: got=%d", tb.PerSecond())
	}
	if tb.Duration(250) != 250*time.Millisecond {
		t.Fatalf("duration: got=%v", tb.Duration(250))
	}

	zero := Timebase{}
	if zero.Duration(1) != DefaultTick {
		t.Fatalf("zero timebase should use default tick")
	}
}

func TestDeadlineExpires(t *testing.T) {
	tb := New(time.Microsecond)

	ctx, cancel := tb.WithDeadline(context.Background(), 10)
	defer cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("deadline never fired")
	}
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", ctx.Err())
	}
}

func TestDelayStopsOnCancel(t *testing.T) {
	tb := New(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tb.Delay(ctx, 100); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
