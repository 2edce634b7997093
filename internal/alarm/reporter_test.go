package alarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/thermogate/internal/fault"
	"github.com/tamzrod/thermogate/internal/indicator"
	"github.com/tamzrod/thermogate/internal/output"
	"github.com/tamzrod/thermogate/internal/ticks"
)

type fakeOutput struct {
	mu    sync.Mutex
	lines []string
	fail  bool
}

func (f *fakeOutput) Write(ctx context.Context, line []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return output.ErrTimeout
	}
	f.lines = append(f.lines, string(line))
	return nil
}

func (f *fakeOutput) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func testConfig() Config {
	return Config{
		WriteDeadline: 500,
		Exhausted:     Blink{Pairs: 3, HalfPeriod: 250},
		Generic:       Blink{Pairs: 5, HalfPeriod: 100},
	}
}

func newReporter(t *testing.T, out output.Writer) (*Reporter, *fault.Channel, *indicator.Memory) {
	t.Helper()
	ch := fault.NewChannel()
	led := indicator.NewMemory("alarm")
	r, err := New(testConfig(), ticks.New(time.Microsecond), ch, out, led)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return r, ch, led
}

func TestReportBlinkPatterns(t *testing.T) {
	cases := []struct {
		pattern fault.Kind
		flips   uint64
	}{
		{fault.ResourceExhausted, 6},
		{fault.Generic, 10},
		{fault.TempTooHigh, 0},
		{fault.Generic | fault.ResourceExhausted, 0},
	}

	for _, c := range cases {
		out := &fakeOutput{}
		r, _, led := newReporter(t, out)

		if err := r.Report(context.Background(), c.pattern); err != nil {
			t.Fatalf("%s: report: %v", c.pattern, err)
		}
		if led.Transitions() != c.flips {
			t.Fatalf("%s: flips got=%d want=%d", c.pattern, led.Transitions(), c.flips)
		}
		if led.State() {
			t.Fatalf("%s: indicator left on", c.pattern)
		}

		lines := out.snapshot()
		want := fault.Message(c.pattern) + "\r\n"
		if len(lines) != 1 || lines[0] != want {
			t.Fatalf("%s: lines=%q want %q", c.pattern, lines, want)
		}
	}
}

func TestCoalescedPatternRendersUnknown(t *testing.T) {
	out := &fakeOutput{}
	r, _, _ := newReporter(t, out)

	_ = r.Report(context.Background(), fault.TempTooLow|fault.TempQueueFull)

	if lines := out.snapshot(); lines[0] != "Unknown error.\r\n" {
		t.Fatalf("got=%q", lines[0])
	}
}

func TestWriteFailureResignals(t *testing.T) {
	out := &fakeOutput{fail: true}
	r, ch, _ := newReporter(t, out)

	if err := r.Report(context.Background(), fault.TempTooHigh); err != nil {
		t.Fatalf("report: %v", err)
	}

	if ch.Pending() != fault.OutputWriteFailed {
		t.Fatalf("pending: got=%s want=%s", ch.Pending(), fault.OutputWriteFailed)
	}
}

func TestRunConsumesSignals(t *testing.T) {
	out := &fakeOutput{}
	r, ch, _ := newReporter(t, out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	ch.Signal(fault.TempSampleMissedDeadline)

	deadline := time.After(2 * time.Second)
	for r.Reported() < 1 {
		select {
		case <-deadline:
			t.Fatalf("reporter never consumed the signal")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if r.Last() != fault.TempSampleMissedDeadline {
		t.Fatalf("last: got=%s", r.Last())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reporter did not stop")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(testConfig(), ticks.Timebase{}, nil, &fakeOutput{}, indicator.NewMemory("x")); err == nil {
		t.Fatalf("expected error for missing channel")
	}
	if _, err := New(testConfig(), ticks.Timebase{}, fault.NewChannel(), nil, indicator.NewMemory("x")); err == nil {
		t.Fatalf("expected error for missing output")
	}
	if _, err := New(testConfig(), ticks.Timebase{}, fault.NewChannel(), &fakeOutput{}, nil); err == nil {
		t.Fatalf("expected error for missing indicator")
	}
}
