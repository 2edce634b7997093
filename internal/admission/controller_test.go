package admission

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tamzrod/thermogate/internal/fault"
	"github.com/tamzrod/thermogate/internal/indicator"
	"github.com/tamzrod/thermogate/internal/task"
	"github.com/tamzrod/thermogate/internal/ticks"
)

type recordSignaler struct {
	mu    sync.Mutex
	kinds []fault.Kind
}

func (r *recordSignaler) Signal(k fault.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, k)
}

func (r *recordSignaler) count(k fault.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.kinds {
		if got == k {
			n++
		}
	}
	return n
}

type concurrencyObserver struct {
	cur atomic.Int32
	max atomic.Int32
}

func (o *concurrencyObserver) OnAdmit(slot int) {
	n := o.cur.Add(1)
	for {
		m := o.max.Load()
		if n <= m || o.max.CompareAndSwap(m, n) {
			return
		}
	}
}
func (o *concurrencyObserver) OnRelease(slot int) { o.cur.Add(-1) }
func (o *concurrencyObserver) OnReject()          {}

func leds(n int) ([]indicator.Indicator, []*indicator.Memory) {
	var out []indicator.Indicator
	var mem []*indicator.Memory
	for i := 0; i < n; i++ {
		m := indicator.NewMemory("slot")
		out = append(out, m)
		mem = append(mem, m)
	}
	return out, mem
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func start(t *testing.T, c *Controller) (context.CancelFunc, chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	return cancel, done
}

func stop(t *testing.T, cancel context.CancelFunc, done chan struct{}) {
	t.Helper()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("workers did not stop")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	sig := &recordSignaler{}
	l, _ := leds(2)

	if _, err := New(Config{Slots: 0, BusySteps: 1}, ticks.Timebase{}, sig, nil); err == nil {
		t.Fatalf("expected error for zero slots")
	}
	if _, err := New(Config{Slots: 3, BusySteps: 1}, ticks.Timebase{}, sig, l); err == nil {
		t.Fatalf("expected error for indicator mismatch")
	}
	if _, err := New(Config{Slots: 2, BusySteps: 0}, ticks.Timebase{}, sig, l); err == nil {
		t.Fatalf("expected error for zero busy steps")
	}
}

func TestBusyNeverExceedsCapacity(t *testing.T) {
	sig := &recordSignaler{}
	l, _ := leds(3)
	c, err := New(Config{Slots: 3, BusySteps: 3, StepTicks: 200}, ticks.New(time.Microsecond), sig, l)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	obs := &concurrencyObserver{}
	c.SetObserver(obs)

	cancel, done := start(t, c)

	for i := 0; i < 200; i++ {
		c.OnDemandPulse()
		if c.Busy() > c.Capacity() {
			t.Fatalf("busy=%d exceeds capacity", c.Busy())
		}
		time.Sleep(20 * time.Microsecond)
	}

	stop(t, cancel, done)

	if m := obs.max.Load(); m > 3 {
		t.Fatalf("max concurrent busy: got=%d", m)
	}
	if c.Admitted() == 0 {
		t.Fatalf("no pulse was admitted")
	}
}

func TestExhaustedPulseSignalsOnceAndAdmitsNothing(t *testing.T) {
	sig := &recordSignaler{}
	l, _ := leds(3)
	// long busy period so the pool stays full for the whole test
	c, _ := New(Config{Slots: 3, BusySteps: 10, StepTicks: 1000}, ticks.New(time.Millisecond), sig, l)

	cancel, done := start(t, c)

	for i := 1; i <= 3; i++ {
		c.OnDemandPulse()
		want := i
		waitFor(t, "slot admission", func() bool { return c.Busy() == want })
	}
	if c.Available() != 0 {
		t.Fatalf("available: got=%d want=0", c.Available())
	}

	c.OnDemandPulse()
	time.Sleep(10 * time.Millisecond)

	if n := sig.count(fault.ResourceExhausted); n != 1 {
		t.Fatalf("exhausted signals: got=%d want=1", n)
	}
	if c.Admitted() != 3 || c.Busy() != 3 {
		t.Fatalf("admitted=%d busy=%d, want 3/3", c.Admitted(), c.Busy())
	}
	if c.Rejected() != 1 {
		t.Fatalf("rejected: got=%d", c.Rejected())
	}

	stop(t, cancel, done)
}

func TestUnitsReturnAfterBusyPeriod(t *testing.T) {
	sig := &recordSignaler{}
	l, mem := leds(3)
	c, _ := New(Config{Slots: 3, BusySteps: 4, StepTicks: 20}, ticks.New(time.Microsecond), sig, l)

	cancel, done := start(t, c)

	for round := 1; round <= 5; round++ {
		c.OnDemandPulse()
		want := uint64(round)
		waitFor(t, "admission", func() bool { return c.Admitted() == want })
		waitFor(t, "release", func() bool { return c.Busy() == 0 && c.Available() == 3 })
	}

	stop(t, cancel, done)

	var flips uint64
	for _, m := range mem {
		flips += m.Transitions()
	}
	if flips != 5*4 {
		t.Fatalf("indicator toggles: got=%d want=%d", flips, 5*4)
	}
	if c.Available() != 3 {
		t.Fatalf("available after cycles: got=%d want=3", c.Available())
	}
}

func TestSuspendedWorkersHoldTrigger(t *testing.T) {
	sig := &recordSignaler{}
	l, _ := leds(2)
	c, _ := New(Config{Slots: 2, BusySteps: 1, StepTicks: 10}, ticks.New(time.Microsecond), sig, l)

	for _, h := range c.Handles() {
		h.Suspend()
	}

	cancel, done := start(t, c)

	c.OnDemandPulse()
	time.Sleep(20 * time.Millisecond)
	if c.Admitted() != 0 {
		t.Fatalf("suspended worker admitted a pulse")
	}

	for _, h := range c.Handles() {
		h.Resume()
	}
	waitFor(t, "banked trigger served", func() bool { return c.Admitted() == 1 })

	stop(t, cancel, done)
}

func TestSuspendingIdlePoolBanksTrigger(t *testing.T) {
	sig := &recordSignaler{}
	l, mem := leds(3)
	c, _ := New(Config{Slots: 3, BusySteps: 2, StepTicks: 10}, ticks.New(time.Microsecond), sig, l)

	cancel, done := start(t, c)

	// let every worker park on the trigger before suspending
	time.Sleep(20 * time.Millisecond)
	task.SuspendAll(c.Handles())

	c.OnDemandPulse()
	time.Sleep(20 * time.Millisecond)

	var flips uint64
	for _, m := range mem {
		flips += m.Transitions()
	}
	if c.Admitted() != 0 || c.Busy() != 0 || c.Available() != 3 || flips != 0 {
		t.Fatalf("while suspended: admitted=%d busy=%d available=%d toggles=%d",
			c.Admitted(), c.Busy(), c.Available(), flips)
	}

	task.ResumeAll(c.Handles())
	waitFor(t, "banked trigger served", func() bool { return c.Admitted() == 1 })
	waitFor(t, "release", func() bool { return c.Busy() == 0 && c.Available() == 3 })

	stop(t, cancel, done)
}

func TestInvalidTriggerSignals(t *testing.T) {
	sig := &recordSignaler{}
	l, _ := leds(1)
	c, _ := New(Config{Slots: 1, BusySteps: 1, StepTicks: 1}, ticks.New(time.Microsecond), sig, l)

	c.trigger = nil
	c.OnDemandPulse()

	if n := sig.count(fault.InvalidResourceHandle); n != 1 {
		t.Fatalf("invalid handle signals: got=%d want=1", n)
	}
}

func TestRepeatedPulsesCoalesceIntoOneTrigger(t *testing.T) {
	sig := &recordSignaler{}
	l, _ := leds(3)
	c, _ := New(Config{Slots: 3, BusySteps: 1, StepTicks: 1}, ticks.New(time.Microsecond), sig, l)

	// no workers running: the binary trigger absorbs the burst
	for i := 0; i < 5; i++ {
		c.OnDemandPulse()
	}
	if len(c.trigger) != 1 {
		t.Fatalf("pending triggers: got=%d want=1", len(c.trigger))
	}
	if len(sig.kinds) != 0 {
		t.Fatalf("unexpected signals: %v", sig.kinds)
	}
}
