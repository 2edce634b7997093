package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCheckpointBlocksWhileSuspended(t *testing.T) {
	h := NewHandle("slot-0")

	if !h.Suspend() {
		t.Fatalf("first suspend should change state")
	}
	if h.Suspend() {
		t.Fatalf("second suspend should be a no-op")
	}

	done := make(chan error, 1)
	go func() {
		done <- h.Checkpoint(context.Background())
	}()

	select {
	case <-done:
		t.Fatalf("checkpoint returned while suspended")
	case <-time.After(20 * time.Millisecond):
	}

	if !h.Resume() {
		t.Fatalf("resume should change state")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("checkpoint did not return after resume")
	}

	if h.Resume() {
		t.Fatalf("second resume should be a no-op")
	}
}

func TestCheckpointStopsOnCancel(t *testing.T) {
	h := NewHandle("slot-1")
	h.Suspend()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Checkpoint(ctx)
	if !errors.Is(err, ErrStopped) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected stopped+canceled, got %v", err)
	}
}

func TestSuspendAllAndResumeAll(t *testing.T) {
	hs := []*Handle{NewHandle("a"), NewHandle("b"), NewHandle("c")}

	SuspendAll(hs)
	for _, h := range hs {
		if !h.Suspended() {
			t.Fatalf("%s not suspended", h.Name())
		}
	}

	// idempotent
	SuspendAll(hs)

	ResumeAll(hs)
	for _, h := range hs {
		if h.Suspended() {
			t.Fatalf("%s still suspended", h.Name())
		}
	}
}
