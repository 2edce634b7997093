package output

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type blockingWriter struct {
	release chan struct{}
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.release
	return len(p), nil
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("line down") }

type recordSink struct {
	lines []string
}

func (r *recordSink) PublishLine(line []byte) { r.lines = append(r.lines, string(line)) }

func TestSerialWritesLinesInOrder(t *testing.T) {
	buf := &safeBuffer{}
	s := NewSerial(buf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	for _, l := range []string{"a\r\n", "b\r\n"} {
		if err := s.Write(context.Background(), []byte(l)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got := buf.String(); got != "a\r\nb\r\n" {
		t.Fatalf("got=%q", got)
	}
}

func TestSerialTimesOutWhenTransmitterBusy(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	defer close(w.release)

	s := NewSerial(w)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	wctx, wcancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer wcancel()

	err := s.Write(wctx, []byte("stuck\r\n"))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestSerialTimesOutWithoutTransmitter(t *testing.T) {
	s := NewSerial(&safeBuffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	if err := s.Write(ctx, []byte("x")); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestSerialReportsTransmitError(t *testing.T) {
	s := NewSerial(failingWriter{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	err := s.Write(context.Background(), []byte("x"))
	if err == nil || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected transmit error, got %v", err)
	}
}

type fakeWriter struct {
	err error
}

func (f *fakeWriter) Write(ctx context.Context, line []byte) error { return f.err }

func TestTeeMirrorsOnlySuccessfulLines(t *testing.T) {
	sink := &recordSink{}

	ok := NewTee(&fakeWriter{}, sink)
	if err := ok.Write(context.Background(), []byte("hello\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	bad := NewTee(&fakeWriter{err: ErrTimeout}, sink)
	if err := bad.Write(context.Background(), []byte("lost\r\n")); err == nil {
		t.Fatalf("expected error")
	}

	if len(sink.lines) != 1 || sink.lines[0] != "hello\r\n" {
		t.Fatalf("mirrored: %q", sink.lines)
	}
}
