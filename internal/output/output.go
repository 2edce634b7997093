// internal/output/output.go
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrTimeout is returned when a line could not be transmitted before the
// caller's deadline.
var ErrTimeout = errors.New("output: write timed out")

// Writer is the line-oriented text output. Each call transmits one complete
// line (terminator included) or fails.
type Writer interface {
	Write(ctx context.Context, line []byte) error
}

type request struct {
	line  []byte
	reply chan error
}

// Serial is a single-transmitter output: one goroutine (Run) owns the
// underlying io.Writer and sends lines one at a time, like a UART transmit
// path. Callers wait for their line under their own deadline.
type Serial struct {
	w   io.Writer
	req chan request
}

func NewSerial(w io.Writer) *Serial {
	return &Serial{w: w, req: make(chan request)}
}

// Run transmits queued lines until ctx ends.
func (s *Serial) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-s.req:
			_, err := s.w.Write(r.line)
			r.reply <- err
		}
	}
}

// Write hands line to the transmitter and waits for completion.
// The line is copied; the caller may reuse its buffer.
func (s *Serial) Write(ctx context.Context, line []byte) error {
	r := request{
		line:  append([]byte(nil), line...),
		reply: make(chan error, 1),
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	case s.req <- r:
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	case err := <-r.reply:
		if err != nil {
			return fmt.Errorf("output: transmit failed: %w", err)
		}
		return nil
	}
}

// LineSink receives a copy of every line successfully written through a Tee.
// PublishLine must not block.
type LineSink interface {
	PublishLine(line []byte)
}

// Tee writes to a primary output and mirrors successful lines to sinks.
type Tee struct {
	primary Writer
	sinks   []LineSink
}

func NewTee(primary Writer, sinks ...LineSink) *Tee {
	return &Tee{primary: primary, sinks: sinks}
}

func (t *Tee) Write(ctx context.Context, line []byte) error {
	if err := t.primary.Write(ctx, line); err != nil {
		return err
	}
	for _, s := range t.sinks {
		s.PublishLine(line)
	}
	return nil
}
