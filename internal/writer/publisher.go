// internal/writer/publisher.go
package writer

import (
	"context"
	"log"
	"time"

	"github.com/tamzrod/thermogate/internal/status"
)

// Publisher delivers a fresh status snapshot on a fixed interval.
// One goroutine. No overlap. No retries beyond the next tick.
type Publisher struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	snap     func() status.Snapshot
	w        StatusWriter
}

func NewPublisher(name string, interval, timeout time.Duration, snap func() status.Snapshot, w StatusWriter) *Publisher {
	if interval <= 0 {
		interval = time.Second
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Publisher{name: name, interval: interval, timeout: timeout, snap: snap, w: w}
}

// PublishOnce writes one snapshot under the publisher timeout.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.w.WriteStatus(wctx, p.snap())
}

// Run publishes until ctx ends. Failures are logged on transition only.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var failing bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := p.PublishOnce(ctx)
			switch {
			case err != nil && !failing:
				log.Printf("status: write failed (device=%s): %v", p.name, err)
				failing = true
			case err == nil && failing:
				log.Printf("status: write recovered (device=%s)", p.name)
				failing = false
			}
		}
	}
}
