// internal/app/run.go
package app

import (
	"context"
	"errors"
	"io"
	"log"

	"golang.org/x/sync/errgroup"
)

// Run starts every task and blocks until ctx ends or a task fails.
// Sinks and fieldbus connections are closed before Run returns.
func (sys *System) Run(ctx context.Context) error {
	defer func() {
		if err := sys.bus.Close(); err != nil {
			log.Printf("app: fieldbus close failed: %v", err)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	spawn := func(run func(context.Context)) {
		g.Go(func() error {
			run(ctx)
			return nil
		})
	}

	// Output and alarm first so startup failures are reported.
	spawn(sys.serial.Run)
	spawn(sys.Hub.Run)
	spawn(sys.Alarm.Run)

	if sys.Pool != nil {
		spawn(sys.Pool.Run)
	}
	if sys.Supervisor != nil {
		spawn(sys.Sampler.Run)
		spawn(sys.Supervisor.Run)
	}

	for _, e := range sys.edges {
		spawn(e.Run)
	}
	if sys.lines != nil {
		g.Go(func() error {
			err := sys.lines.Run(ctx)
			switch {
			case err == nil || errors.Is(err, io.EOF):
				log.Printf("app: pulse input closed")
			case !errors.Is(err, context.Canceled):
				log.Printf("app: pulse input failed: %v", err)
			}
			return nil
		})
	}

	if sys.status != nil {
		spawn(sys.status.Run)
	}
	if addr := sys.cfg.Telemetry.MetricsAddr; addr != "" {
		g.Go(func() error {
			if err := sys.Metrics.Serve(ctx, addr); err != nil {
				log.Printf("app: metrics disabled (addr=%s): %v", addr, err)
			}
			return nil
		})
	}

	log.Printf("thermogate: running (device=%s run=%s)", sys.cfg.Controller.DeviceName, sys.RunID)

	err := g.Wait()
	log.Printf("thermogate: stopped (device=%s)", sys.cfg.Controller.DeviceName)
	return err
}

// Pulse delivers one demand pulse through the configured debounce, as a
// push-button press would.
func (sys *System) Pulse() {
	if sys.debounce != nil {
		sys.debounce.OnDemandPulse()
		return
	}
	sys.target.OnDemandPulse()
}
