// internal/telemetry/metrics.go
package telemetry

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamzrod/thermogate/internal/fault"
)

// Gauges are the live readings the metrics endpoint samples on scrape.
// Every func must be safe from any goroutine.
type Gauges struct {
	Available  func() float64
	Busy       func() float64
	QueueDepth func() float64
	TempC      func() float64
	Suspended  func() float64

	Admitted       func() float64
	Rejected       func() float64
	SamplesMissed  func() float64
	SamplesDropped func() float64
	HubDropped     func() float64
}

// Metrics owns a private registry for the controller.
type Metrics struct {
	reg     *prometheus.Registry
	signals *prometheus.CounterVec
	byKind  map[fault.Kind]prometheus.Counter
}

func NewMetrics(g Gauges) *Metrics {
	reg := prometheus.NewRegistry()

	signals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thermogate",
		Name:      "signals_total",
		Help:      "Events signaled into the event register, by kind.",
	}, []string{"kind"})
	reg.MustRegister(signals)

	m := &Metrics{reg: reg, signals: signals, byKind: make(map[fault.Kind]prometheus.Counter)}
	for _, k := range fault.Kinds() {
		m.byKind[k] = signals.WithLabelValues(k.Name())
	}

	gauge := func(name, help string, f func() float64) {
		if f == nil {
			return
		}
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "thermogate", Name: name, Help: help,
		}, f))
	}
	counter := func(name, help string, f func() float64) {
		if f == nil {
			return
		}
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "thermogate", Name: name, Help: help,
		}, f))
	}

	gauge("pool_available", "Free resource units.", g.Available)
	gauge("pool_busy", "Busy resource slots.", g.Busy)
	gauge("sample_queue_depth", "Samples waiting for the supervisor.", g.QueueDepth)
	gauge("temperature_celsius", "Last decoded temperature.", g.TempC)
	gauge("pool_suspended", "1 while the supervisor holds the pool suspended.", g.Suspended)

	counter("pulses_admitted_total", "Demand pulses that acquired a slot.", g.Admitted)
	counter("pulses_rejected_total", "Demand pulses rejected on an exhausted pool.", g.Rejected)
	counter("samples_missed_total", "Sensor conversions that missed their deadline.", g.SamplesMissed)
	counter("samples_dropped_total", "Samples dropped on a full queue.", g.SamplesDropped)
	counter("telemetry_dropped_total", "Telemetry records dropped on a full hub.", g.HubDropped)

	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Signaler counts every signal, then forwards it. Counting is lock-free.
func (m *Metrics) Signaler(next fault.Signaler) fault.Signaler {
	return fault.SignalerFunc(func(k fault.Kind) {
		for kind, c := range m.byKind {
			if k&kind != 0 {
				c.Inc()
			}
		}
		next.Signal(k)
	})
}

// Serve exposes /metrics on addr until ctx ends.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	hs := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("telemetry: metrics listening on %s", addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return hs.Shutdown(sctx)
}
