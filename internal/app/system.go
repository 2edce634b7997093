// internal/app/system.go
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tamzrod/thermogate/internal/admission"
	"github.com/tamzrod/thermogate/internal/alarm"
	"github.com/tamzrod/thermogate/internal/config"
	"github.com/tamzrod/thermogate/internal/fault"
	"github.com/tamzrod/thermogate/internal/fieldbus"
	"github.com/tamzrod/thermogate/internal/indicator"
	"github.com/tamzrod/thermogate/internal/output"
	"github.com/tamzrod/thermogate/internal/pulse"
	"github.com/tamzrod/thermogate/internal/sampler"
	"github.com/tamzrod/thermogate/internal/sensor"
	"github.com/tamzrod/thermogate/internal/status"
	"github.com/tamzrod/thermogate/internal/supervisor"
	"github.com/tamzrod/thermogate/internal/task"
	"github.com/tamzrod/thermogate/internal/telemetry"
	"github.com/tamzrod/thermogate/internal/ticks"
	"github.com/tamzrod/thermogate/internal/writer"
)

// Options carries the process handles Build cannot take from the config.
type Options struct {
	Stdout io.Writer // text output (the serial line)
	Stdin  io.Reader // demand pulse lines, nil to disable
}

// System is the process-wide controller state. It is built once and every
// task entry point receives what it needs from it.
type System struct {
	cfg   *config.Config
	tb    ticks.Timebase
	RunID string

	Events  *fault.Channel
	signals fault.Signaler
	Metrics *telemetry.Metrics
	Hub     *telemetry.Hub
	sinks   []telemetry.Sink

	serial *output.Serial
	Out    output.Writer

	AlarmLED indicator.Indicator
	Alarm    *alarm.Reporter

	// nil when the pool primitives could not be built
	Pool     *admission.Controller
	SlotLEDs []indicator.Indicator
	target   pulse.Target
	debounce *pulse.Debounce
	lines    *pulse.Lines
	edges    []*pulse.Edge

	// nil when the temperature subsystem could not be started
	Queue      *sampler.Queue
	Sampler    *sampler.Sampler
	Supervisor *supervisor.Supervisor

	status *writer.Publisher
	bus    *fieldbus.Pool
}

// Build creates every primitive and task in startup order.
//
// Only a failure of the output or the alarm path is returned as an error.
// A pool that cannot be built signals Generic; a temperature subsystem that
// cannot be built signals TempControllerStartFailed and is skipped. Both
// are then reported by the alarm task once it runs.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*System, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config required")
	}
	if opts.Stdout == nil {
		return nil, fmt.Errorf("app: stdout required")
	}

	sys := &System{
		cfg:    cfg,
		tb:     ticks.New(cfg.Controller.Tick()),
		RunID:  uuid.NewString(),
		Events: fault.NewChannel(),
		bus:    fieldbus.NewPool(),
	}

	sys.Metrics = telemetry.NewMetrics(sys.gauges())
	sys.signals = sys.Metrics.Signaler(sys.Events)

	// ---- telemetry ----
	sys.buildSinks(ctx)
	sys.Hub = telemetry.NewHub(telemetry.HubConfig{
		RunID:          sys.RunID,
		Buffer:         cfg.Telemetry.Hub.Buffer,
		DeliverTimeout: ms(cfg.Telemetry.Hub.DeliverTimeoutMs),
		Breaker: telemetry.BreakerConfig{
			ConsecutiveFailures: uint32(cfg.Telemetry.Hub.BreakerFailures),
			OpenTimeout:         time.Duration(cfg.Telemetry.Hub.BreakerOpenS) * time.Second,
		},
	}, sys.sinks...)

	// ---- output + alarm ----
	sys.serial = output.NewSerial(opts.Stdout)
	sys.Out = output.NewTee(sys.serial, sys.Hub)

	led, err := sys.indicator("alarm", cfg.Indicators.AlarmCoil)
	if err != nil {
		return sys.fail(fmt.Errorf("app: alarm indicator: %w", err))
	}
	sys.AlarmLED = led

	a := cfg.Alarm
	sys.Alarm, err = alarm.New(alarm.Config{
		WriteDeadline: ticks.Ticks(a.WriteDeadlineTicks),
		Exhausted:     alarm.Blink{Pairs: a.ExhaustedBlinks, HalfPeriod: ticks.Ticks(a.ExhaustedHalfPeriodTicks)},
		Generic:       alarm.Blink{Pairs: a.GenericBlinks, HalfPeriod: ticks.Ticks(a.GenericHalfPeriodTicks)},
	}, sys.tb, sys.Events, sys.Out, led)
	if err != nil {
		return sys.fail(err)
	}
	sys.Alarm.SetObserver(sys.Hub)

	// ---- resource pool ----
	if err := sys.buildPool(); err != nil {
		log.Printf("app: resource pool failed to start: %v", err)
		sys.signals.Signal(fault.Generic)
		sys.Pool = nil
		sys.target = pulse.TargetFunc(func() { sys.signals.Signal(fault.InvalidResourceHandle) })
	}
	sys.buildPulses(opts.Stdin)

	// ---- temperature subsystem ----
	if err := sys.buildThermal(); err != nil {
		log.Printf("app: temperature controller failed to start: %v", err)
		sys.signals.Signal(fault.TempControllerStartFailed)
		sys.Queue, sys.Sampler, sys.Supervisor = nil, nil, nil
	}

	// ---- status block (optional) ----
	if cfg.Status.Enabled {
		if err := sys.buildStatus(); err != nil {
			log.Printf("app: status block disabled: %v", err)
		}
	}

	if j := sys.journal(); j != nil {
		if err := j.StartRun(ctx, sys.RunID, cfg.Controller.DeviceName); err != nil {
			log.Printf("app: journal run record failed (run=%s): %v", sys.RunID, err)
		}
	}

	log.Printf("thermogate: built (device=%s run=%s slots=%d pool=%t thermal=%t sinks=%d)",
		cfg.Controller.DeviceName, sys.RunID, cfg.Pool.Slots, sys.Pool != nil, sys.Supervisor != nil, len(sys.sinks))
	return sys, nil
}

func (sys *System) fail(err error) (*System, error) {
	for _, s := range sys.sinks {
		_ = s.Close()
	}
	_ = sys.bus.Close()
	return nil, err
}

// ---- components ----

func (sys *System) buildPool() error {
	p := sys.cfg.Pool

	var coils []uint16
	if sys.cfg.Indicators.Kind == "coil" {
		coils = sys.cfg.Indicators.SlotCoils
	}

	leds := make([]indicator.Indicator, 0, p.Slots)
	for i := 0; i < p.Slots; i++ {
		var addr uint16
		if i < len(coils) {
			addr = coils[i]
		}
		led, err := sys.indicator(fmt.Sprintf("slot%d", i), addr)
		if err != nil {
			return fmt.Errorf("slot %d indicator: %w", i, err)
		}
		leds = append(leds, led)
	}

	pool, err := admission.New(admission.Config{
		Slots:     p.Slots,
		BusySteps: p.BusySteps,
		StepTicks: ticks.Ticks(p.StepTicks),
	}, sys.tb, sys.signals, leds)
	if err != nil {
		return err
	}
	pool.SetObserver(sys.Hub)

	sys.Pool = pool
	sys.SlotLEDs = leds
	sys.target = pool
	return nil
}

func (sys *System) buildPulses(stdin io.Reader) {
	pc := sys.cfg.Pulses

	target := sys.target
	if pc.DebounceMs > 0 {
		sys.debounce = pulse.NewDebounce(target, ms(pc.DebounceMs))
		target = sys.debounce
	}

	if pc.Stdin && stdin != nil {
		sys.lines = pulse.NewLines(stdin, target)
	}

	for _, in := range pc.Inputs {
		cli, err := sys.client(in.Endpoint)
		if err != nil {
			log.Printf("app: pulse input disabled (name=%s): %v", in.Name, err)
			continue
		}
		sys.edges = append(sys.edges, pulse.NewEdge(pulse.EdgeConfig{
			Name:     in.Name,
			UnitID:   in.UnitID,
			Address:  in.Address,
			Interval: ms(in.IntervalMs),
		}, cli, target))
	}
}

func (sys *System) buildThermal() error {
	sc := sys.cfg.Sampler
	vc := sys.cfg.Supervisor

	q, err := sampler.NewQueue(sc.QueueCapacity)
	if err != nil {
		return err
	}

	sens, err := sys.sensor()
	if err != nil {
		return err
	}

	smp, err := sampler.New(sampler.Config{
		Warmup:   ticks.Ticks(sc.WarmupTicks),
		Period:   ticks.Ticks(sc.PeriodTicks),
		Deadline: ticks.Ticks(sc.DeadlineTicks),
	}, sys.tb, sens, q, sys.signals)
	if err != nil {
		return err
	}

	var handles []*task.Handle
	if sys.Pool != nil {
		handles = sys.Pool.Handles()
	}

	clock := ticks.NewMonotonic(ticks.NewSysCounter(sys.tb))
	sup, err := supervisor.New(supervisor.Config{
		Period:              ticks.Ticks(vc.PeriodTicks),
		DequeueDeadline:     ticks.Ticks(vc.DequeueDeadlineTicks),
		WriteDeadline:       ticks.Ticks(vc.WriteDeadlineTicks),
		ResumeWriteDeadline: ticks.Ticks(vc.ResumeWriteDeadlineTicks),
		ResumeAfter:         ticks.Ticks(vc.ResumeAfterS) * sys.tb.PerSecond(),
		MinTemp:             vc.MinTemp,
		MaxTemp:             vc.MaxTemp,
		FullScaleVoltage:    vc.FullScaleVoltage,
		Resolution:          vc.ResolutionCounts,
	}, sys.tb, q, sys.Out, sys.signals, handles, clock)
	if err != nil {
		return err
	}
	sup.SetObserver(sys.Hub)

	sys.Queue, sys.Sampler, sys.Supervisor = q, smp, sup
	return nil
}

func (sys *System) sensor() (sensor.Sensor, error) {
	sc := sys.cfg.Sensor
	vc := sys.cfg.Supervisor

	switch sc.Kind {
	case "modbus":
		cli, err := sys.client(sc.Endpoint)
		if err != nil {
			return nil, err
		}
		return sensor.NewModbus(sensor.ModbusConfig{
			UnitID:     sc.UnitID,
			Register:   sc.Register,
			Resolution: vc.ResolutionCounts,
		}, cli)
	default:
		return sensor.NewSimulated(sensor.SimulatedConfig{
			LowC:             sc.Simulated.LowC,
			HighC:            sc.Simulated.HighC,
			Steps:            sc.Simulated.Steps,
			FullScaleVoltage: vc.FullScaleVoltage,
			Resolution:       vc.ResolutionCounts,
			Latency:          ms(sc.Simulated.LatencyMs),
		})
	}
}

func (sys *System) buildStatus() error {
	sc := sys.cfg.Status

	cli, err := sys.client(sc.Endpoint)
	if err != nil {
		return err
	}
	w, err := writer.NewDeviceStatusWriter(writer.StatusPlan{
		UnitID:     sc.UnitID,
		BaseSlot:   sc.BaseSlot,
		DeviceName: sys.cfg.Controller.DeviceName,
	}, cli)
	if err != nil {
		return err
	}

	interval := ms(sc.IntervalMs)
	sys.status = writer.NewPublisher(sys.cfg.Controller.DeviceName, interval, interval/2, sys.Snapshot, w)
	return nil
}

func (sys *System) buildSinks(ctx context.Context) {
	tc := sys.cfg.Telemetry
	device := sys.cfg.Controller.DeviceName

	if tc.JournalPath != "" {
		j, err := telemetry.OpenJournal(tc.JournalPath)
		if err != nil {
			log.Printf("app: journal disabled (path=%s): %v", tc.JournalPath, err)
		} else {
			sys.sinks = append(sys.sinks, j)
		}
	}

	if tc.MQTT.Broker != "" {
		s, err := telemetry.NewMQTTSink(ctx, telemetry.MQTTConfig{
			Broker:      tc.MQTT.Broker,
			ClientID:    tc.MQTT.ClientID,
			Username:    tc.MQTT.Username,
			Password:    tc.MQTT.Password,
			TopicPrefix: tc.MQTT.TopicPrefix,
			QoS:         byte(tc.MQTT.QoS),
		})
		if err != nil {
			log.Printf("app: mqtt sink disabled: %v", err)
		} else {
			sys.sinks = append(sys.sinks, s)
		}
	}

	if tc.Influx.URL != "" {
		s, err := telemetry.NewInfluxSink(telemetry.InfluxConfig{
			URL:    tc.Influx.URL,
			Token:  tc.Influx.Token,
			Org:    tc.Influx.Org,
			Bucket: tc.Influx.Bucket,
			Device: device,
		})
		if err != nil {
			log.Printf("app: influx sink disabled: %v", err)
		} else {
			sys.sinks = append(sys.sinks, s)
		}
	}

	if tc.Redis.Addr != "" {
		s, err := telemetry.NewRedisSink(ctx, telemetry.RedisConfig{
			Addr:     tc.Redis.Addr,
			Password: tc.Redis.Password,
			DB:       tc.Redis.DB,
			Prefix:   tc.Redis.Prefix,
			TTL:      time.Duration(tc.Redis.TTLS) * time.Second,
		})
		if err != nil {
			log.Printf("app: redis sink disabled: %v", err)
		} else {
			sys.sinks = append(sys.sinks, s)
		}
	}
}

func (sys *System) journal() *telemetry.Journal {
	for _, s := range sys.sinks {
		if j, ok := s.(*telemetry.Journal); ok {
			return j
		}
	}
	return nil
}

// ---- fieldbus helpers ----

func (sys *System) client(endpoint string) (*fieldbus.Client, error) {
	for _, ep := range sys.cfg.Fieldbus.Endpoints {
		if ep.Name != endpoint {
			continue
		}
		return sys.bus.Get(fieldbus.Config{
			Mode:     ep.Mode,
			Endpoint: ep.Address,
			Timeout:  ms(ep.TimeoutMs),
			BaudRate: ep.BaudRate,
			DataBits: ep.DataBits,
			StopBits: ep.StopBits,
			Parity:   ep.Parity,
		})
	}
	return nil, fmt.Errorf("unknown fieldbus endpoint %q", endpoint)
}

func (sys *System) indicator(name string, coil uint16) (indicator.Indicator, error) {
	ic := sys.cfg.Indicators
	if ic.Kind != "coil" {
		return indicator.NewMemory(name), nil
	}
	cli, err := sys.client(ic.Endpoint)
	if err != nil {
		return nil, err
	}
	return indicator.NewCoil(indicator.CoilConfig{
		Name:    name,
		UnitID:  ic.UnitID,
		Address: coil,
		Timeout: ms(ic.TimeoutMs),
	}, cli), nil
}

// ---- observation ----

// Snapshot derives the status block from live controller state.
func (sys *System) Snapshot() status.Snapshot {
	in := status.Inputs{
		ThermalRunning: sys.Supervisor != nil,
		Now:            time.Now(),
		LastEvent:      uint16(sys.Alarm.Last()),
	}
	if sys.Pool != nil {
		in.Available = sys.Pool.Available()
		in.Busy = sys.Pool.Busy()
		in.Admitted = sys.Pool.Admitted()
		in.Rejected = sys.Pool.Rejected()
	}
	if sys.Supervisor != nil {
		st := sys.Supervisor.Snapshot()
		in.HaveReading = st.HaveReading
		in.Temp = st.Temp
		in.Suspended = st.Suspended
		in.SuspendedSince = st.SuspendedSince
		in.QueueDepth = sys.Queue.Len()
	}
	return status.Build(in)
}

func (sys *System) gauges() telemetry.Gauges {
	pool := func(f func(*admission.Controller) float64) func() float64 {
		return func() float64 {
			if sys.Pool == nil {
				return 0
			}
			return f(sys.Pool)
		}
	}
	thermal := func(f func() float64) func() float64 {
		return func() float64 {
			if sys.Supervisor == nil {
				return 0
			}
			return f()
		}
	}

	return telemetry.Gauges{
		Available: pool(func(c *admission.Controller) float64 { return float64(c.Available()) }),
		Busy:      pool(func(c *admission.Controller) float64 { return float64(c.Busy()) }),
		Admitted:  pool(func(c *admission.Controller) float64 { return float64(c.Admitted()) }),
		Rejected:  pool(func(c *admission.Controller) float64 { return float64(c.Rejected()) }),

		QueueDepth:     thermal(func() float64 { return float64(sys.Queue.Len()) }),
		TempC:          thermal(func() float64 { return sys.Supervisor.Snapshot().Temp }),
		SamplesMissed:  thermal(func() float64 { return float64(sys.Sampler.Missed()) }),
		SamplesDropped: thermal(func() float64 { return float64(sys.Sampler.Dropped()) }),
		Suspended: thermal(func() float64 {
			if sys.Supervisor.Suspended() {
				return 1
			}
			return 0
		}),

		HubDropped: func() float64 {
			if sys.Hub == nil {
				return 0
			}
			return float64(sys.Hub.Dropped())
		},
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
