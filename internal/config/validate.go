// internal/config/validate.go
package config

import (
	"errors"
	"fmt"

	"github.com/tamzrod/thermogate/internal/status"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return invalid("config is nil")
	}

	// ------------------------------------------------------------
	// CONTROLLER
	// ------------------------------------------------------------

	if cfg.Controller.TickUs <= 0 {
		return invalid("controller.tick_us must be > 0")
	}
	if err := asciiOnly("controller.device_name", cfg.Controller.DeviceName); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// FIELDBUS ENDPOINTS
	// ------------------------------------------------------------

	endpoints := make(map[string]EndpointConfig)
	for i, ep := range cfg.Fieldbus.Endpoints {
		if ep.Name == "" {
			return invalid("fieldbus.endpoints[%d]: name required", i)
		}
		if _, dup := endpoints[ep.Name]; dup {
			return invalid("fieldbus endpoint %q declared twice", ep.Name)
		}
		if ep.Address == "" {
			return invalid("fieldbus endpoint %q: address required", ep.Name)
		}
		switch ep.Mode {
		case "", "tcp", "rtu":
		default:
			return invalid("fieldbus endpoint %q: mode must be tcp or rtu, got %q", ep.Name, ep.Mode)
		}
		if ep.TimeoutMs < 0 {
			return invalid("fieldbus endpoint %q: timeout_ms must be >= 0", ep.Name)
		}
		endpoints[ep.Name] = ep
	}

	ref := func(field, name string) error {
		if name == "" {
			return invalid("%s: endpoint required", field)
		}
		if _, ok := endpoints[name]; !ok {
			return invalid("%s: unknown endpoint %q", field, name)
		}
		return nil
	}

	// ------------------------------------------------------------
	// RESOURCE POOL + ALARM
	// ------------------------------------------------------------

	if cfg.Pool.Slots <= 0 {
		return invalid("pool.slots must be > 0")
	}
	if cfg.Pool.BusySteps <= 0 {
		return invalid("pool.busy_steps must be > 0")
	}
	if cfg.Pool.StepTicks < 0 {
		return invalid("pool.step_ticks must be >= 0")
	}

	if cfg.Alarm.WriteDeadlineTicks <= 0 {
		return invalid("alarm.write_deadline_ticks must be > 0")
	}
	if cfg.Alarm.ExhaustedBlinks < 0 || cfg.Alarm.GenericBlinks < 0 {
		return invalid("alarm blink counts must be >= 0")
	}
	if cfg.Alarm.ExhaustedHalfPeriodTicks < 0 || cfg.Alarm.GenericHalfPeriodTicks < 0 {
		return invalid("alarm half periods must be >= 0")
	}

	// ------------------------------------------------------------
	// TEMPERATURE SUBSYSTEM
	// ------------------------------------------------------------

	s := cfg.Sampler
	if s.QueueCapacity <= 0 {
		return invalid("sampler.queue_capacity must be > 0")
	}
	if s.PeriodTicks <= 0 {
		return invalid("sampler.period_ticks must be > 0")
	}
	if s.DeadlineTicks <= 0 || s.WarmupTicks < 0 {
		return invalid("sampler.deadline_ticks must be > 0 and warmup_ticks >= 0")
	}

	v := cfg.Supervisor
	if v.PeriodTicks <= 0 {
		return invalid("supervisor.period_ticks must be > 0")
	}
	if v.DequeueDeadlineTicks <= 0 || v.WriteDeadlineTicks <= 0 || v.ResumeWriteDeadlineTicks <= 0 {
		return invalid("supervisor deadlines must be > 0")
	}
	if v.ResumeAfterS < 0 {
		return invalid("supervisor.resume_after_s must be >= 0")
	}
	if v.MinTemp >= v.MaxTemp {
		return invalid("supervisor.min_temp (%g) must be below max_temp (%g)", v.MinTemp, v.MaxTemp)
	}
	if v.FullScaleVoltage <= 0 {
		return invalid("supervisor.full_scale_voltage must be > 0")
	}
	if v.ResolutionCounts == 0 {
		return invalid("supervisor.resolution_counts must be > 0")
	}

	switch cfg.Sensor.Kind {
	case "simulated":
		sim := cfg.Sensor.Simulated
		if sim.LowC >= sim.HighC {
			return invalid("sensor.simulated.low_c must be below high_c")
		}
		if sim.Steps < 0 || sim.LatencyMs < 0 {
			return invalid("sensor.simulated steps and latency must be >= 0")
		}
	case "modbus":
		if err := ref("sensor", cfg.Sensor.Endpoint); err != nil {
			return err
		}
	default:
		return invalid("sensor.kind must be simulated or modbus, got %q", cfg.Sensor.Kind)
	}

	// ------------------------------------------------------------
	// INDICATORS
	// ------------------------------------------------------------

	switch cfg.Indicators.Kind {
	case "memory":
	case "coil":
		ind := cfg.Indicators
		if err := ref("indicators", ind.Endpoint); err != nil {
			return err
		}
		if len(ind.SlotCoils) != cfg.Pool.Slots {
			return invalid("indicators.slot_coils: %d coils for %d slots", len(ind.SlotCoils), cfg.Pool.Slots)
		}
		used := map[uint16]string{ind.AlarmCoil: "alarm"}
		for i, addr := range ind.SlotCoils {
			if owner, ok := used[addr]; ok {
				return invalid("indicators: coil %d used by slot %d and %s", addr, i, owner)
			}
			used[addr] = fmt.Sprintf("slot %d", i)
		}
	default:
		return invalid("indicators.kind must be memory or coil, got %q", cfg.Indicators.Kind)
	}

	// ------------------------------------------------------------
	// DEMAND PULSES
	// ------------------------------------------------------------

	if cfg.Pulses.DebounceMs < 0 {
		return invalid("pulses.debounce_ms must be >= 0")
	}
	inputs := make(map[string]bool)
	for i, in := range cfg.Pulses.Inputs {
		if err := ref(fmt.Sprintf("pulses.inputs[%d]", i), in.Endpoint); err != nil {
			return err
		}
		key := fmt.Sprintf("%s|%d|%d", in.Endpoint, in.UnitID, in.Address)
		if inputs[key] {
			return invalid("pulses.inputs[%d]: discrete input %d on %q polled twice", i, in.Address, in.Endpoint)
		}
		inputs[key] = true
		if in.IntervalMs < 0 {
			return invalid("pulses.inputs[%d]: interval_ms must be >= 0", i)
		}
	}

	// ------------------------------------------------------------
	// DEVICE STATUS BLOCK (OPT-IN)
	// ------------------------------------------------------------

	if cfg.Status.Enabled {
		if err := ref("status", cfg.Status.Endpoint); err != nil {
			return err
		}
		end := uint32(cfg.Status.BaseSlot) + 1
		if end*status.SlotsPerDevice > 0x10000 {
			return invalid("status.base_slot %d: block exceeds the register space", cfg.Status.BaseSlot)
		}
		if cfg.Status.IntervalMs < 0 {
			return invalid("status.interval_ms must be >= 0")
		}
	}

	// ------------------------------------------------------------
	// TELEMETRY
	// ------------------------------------------------------------

	t := cfg.Telemetry
	if t.Hub.Buffer < 0 || t.Hub.DeliverTimeoutMs < 0 || t.Hub.BreakerFailures < 0 || t.Hub.BreakerOpenS < 0 {
		return invalid("telemetry.hub values must be >= 0")
	}
	if t.MQTT.QoS < 0 || t.MQTT.QoS > 2 {
		return invalid("telemetry.mqtt.qos must be 0, 1 or 2")
	}
	if t.Influx.URL != "" && (t.Influx.Token == "" || t.Influx.Org == "" || t.Influx.Bucket == "") {
		return invalid("telemetry.influx: url set but token, org or bucket missing")
	}
	if t.Redis.TTLS < 0 {
		return invalid("telemetry.redis.ttl_s must be >= 0")
	}

	return nil
}

// asciiOnly rejects non-ASCII text destined for register packing.
func asciiOnly(field, s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return invalid("%s must contain ASCII characters only", field)
		}
	}
	return nil
}
