// internal/config/validate_test.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// helper to build a valid config with one TCP endpoint
func withEndpoint(name string) *Config {
	cfg := Default()
	cfg.Fieldbus.Endpoints = []EndpointConfig{{Name: name, Address: "127.0.0.1:502"}}
	return &cfg
}

func expectInvalid(t *testing.T, cfg *Config) {
	t.Helper()
	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("error does not wrap ErrInvalid: %v", err)
	}
}

// ---- tests ----

func TestDefault_ControllerConstants(t *testing.T) {
	cfg := Default()

	if cfg.Controller.TickUs != 1000 {
		t.Fatalf("tick_us: got=%d", cfg.Controller.TickUs)
	}
	if cfg.Pool.Slots != 3 || cfg.Pool.BusySteps != 10 || cfg.Pool.StepTicks != 500 {
		t.Fatalf("pool: %+v", cfg.Pool)
	}
	a := cfg.Alarm
	if a.WriteDeadlineTicks != 500 || a.ExhaustedBlinks != 3 || a.ExhaustedHalfPeriodTicks != 250 ||
		a.GenericBlinks != 5 || a.GenericHalfPeriodTicks != 100 {
		t.Fatalf("alarm: %+v", a)
	}
	s := cfg.Sampler
	if s.WarmupTicks != 1500 || s.PeriodTicks != 250 || s.DeadlineTicks != 250 || s.QueueCapacity != 8 {
		t.Fatalf("sampler: %+v", s)
	}
	v := cfg.Supervisor
	if v.PeriodTicks != 250 || v.DequeueDeadlineTicks != 250 || v.WriteDeadlineTicks != 50 ||
		v.ResumeWriteDeadlineTicks != 250 || v.ResumeAfterS != 3 {
		t.Fatalf("supervisor timing: %+v", v)
	}
	if v.MinTemp != 12.0 || v.MaxTemp != 25.0 || v.FullScaleVoltage != 5.0 || v.ResolutionCounts != 4096 {
		t.Fatalf("supervisor thresholds: %+v", v)
	}

	if err := Validate(&cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidate_RejectsInvertedBand(t *testing.T) {
	cfg := Default()
	cfg.Supervisor.MinTemp = 25.0
	cfg.Supervisor.MaxTemp = 25.0
	expectInvalid(t, &cfg)

	cfg.Supervisor.MinTemp = 30.0
	expectInvalid(t, &cfg)
}

func TestValidate_RejectsZeroQueueCapacity(t *testing.T) {
	cfg := Default()
	cfg.Sampler.QueueCapacity = 0
	expectInvalid(t, &cfg)
}

func TestValidate_RejectsZeroSlots(t *testing.T) {
	cfg := Default()
	cfg.Pool.Slots = 0
	expectInvalid(t, &cfg)
}

func TestValidate_UnknownEndpointReference(t *testing.T) {
	cfg := withEndpoint("io1")
	cfg.Sensor.Kind = "modbus"
	cfg.Sensor.Endpoint = "io2"
	expectInvalid(t, cfg)

	cfg.Sensor.Endpoint = "io1"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_BadEndpointMode(t *testing.T) {
	cfg := withEndpoint("io1")
	cfg.Fieldbus.Endpoints[0].Mode = "udp"
	expectInvalid(t, cfg)
}

func TestValidate_DuplicateEndpointName(t *testing.T) {
	cfg := withEndpoint("io1")
	cfg.Fieldbus.Endpoints = append(cfg.Fieldbus.Endpoints, EndpointConfig{Name: "io1", Address: "10.0.0.2:502"})
	expectInvalid(t, cfg)
}

func TestValidate_CoilIndicators(t *testing.T) {
	cfg := withEndpoint("io1")
	cfg.Indicators = IndicatorConfig{Kind: "coil", Endpoint: "io1", SlotCoils: []uint16{0, 1}, AlarmCoil: 7}
	expectInvalid(t, cfg) // 2 coils for 3 slots

	cfg.Indicators.SlotCoils = []uint16{0, 1, 7}
	expectInvalid(t, cfg) // collides with alarm coil

	cfg.Indicators.SlotCoils = []uint16{0, 1, 2}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DevicenameNonASCII(t *testing.T) {
	cfg := Default()
	cfg.Controller.DeviceName = "CHÂUDIÈRE"
	expectInvalid(t, &cfg)
}

func TestValidate_StatusRequiresEndpoint(t *testing.T) {
	cfg := withEndpoint("hmi")
	cfg.Status.Enabled = true
	expectInvalid(t, cfg)

	cfg.Status.Endpoint = "hmi"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Status.BaseSlot = 3300 // 3300*20 > 65535
	expectInvalid(t, cfg)
}

func TestValidate_DuplicatePulseInput(t *testing.T) {
	cfg := withEndpoint("io1")
	in := PulseInputConfig{Endpoint: "io1", UnitID: 1, Address: 4}
	cfg.Pulses.Inputs = []PulseInputConfig{in, in}
	expectInvalid(t, cfg)
}

func TestNormalize_FillsDefaults(t *testing.T) {
	cfg := withEndpoint("io1")
	cfg.Fieldbus.Endpoints = append(cfg.Fieldbus.Endpoints, EndpointConfig{Name: "bus", Mode: "rtu", Address: "/dev/ttyUSB0"})
	cfg.Controller.DeviceName = "A-VERY-LONG-DEVICE-NAME"

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Normalize(cfg)

	if cfg.Controller.DeviceName != "A-VERY-LONG-DEVI" {
		t.Fatalf("device name not truncated: %q", cfg.Controller.DeviceName)
	}
	if cfg.Fieldbus.Endpoints[0].Mode != "tcp" || cfg.Fieldbus.Endpoints[0].TimeoutMs != 1000 {
		t.Fatalf("tcp endpoint: %+v", cfg.Fieldbus.Endpoints[0])
	}
	rtu := cfg.Fieldbus.Endpoints[1]
	if rtu.BaudRate != 19200 || rtu.DataBits != 8 || rtu.StopBits != 1 || rtu.Parity != "E" {
		t.Fatalf("rtu endpoint: %+v", rtu)
	}
	if cfg.Telemetry.Hub.Buffer != 256 || cfg.Telemetry.Redis.TTLS != 86400 {
		t.Fatalf("telemetry: %+v", cfg.Telemetry)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thermogate.yaml")
	doc := `
controller:
  device_name: TG-01
pool:
  slots: 5
supervisor:
  max_temp: 30.5
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Controller.DeviceName != "TG-01" || cfg.Pool.Slots != 5 || cfg.Supervisor.MaxTemp != 30.5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Pool.BusySteps != 10 || cfg.Supervisor.MinTemp != 12.0 || cfg.Controller.TickUs != 1000 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("pool:\n  slotz: 4\n")); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestLoad_EmptyFileIsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Pool.Slots != 3 {
		t.Fatalf("expected defaults, got %+v", cfg.Pool)
	}
}
