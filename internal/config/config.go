// internal/config/config.go
package config

import "time"

type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Fieldbus   FieldbusConfig   `yaml:"fieldbus"`
	Pool       PoolConfig       `yaml:"pool"`
	Alarm      AlarmConfig      `yaml:"alarm"`
	Sampler    SamplerConfig    `yaml:"sampler"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Indicators IndicatorConfig  `yaml:"indicators"`
	Pulses     PulseConfig      `yaml:"pulses"`
	Status     StatusConfig     `yaml:"status"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ---- CONTROLLER ----

type ControllerConfig struct {
	DeviceName string `yaml:"device_name"`
	TickUs     int    `yaml:"tick_us"`
}

// Tick is the duration of one scheduler tick.
func (c ControllerConfig) Tick() time.Duration {
	return time.Duration(c.TickUs) * time.Microsecond
}

// ---- FIELDBUS ----

type FieldbusConfig struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

type EndpointConfig struct {
	Name      string `yaml:"name"`
	Mode      string `yaml:"mode"`    // tcp | rtu
	Address   string `yaml:"address"` // host:port or serial device
	TimeoutMs int    `yaml:"timeout_ms"`

	// RTU only
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
}

// ---- RESOURCE POOL ----

type PoolConfig struct {
	Slots     int `yaml:"slots"`
	BusySteps int `yaml:"busy_steps"`
	StepTicks int `yaml:"step_ticks"`
}

// ---- ALARM ----

type AlarmConfig struct {
	WriteDeadlineTicks       int `yaml:"write_deadline_ticks"`
	ExhaustedBlinks          int `yaml:"exhausted_blinks"`
	ExhaustedHalfPeriodTicks int `yaml:"exhausted_half_period_ticks"`
	GenericBlinks            int `yaml:"generic_blinks"`
	GenericHalfPeriodTicks   int `yaml:"generic_half_period_ticks"`
}

// ---- TEMPERATURE ----

type SamplerConfig struct {
	WarmupTicks   int `yaml:"warmup_ticks"`
	PeriodTicks   int `yaml:"period_ticks"`
	DeadlineTicks int `yaml:"deadline_ticks"`
	QueueCapacity int `yaml:"queue_capacity"`
}

type SupervisorConfig struct {
	PeriodTicks              int     `yaml:"period_ticks"`
	DequeueDeadlineTicks     int     `yaml:"dequeue_deadline_ticks"`
	WriteDeadlineTicks       int     `yaml:"write_deadline_ticks"`
	ResumeWriteDeadlineTicks int     `yaml:"resume_write_deadline_ticks"`
	ResumeAfterS             int     `yaml:"resume_after_s"`
	MinTemp                  float64 `yaml:"min_temp"`
	MaxTemp                  float64 `yaml:"max_temp"`
	FullScaleVoltage         float64 `yaml:"full_scale_voltage"`
	ResolutionCounts         uint32  `yaml:"resolution_counts"`
}

type SensorConfig struct {
	Kind      string          `yaml:"kind"` // simulated | modbus
	Endpoint  string          `yaml:"endpoint"`
	UnitID    uint8           `yaml:"unit_id"`
	Register  uint16          `yaml:"register"`
	Simulated SimulatedConfig `yaml:"simulated"`
}

type SimulatedConfig struct {
	LowC      float64 `yaml:"low_c"`
	HighC     float64 `yaml:"high_c"`
	Steps     int     `yaml:"steps"`
	LatencyMs int     `yaml:"latency_ms"`
}

// ---- INDICATORS ----

type IndicatorConfig struct {
	Kind      string   `yaml:"kind"` // memory | coil
	Endpoint  string   `yaml:"endpoint"`
	UnitID    uint8    `yaml:"unit_id"`
	SlotCoils []uint16 `yaml:"slot_coils"` // one per pool slot
	AlarmCoil uint16   `yaml:"alarm_coil"`
	TimeoutMs int      `yaml:"timeout_ms"`
}

// ---- DEMAND PULSES ----

type PulseConfig struct {
	Stdin      bool               `yaml:"stdin"`
	DebounceMs int                `yaml:"debounce_ms"`
	Inputs     []PulseInputConfig `yaml:"inputs"`
}

type PulseInputConfig struct {
	Name       string `yaml:"name"`
	Endpoint   string `yaml:"endpoint"`
	UnitID     uint8  `yaml:"unit_id"`
	Address    uint16 `yaml:"address"`
	IntervalMs int    `yaml:"interval_ms"`
}

// ---- STATUS BLOCK ----

type StatusConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	UnitID     uint8  `yaml:"unit_id"`
	BaseSlot   uint16 `yaml:"base_slot"`
	IntervalMs int    `yaml:"interval_ms"`
}

// ---- TELEMETRY ----

type TelemetryConfig struct {
	MetricsAddr string       `yaml:"metrics_addr"`
	JournalPath string       `yaml:"journal_path"`
	Hub         HubConfig    `yaml:"hub"`
	MQTT        MQTTConfig   `yaml:"mqtt"`
	Influx      InfluxConfig `yaml:"influx"`
	Redis       RedisConfig  `yaml:"redis"`
}

type HubConfig struct {
	Buffer           int `yaml:"buffer"`
	DeliverTimeoutMs int `yaml:"deliver_timeout_ms"`
	BreakerFailures  int `yaml:"breaker_failures"`
	BreakerOpenS     int `yaml:"breaker_open_s"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	TTLS     int    `yaml:"ttl_s"`
}

// Default returns the configuration the controller runs with when a key is
// absent from the file.
func Default() Config {
	return Config{
		Controller: ControllerConfig{
			DeviceName: "THERMOGATE",
			TickUs:     1000,
		},
		Pool: PoolConfig{
			Slots:     3,
			BusySteps: 10,
			StepTicks: 500,
		},
		Alarm: AlarmConfig{
			WriteDeadlineTicks:       500,
			ExhaustedBlinks:          3,
			ExhaustedHalfPeriodTicks: 250,
			GenericBlinks:            5,
			GenericHalfPeriodTicks:   100,
		},
		Sampler: SamplerConfig{
			WarmupTicks:   1500,
			PeriodTicks:   250,
			DeadlineTicks: 250,
			QueueCapacity: 8,
		},
		Supervisor: SupervisorConfig{
			PeriodTicks:              250,
			DequeueDeadlineTicks:     250,
			WriteDeadlineTicks:       50,
			ResumeWriteDeadlineTicks: 250,
			ResumeAfterS:             3,
			MinTemp:                  12.0,
			MaxTemp:                  25.0,
			FullScaleVoltage:         5.0,
			ResolutionCounts:         4096,
		},
		Sensor: SensorConfig{
			Kind: "simulated",
			Simulated: SimulatedConfig{
				LowC:  8.0,
				HighC: 30.0,
				Steps: 200,
			},
		},
		Indicators: IndicatorConfig{Kind: "memory"},
		Pulses:     PulseConfig{Stdin: true},
		Status:     StatusConfig{IntervalMs: 1000},
	}
}
