// internal/config/normalize.go
package config

import "github.com/tamzrod/thermogate/internal/status"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// Device name: ASCII already validated, truncate to the status block.
	if len(cfg.Controller.DeviceName) > status.DeviceNameMaxChars {
		cfg.Controller.DeviceName = cfg.Controller.DeviceName[:status.DeviceNameMaxChars]
	}

	for i := range cfg.Fieldbus.Endpoints {
		ep := &cfg.Fieldbus.Endpoints[i]
		if ep.Mode == "" {
			ep.Mode = "tcp"
		}
		if ep.TimeoutMs == 0 {
			ep.TimeoutMs = 1000
		}
		if ep.Mode == "rtu" {
			if ep.BaudRate == 0 {
				ep.BaudRate = 19200
			}
			if ep.DataBits == 0 {
				ep.DataBits = 8
			}
			if ep.StopBits == 0 {
				ep.StopBits = 1
			}
			if ep.Parity == "" {
				ep.Parity = "E"
			}
		}
	}

	if cfg.Sensor.Simulated.Steps == 0 {
		cfg.Sensor.Simulated.Steps = 1
	}

	if cfg.Indicators.TimeoutMs == 0 {
		cfg.Indicators.TimeoutMs = 100
	}

	for i := range cfg.Pulses.Inputs {
		in := &cfg.Pulses.Inputs[i]
		if in.IntervalMs == 0 {
			in.IntervalMs = 20
		}
		if in.Name == "" {
			in.Name = in.Endpoint
		}
	}

	if cfg.Status.IntervalMs == 0 {
		cfg.Status.IntervalMs = 1000
	}

	h := &cfg.Telemetry.Hub
	if h.Buffer == 0 {
		h.Buffer = 256
	}
	if h.DeliverTimeoutMs == 0 {
		h.DeliverTimeoutMs = 2000
	}
	if h.BreakerFailures == 0 {
		h.BreakerFailures = 5
	}
	if h.BreakerOpenS == 0 {
		h.BreakerOpenS = 30
	}

	if cfg.Telemetry.MQTT.TopicPrefix == "" {
		cfg.Telemetry.MQTT.TopicPrefix = "thermogate"
	}
	if cfg.Telemetry.MQTT.ClientID == "" {
		cfg.Telemetry.MQTT.ClientID = "thermogate-" + cfg.Controller.DeviceName
	}
	if cfg.Telemetry.Redis.Prefix == "" {
		cfg.Telemetry.Redis.Prefix = "thermogate:stats"
	}
	if cfg.Telemetry.Redis.TTLS == 0 {
		cfg.Telemetry.Redis.TTLS = 86400
	}
}
