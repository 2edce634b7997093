// internal/telemetry/influx.go
package telemetry

import (
	"context"
	"errors"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// InfluxConfig addresses the bucket.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	Device string
}

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes readings, alarms and pool transitions as points.
// Mirrored text lines are not stored.
type InfluxSink struct {
	device string
	w      pointWriter
	close  func()
}

func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("telemetry: influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		device: cfg.Device,
		w:      client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		close:  client.Close,
	}, nil
}

func (s *InfluxSink) Name() string { return "influx" }

func (s *InfluxSink) Deliver(ctx context.Context, r Record) error {
	p := toPoint(s.device, r)
	if p == nil {
		return nil
	}
	return s.w.WritePoint(ctx, p)
}

func (s *InfluxSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func toPoint(device string, r Record) *write.Point {
	tags := map[string]string{"device": device, "run_id": r.RunID}

	switch r.Type {
	case TypeReading:
		return influxdb2.NewPoint("temperature", tags, map[string]interface{}{
			"raw":    int64(r.Raw),
			"temp_c": r.TempC,
		}, r.At)

	case TypeAlarm:
		tags["kind"] = r.Event.String()
		return influxdb2.NewPoint("alarm", tags, map[string]interface{}{
			"pattern": int64(r.Event),
			"message": r.Message,
		}, r.At)

	case TypeSuspend, TypeResume:
		suspended := r.Type == TypeSuspend
		fields := map[string]interface{}{"suspended": suspended}
		if suspended {
			tags["reason"] = r.Event.Name()
			fields["temp_c"] = r.TempC
		}
		return influxdb2.NewPoint("pool_state", tags, fields, r.At)

	case TypeAdmit, TypeRelease, TypeReject:
		tags["slot"] = strconv.Itoa(r.Slot)
		return influxdb2.NewPoint("pool_activity", tags, map[string]interface{}{
			"event": string(r.Type),
		}, r.At)
	}
	return nil
}
