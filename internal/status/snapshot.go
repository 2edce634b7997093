// internal/status/snapshot.go
package status

import (
	"math"
	"time"
)

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health           uint16
	LastEvent        uint16
	SecondsSuspended uint16
	Available        uint16
	Busy             uint16
	TempCenti        int16
	QueueDepth       uint16
	Admitted         uint16
	Rejected         uint16
}

// Inputs is the raw controller state a Snapshot is derived from.
type Inputs struct {
	ThermalRunning bool
	HaveReading    bool
	Suspended      bool
	SuspendedSince time.Time
	Now            time.Time

	LastEvent  uint16
	Available  int
	Busy       int
	Temp       float64
	QueueDepth int
	Admitted   uint64
	Rejected   uint64
}

// Build derives a Snapshot. Pure function.
func Build(in Inputs) Snapshot {
	s := Snapshot{
		LastEvent:  in.LastEvent,
		Available:  clampU16(in.Available),
		Busy:       clampU16(in.Busy),
		QueueDepth: clampU16(in.QueueDepth),
		Admitted:   uint16(in.Admitted),
		Rejected:   uint16(in.Rejected),
	}

	switch {
	case !in.ThermalRunning:
		s.Health = HealthDegraded
	case in.Suspended:
		s.Health = HealthSuspended
	case in.HaveReading:
		s.Health = HealthOK
	default:
		s.Health = HealthUnknown
	}

	if in.Suspended && !in.SuspendedSince.IsZero() {
		secs := in.Now.Sub(in.SuspendedSince) / time.Second
		switch {
		case secs < 0:
			s.SecondsSuspended = 0
		case secs > SecondsSuspendedMax:
			s.SecondsSuspended = SecondsSuspendedMax
		default:
			s.SecondsSuspended = uint16(secs)
		}
	}

	if in.HaveReading {
		s.TempCenti = tempCenti(in.Temp)
	}
	return s
}

func clampU16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

func tempCenti(t float64) int16 {
	c := math.Trunc(t * 100)
	if c > math.MaxInt16 {
		return math.MaxInt16
	}
	if c < math.MinInt16 {
		return math.MinInt16
	}
	return int16(c)
}
