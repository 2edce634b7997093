// internal/writer/status_writer.go
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/thermogate/internal/status"
)

// StatusWriter is the delivery-only contract for controller status.
// It receives a snapshot and writes it verbatim.
// No logic, no interpretation.
type StatusWriter interface {
	WriteStatus(ctx context.Context, s status.Snapshot) error
}

// RegisterWriter is the exact Modbus contract the status writer uses.
type RegisterWriter interface {
	WriteRegisters(ctx context.Context, unitID uint8, addr uint16, regs []uint16) error
}

// StatusPlan addresses the status block on the target.
type StatusPlan struct {
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// DeviceStatusWriter publishes the status block into holding registers.
type DeviceStatusWriter struct {
	plan StatusPlan
	cli  RegisterWriter

	needFull bool
	last     []uint16
	nameRegs []uint16
}

func NewDeviceStatusWriter(plan StatusPlan, cli RegisterWriter) (*DeviceStatusWriter, error) {
	if cli == nil {
		return nil, errors.New("status writer: register client required")
	}
	return &DeviceStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		nameRegs: status.EncodeDeviceName(plan.DeviceName),
	}, nil
}

// WriteStatus delivers a snapshot.
//
// The first write, and the first write after any failure, re-asserts the
// full block including the device name. Otherwise only changed live slots
// are written, one request per contiguous run.
func (sw *DeviceStatusWriter) WriteStatus(ctx context.Context, s status.Snapshot) error {
	regs := status.Encode(s)
	base := sw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		copy(regs[status.SlotDeviceNameStart:status.SlotDeviceNameEnd+1], sw.nameRegs)

		if err := sw.cli.WriteRegisters(ctx, sw.plan.UnitID, base, regs); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}

		sw.needFull = false
		sw.last = regs
		return nil
	}

	var errs []string
	for _, run := range changedRuns(sw.last, regs, status.SlotReservedStart) {
		start, end := run[0], run[1]
		if err := sw.cli.WriteRegisters(ctx, sw.plan.UnitID, base+uint16(start), regs[start:end]); err != nil {
			errs = append(errs, fmt.Sprintf("slots %d-%d write failed: %v", start, end-1, err))
			continue
		}
		copy(sw.last[start:end], regs[start:end])
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt: re-assert on next success.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}
	return nil
}

func (sw *DeviceStatusWriter) baseAddr() uint16 {
	// Each controller owns a fixed SlotsPerDevice block.
	return sw.plan.BaseSlot * status.SlotsPerDevice
}

// changedRuns returns [start, end) ranges of indices below limit where prev
// and next differ.
func changedRuns(prev, next []uint16, limit int) [][2]int {
	var runs [][2]int
	start := -1
	for i := 0; i < limit; i++ {
		if prev[i] != next[i] {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, [2]int{start, i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, [2]int{start, limit})
	}
	return runs
}
