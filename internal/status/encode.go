// internal/status/encode.go
package status

// Encode converts a Snapshot into the live part of a status block.
// Reserved and device-name slots are left zero.
// Layout is protocol-locked.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastEvent] = s.LastEvent
	regs[SlotSecondsSuspended] = s.SecondsSuspended
	regs[SlotAvailable] = s.Available
	regs[SlotBusy] = s.Busy
	regs[SlotTempCenti] = uint16(s.TempCenti)
	regs[SlotQueueDepth] = s.QueueDepth
	regs[SlotAdmitted] = s.Admitted
	regs[SlotRejected] = s.Rejected

	return regs
}

// EncodeDeviceName packs up to 16 ASCII characters into 8 registers,
// two bytes per register, big-endian. Non-printable bytes become '?'.
func EncodeDeviceName(name string) []uint16 {
	out := make([]uint16, SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > DeviceNameMaxChars {
		b = b[:DeviceNameMaxChars]
	}
	for i := range b {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < len(b); i += 2 {
		hi := b[i]
		var lo byte
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}
	return out
}
