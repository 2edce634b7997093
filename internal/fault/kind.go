// internal/fault/kind.go
package fault

import (
	"strconv"
	"strings"
)

// Kind is one error condition. Each declared kind owns exactly one bit of the
// 16-bit event register, so a Kind value doubles as a register pattern.
type Kind uint16

// ---- BIT POSITIONS ----

const (
	bitGeneric = iota
	bitResourceExhausted
	bitInvalidResourceHandle
	bitOutputWriteFailed
	bitTempTooHigh
	bitTempTooLow
	bitTempControllerStartFailed
	bitTempSampleMissedDeadline
	bitTempQueueFull

	kindCount
)

// The register is 16 bits wide; adding a 17th kind fails to compile here.
const _ uint16 = 1 << (kindCount - 1)

// ---- KINDS ----

const (
	Generic                   Kind = 1 << bitGeneric
	ResourceExhausted         Kind = 1 << bitResourceExhausted
	InvalidResourceHandle     Kind = 1 << bitInvalidResourceHandle
	OutputWriteFailed         Kind = 1 << bitOutputWriteFailed
	TempTooHigh               Kind = 1 << bitTempTooHigh
	TempTooLow                Kind = 1 << bitTempTooLow
	TempControllerStartFailed Kind = 1 << bitTempControllerStartFailed
	TempSampleMissedDeadline  Kind = 1 << bitTempSampleMissedDeadline
	TempQueueFull             Kind = 1 << bitTempQueueFull
)

// UnknownMessage is rendered for any pattern that is not exactly one declared kind.
const UnknownMessage = "Unknown error."

// messages is indexed by bit position. Indices are checked against kindCount
// at compile time.
var messages = [kindCount]string{
	bitGeneric:                   "Something went wrong.",
	bitResourceExhausted:         "All resources have been exhausted. Please wait...",
	bitInvalidResourceHandle:     "Resource semaphore identifier is invalid.",
	bitOutputWriteFailed:         "Failed to write to the output.",
	bitTempTooHigh:               "Temperature is too high. Suspending resources...",
	bitTempTooLow:                "Temperature is too low. Suspending resources...",
	bitTempControllerStartFailed: "Temperature controller failed to start.",
	bitTempSampleMissedDeadline:  "Temperature was not read on time.",
	bitTempQueueFull:             "Temperature queue is full. Sample dropped.",
}

var names = [kindCount]string{
	bitGeneric:                   "generic",
	bitResourceExhausted:         "resource_exhausted",
	bitInvalidResourceHandle:     "invalid_resource_handle",
	bitOutputWriteFailed:         "output_write_failed",
	bitTempTooHigh:               "temp_too_high",
	bitTempTooLow:                "temp_too_low",
	bitTempControllerStartFailed: "temp_controller_start_failed",
	bitTempSampleMissedDeadline:  "temp_sample_missed_deadline",
	bitTempQueueFull:             "temp_queue_full",
}

// Kinds returns every declared kind in bit order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for i := 0; i < kindCount; i++ {
		out = append(out, Kind(1)<<i)
	}
	return out
}

// bit returns the bit index of a single-kind pattern, or -1.
func (k Kind) bit() int {
	if k == 0 || k&(k-1) != 0 {
		return -1
	}
	for i := 0; i < kindCount; i++ {
		if k == Kind(1)<<i {
			return i
		}
	}
	return -1
}

// Message resolves a register pattern to its descriptive string.
// Coalesced and undeclared patterns resolve to UnknownMessage.
func Message(pattern Kind) string {
	if i := pattern.bit(); i >= 0 {
		return messages[i]
	}
	return UnknownMessage
}

// String names the kinds present in the pattern, joined by '|'.
func (k Kind) String() string {
	if k == 0 {
		return "none"
	}
	var parts []string
	for i := 0; i < 16; i++ {
		b := Kind(1) << i
		if k&b == 0 {
			continue
		}
		if i < kindCount {
			parts = append(parts, names[i])
		} else {
			parts = append(parts, "bit"+strconv.Itoa(i))
		}
	}
	return strings.Join(parts, "|")
}

// Has reports whether every bit of other is set in k.
func (k Kind) Has(other Kind) bool {
	return other != 0 && k&other == other
}

// Name returns the short identifier of a single kind, or "" for anything else.
func (k Kind) Name() string {
	if i := k.bit(); i >= 0 {
		return names[i]
	}
	return ""
}
