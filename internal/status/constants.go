// internal/status/constants.go
package status

// Controller Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of registers per controller block.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the controller health state.
const SlotHealthCode = 0

// SlotLastEvent holds the last event pattern consumed by the alarm reporter.
const SlotLastEvent = 1

// SlotSecondsSuspended holds how long the pool has been suspended.
const SlotSecondsSuspended = 2

// SlotAvailable holds the number of free resource units.
const SlotAvailable = 3

// SlotBusy holds the number of busy resource slots.
const SlotBusy = 4

// SlotTempCenti holds the last temperature in 0.01 C, two's complement.
const SlotTempCenti = 5

// SlotQueueDepth holds the number of samples waiting in the queue.
const SlotQueueDepth = 6

// SlotAdmitted holds the low 16 bits of the admitted-pulse counter.
const SlotAdmitted = 7

// SlotRejected holds the low 16 bits of the rejected-pulse counter.
const SlotRejected = 8

// ---- RESERVED RANGE ----

// Slots 9-10 are reserved for future use.
const SlotReservedStart = 9
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// SecondsSuspendedMax is where SlotSecondsSuspended saturates.
const SecondsSuspendedMax = 65535

// ---- HEALTH CODES ----

// HealthUnknown represents boot state, before the first reading.
const HealthUnknown uint16 = 0

// HealthOK represents a running pool inside the temperature band.
const HealthOK uint16 = 1

// HealthSuspended represents a pool suspended by the supervisor.
const HealthSuspended uint16 = 2

// HealthDegraded represents a controller whose thermal subsystem did not start.
const HealthDegraded uint16 = 3
