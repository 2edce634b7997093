// internal/supervisor/decode.go
package supervisor

import "fmt"

// Decode converts a raw conversion result into degrees Celsius:
//
//	temp = fullScaleVoltage * raw * 100 / resolutionCounts
func Decode(raw uint32, fullScaleVoltage float64, resolutionCounts uint32) float64 {
	if resolutionCounts == 0 {
		return 0
	}
	return fullScaleVoltage * float64(raw) * 100 / float64(resolutionCounts)
}

// Decompose splits t into a sign byte (' ' or '-'), the integer part and
// four fractional digits. The fraction is truncated, not rounded.
func Decompose(t float64) (sign byte, whole int64, frac int64) {
	sign = ' '
	if t < 0 {
		sign = '-'
		t = -t
	}
	whole = int64(t)
	frac = int64((t - float64(whole)) * 10000)
	return sign, whole, frac
}

// FormatReading renders one reading line, terminator included.
func FormatReading(t float64) string {
	sign, whole, frac := Decompose(t)
	return fmt.Sprintf("Temperature: %c%d.%04d *C\r\n", sign, whole, frac)
}

// ResumeLine is written when the pool is resumed.
const ResumeLine = "Resuming all resource tasks...\r\n"
