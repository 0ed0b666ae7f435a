package gas

import "strings"

// Classification is the gas-risk level computed by the device from raw sensor readings.
// The set is open: values the policy does not know about require no action.
type Classification string

const (
	// Normal is the nominal level.
	Normal Classification = "normal"
	// Safe is the nominal level as reported by the device firmware.
	Safe Classification = "seguro"
	// Caution means the concentration is above the safe threshold.
	Caution Classification = "precaucion"
	// Emergency means the concentration is above the warning threshold.
	Emergency Classification = "emergencia"
)

// cautionAccented is the accented spelling of Caution used by voice assistants.
const cautionAccented Classification = "precaución"

// ParseClassification normalizes raw input (surrounding spaces, letter case).
func ParseClassification(raw string) Classification {
	return Classification(strings.ToLower(strings.TrimSpace(raw)))
}

// String implements fmt.Stringer.
func (c Classification) String() string {
	return string(c)
}

// AllowsManualControl reports whether operators may change actuators by hand
// while the device reports this level.
func (c Classification) AllowsManualControl() bool {
	switch c {
	case Normal, Safe, Caution, cautionAccented:
		return true
	default:
		return false
	}
}
