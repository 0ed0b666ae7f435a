package gas

import (
	"maps"
	"slices"
)

// Actuator and sensor attribute names used in shadow documents and event records.
const (
	// ValveState is the gas supply valve, "open" or "closed".
	ValveState = "valve_state"
	// BuzzerState is the audible alarm, "on" or "off".
	BuzzerState = "buzzer_state"
	// FanState is the extraction fan, "on" or "off".
	FanState = "fan_state"
	// GasLevelState is the reported risk classification.
	GasLevelState = "gas_level_state"
	// GasLevelPPM is the reported concentration in parts per million.
	GasLevelPPM = "gas_level_ppm"
	// DeviceIDAttribute is the event record attribute holding the device id.
	DeviceIDAttribute = "thing_name"
	// TimestampAttribute is the event record attribute holding the observation time.
	TimestampAttribute = "timestamp"
)

// Actuator states.
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateOn     = "on"
	StateOff    = "off"
)

// Delta maps an actuator name to its requested state.
type Delta map[string]string

// Clone returns an independent copy of the delta.
func (d Delta) Clone() Delta {
	if d == nil {
		return Delta{}
	}

	return maps.Clone(d)
}

// Fields returns the delta as a JSON-compatible object.
func (d Delta) Fields() map[string]any {
	fields := make(map[string]any, len(d))
	for actuator, state := range d {
		fields[actuator] = state
	}

	return fields
}

// Keys returns the actuator names in sorted order.
func (d Delta) Keys() []string {
	return slices.Sorted(maps.Keys(d))
}

// Policy maps a risk classification to the desired actuator delta that must be
// pushed to the device. Classifications missing from the table map to an empty delta.
type Policy map[Classification]Delta

// DefaultPolicy returns the production risk-to-action table.
func DefaultPolicy() Policy {
	return Policy{
		Caution: {
			ValveState: StateClosed,
		},
		Emergency: {
			ValveState:  StateClosed,
			BuzzerState: StateOn,
			FanState:    StateOn,
		},
	}
}

// DeltaFor returns a copy of the delta for the classification, empty when no action is needed.
func (p Policy) DeltaFor(risk Classification) Delta {
	return p[risk].Clone()
}

// ManualActuators lists the actuators operators may drive by hand and the states they accept.
//
//nolint:gochecknoglobals // Read-only lookup table.
var ManualActuators = map[string][]string{
	ValveState: {StateOpen, StateClosed},
	FanState:   {StateOn, StateOff},
}

// ValidManualState reports whether the actuator accepts the state through manual control.
func ValidManualState(actuator, state string) bool {
	return slices.Contains(ManualActuators[actuator], state)
}
