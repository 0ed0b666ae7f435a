package gas

import (
	"fmt"
	"strings"
)

// EventRecord is an immutable snapshot of the reported device state, keyed by
// (DeviceID, Timestamp). Optional fields are nil when the device did not report them.
type EventRecord struct {
	// DeviceID is the thing name of the device.
	DeviceID string `json:"thing_name" dynamodbav:"thing_name" bson:"thing_name"`
	// Timestamp is the observation point in epoch seconds.
	Timestamp int64 `json:"timestamp" dynamodbav:"timestamp" bson:"timestamp"`
	// GasLevelPPM is the reported concentration.
	GasLevelPPM *float64 `json:"gas_level_ppm" dynamodbav:"gas_level_ppm" bson:"gas_level_ppm"`
	// GasLevelState is the reported classification.
	GasLevelState string `json:"gas_level_state" dynamodbav:"gas_level_state" bson:"gas_level_state"`
	// ValveState is the reported valve state.
	ValveState *string `json:"valve_state" dynamodbav:"valve_state" bson:"valve_state"`
	// FanState is the reported fan state.
	FanState *string `json:"fan_state" dynamodbav:"fan_state" bson:"fan_state"`
}

// Key returns the unique storage key of the record.
func (r *EventRecord) Key() string {
	return RecordKey(r.DeviceID, r.Timestamp)
}

// RecordKey renders the storage key of the record for (deviceID, timestamp).
func RecordKey(deviceID string, timestamp int64) string {
	return fmt.Sprintf("%s#%d", deviceID, timestamp)
}

// Clone returns a deep copy of the record.
func (r *EventRecord) Clone() *EventRecord {
	if r == nil {
		return nil
	}

	cloned := *r
	cloned.GasLevelPPM = clonePtr(r.GasLevelPPM)
	cloned.ValveState = clonePtr(r.ValveState)
	cloned.FanState = clonePtr(r.FanState)

	return &cloned
}

// Fields renders the record as attribute name -> value, with nil for absent optional fields.
func (r *EventRecord) Fields() map[string]any {
	return map[string]any{
		DeviceIDAttribute:  r.DeviceID,
		TimestampAttribute: r.Timestamp,
		GasLevelPPM:        derefOrNil(r.GasLevelPPM),
		GasLevelState:      r.GasLevelState,
		ValveState:         derefOrNil(r.ValveState),
		FanState:           derefOrNil(r.FanState),
	}
}

// RecordFromFields is the inverse of Fields.
func RecordFromFields(fields map[string]any) (*EventRecord, error) {
	deviceID, _ := fields[DeviceIDAttribute].(string)
	if deviceID == "" {
		return nil, MissingField(DeviceIDAttribute)
	}

	state, _ := fields[GasLevelState].(string)
	if state == "" {
		return nil, MissingField(GasLevelState)
	}

	var timestamp int64

	switch value := fields[TimestampAttribute].(type) {
	case int64:
		timestamp = value
	case float64:
		timestamp = int64(value)
	default:
		return nil, MissingField(TimestampAttribute)
	}

	return &EventRecord{
		DeviceID:      deviceID,
		Timestamp:     timestamp,
		GasLevelPPM:   numberField(fields, GasLevelPPM),
		GasLevelState: state,
		ValveState:    stringField(fields, ValveState),
		FanState:      stringField(fields, FanState),
	}, nil
}

// Reading holds the attributes extracted from the reported section of a shadow.
type Reading struct {
	// GasLevelState is the reported classification.
	GasLevelState Classification
	// GasLevelPPM is the reported concentration, nil when absent.
	GasLevelPPM *float64
	// ValveState is the reported valve state, nil when absent.
	ValveState *string
	// FanState is the reported fan state, nil when absent.
	FanState *string
	// Ignored lists optional attributes that were present with an unexpected type.
	Ignored []string
}

// ExtractReading pulls the recorded attributes out of a reported section.
// GasLevelState is required; every other attribute is best-effort.
func ExtractReading(reported map[string]any) (*Reading, error) {
	state, _ := reported[GasLevelState].(string)
	if strings.TrimSpace(state) == "" {
		return nil, MissingReportedField(GasLevelState)
	}

	reading := &Reading{
		GasLevelState: Classification(state),
		GasLevelPPM:   numberField(reported, GasLevelPPM),
		ValveState:    stringField(reported, ValveState),
		FanState:      stringField(reported, FanState),
	}

	if reading.GasLevelPPM == nil && reported[GasLevelPPM] != nil {
		reading.Ignored = append(reading.Ignored, GasLevelPPM)
	}

	if reading.ValveState == nil && reported[ValveState] != nil {
		reading.Ignored = append(reading.Ignored, ValveState)
	}

	if reading.FanState == nil && reported[FanState] != nil {
		reading.Ignored = append(reading.Ignored, FanState)
	}

	return reading, nil
}

// NewEventRecord builds the record of a reading observed at timestamp.
func NewEventRecord(deviceID string, timestamp int64, reading *Reading) *EventRecord {
	return &EventRecord{
		DeviceID:      deviceID,
		Timestamp:     timestamp,
		GasLevelPPM:   clonePtr(reading.GasLevelPPM),
		GasLevelState: string(reading.GasLevelState),
		ValveState:    clonePtr(reading.ValveState),
		FanState:      clonePtr(reading.FanState),
	}
}

func numberField(fields map[string]any, key string) *float64 {
	switch value := fields[key].(type) {
	case float64:
		return &value
	case int64:
		number := float64(value)
		return &number
	default:
		return nil
	}
}

func stringField(fields map[string]any, key string) *string {
	if value, ok := fields[key].(string); ok {
		return &value
	}

	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p

	return &v
}

func derefOrNil[T any](p *T) any {
	if p == nil {
		return nil
	}

	return *p
}
