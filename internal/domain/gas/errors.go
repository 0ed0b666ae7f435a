package gas

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is returned when the caller omitted a required input.
	ErrMissingField = errors.New("missing required field")
	// ErrMissingReportedField is returned when the device did not report a required attribute.
	ErrMissingReportedField = errors.New("missing reported field")
	// ErrUnsupportedActuator is returned for manual requests naming an unknown actuator or state.
	ErrUnsupportedActuator = errors.New("unsupported actuator state")
	// ErrActuationBlocked is returned when manual control is refused at the current risk level.
	ErrActuationBlocked = errors.New("actuation blocked")
	// ErrShadowRead wraps failures to read or parse the device shadow.
	ErrShadowRead = errors.New("shadow read failed")
	// ErrShadowWrite wraps failures to update the desired section of the device shadow.
	ErrShadowWrite = errors.New("shadow write failed")
	// ErrLogWrite wraps failures to append to the event log.
	ErrLogWrite = errors.New("event log write failed")
)

// FieldError names the input or reported field that was missing or invalid.
type FieldError struct {
	// Kind is one of the sentinel errors of this package.
	Kind error
	// Field is the attribute name.
	Field string
}

// MissingField returns a FieldError for a required input.
func MissingField(field string) *FieldError {
	return &FieldError{Kind: ErrMissingField, Field: field}
}

// MissingReportedField returns a FieldError for a required reported attribute.
func MissingReportedField(field string) *FieldError {
	return &FieldError{Kind: ErrMissingReportedField, Field: field}
}

// Error implements error.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Field)
}

// Unwrap exposes Kind to errors.Is.
func (e *FieldError) Unwrap() error {
	return e.Kind
}
