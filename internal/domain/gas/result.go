package gas

import (
	"errors"
	"net/http"
)

// Status is the outcome class of one handler invocation.
type Status string

const (
	// StatusSuccess means the requested change was applied.
	StatusSuccess Status = "success"
	// StatusNoOp means nothing needed doing.
	StatusNoOp Status = "no-op"
	// StatusBadRequest means the caller or the device omitted required data.
	StatusBadRequest Status = "bad-request"
	// StatusRejected means the request was valid but refused by a safety guard.
	StatusRejected Status = "rejected"
	// StatusInternalError means a collaborator failed.
	StatusInternalError Status = "internal-error"
)

// Code returns the HTTP-style status code of the outcome.
func (s Status) Code() int {
	switch s {
	case StatusSuccess:
		return http.StatusOK
	case StatusNoOp:
		return http.StatusNoContent
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusRejected:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsError reports whether the status represents a failed invocation.
func (s Status) IsError() bool {
	return s != StatusSuccess && s != StatusNoOp
}

// StatusOf classifies an error returned by the core or its collaborators.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrMissingField),
		errors.Is(err, ErrMissingReportedField),
		errors.Is(err, ErrUnsupportedActuator):
		return StatusBadRequest
	case errors.Is(err, ErrActuationBlocked):
		return StatusRejected
	default:
		return StatusInternalError
	}
}

// Result is the structured response every handler returns instead of an error.
type Result struct {
	// Status is the outcome class.
	Status Status
	// Message is a human-readable description of the outcome.
	Message string
	// DeviceID echoes the device the invocation was about, when known.
	DeviceID string
	// Err is the underlying error for failed invocations, nil otherwise.
	Err error
}

// Succeeded builds a success result.
func Succeeded(deviceID, message string) Result {
	return Result{Status: StatusSuccess, Message: message, DeviceID: deviceID}
}

// Skipped builds a no-op result.
func Skipped(deviceID, message string) Result {
	return Result{Status: StatusNoOp, Message: message, DeviceID: deviceID}
}

// Failed builds a result from an error, classifying it with StatusOf.
func Failed(deviceID string, err error) Result {
	return Result{
		Status:   StatusOf(err),
		Message:  err.Error(),
		DeviceID: deviceID,
		Err:      err,
	}
}

// Code returns the HTTP-style status code of the result.
func (r *Result) Code() int {
	return r.Status.Code()
}

// ReconcileResult is the outcome of one actuation reconciliation.
type ReconcileResult struct {
	Result

	// Delta is the desired state written to the shadow; empty for no-op and failures.
	Delta Delta
}

// RecordResult is the outcome of one event recording.
type RecordResult struct {
	Result

	// Record is the stored record; nil unless the append succeeded.
	Record *EventRecord
}

// ControlResult is the outcome of one manual actuator request.
type ControlResult struct {
	Result

	// Delta is the desired state written to the shadow.
	Delta Delta
}

// StatusResult is the outcome of a device status query.
type StatusResult struct {
	Result

	// Reported is the device-observed section of the shadow.
	Reported map[string]any
	// Desired is the cloud-requested section of the shadow.
	Desired map[string]any
}

// Result document attribute names.
const (
	FieldStatus   = "status"
	FieldCode     = "code"
	FieldMessage  = "message"
	FieldDeviceID = "device_id"
	FieldDelta    = "delta"
	FieldRecord   = "record"
	FieldReported = "reported"
	FieldDesired  = "desired"
)

// Fields renders the result as a JSON-compatible document.
func (r *Result) Fields() map[string]any {
	return map[string]any{
		FieldStatus:   string(r.Status),
		FieldCode:     r.Code(),
		FieldMessage:  r.Message,
		FieldDeviceID: r.DeviceID,
	}
}

// Fields renders the result and the applied delta.
func (r *ReconcileResult) Fields() map[string]any {
	return withDelta(r.Result.Fields(), r.Delta)
}

// Fields renders the result and the applied delta.
func (r *ControlResult) Fields() map[string]any {
	return withDelta(r.Result.Fields(), r.Delta)
}

// Fields renders the result and the stored record.
func (r *RecordResult) Fields() map[string]any {
	fields := r.Result.Fields()
	if r.Record != nil {
		fields[FieldRecord] = r.Record.Fields()
	}

	return fields
}

// Fields renders the result and both shadow sections.
func (r *StatusResult) Fields() map[string]any {
	fields := r.Result.Fields()
	if !r.Status.IsError() {
		fields[FieldReported] = nonNil(r.Reported)
		fields[FieldDesired] = nonNil(r.Desired)
	}

	return fields
}

func withDelta(fields map[string]any, delta Delta) map[string]any {
	if len(delta) > 0 {
		fields[FieldDelta] = delta.Fields()
	}

	return fields
}
