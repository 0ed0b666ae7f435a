package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/logger"
	"github.com/oshokin/gas-guard/internal/service/actuation"
	"github.com/oshokin/gas-guard/internal/service/recorder"
)

// ActuationEvent is delivered by the IoT rule watching gas level changes.
type ActuationEvent struct {
	// ThingName is the device id.
	ThingName string `json:"thing_name"`
	// GasLevelsState is the classification as published by the rule.
	GasLevelsState string `json:"gas_levels_state"`
	// GasLevelState is accepted when the rule forwards the reported attribute name.
	GasLevelState string `json:"gas_level_state"`
}

// RecordEvent is delivered by the IoT rule watching shadow changes.
type RecordEvent struct {
	// ThingName is the device id.
	ThingName string `json:"thingName"`
	// Timestamp is the observation point in epoch seconds; absent, null or zero means now.
	// It is kept raw so malformed values are answered with a 400 instead of failing the decode.
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// errInvalidTimestamp is returned for timestamps that are not non-negative integers.
var errInvalidTimestamp = errors.New("timestamp must be a non-negative integer")

// timestamp parses the optional timestamp of the event.
func (e *RecordEvent) timestamp() (*int64, error) {
	raw := bytes.TrimSpace(e.Timestamp)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	value, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || value < 0 {
		return nil, errInvalidTimestamp
	}

	return &value, nil
}

// Response mirrors the API Gateway proxy response shape.
type Response struct {
	// StatusCode is the HTTP-style result code.
	StatusCode int `json:"statusCode"`
	// Body is the human-readable result message.
	Body string `json:"body"`
}

// Reconciler applies the risk policy.
type Reconciler interface {
	Reconcile(ctx context.Context, req actuation.Request) *gas.ReconcileResult
}

// Recorder snapshots reported state into the event log.
type Recorder interface {
	Record(ctx context.Context, req recorder.Request) *gas.RecordResult
}

// Handlers holds the Lambda entry points.
type Handlers struct {
	// reconciler serves Actuation.
	reconciler Reconciler
	// recorder serves Record.
	recorder Recorder
}

// NewHandlers creates the Lambda handlers.
func NewHandlers(reconciler Reconciler, recorder Recorder) *Handlers {
	return &Handlers{
		reconciler: reconciler,
		recorder:   recorder,
	}
}

// Actuation handles an ActuationEvent. Domain failures are reported in the
// response; the returned error is always nil so Lambda does not retry them.
func (h *Handlers) Actuation(ctx context.Context, event ActuationEvent) (Response, error) {
	risk := event.GasLevelsState
	if risk == "" {
		risk = event.GasLevelState
	}

	result := h.reconciler.Reconcile(withRequestID(ctx), actuation.Request{
		DeviceID: event.ThingName,
		Risk:     risk,
	})

	return Response{StatusCode: result.Code(), Body: result.Message}, nil
}

// Record handles a RecordEvent.
func (h *Handlers) Record(ctx context.Context, event RecordEvent) (Response, error) {
	ctx = withRequestID(ctx)

	timestamp, err := event.timestamp()
	if err != nil {
		logger.WarnKV(ctx, "record rejected", gas.FieldDeviceID, event.ThingName, "error", err)

		return Response{StatusCode: gas.StatusBadRequest.Code(), Body: err.Error()}, nil
	}

	result := h.recorder.Record(ctx, recorder.Request{
		DeviceID:  event.ThingName,
		Timestamp: timestamp,
	})

	return Response{StatusCode: result.Code(), Body: result.Message}, nil
}

// withRequestID attaches the Lambda request id to the context logger.
func withRequestID(ctx context.Context) context.Context {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return logger.WithKV(ctx, "aws_request_id", lc.AwsRequestID)
	}

	return ctx
}
