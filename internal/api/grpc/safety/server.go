package safety

import (
	"context"
	"errors"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/logger"
	"github.com/oshokin/gas-guard/internal/repository/eventlog"
	"github.com/oshokin/gas-guard/internal/service/actuation"
	"github.com/oshokin/gas-guard/internal/service/control"
	"github.com/oshokin/gas-guard/internal/service/recorder"
)

// Request attribute names.
const (
	FieldDeviceID  = gas.FieldDeviceID
	FieldRisk      = "risk"
	FieldTimestamp = gas.TimestampAttribute
	FieldActuator  = "actuator"
	FieldState     = "state"
)

// Reconciler applies the risk policy.
type Reconciler interface {
	Reconcile(ctx context.Context, req actuation.Request) *gas.ReconcileResult
}

// Recorder snapshots reported state into the event log.
type Recorder interface {
	Record(ctx context.Context, req recorder.Request) *gas.RecordResult
}

// Controller serves manual requests.
type Controller interface {
	SetActuator(ctx context.Context, req control.ActuatorRequest) *gas.ControlResult
	Status(ctx context.Context, deviceID string) *gas.StatusResult
}

// Server implements SafetyServiceServer on top of the services.
// Domain outcomes, failures included, are returned in the response document;
// gRPC errors are reserved for malformed requests and lookups.
type Server struct {
	// reconciler handles Reconcile.
	reconciler Reconciler
	// recorder handles Record.
	recorder Recorder
	// controller handles SetActuator and GetDeviceState.
	controller Controller
	// events handles GetEvent.
	events eventlog.Reader
}

// NewServer wires the services into a gRPC handler.
func NewServer(reconciler Reconciler, recorder Recorder, controller Controller, events eventlog.Reader) *Server {
	return &Server{
		reconciler: reconciler,
		recorder:   recorder,
		controller: controller,
		events:     events,
	}
}

// Reconcile applies the policy for {device_id, risk}.
func (s *Server) Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, errRequestRequired
	}

	result := s.reconciler.Reconcile(withMethod(ctx, "Reconcile"), actuation.Request{
		DeviceID: stringField(req, FieldDeviceID),
		Risk:     stringField(req, FieldRisk),
	})

	return toStruct(result.Fields())
}

// Record snapshots {device_id, timestamp?}.
func (s *Server) Record(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, errRequestRequired
	}

	timestamp, err := timestampField(req)
	if err != nil {
		return nil, err
	}

	result := s.recorder.Record(withMethod(ctx, "Record"), recorder.Request{
		DeviceID:  stringField(req, FieldDeviceID),
		Timestamp: timestamp,
	})

	return toStruct(result.Fields())
}

// SetActuator applies {device_id, actuator, state}.
func (s *Server) SetActuator(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, errRequestRequired
	}

	result := s.controller.SetActuator(withMethod(ctx, "SetActuator"), control.ActuatorRequest{
		DeviceID: stringField(req, FieldDeviceID),
		Actuator: stringField(req, FieldActuator),
		State:    stringField(req, FieldState),
	})

	return toStruct(result.Fields())
}

// GetDeviceState returns the shadow sections of {device_id}.
func (s *Server) GetDeviceState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, errRequestRequired
	}

	result := s.controller.Status(withMethod(ctx, "GetDeviceState"), stringField(req, FieldDeviceID))

	return toStruct(result.Fields())
}

// GetEvent returns the record stored at {device_id, timestamp}.
func (s *Server) GetEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, errRequestRequired
	}

	deviceID := stringField(req, FieldDeviceID)
	if deviceID == "" {
		return nil, status.Error(codes.InvalidArgument, "device_id is required")
	}

	timestamp, err := timestampField(req)
	if err != nil {
		return nil, err
	}

	if timestamp == nil {
		return nil, status.Error(codes.InvalidArgument, "timestamp is required")
	}

	ctx = logger.WithKV(withMethod(ctx, "GetEvent"), "device_id", deviceID, "timestamp", *timestamp)

	record, err := s.events.Get(ctx, deviceID, *timestamp)
	if err != nil {
		if errors.Is(err, eventlog.ErrNotFound) {
			return nil, status.Error(codes.NotFound, err.Error())
		}

		logger.ErrorKV(ctx, "Failed to read event record", "error", err)

		return nil, status.Error(codes.Internal, "unable to read event record")
	}

	return toStruct(record.Fields())
}

// errRequestRequired is returned for nil requests.
var errRequestRequired = status.Error(codes.InvalidArgument, "request is required")

func withMethod(ctx context.Context, method string) context.Context {
	return logger.WithKV(ctx, "rpc", method)
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

// timestampField reads an optional integral epoch second.
func timestampField(req *structpb.Struct) (*int64, error) {
	value, ok := req.GetFields()[FieldTimestamp]
	if !ok {
		return nil, nil //nolint:nilnil // Absent timestamp is valid.
	}

	switch kind := value.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil //nolint:nilnil // Null timestamp is valid.
	case *structpb.Value_NumberValue:
		number := kind.NumberValue
		if number != math.Trunc(number) || number < 0 {
			return nil, status.Error(codes.InvalidArgument, "timestamp must be a non-negative integer")
		}

		timestamp := int64(number)

		return &timestamp, nil
	default:
		return nil, status.Error(codes.InvalidArgument, "timestamp must be a number")
	}
}

func toStruct(fields map[string]any) (*structpb.Struct, error) {
	document, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}

	return document, nil
}
