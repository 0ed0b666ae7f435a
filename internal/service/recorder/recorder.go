package recorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/logger"
	"github.com/oshokin/gas-guard/internal/repository/eventlog"
)

// ShadowReader fetches the shadow document of a device.
type ShadowReader interface {
	Get(ctx context.Context, deviceID string) (*gas.ShadowDocument, error)
}

// Request is one recording trigger.
type Request struct {
	// DeviceID is the thing name of the device.
	DeviceID string
	// Timestamp is the observation point in epoch seconds; nil or zero means now.
	Timestamp *int64
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithClock replaces the wall clock used for default timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// Recorder copies reported shadow state into the event log.
type Recorder struct {
	// shadow is the source of reported state.
	shadow ShadowReader
	// events receives the records.
	events eventlog.Store
	// now supplies default timestamps.
	now func() time.Time
}

// NewRecorder creates a recorder over the given stores.
func NewRecorder(shadow ShadowReader, events eventlog.Store, options ...Option) *Recorder {
	r := &Recorder{
		shadow: shadow,
		events: events,
		now:    time.Now,
	}

	for _, option := range options {
		option(r)
	}

	return r
}

// Record reads the reported section of the device shadow and appends one event record.
func (r *Recorder) Record(ctx context.Context, req Request) *gas.RecordResult {
	deviceID := strings.TrimSpace(req.DeviceID)
	ctx = logger.WithKV(logger.WithName(ctx, "recorder"), "device_id", deviceID)

	if deviceID == "" {
		logger.InfoKV(ctx, "Recording requested", "timestamp", req.Timestamp)

		return r.fail(ctx, deviceID, gas.MissingField(gas.DeviceIDAttribute))
	}

	// Resolve the timestamp once so logs and the record agree.
	timestamp := r.timestamp(req.Timestamp)
	ctx = logger.WithKV(ctx, "timestamp", timestamp)

	logger.Info(ctx, "Recording requested")

	document, err := r.shadow.Get(ctx, deviceID)
	if err != nil {
		return r.fail(ctx, deviceID, fmt.Errorf("%w: %w", gas.ErrShadowRead, err))
	}

	logger.InfoKV(ctx, "Reported state fetched", "reported", document.Reported)

	reading, err := gas.ExtractReading(document.Reported)
	if err != nil {
		return r.fail(ctx, deviceID, err)
	}

	if len(reading.Ignored) > 0 {
		logger.WarnKV(ctx, "Ignoring reported attributes with unexpected types", "attributes", reading.Ignored)
	}

	record := gas.NewEventRecord(deviceID, timestamp, reading)

	if err = r.events.Append(ctx, record); err != nil {
		return r.fail(ctx, deviceID, fmt.Errorf("%w: %w", gas.ErrLogWrite, err))
	}

	logger.InfoKV(ctx, "Event recorded", "gas_level_state", record.GasLevelState)

	return &gas.RecordResult{
		Result: gas.Succeeded(deviceID, fmt.Sprintf("event recorded for %s at %d", deviceID, timestamp)),
		Record: record,
	}
}

// timestamp returns the requested timestamp, or the current epoch second when none was given.
func (r *Recorder) timestamp(requested *int64) int64 {
	if requested != nil && *requested != 0 {
		return *requested
	}

	return r.now().Unix()
}

func (r *Recorder) fail(ctx context.Context, deviceID string, err error) *gas.RecordResult {
	result := gas.Failed(deviceID, err)
	logger.ErrorKV(ctx, "Recording failed", "status", result.Status, "error", err)

	return &gas.RecordResult{Result: result}
}
