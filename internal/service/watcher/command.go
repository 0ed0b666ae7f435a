package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/logger"
	"github.com/oshokin/gas-guard/internal/service/common"
)

// Options controls the watcher polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// DeviceIDs lists the devices to watch.
	DeviceIDs []string
	// PollInterval defines the interval between shadow checks.
	PollInterval time.Duration
}

// Client is the subset of the SafetyService client used by the watcher.
type Client interface {
	GetDeviceState(ctx context.Context, deviceID string) (*structpb.Struct, error)
	Reconcile(ctx context.Context, deviceID, risk string) (*structpb.Struct, error)
	Record(ctx context.Context, deviceID string, timestamp int64) (*structpb.Struct, error)
}

// DefaultPollInterval defines the polling interval when none is given.
const DefaultPollInterval = 5 * time.Second

var (
	// errDevicesRequired is returned when there is nothing to watch.
	errDevicesRequired = errors.New("at least one device id must be provided")
	// errActionFailed is returned when the server reports a failed outcome.
	errActionFailed = errors.New("action failed")
)

// Run polls the devices until the context is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "gasctl-watch")

	if len(opts.DeviceIDs) == 0 {
		return errDevicesRequired
	}

	// Load settings; environment variables alone are enough without a file.
	cfg, err := config.LoadOptional(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	// Determine server address: command line argument overrides config.
	serverAddress := cfg.Client.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	actor, err := common.DetectActor()
	if err != nil {
		return fmt.Errorf("detect actor: %w", err)
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout), common.WithActor(actor))
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching devices",
		"server_address", serverAddress,
		"devices", opts.DeviceIDs,
		"interval", opts.PollInterval.String())

	return New(client).Watch(ctx, opts.DeviceIDs, opts.PollInterval)
}

// Watcher remembers the last classification seen per device.
type Watcher struct {
	// client talks to gasguard-server.
	client Client
	// last holds the last reported classification per device.
	last map[string]gas.Classification
}

// New creates a watcher over client.
func New(client Client) *Watcher {
	return &Watcher{
		client: client,
		last:   make(map[string]gas.Classification),
	}
}

// Watch checks every device on each tick until the context is canceled.
func (w *Watcher) Watch(ctx context.Context, deviceIDs []string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, deviceID := range deviceIDs {
			if err := w.Check(ctx, deviceID); err != nil {
				logger.ErrorKV(ctx, "Check device failed", "device_id", deviceID, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
		}
	}
}

// Check reads the device state and, when the reported classification changed,
// reconciles the actuators and records an event.
func (w *Watcher) Check(ctx context.Context, deviceID string) error {
	state, err := w.client.GetDeviceState(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("get device state: %w", err)
	}

	fields := state.GetFields()
	if status := gas.Status(fields[gas.FieldStatus].GetStringValue()); status != gas.StatusSuccess {
		return fmt.Errorf("get device state: %s: %s", status, fields[gas.FieldMessage].GetStringValue())
	}

	reported := fields[gas.FieldReported].GetStructValue().GetFields()
	current := gas.Classification(reported[gas.GasLevelState].GetStringValue())

	if current == "" || current == w.last[deviceID] {
		return nil
	}

	logger.InfoKV(ctx, "Gas level changed",
		"device_id", deviceID,
		"previous", string(w.last[deviceID]),
		"current", string(current))

	// Both actions run; a failed reconcile must not prevent the record.
	errs := []error{
		w.act(ctx, "Reconcile", deviceID, func() (*structpb.Struct, error) {
			return w.client.Reconcile(ctx, deviceID, string(current))
		}),
		w.act(ctx, "Record", deviceID, func() (*structpb.Struct, error) {
			return w.client.Record(ctx, deviceID, 0)
		}),
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	w.last[deviceID] = current

	return nil
}

// act runs one call and turns both transport errors and failed outcomes into an error.
func (w *Watcher) act(ctx context.Context, operation, deviceID string, call func() (*structpb.Struct, error)) error {
	response, err := call()
	if err != nil {
		return fmt.Errorf("%s: %w", strings.ToLower(operation), err)
	}

	fields := response.GetFields()
	status := gas.Status(fields[gas.FieldStatus].GetStringValue())
	message := fields[gas.FieldMessage].GetStringValue()

	if status.IsError() {
		logger.ErrorKV(ctx, operation+" failed", "device_id", deviceID, "status", string(status), "message", message)

		return fmt.Errorf("%s: %w: %s: %s", strings.ToLower(operation), errActionFailed, status, message)
	}

	logger.InfoKV(ctx, operation+" completed", "device_id", deviceID, "status", string(status), "message", message)

	return nil
}
