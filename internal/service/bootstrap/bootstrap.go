package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/logger"
	"github.com/oshokin/gas-guard/internal/repository/eventlog"
	"github.com/oshokin/gas-guard/internal/repository/shadow"
	"github.com/oshokin/gas-guard/internal/service/actuation"
	"github.com/oshokin/gas-guard/internal/service/control"
	"github.com/oshokin/gas-guard/internal/service/recorder"
)

// closer releases one backend.
type closer func(ctx context.Context) error

// Dependencies holds the stores and services of one process.
type Dependencies struct {
	// Shadow is the configured Device Shadow Store.
	Shadow shadow.Store
	// Events is the configured Event Log Store.
	Events eventlog.Repository

	// reconciler applies the risk policy.
	reconciler *actuation.Reconciler
	// recorder snapshots reported state.
	recorder *recorder.Recorder
	// controller serves manual requests.
	controller *control.Controller
	// closers release backends in reverse order of creation.
	closers []closer
	// aws is loaded on first use by an AWS-backed store.
	aws *aws.Config
}

// errUnsupportedBackend is returned for backends Validate does not know about.
var errUnsupportedBackend = errors.New("unsupported backend")

// Build constructs the stores selected by cfg and the services using them.
func Build(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := new(Dependencies)

	shadowStore, err := deps.buildShadow(ctx, cfg)
	if err != nil {
		return nil, deps.abort(ctx, fmt.Errorf("build shadow store: %w", err))
	}

	events, err := deps.buildEventLog(ctx, cfg)
	if err != nil {
		return nil, deps.abort(ctx, fmt.Errorf("build event log store: %w", err))
	}

	logger.InfoKV(ctx, "Stores ready",
		"shadow_backend", cfg.Shadow.Backend,
		"event_log_backend", cfg.EventLog.Backend)

	return deps.wire(shadowStore, events), nil
}

// New wires the services on top of already constructed stores.
func New(shadowStore shadow.Store, events eventlog.Repository) *Dependencies {
	return new(Dependencies).wire(shadowStore, events)
}

// Reconciler returns the actuation reconciler.
func (d *Dependencies) Reconciler() *actuation.Reconciler {
	return d.reconciler
}

// Recorder returns the event recorder.
func (d *Dependencies) Recorder() *recorder.Recorder {
	return d.recorder
}

// Control returns the manual controller.
func (d *Dependencies) Control() *control.Controller {
	return d.controller
}

// Close releases every backend and returns the joined errors.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error

	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	d.closers = nil

	return errors.Join(errs...)
}

func (d *Dependencies) wire(shadowStore shadow.Store, events eventlog.Repository) *Dependencies {
	d.Shadow = shadowStore
	d.Events = events
	d.reconciler = actuation.NewReconciler(shadowStore, nil)
	d.recorder = recorder.NewRecorder(shadowStore, events)
	d.controller = control.NewController(shadowStore)

	return d
}

// abort releases whatever was built before err and returns err.
func (d *Dependencies) abort(ctx context.Context, err error) error {
	if closeErr := d.Close(ctx); closeErr != nil {
		logger.ErrorKV(ctx, "Failed to release partially built stores", "error", closeErr)
	}

	return err
}

func (d *Dependencies) buildShadow(ctx context.Context, cfg *config.Config) (shadow.Store, error) {
	settings := &cfg.Shadow

	switch settings.Backend {
	case config.ShadowMemory:
		return shadow.NewMemoryStore(), nil
	case config.ShadowIoTData:
		awsConfig, err := d.awsConfig(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}

		return shadow.NewIoTDataStore(shadow.NewIoTDataClient(awsConfig, settings.Endpoint), settings.ShadowName), nil
	case config.ShadowMQTT:
		client, err := shadow.DialMQTT(ctx, &settings.MQTT)
		if err != nil {
			return nil, err
		}

		store := shadow.NewMQTTStore(client, settings.MQTT.QoS, settings.ShadowName)

		d.closers = append(d.closers, func(ctx context.Context) error {
			err := store.Unsubscribe(ctx)
			shadow.Disconnect(client)

			return err
		})

		if err = store.Subscribe(ctx); err != nil {
			return nil, err
		}

		return store, nil
	default:
		return nil, fmt.Errorf("%w: shadow %q", errUnsupportedBackend, settings.Backend)
	}
}

//nolint:cyclop // One branch per backend.
func (d *Dependencies) buildEventLog(ctx context.Context, cfg *config.Config) (eventlog.Repository, error) {
	settings := &cfg.EventLog

	switch settings.Backend {
	case config.EventLogMemory:
		return eventlog.NewMemoryRepository(), nil
	case config.EventLogFile:
		return eventlog.NewFileRepository(settings.Path), nil
	case config.EventLogDynamoDB:
		awsConfig, err := d.awsConfig(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}

		return eventlog.NewDynamoDBStore(eventlog.NewDynamoDBClient(awsConfig, settings.Endpoint), settings.Table), nil
	case config.EventLogPostgres:
		store, err := eventlog.OpenPostgres(ctx, settings.DSN, settings.Table)
		if err != nil {
			return nil, err
		}

		d.closers = append(d.closers, func(context.Context) error { return store.Close() })

		return store, nil
	case config.EventLogSQLite:
		store, err := eventlog.OpenSQLite(ctx, settings.Path, settings.Table)
		if err != nil {
			return nil, err
		}

		d.closers = append(d.closers, func(context.Context) error { return store.Close() })

		return store, nil
	case config.EventLogMongo:
		store, err := eventlog.OpenMongo(ctx, settings.DSN, settings.Database, settings.Collection)
		if err != nil {
			return nil, err
		}

		d.closers = append(d.closers, store.Close)

		return store, nil
	case config.EventLogRedis:
		store, err := eventlog.OpenRedis(ctx, &settings.Redis)
		if err != nil {
			return nil, err
		}

		d.closers = append(d.closers, func(context.Context) error { return store.Close() })

		return store, nil
	default:
		return nil, fmt.Errorf("%w: event log %q", errUnsupportedBackend, settings.Backend)
	}
}

// awsConfig loads the shared AWS configuration once.
func (d *Dependencies) awsConfig(ctx context.Context, region string) (aws.Config, error) {
	if d.aws != nil {
		return *d.aws, nil
	}

	loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}

	d.aws = &loaded

	return loaded, nil
}
