package function

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"

	lambdaapi "github.com/oshokin/gas-guard/internal/api/lambda/safety"
	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/logger"
	"github.com/oshokin/gas-guard/internal/service/bootstrap"
	"github.com/oshokin/gas-guard/internal/telemetry"
	"github.com/oshokin/gas-guard/internal/version"
)

// Handler names.
const (
	// HandlerActuation reconciles desired state from a gas level change.
	HandlerActuation = "actuation"
	// HandlerRecord snapshots reported state into the event log.
	HandlerRecord = "record"
)

// Options controls the Lambda process.
type Options struct {
	// ConfigPath is an optional settings file; environment variables alone are enough.
	ConfigPath string
	// Handler is HandlerActuation or HandlerRecord.
	Handler string
}

// errUnknownHandler is returned for unsupported handler names.
var errUnknownHandler = errors.New("unknown handler")

// Run builds the stores and serves the selected handler until ctx is done.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.LoadOptional(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// CloudWatch ingests one JSON object per line.
	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.Configure(level, logger.FormatJSON)
	}

	defer logger.Sync()

	ctx = logger.WithName(ctx, "gasguard-lambda")
	logger.InfoKV(ctx, "Starting gasguard-lambda", version.KV()...)

	tracing, err := telemetry.Setup(ctx, &settings.Telemetry, "gasguard-lambda")
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}

	deps, err := bootstrap.Build(ctx, settings)
	if err != nil {
		shutdownTracing(ctx, tracing)

		return fmt.Errorf("initialise dependencies: %w", err)
	}

	release := func() {
		if closeErr := deps.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.ErrorKV(ctx, "Failed to release stores", "error", closeErr)
		}

		shutdownTracing(ctx, tracing)
		logger.Sync()
	}

	handler, err := Select(lambdaapi.NewHandlers(deps.Reconciler(), deps.Recorder()), opts.Handler, tracing.ForceFlush)
	if err != nil {
		release()

		return err
	}

	logger.InfoKV(ctx, "Serving Lambda handler",
		"handler", opts.Handler,
		"shadow_backend", settings.Shadow.Backend,
		"event_log_backend", settings.EventLog.Backend)

	// StartWithOptions never returns; the runtime's SIGTERM is the last chance to release resources.
	lambda.StartWithOptions(handler,
		lambda.WithContext(ctx),
		lambda.WithEnableSIGTERM(release),
	)

	return nil
}

// Flush exports buffered telemetry.
type Flush func(context.Context) error

// Select returns the handler function registered under name, flushing after every invocation.
func Select(handlers *lambdaapi.Handlers, name string, flush Flush) (any, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case HandlerActuation:
		return flushAfter(handlers.Actuation, flush), nil
	case HandlerRecord:
		return flushAfter(handlers.Record, flush), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownHandler, name)
	}
}

// flushAfter wraps handler so that flush runs before the response is returned
// and the runtime freezes the process. Flush failures are logged, never returned.
func flushAfter[E any](
	handler func(context.Context, E) (lambdaapi.Response, error),
	flush Flush,
) func(context.Context, E) (lambdaapi.Response, error) {
	return func(ctx context.Context, event E) (lambdaapi.Response, error) {
		response, err := handler(ctx, event)

		if flush != nil {
			if flushErr := flush(context.WithoutCancel(ctx)); flushErr != nil {
				logger.ErrorKV(ctx, "Failed to flush traces", "error", flushErr)
			}
		}

		return response, err
	}
}

// shutdownTracing stops the exporter, logging failures.
func shutdownTracing(ctx context.Context, tracing *telemetry.Provider) {
	if err := tracing.Shutdown(context.WithoutCancel(ctx)); err != nil {
		logger.ErrorKV(ctx, "Failed to flush traces", "error", err)
	}
}
