package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpcapi "github.com/oshokin/gas-guard/internal/api/grpc/safety"
	httpapi "github.com/oshokin/gas-guard/internal/api/http/safety"
	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/logger"
	"github.com/oshokin/gas-guard/internal/service/bootstrap"
	"github.com/oshokin/gas-guard/internal/telemetry"
	"github.com/oshokin/gas-guard/internal/version"
)

// Options controls the gasguard-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// GRPCAddress overrides the gRPC listen address from the configuration.
	GRPCAddress string
	// HTTPAddress overrides the HTTP listen address from the configuration.
	HTTPAddress string
}

// Listeners holds the sockets served by Serve. A nil HTTP listener disables the HTTP API.
type Listeners struct {
	// GRPC accepts gRPC connections.
	GRPC net.Listener
	// HTTP accepts HTTP connections.
	HTTP net.Listener
}

// readHeaderTimeout bounds the time to read HTTP request headers.
const readHeaderTimeout = 10 * time.Second

// Run starts the gRPC and HTTP servers and blocks until context is canceled or a server fails.
// Loads configuration first, then builds the configured stores.
func Run(ctx context.Context, opts *Options) error {
	// Load configuration; environment variables alone are enough without a file.
	settings, err := config.LoadOptional(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// Configure the global logger before any context logger is derived from it.
	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.Configure(level, logger.FormatConsole)
	}

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "gasguard-server")

	logger.InfoKV(ctx, "Starting gasguard-server", version.KV()...)

	// Command line options override configured listen addresses.
	if opts.GRPCAddress != "" {
		settings.Server.GRPCAddress = opts.GRPCAddress
	}

	if opts.HTTPAddress != "" {
		settings.Server.HTTPAddress = opts.HTTPAddress
	}

	// Export traces when a collector is configured.
	tracing, err := telemetry.Setup(ctx, &settings.Telemetry, "gasguard-server")
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := tracing.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			logger.ErrorKV(ctx, "Failed to flush traces", "error", shutdownErr)
		}
	}()

	// Build stores and services.
	deps, err := bootstrap.Build(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise dependencies: %w", err)
	}

	defer func() {
		if closeErr := deps.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.ErrorKV(ctx, "Failed to release stores", "error", closeErr)
		}
	}()

	listeners, err := listen(ctx, &settings.Server)
	if err != nil {
		return err
	}

	return Serve(ctx, deps, listeners, settings.Timeout)
}

// Serve runs the APIs over deps on the given listeners until ctx is done.
// Every call is bounded by timeout when it is positive.
func Serve(ctx context.Context, deps *bootstrap.Dependencies, listeners Listeners, timeout time.Duration) error {
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unaryInterceptor(timeout)),
	)
	grpcapi.RegisterSafetyServiceServer(grpcServer,
		grpcapi.NewServer(deps.Reconciler(), deps.Recorder(), deps.Control(), deps.Events))

	group, groupCtx := errgroup.WithContext(ctx)

	logger.InfoKV(ctx, "gRPC server listening", "listen_address", listeners.GRPC.Addr().String())

	group.Go(func() error {
		if err := grpcServer.Serve(listeners.GRPC); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()

		return nil
	})

	if listeners.HTTP != nil {
		router := httpapi.NewRouter(deps.Reconciler(), deps.Recorder(), deps.Control(), deps.Events)
		httpServer := &http.Server{
			Handler:           withTimeout(router, timeout),
			ReadHeaderTimeout: readHeaderTimeout,
		}

		logger.InfoKV(ctx, "HTTP server listening", "listen_address", listeners.HTTP.Addr().String())

		group.Go(func() error {
			if err := httpServer.Serve(listeners.HTTP); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve HTTP: %w", err)
			}

			return nil
		})

		group.Go(func() error {
			<-groupCtx.Done()
			logger.Info(ctx, "Shutting down HTTP server")

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readHeaderTimeout)
			defer cancel()

			return httpServer.Shutdown(shutdownCtx)
		})
	}

	err := group.Wait()
	logger.Info(ctx, "Servers stopped")

	return err
}

// listen opens the configured sockets.
func listen(ctx context.Context, settings *config.ServerConfig) (Listeners, error) {
	lc := net.ListenConfig{}

	grpcListener, err := lc.Listen(ctx, "tcp", settings.GRPCAddress)
	if err != nil {
		return Listeners{}, fmt.Errorf("listen on %s: %w", settings.GRPCAddress, err)
	}

	listeners := Listeners{GRPC: grpcListener}

	if settings.HTTPAddress == "" {
		return listeners, nil
	}

	listeners.HTTP, err = lc.Listen(ctx, "tcp", settings.HTTPAddress)
	if err != nil {
		_ = grpcListener.Close()

		return Listeners{}, fmt.Errorf("listen on %s: %w", settings.HTTPAddress, err)
	}

	return listeners, nil
}
