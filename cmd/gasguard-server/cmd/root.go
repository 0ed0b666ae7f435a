package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/logger"
	"github.com/oshokin/gas-guard/internal/service/server"
	"github.com/oshokin/gas-guard/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// grpcAddress overrides the configured gRPC listen address.
	grpcAddress string
	// httpAddress overrides the configured HTTP listen address.
	httpAddress string

	// rootCmd represents the base command for running the safety server.
	rootCmd = &cobra.Command{
		Use:   "gasguard-server",
		Short: "Serve the gas safety API over gRPC and HTTP.",
		Long: `Starts the gas-guard server exposing the actuation reconciler, the event recorder
and manual actuator control over gRPC and, when an HTTP address is set, a JSON API.

Device shadows are read and written through the configured shadow backend
(AWS IoT data plane, MQTT or in-memory). Gas event records are appended to the
configured event log (DynamoDB, Postgres, SQLite, MongoDB, Redis, file or in-memory).
Settings come from the YAML file and GASGUARD_* environment variables; the file is optional.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			options := &server.Options{
				ConfigPath:  configPath,
				GRPCAddress: grpcAddress,
				HTTPAddress: httpAddress,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the gasguard-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&grpcAddress, "grpc-addr", "g", "", "gRPC listen address, overrides configuration")
	rootCmd.Flags().StringVar(&httpAddress, "http-addr", "", "HTTP listen address, overrides configuration")
}
