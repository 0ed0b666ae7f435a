package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/gas-guard/internal/service/function"
	"github.com/oshokin/gas-guard/internal/version"
)

// lambdaHandlerEnv is set by the Lambda runtime to the function's configured handler.
const lambdaHandlerEnv = "_HANDLER"

var (
	// configPath to an optional configuration YAML file.
	configPath string
	// handler selects the entry point.
	handler string

	// rootCmd represents the base command for the Lambda bootstrap.
	rootCmd = &cobra.Command{
		Use:   "gasguard-lambda",
		Short: "Serve a gas-guard AWS Lambda handler.",
		Long: `Runs as the bootstrap of a provided.al2023 Lambda function.

The "actuation" handler receives {"thing_name", "gas_levels_state"} from the IoT rule
watching gas levels and writes the policy's desired actuator states to the device shadow.
The "record" handler receives {"thingName", "timestamp"} and appends the shadow's
reported readings to the event log.

The handler defaults to the function's configured handler name; settings come from
GASGUARD_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(handler)
		},
	}
)

// run serves name until the runtime stops the process.
func run(name string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return function.Run(ctx, &function.Options{
		ConfigPath: configPath,
		Handler:    name,
	})
}

// handlerCommand returns a subcommand serving the named handler.
func handlerCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(name)
		},
	}
}

// Execute runs the gasguard-lambda CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	rootCmd.AddCommand(
		handlerCommand(function.HandlerActuation, "Serve the actuation handler."),
		handlerCommand(function.HandlerRecord, "Serve the record handler."),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional path to configuration file")
	rootCmd.Flags().StringVar(&handler, "handler", os.Getenv(lambdaHandlerEnv), "handler to serve: actuation or record")
}
