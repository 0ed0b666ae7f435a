package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/service/client"
	"github.com/oshokin/gas-guard/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the configured server address.
	serverAddress string
	// wait keeps retrying while the server is unreachable.
	wait bool

	// rootCmd represents the base command for the gas-guard client.
	rootCmd = &cobra.Command{
		Use:   "gasctl",
		Short: "Operate gas-guard devices through gasguard-server.",
		Long: `Sends requests to gasguard-server over gRPC and prints the JSON response.

Use it to push a risk classification through the actuation policy, snapshot a device's
reported readings into the event log, move a valve or fan by hand while gas levels are
safe, and inspect device shadows and recorded events.
The command exits with a non-zero status when the server reports a failed outcome.`,
		SilenceUsage: true,
	}
)

// execute runs call against the server with the shared flags.
func execute(name string, call client.Call) error {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return client.Run(ctx, &client.Options{
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
		Name:          name,
		Call:          call,
		Wait:          wait,
	})
}

// Execute runs the gasctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	rootCmd.AddCommand(
		newReconcileCommand(),
		newRecordCommand(),
		newActuateCommand(),
		newStatusCommand(),
		newEventCommand(),
		newWatchCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&serverAddress, "server", "s", "", "gasguard-server address, overrides configuration")
	flags.BoolVarP(&wait, "wait", "w", false, "retry while the server is unreachable")
}
