package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/gas-guard/internal/service/common"
	"github.com/oshokin/gas-guard/internal/service/watcher"
)

func newReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <device-id> <risk>",
		Short: "Apply the actuation policy for a risk classification.",
		Long: `Maps the risk classification (precaucion, emergencia, ...) to actuator states
and merges them into the desired section of the device shadow.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return execute("reconcile", func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.Reconcile(ctx, args[0], args[1])
			})
		},
	}
}

func newRecordCommand() *cobra.Command {
	var timestamp int64

	command := &cobra.Command{
		Use:   "record <device-id>",
		Short: "Append the reported readings of a device to the event log.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return execute("record", func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.Record(ctx, args[0], timestamp)
			})
		},
	}

	command.Flags().Int64VarP(&timestamp, "timestamp", "t", 0, "record timestamp in epoch seconds, 0 means now")

	return command
}

func newActuateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actuate <device-id> <actuator> <state>",
		Short: "Move one actuator by hand.",
		Long: `Sets valve_state (open/closed) or fan_state (on/off) in the desired section.
The server refuses while the device reports a dangerous gas level.`,
		Args: cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			return execute("actuate", func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.SetActuator(ctx, args[0], args[1], args[2])
			})
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <device-id>",
		Short: "Show the reported and desired state of a device.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return execute("status", func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.GetDeviceState(ctx, args[0])
			})
		},
	}
}

func newEventCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "event <device-id> <timestamp>",
		Short: "Show one recorded gas event.",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			timestamp, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("parse timestamp %q: %w", args[1], err)
			}

			return execute("event", func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
				return c.GetEvent(ctx, args[0], timestamp)
			})
		},
	}
}

func newWatchCommand() *cobra.Command {
	var interval time.Duration

	command := &cobra.Command{
		Use:   "watch <device-id>...",
		Short: "Reconcile and record whenever a device reports a new gas level.",
		Long: `Polls the device shadows and, each time the reported gas_level_state changes,
applies the actuation policy and appends an event record.
Use it where no cloud rule forwards shadow changes, e.g. with the mqtt or memory backends.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return watcher.Run(ctx, &watcher.Options{
				ConfigPath:    cfgPath,
				ServerAddress: serverAddress,
				DeviceIDs:     args,
				PollInterval:  interval,
			})
		},
	}

	command.Flags().DurationVarP(&interval, "interval", "i", watcher.DefaultPollInterval, "polling interval")

	return command
}
