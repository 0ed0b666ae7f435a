package client

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/repository/eventlog"
	"github.com/oshokin/gas-guard/internal/repository/shadow"
	"github.com/oshokin/gas-guard/internal/service/bootstrap"
	"github.com/oshokin/gas-guard/internal/service/common"
	"github.com/oshokin/gas-guard/internal/service/server"
)

// startServer serves the gRPC API over in-memory stores and returns its address.
func startServer(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		deps := bootstrap.New(shadow.NewMemoryStore(), eventlog.NewMemoryRepository())
		done <- server.Serve(ctx, deps, server.Listeners{GRPC: listener}, time.Second)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	return listener.Addr().String()
}

// missingConfig returns a path to a settings file that does not exist.
func missingConfig(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), config.DefaultConfigFilename)
}

// decode parses the printed response.
func decode(t *testing.T, output *bytes.Buffer) map[string]any {
	t.Helper()

	response := new(structpb.Struct)
	require.NoError(t, protojson.Unmarshal(output.Bytes(), response))

	return response.AsMap()
}

// TestRun_PrintsResponse checks that a successful call is printed as JSON.
func TestRun_PrintsResponse(t *testing.T) {
	t.Parallel()

	var output bytes.Buffer

	err := Run(context.Background(), &Options{
		ConfigPath:    missingConfig(t),
		ServerAddress: startServer(t),
		Name:          "reconcile",
		Call: func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
			return c.Reconcile(ctx, "esp32-hall", string(gas.Caution))
		},
		Output: &output,
	})
	require.NoError(t, err)

	fields := decode(t, &output)
	require.Equal(t, string(gas.StatusSuccess), fields[gas.FieldStatus])
	require.Equal(t, map[string]any{gas.ValveState: gas.StateClosed}, fields[gas.FieldDelta])
}

// TestRun_FailedOutcome checks that failed outcomes are printed and returned as errors.
func TestRun_FailedOutcome(t *testing.T) {
	t.Parallel()

	var output bytes.Buffer

	err := Run(context.Background(), &Options{
		ConfigPath:    missingConfig(t),
		ServerAddress: startServer(t),
		Name:          "reconcile",
		Call: func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
			return c.Reconcile(ctx, "esp32-hall", "")
		},
		Output: &output,
	})
	require.ErrorIs(t, err, errRequestFailed)
	require.Equal(t, string(gas.StatusBadRequest), decode(t, &output)[gas.FieldStatus])
}

// TestRun_RequiresCall checks that a call must be configured.
func TestRun_RequiresCall(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{})
	require.ErrorIs(t, err, errCallRequired)
}

// TestRun_WaitStopsOnCancel checks that waiting for an unreachable server ends with the context.
func TestRun_WaitStopsOnCancel(t *testing.T) {
	t.Parallel()

	// Reserve a port and release it so nothing listens there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	address := listener.Addr().String()
	require.NoError(t, listener.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	err = Run(ctx, &Options{
		ConfigPath:    missingConfig(t),
		ServerAddress: address,
		Name:          "status",
		Wait:          true,
		Call: func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
			return c.GetDeviceState(ctx, "esp32-hall")
		},
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
