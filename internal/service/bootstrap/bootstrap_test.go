package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/repository/eventlog"
	"github.com/oshokin/gas-guard/internal/repository/shadow"
	"github.com/oshokin/gas-guard/internal/service/recorder"
)

// localConfig returns a validated configuration using local backends.
func localConfig(t *testing.T, eventLog config.EventLogConfig) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Shadow:   config.ShadowConfig{Backend: config.ShadowMemory},
		EventLog: eventLog,
	}
	require.NoError(t, config.Validate(cfg))

	return cfg
}

// TestBuild_LocalBackends asserts every local event log backend can be built and closed.
func TestBuild_LocalBackends(t *testing.T) {
	t.Parallel()

	redisServer := miniredis.RunT(t)

	tests := []struct {
		name     string
		eventLog config.EventLogConfig
	}{
		{name: "memory", eventLog: config.EventLogConfig{Backend: config.EventLogMemory}},
		{name: "file", eventLog: config.EventLogConfig{Backend: config.EventLogFile, Path: filepath.Join(t.TempDir(), "events.json")}},
		{name: "sqlite", eventLog: config.EventLogConfig{Backend: config.EventLogSQLite, Path: filepath.Join(t.TempDir(), "events.db")}},
		{
			name: "redis",
			eventLog: config.EventLogConfig{
				Backend: config.EventLogRedis,
				Redis:   config.RedisConfig{Addr: redisServer.Addr()},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			deps, err := Build(ctx, localConfig(t, tt.eventLog))
			require.NoError(t, err)
			require.IsType(t, &shadow.MemoryStore{}, deps.Shadow)

			memoryShadow, _ := deps.Shadow.(*shadow.MemoryStore)
			require.NoError(t, memoryShadow.MergeReported(ctx, "esp32-01", map[string]any{gas.GasLevelState: "seguro"}))

			timestamp := int64(1700000000)
			result := deps.Recorder().Record(ctx, recorder.Request{DeviceID: "esp32-01", Timestamp: &timestamp})
			require.Equal(t, gas.StatusSuccess, result.Status)

			record, err := deps.Events.Get(ctx, "esp32-01", timestamp)
			require.NoError(t, err)
			require.Equal(t, "seguro", record.GasLevelState)

			require.NoError(t, deps.Close(ctx))
		})
	}
}

// TestBuild_UnreachableBackend asserts connection failures are reported.
func TestBuild_UnreachableBackend(t *testing.T) {
	t.Parallel()

	redisServer := miniredis.RunT(t)
	addr := redisServer.Addr()
	redisServer.Close()

	_, err := Build(context.Background(), localConfig(t, config.EventLogConfig{
		Backend: config.EventLogRedis,
		Redis:   config.RedisConfig{Addr: addr},
	}))
	require.Error(t, err)
}

// TestNew asserts services share the given stores.
func TestNew(t *testing.T) {
	t.Parallel()

	deps := New(shadow.NewMemoryStore(), eventlog.NewMemoryRepository())
	require.NotNil(t, deps.Reconciler())
	require.NotNil(t, deps.Recorder())
	require.NotNil(t, deps.Control())
	require.NoError(t, deps.Close(context.Background()))
}
