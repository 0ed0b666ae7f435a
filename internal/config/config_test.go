package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate_Defaults checks defaults are filled for a minimal AWS configuration.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Shadow: ShadowConfig{Endpoint: "a2qtonmyilc0yl-ats.iot.us-east-2.amazonaws.com"},
	}

	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DefaultRegion, cfg.Region)
	require.Equal(t, ShadowIoTData, cfg.Shadow.Backend)
	require.Equal(t, "https://a2qtonmyilc0yl-ats.iot.us-east-2.amazonaws.com", cfg.Shadow.Endpoint)
	require.Equal(t, EventLogDynamoDB, cfg.EventLog.Backend)
	require.Equal(t, DefaultTable, cfg.EventLog.Table)
	require.Equal(t, ":50051", cfg.Server.GRPCAddress)
	require.Equal(t, "127.0.0.1:50051", cfg.Client.ServerAddress)
}

// TestValidate_Errors covers required settings and malformed values.
func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	cases := map[string]*Config{
		"missing endpoint": {},
		"unknown shadow":   {Shadow: ShadowConfig{Backend: "zigbee"}},
		"missing broker":   {Shadow: ShadowConfig{Backend: ShadowMQTT}},
		"bad qos": {Shadow: ShadowConfig{
			Backend: ShadowMQTT,
			MQTT:    MQTTConfig{Broker: "tcp://localhost:1883", QoS: 2},
		}},
		"half mtls": {Shadow: ShadowConfig{
			Backend: ShadowMQTT,
			MQTT:    MQTTConfig{Broker: "tcp://localhost:1883", CertFile: "cert.pem"},
		}},
		"unknown log":   {Shadow: ShadowConfig{Backend: ShadowMemory}, EventLog: EventLogConfig{Backend: "kafka"}},
		"postgres dsn":  {Shadow: ShadowConfig{Backend: ShadowMemory}, EventLog: EventLogConfig{Backend: EventLogPostgres}},
		"mongo dsn":     {Shadow: ShadowConfig{Backend: ShadowMemory}, EventLog: EventLogConfig{Backend: EventLogMongo}},
		"redis addr":    {Shadow: ShadowConfig{Backend: ShadowMemory}, EventLog: EventLogConfig{Backend: EventLogRedis}},
		"bad log level": {LogLevel: "verbose", Shadow: ShadowConfig{Backend: ShadowMemory}},
		"bad address":   {Server: ServerConfig{GRPCAddress: "bad:address"}, Shadow: ShadowConfig{Backend: ShadowMemory}},
		"bad otlp endpoint": {
			Shadow:    ShadowConfig{Backend: ShadowMemory},
			Telemetry: TelemetryConfig{Endpoint: "collector:4318"},
		},
		"sql injection": {
			Shadow:   ShadowConfig{Backend: ShadowMemory},
			EventLog: EventLogConfig{Backend: EventLogSQLite, Table: "events; DROP TABLE x"},
		},
	}

	for name, cfg := range cases {
		require.Error(t, Validate(cfg), name)
	}
}

// TestValidate_BackendDefaults checks per-backend defaults.
func TestValidate_BackendDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Shadow:   ShadowConfig{Backend: ShadowMQTT, MQTT: MQTTConfig{Broker: "tcp://localhost:1883"}},
		EventLog: EventLogConfig{Backend: EventLogSQLite},
	}

	require.NoError(t, Validate(cfg))
	require.Equal(t, "gas-guard", cfg.Shadow.MQTT.ClientID)
	require.Equal(t, DefaultSQLTable, cfg.EventLog.Table)
	require.Equal(t, "gas-events.db", cfg.EventLog.Path)

	cfg = &Config{
		Shadow:   ShadowConfig{Backend: ShadowMemory},
		EventLog: EventLogConfig{Backend: EventLogRedis, Redis: RedisConfig{Addr: "127.0.0.1:6379"}},
	}

	require.NoError(t, Validate(cfg))
	require.Equal(t, "gasguard:", cfg.EventLog.Redis.KeyPrefix)
}

// TestNormalizeEndpoint accepts bare hosts and URLs.
func TestNormalizeEndpoint(t *testing.T) {
	t.Parallel()

	got, err := NormalizeEndpoint("example.iot.amazonaws.com")
	require.NoError(t, err)
	require.Equal(t, "https://example.iot.amazonaws.com", got)

	got, err = NormalizeEndpoint("http://localhost:8000/")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000", got)

	_, err = NormalizeEndpoint("https://")
	require.Error(t, err)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	settings := &Config{
		Timeout:  3 * time.Second,
		Shadow:   ShadowConfig{Backend: ShadowMemory},
		EventLog: EventLogConfig{Backend: EventLogFile, Path: "events.json"},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.Timeout, loaded.Timeout)
	require.Equal(t, ShadowMemory, loaded.Shadow.Backend)
	require.Equal(t, "events.json", loaded.EventLog.Path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoad_EnvOverrides verifies environment variables win over the file.
//
//nolint:paralleltest // t.Setenv cannot be used in parallel tests.
func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shadow:\n  backend: memory\nevent_log:\n  backend: file\n"), 0o600))

	t.Setenv("GASGUARD_EVENT_LOG_BACKEND", "sqlite")
	t.Setenv("GASGUARD_EVENT_LOG_PATH", "/tmp/events.db")
	t.Setenv("GASGUARD_TIMEOUT", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, EventLogSQLite, cfg.EventLog.Backend)
	require.Equal(t, "/tmp/events.db", cfg.EventLog.Path)
	require.Equal(t, 2*time.Second, cfg.Timeout)
	require.Equal(t, ShadowMemory, cfg.Shadow.Backend)
}

// TestLoadOptional_FallsBackToEnv builds the configuration when no file exists.
//
//nolint:paralleltest // t.Setenv cannot be used in parallel tests.
func TestLoadOptional_FallsBackToEnv(t *testing.T) {
	t.Setenv("GASGUARD_SHADOW_BACKEND", "memory")
	t.Setenv("GASGUARD_EVENT_LOG_BACKEND", "memory")

	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, ShadowMemory, cfg.Shadow.Backend)
	require.Equal(t, EventLogMemory, cfg.EventLog.Backend)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
