package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/gas-guard/internal/logger"
)

// Config holds the settings shared by the gas-guard binaries.
type Config struct {
	// LogLevel is the minimum level of emitted log entries.
	LogLevel string `yaml:"log_level" env:"GASGUARD_LOG_LEVEL"`
	// Region is the AWS region used by the AWS-backed stores.
	Region string `yaml:"aws_region" env:"AWS_REGION"`
	// Timeout bounds every store call and RPC.
	Timeout time.Duration `yaml:"timeout" env:"GASGUARD_TIMEOUT"`
	// Server configures the listeners of gasguard-server.
	Server ServerConfig `yaml:"server"`
	// Client configures gasctl.
	Client ClientConfig `yaml:"client"`
	// Shadow selects and configures the Device Shadow Store.
	Shadow ShadowConfig `yaml:"shadow"`
	// EventLog selects and configures the Event Log Store.
	EventLog EventLogConfig `yaml:"event_log"`
	// Telemetry configures trace export.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	// Endpoint is the OTLP/HTTP collector URL; empty disables tracing.
	Endpoint string `yaml:"otlp_endpoint" env:"GASGUARD_OTEL_ENDPOINT"`
}

// ServerConfig holds listen addresses.
type ServerConfig struct {
	// GRPCAddress is the gRPC listen address.
	GRPCAddress string `yaml:"grpc_addr" env:"GASGUARD_GRPC_ADDR"`
	// HTTPAddress is the HTTP listen address; empty disables the HTTP API.
	HTTPAddress string `yaml:"http_addr" env:"GASGUARD_HTTP_ADDR"`
}

// ClientConfig holds client connection parameters.
type ClientConfig struct {
	// ServerAddress is the gRPC address of gasguard-server.
	ServerAddress string `yaml:"server_addr" env:"GASGUARD_SERVER_ADDR"`
}

// ShadowConfig selects the Device Shadow Store backend.
type ShadowConfig struct {
	// Backend is one of ShadowBackends.
	Backend string `yaml:"backend" env:"GASGUARD_SHADOW_BACKEND"`
	// Endpoint is the AWS IoT data endpoint, with or without scheme.
	Endpoint string `yaml:"endpoint" env:"GASGUARD_IOT_ENDPOINT"`
	// ShadowName selects a named shadow; empty means the classic shadow.
	ShadowName string `yaml:"shadow_name" env:"GASGUARD_SHADOW_NAME"`
	// MQTT configures the mqtt backend.
	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig holds broker connection settings for the mqtt shadow backend.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. ssl://xxx-ats.iot.us-east-2.amazonaws.com:8883.
	Broker string `yaml:"broker" env:"GASGUARD_MQTT_BROKER"`
	// ClientID identifies this client to the broker.
	ClientID string `yaml:"client_id" env:"GASGUARD_MQTT_CLIENT_ID"`
	// Username is optional.
	Username string `yaml:"username" env:"GASGUARD_MQTT_USERNAME"`
	// Password is optional.
	Password string `yaml:"password" env:"GASGUARD_MQTT_PASSWORD"`
	// CAFile is the PEM root CA used to verify the broker.
	CAFile string `yaml:"ca_file" env:"GASGUARD_MQTT_CA_FILE"`
	// CertFile and KeyFile hold the client certificate for mutual TLS.
	CertFile string `yaml:"cert_file" env:"GASGUARD_MQTT_CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"GASGUARD_MQTT_KEY_FILE"`
	// QoS is the quality of service used for requests and replies.
	QoS byte `yaml:"qos" env:"GASGUARD_MQTT_QOS"`
}

// EventLogConfig selects the Event Log Store backend.
type EventLogConfig struct {
	// Backend is one of EventLogBackends.
	Backend string `yaml:"backend" env:"GASGUARD_EVENT_LOG_BACKEND"`
	// Table is the DynamoDB table or SQL table name.
	Table string `yaml:"table" env:"GASGUARD_EVENT_LOG_TABLE"`
	// Endpoint overrides the DynamoDB endpoint (DynamoDB Local).
	Endpoint string `yaml:"endpoint" env:"GASGUARD_EVENT_LOG_ENDPOINT"`
	// DSN is the Postgres connection string or the MongoDB URI.
	DSN string `yaml:"dsn" env:"GASGUARD_EVENT_LOG_DSN"`
	// Path is the file of the sqlite and file backends.
	Path string `yaml:"path" env:"GASGUARD_EVENT_LOG_PATH"`
	// Database is the MongoDB database.
	Database string `yaml:"database" env:"GASGUARD_EVENT_LOG_DATABASE"`
	// Collection is the MongoDB collection.
	Collection string `yaml:"collection" env:"GASGUARD_EVENT_LOG_COLLECTION"`
	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"GASGUARD_REDIS_ADDR"`
	Password  string `yaml:"password" env:"GASGUARD_REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"GASGUARD_REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix" env:"GASGUARD_REDIS_KEY_PREFIX"`
}

// Shadow backends.
const (
	ShadowIoTData = "iotdata"
	ShadowMQTT    = "mqtt"
	ShadowMemory  = "memory"
)

// Event log backends.
const (
	EventLogDynamoDB = "dynamodb"
	EventLogPostgres = "postgres"
	EventLogSQLite   = "sqlite"
	EventLogMongo    = "mongo"
	EventLogRedis    = "redis"
	EventLogFile     = "file"
	EventLogMemory   = "memory"
)

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "gas-guard-settings.yaml"

	// DefaultTimeout is the default duration for store calls and RPCs.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default permission for files written by the binaries.
	DefaultFilePermissions = 0o600

	// DefaultRegion is the region of the original deployment.
	DefaultRegion = "us-east-2"

	// DefaultTable is the event log table name.
	DefaultTable = "GasEvents"

	// DefaultSQLTable is the event log table name for SQL backends.
	DefaultSQLTable = "gas_events"

	defaultGRPCAddress   = ":50051"
	defaultHTTPAddress   = ":8080"
	defaultServerAddress = "127.0.0.1:50051"
	defaultMQTTClientID  = "gas-guard"
	defaultSQLitePath    = "gas-events.db"
	defaultFilePath      = "gas-events.json"
	defaultMongoDatabase = "gasguard"
	defaultRedisPrefix   = "gasguard:"
)

var (
	// ShadowBackends lists the supported shadow backends.
	//nolint:gochecknoglobals // Read-only list used for validation and flag help.
	ShadowBackends = []string{ShadowIoTData, ShadowMQTT, ShadowMemory}
	// EventLogBackends lists the supported event log backends.
	//nolint:gochecknoglobals // Read-only list used for validation and flag help.
	EventLogBackends = []string{
		EventLogDynamoDB, EventLogPostgres, EventLogSQLite, EventLogMongo,
		EventLogRedis, EventLogFile, EventLogMemory,
	}

	// sqlIdentifier matches table names safe to interpolate into SQL.
	sqlIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownBackend is returned for unsupported backend names.
	errUnknownBackend = errors.New("unknown backend")
	// errSettingRequired is returned when a backend misses a mandatory setting.
	errSettingRequired = errors.New("setting is required")
	// errInvalidSetting is returned for malformed values.
	errInvalidSetting = errors.New("invalid setting")
)

// Load reads configuration from the YAML file at path, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := new(Config)
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOptional behaves like Load but starts from an empty configuration when the file does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}

	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := new(Config)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings of the selected backends.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", errInvalidSetting, cfg.LogLevel)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	if err := validateServer(&cfg.Server, &cfg.Client); err != nil {
		return err
	}

	if err := validateShadow(&cfg.Shadow); err != nil {
		return err
	}

	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}

	return validateEventLog(&cfg.EventLog)
}

func validateTelemetry(telemetry *TelemetryConfig) error {
	if telemetry.Endpoint == "" {
		return nil
	}

	parsed, err := url.Parse(telemetry.Endpoint)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%w: telemetry.otlp_endpoint %q", errInvalidSetting, telemetry.Endpoint)
	}

	return nil
}

func validateServer(server *ServerConfig, client *ClientConfig) error {
	if server.GRPCAddress == "" {
		server.GRPCAddress = defaultGRPCAddress
	}

	if client.ServerAddress == "" {
		client.ServerAddress = defaultServerAddress
	}

	for _, address := range []string{server.GRPCAddress, server.HTTPAddress, client.ServerAddress} {
		if address == "" {
			continue
		}

		if _, err := net.ResolveTCPAddr("tcp", address); err != nil {
			return fmt.Errorf("%w: address %q: %w", errInvalidSetting, address, err)
		}
	}

	return nil
}

func validateShadow(shadow *ShadowConfig) error {
	if shadow.Backend == "" {
		shadow.Backend = ShadowIoTData
	}

	switch shadow.Backend {
	case ShadowIoTData:
		if shadow.Endpoint == "" {
			return fmt.Errorf("%w: shadow.endpoint", errSettingRequired)
		}

		endpoint, err := NormalizeEndpoint(shadow.Endpoint)
		if err != nil {
			return err
		}

		shadow.Endpoint = endpoint
	case ShadowMQTT:
		if shadow.MQTT.Broker == "" {
			return fmt.Errorf("%w: shadow.mqtt.broker", errSettingRequired)
		}

		if shadow.MQTT.ClientID == "" {
			shadow.MQTT.ClientID = defaultMQTTClientID
		}

		if shadow.MQTT.QoS > 1 {
			return fmt.Errorf("%w: shadow.mqtt.qos must be 0 or 1", errInvalidSetting)
		}

		if (shadow.MQTT.CertFile == "") != (shadow.MQTT.KeyFile == "") {
			return fmt.Errorf("%w: shadow.mqtt.cert_file and key_file go together", errInvalidSetting)
		}
	case ShadowMemory:
	default:
		return fmt.Errorf("%w: shadow.backend %q (want one of %s)",
			errUnknownBackend, shadow.Backend, strings.Join(ShadowBackends, ", "))
	}

	return nil
}

//nolint:cyclop // One branch per backend reads better than a lookup of closures.
func validateEventLog(eventLog *EventLogConfig) error {
	if eventLog.Backend == "" {
		eventLog.Backend = EventLogDynamoDB
	}

	if !slices.Contains(EventLogBackends, eventLog.Backend) {
		return fmt.Errorf("%w: event_log.backend %q (want one of %s)",
			errUnknownBackend, eventLog.Backend, strings.Join(EventLogBackends, ", "))
	}

	switch eventLog.Backend {
	case EventLogDynamoDB:
		if eventLog.Table == "" {
			eventLog.Table = DefaultTable
		}

		if eventLog.Endpoint != "" {
			endpoint, err := NormalizeEndpoint(eventLog.Endpoint)
			if err != nil {
				return err
			}

			eventLog.Endpoint = endpoint
		}
	case EventLogPostgres, EventLogSQLite:
		if eventLog.Table == "" {
			eventLog.Table = DefaultSQLTable
		}

		if !sqlIdentifier.MatchString(eventLog.Table) {
			return fmt.Errorf("%w: event_log.table %q", errInvalidSetting, eventLog.Table)
		}

		if eventLog.Backend == EventLogPostgres && eventLog.DSN == "" {
			return fmt.Errorf("%w: event_log.dsn", errSettingRequired)
		}

		if eventLog.Backend == EventLogSQLite && eventLog.Path == "" {
			eventLog.Path = defaultSQLitePath
		}
	case EventLogMongo:
		if eventLog.DSN == "" {
			return fmt.Errorf("%w: event_log.dsn", errSettingRequired)
		}

		if eventLog.Database == "" {
			eventLog.Database = defaultMongoDatabase
		}

		if eventLog.Collection == "" {
			eventLog.Collection = DefaultSQLTable
		}
	case EventLogRedis:
		if eventLog.Redis.Addr == "" {
			return fmt.Errorf("%w: event_log.redis.addr", errSettingRequired)
		}

		if eventLog.Redis.KeyPrefix == "" {
			eventLog.Redis.KeyPrefix = defaultRedisPrefix
		}
	case EventLogFile:
		if eventLog.Path == "" {
			eventLog.Path = defaultFilePath
		}
	}

	return nil
}

// NormalizeEndpoint turns a bare host such as xxx-ats.iot.us-east-2.amazonaws.com into an https URL.
func NormalizeEndpoint(endpoint string) (string, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	parsed, err := url.ParseRequestURI(endpoint)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: endpoint %q", errInvalidSetting, endpoint)
	}

	return strings.TrimSuffix(endpoint, "/"), nil
}
