package eventlog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/domain/gas"
)

// RedisStore keeps each record in a hash at <prefix>event:<device>:<timestamp>
// and indexes the timestamps of a device in a sorted set at <prefix>index:<device>.
// Absent optional fields are not written to the hash.
type RedisStore struct {
	// client is the Redis connection pool.
	client *redis.Client
	// prefix namespaces every key.
	prefix string
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// OpenRedis connects to Redis using cfg.
func OpenRedis(ctx context.Context, cfg *config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisStore(client, cfg.KeyPrefix), nil
}

// Append replaces the record hash and indexes its timestamp in one MULTI/EXEC.
func (s *RedisStore) Append(ctx context.Context, record *gas.EventRecord) error {
	key := s.recordKey(record.DeviceID, record.Timestamp)

	values := map[string]any{
		gas.DeviceIDAttribute:  record.DeviceID,
		gas.TimestampAttribute: record.Timestamp,
		gas.GasLevelState:      record.GasLevelState,
	}

	if record.GasLevelPPM != nil {
		values[gas.GasLevelPPM] = strconv.FormatFloat(*record.GasLevelPPM, 'f', -1, 64)
	}

	if record.ValveState != nil {
		values[gas.ValveState] = *record.ValveState
	}

	if record.FanState != nil {
		values[gas.FanState] = *record.FanState
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// Drop fields of a previous record with the same key.
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		pipe.ZAdd(ctx, s.indexKey(record.DeviceID), &redis.Z{
			Score:  float64(record.Timestamp),
			Member: record.Timestamp,
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("write event record: %w", err)
	}

	return nil
}

// Get reads the record at (deviceID, timestamp).
func (s *RedisStore) Get(ctx context.Context, deviceID string, timestamp int64) (*gas.EventRecord, error) {
	values, err := s.client.HGetAll(ctx, s.recordKey(deviceID, timestamp)).Result()
	if err != nil {
		return nil, fmt.Errorf("read event record: %w", err)
	}

	if len(values) == 0 {
		return nil, notFound(deviceID, timestamp)
	}

	record := &gas.EventRecord{
		DeviceID:      deviceID,
		Timestamp:     timestamp,
		GasLevelState: values[gas.GasLevelState],
	}

	if raw, ok := values[gas.GasLevelPPM]; ok {
		ppm, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", gas.GasLevelPPM, err)
		}

		record.GasLevelPPM = &ppm
	}

	if valveState, ok := values[gas.ValveState]; ok {
		record.ValveState = &valveState
	}

	if fanState, ok := values[gas.FanState]; ok {
		record.FanState = &fanState
	}

	return record, nil
}

// Timestamps lists the recorded timestamps of a device in ascending order.
func (s *RedisStore) Timestamps(ctx context.Context, deviceID string) ([]int64, error) {
	members, err := s.client.ZRange(ctx, s.indexKey(deviceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read event index: %w", err)
	}

	timestamps := make([]int64, 0, len(members))

	for _, member := range members {
		timestamp, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse event index: %w", err)
		}

		timestamps = append(timestamps, timestamp)
	}

	return timestamps, nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Record and index keys live in separate namespaces so device ids containing ":" cannot collide.
const (
	recordNamespace = "event:"
	indexNamespace  = "index:"
)

func (s *RedisStore) recordKey(deviceID string, timestamp int64) string {
	return s.prefix + recordNamespace + deviceID + ":" + strconv.FormatInt(timestamp, 10)
}

func (s *RedisStore) indexKey(deviceID string) string {
	return s.prefix + indexNamespace + deviceID
}
