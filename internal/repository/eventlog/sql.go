package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/oshokin/gas-guard/internal/domain/gas"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	// name is the database/sql driver name.
	name string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
}

var (
	postgresDialect = dialect{
		name:        "postgres",
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
	sqliteDialect = dialect{
		name:        "sqlite",
		placeholder: func(int) string { return "?" },
	}
)

// SQLStore writes records into a relational table with an upsert on (thing_name, timestamp).
// The table name must be a plain identifier; configuration validates it.
type SQLStore struct {
	// db is the shared connection pool.
	db *sql.DB
	// table is the event table name.
	table string
	// dialect renders driver-specific SQL.
	dialect dialect
}

// EnsureSchema creates the event table when it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	thing_name TEXT NOT NULL,
	"timestamp" BIGINT NOT NULL,
	gas_level_ppm DOUBLE PRECISION,
	gas_level_state TEXT NOT NULL,
	valve_state TEXT,
	fan_state TEXT,
	PRIMARY KEY (thing_name, "timestamp")
)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.dialect.name, err)
	}

	return nil
}

// Append upserts the record.
func (s *SQLStore) Append(ctx context.Context, record *gas.EventRecord) error {
	_, err := s.db.ExecContext(ctx, s.upsertQuery(),
		record.DeviceID,
		record.Timestamp,
		nullable(record.GasLevelPPM),
		record.GasLevelState,
		nullable(record.ValveState),
		nullable(record.FanState),
	)
	if err != nil {
		return fmt.Errorf("upsert event record: %w", err)
	}

	return nil
}

// Get reads the record at (deviceID, timestamp).
func (s *SQLStore) Get(ctx context.Context, deviceID string, timestamp int64) (*gas.EventRecord, error) {
	query := fmt.Sprintf(
		`SELECT gas_level_ppm, gas_level_state, valve_state, fan_state FROM %s WHERE thing_name = %s AND "timestamp" = %s`,
		s.table, s.dialect.placeholder(1), s.dialect.placeholder(2),
	)

	var (
		ppm        sql.NullFloat64
		state      string
		valveState sql.NullString
		fanState   sql.NullString
	)

	err := s.db.QueryRowContext(ctx, query, deviceID, timestamp).Scan(&ppm, &state, &valveState, &fanState)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(deviceID, timestamp)
		}

		return nil, fmt.Errorf("select event record: %w", err)
	}

	record := &gas.EventRecord{
		DeviceID:      deviceID,
		Timestamp:     timestamp,
		GasLevelState: state,
	}

	if ppm.Valid {
		record.GasLevelPPM = &ppm.Float64
	}

	if valveState.Valid {
		record.ValveState = &valveState.String
	}

	if fanState.Valid {
		record.FanState = &fanState.String
	}

	return record, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// upsertQuery renders the insert-or-replace statement of the dialect.
func (s *SQLStore) upsertQuery() string {
	placeholders := make([]string, 0, 6)
	for n := 1; n <= 6; n++ {
		placeholders = append(placeholders, s.dialect.placeholder(n))
	}

	return fmt.Sprintf(`INSERT INTO %s (thing_name, "timestamp", gas_level_ppm, gas_level_state, valve_state, fan_state)
VALUES (%s)
ON CONFLICT (thing_name, "timestamp") DO UPDATE SET
	gas_level_ppm = excluded.gas_level_ppm,
	gas_level_state = excluded.gas_level_state,
	valve_state = excluded.valve_state,
	fan_state = excluded.fan_state`, s.table, strings.Join(placeholders, ", "))
}

// nullable turns a nil pointer into a SQL NULL.
func nullable[T any](value *T) any {
	if value == nil {
		return nil
	}

	return *value
}
