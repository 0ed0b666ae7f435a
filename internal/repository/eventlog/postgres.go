package eventlog

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the postgres driver.
	_ "github.com/lib/pq"
)

// NewPostgresStore wraps an open Postgres pool.
func NewPostgresStore(db *sql.DB, table string) *SQLStore {
	return &SQLStore{
		db:      db,
		table:   table,
		dialect: postgresDialect,
	}
}

// OpenPostgres connects to Postgres and creates the event table if needed.
func OpenPostgres(ctx context.Context, dsn, table string) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := NewPostgresStore(db, table)
	if err = store.EnsureSchema(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return store, nil
}
