package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	// Registers the pure Go sqlite driver.
	_ "modernc.org/sqlite"
)

// sqlitePragmas enables WAL and waits on locks instead of failing with SQLITE_BUSY.
const sqlitePragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// NewSQLiteStore wraps an open SQLite handle.
func NewSQLiteStore(db *sql.DB, table string) *SQLStore {
	return &SQLStore{
		db:      db,
		table:   table,
		dialect: sqliteDialect,
	}
}

// OpenSQLite opens the database file at path and creates the event table if needed.
func OpenSQLite(ctx context.Context, path, table string) (*SQLStore, error) {
	db, err := sql.Open(sqliteDialect.name, filepath.Clean(path)+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// A single writer avoids lock contention inside the process.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := NewSQLiteStore(db, table)
	if err = store.EnsureSchema(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return store, nil
}
