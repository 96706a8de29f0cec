/*
Package sqlite opens the embedded SQLite database behind the engine.

PURPOSE:
  Owns the driver, connection settings and schema. It does not run
  queries for the engine: everything above this package goes through
  store.DB, which calls Opener again whenever it needs to reconnect.

KEY TABLE:
  revenue_records: one row per (customer, service_type, year, month).
    The UNIQUE constraint on the natural key is what makes ingestion an
    upsert. calendar_days is derived from (year, month); days is the
    validated "days worked" value and may differ.

INDEXES:
  - idx_revenue_year_month: analysis-period validation and every
    aggregate filter on (year, month)
  - idx_revenue_service / idx_revenue_business_unit: grouped breakdowns

WAL MODE:
  File databases use WAL and a busy timeout so dashboard reads keep
  working while an upload transaction is open. Remaining SQLITE_BUSY
  errors are retried by store.DB.

IN-MEMORY DATABASES:
  ":memory:" is turned into a named shared-cache database
  (file:revenue-<uuid>?mode=memory&cache=shared), one name per Opener.
  Every pool the Opener hands out sees the same data, and store.DB opens
  the replacement pool before closing the stale one, so a reconnect keeps
  the records. The pool is pinned to one connection.

USAGE:
  db, err := store.New(ctx, sqlite.Opener("./data/revenue.db"), cfg)
  if err != nil {
      return err
  }
  defer db.Close()

SEE ALSO:
  - store/resilient.go: Retry / reconnect wrapper
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/revenue-engine/store"
)

const schema = `
	CREATE TABLE IF NOT EXISTS revenue_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer TEXT NOT NULL,
		service_type TEXT NOT NULL,
		business_unit TEXT NOT NULL DEFAULT 'Unassigned',
		year INTEGER NOT NULL,
		month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
		revenue REAL NOT NULL DEFAULT 0,
		target REAL NOT NULL DEFAULT 0,
		original_target REAL NOT NULL DEFAULT 0,
		cost REAL NOT NULL DEFAULT 0,
		original_cost REAL NOT NULL DEFAULT 0,
		receivables_collected REAL NOT NULL DEFAULT 0,
		days REAL NOT NULL DEFAULT 0,
		calendar_days INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(customer, service_type, year, month)
	);

	CREATE INDEX IF NOT EXISTS idx_revenue_year_month
		ON revenue_records(year, month);
	CREATE INDEX IF NOT EXISTS idx_revenue_service
		ON revenue_records(service_type, year, month);
	CREATE INDEX IF NOT EXISTS idx_revenue_business_unit
		ON revenue_records(business_unit, year, month);
	CREATE INDEX IF NOT EXISTS idx_revenue_customer
		ON revenue_records(customer, year, month);
`

// Open opens the database at path and migrates the schema.
// Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if isMemory(path) {
		path = sharedMemory()
	}
	return open(ctx, path)
}

// Opener returns a store.Opener for path. All connections opened by one
// Opener share the same in-memory database when path is ":memory:".
func Opener(path string) store.Opener {
	if isMemory(path) {
		path = sharedMemory()
	}
	return func(ctx context.Context) (*sql.DB, error) {
		return open(ctx, path)
	}
}

func open(ctx context.Context, path string) (*sql.DB, error) {
	memory := strings.Contains(path, "mode=memory")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_foreign_keys=on&_busy_timeout=5000"
	if !memory {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

func sharedMemory() string {
	return "file:revenue-" + uuid.NewString() + "?mode=memory&cache=shared"
}

// Reset deletes every revenue record. Demo scenarios use it before loading.
func Reset(ctx context.Context, q store.Querier) error {
	if _, err := q.Run(ctx, "DELETE FROM revenue_records"); err != nil {
		return fmt.Errorf("failed to reset revenue records: %w", err)
	}
	return nil
}
