/*
store.go - Data access interfaces shared by the engine

PURPOSE:
  Defines the only way the rest of the engine touches the database.
  Analytics and ETL accept these interfaces; production wires the
  retrying DB wrapper (resilient.go), tests can hand in anything that
  satisfies them.

KEY INTERFACES:
  Querier: Run / Get / All against the store
  Store:   Querier plus WithTx for explicit transactions

SCAN CALLBACKS:
  Get and All hand rows to a callback instead of returning *sql.Rows.
  The callback may be invoked more than once when an operation is
  retried, so callbacks must build their result from scratch on every
  call (reset slices, don't append to outer state).

SEE ALSO:
  - resilient.go: Retry/reconnect implementation
  - sqlite/sqlite.go: Driver, schema and Opener
*/
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RowFunc scans a single row.
type RowFunc func(row *sql.Row) error

// RowsFunc consumes a full result set. It may be called again on retry.
type RowsFunc func(rows *sql.Rows) error

// Querier executes statements against the store.
type Querier interface {
	// Run executes a statement that returns no rows.
	Run(ctx context.Context, query string, args ...any) (sql.Result, error)

	// Get runs a single-row query and hands the row to scan.
	// sql.ErrNoRows is returned unchanged when nothing matches.
	Get(ctx context.Context, scan RowFunc, query string, args ...any) error

	// All runs a query and hands the result set to scan.
	All(ctx context.Context, scan RowsFunc, query string, args ...any) error
}

// Store is a Querier that can also run an explicit transaction.
type Store interface {
	Querier

	// WithTx runs fn inside one transaction. The Querier passed to fn uses
	// the fast path (no retry). Returning an error rolls back.
	WithTx(ctx context.Context, fn func(tx Querier) error) error
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrClosed is returned when an operation runs after Close.
	ErrClosed = errors.New("store closed")

	// ErrNoOpener is returned when a DB is built without an Opener.
	ErrNoOpener = errors.New("store opener required")
)

// RetryError is returned once the retry budget is spent. It wraps the last
// error seen so errors.Is / errors.As still reach the driver error.
type RetryError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("store %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// scanError marks an error produced by a caller's scan callback. Those are
// programming or data errors, not connection problems, and are not retried.
type scanError struct {
	err error
}

func (e *scanError) Error() string { return e.err.Error() }
func (e *scanError) Unwrap() error { return e.err }
