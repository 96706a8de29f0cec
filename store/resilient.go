/*
resilient.go - Retrying, reconnecting access to the embedded store

PURPOSE:
  Every read and write the engine performs goes through DB. It keeps the
  dashboard answering while SQLite is briefly locked by an upload, and
  recovers from a connection that has gone bad.

FAILURE CLASSIFICATION:
  Busy / locked      Retry on the same connection after
                     BaseDelay * 2^(attempt-1).
  Anything else      Reopen the connection through the Opener, wait
                     ReconnectDelay, retry.
  Not retried        Context cancellation, sql.ErrNoRows, constraint
                     violations, errors returned by scan callbacks.

  MaxRetries bounds the total number of attempts. When it is spent the
  last error is returned wrapped in *RetryError.

FAST PATH:
  WithTx hands its callback a Tx whose calls go straight to *sql.Tx.
  Retrying a single statement in the middle of a transaction would
  replay it against a half-applied batch, so only BEGIN is retried.

HEALTH:
  Ping runs SELECT 1 through the retry path. Healthy() is false until a
  Ping has succeeded and goes false again when one fails.

SEE ALSO:
  - store.go: Interfaces and error types
  - sqlite/sqlite.go: Opener for the production database
*/
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/warp/revenue-engine/telemetry"
)

// Opener creates a fresh connection pool. It is called once by New and
// again on every reconnect.
type Opener func(ctx context.Context) (*sql.DB, error)

// Config bounds the retry behaviour.
type Config struct {
	MaxRetries     int
	BaseDelay      time.Duration
	ReconnectDelay time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		BaseDelay:      100 * time.Millisecond,
		ReconnectDelay: time.Second,
	}
}

// Option customises a DB.
type Option func(*DB)

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l zerolog.Logger) Option {
	return func(d *DB) { d.logger = l }
}

// WithMetrics attaches retry counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *DB) { d.metrics = m }
}

// WithSleep replaces the delay function. Tests use it to record delays
// instead of waiting.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(d *DB) { d.sleep = fn }
}

// DB is the retrying Store implementation.
type DB struct {
	open    Opener
	cfg     Config
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	sleep   func(ctx context.Context, d time.Duration) error

	mu      sync.RWMutex
	conn    *sql.DB
	closed  bool
	healthy atomic.Bool
}

var _ Store = (*DB)(nil)

// New opens the initial connection and returns a ready DB.
func New(ctx context.Context, open Opener, cfg Config, opts ...Option) (*DB, error) {
	if open == nil {
		return nil, ErrNoOpener
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}

	d := &DB{
		open:   open,
		cfg:    cfg,
		logger: zerolog.Nop(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}

	conn, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	d.conn = conn
	return d, nil
}

// Close closes the underlying connection. Later calls fail with ErrClosed.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.healthy.Store(false)
	return d.conn.Close()
}

// =============================================================================
// RETRYING OPERATIONS
// =============================================================================

// Run executes a statement that returns no rows.
func (d *DB) Run(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := d.do(ctx, "run", func(conn *sql.DB) error {
		r, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

// Get runs a single-row query.
func (d *DB) Get(ctx context.Context, scan RowFunc, query string, args ...any) error {
	return d.do(ctx, "get", func(conn *sql.DB) error {
		return scanRow(conn.QueryRowContext(ctx, query, args...), scan)
	})
}

// All runs a query and hands the result set to scan.
func (d *DB) All(ctx context.Context, scan RowsFunc, query string, args ...any) error {
	return d.do(ctx, "all", func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		return scanRows(rows, scan)
	})
}

// Ping runs the health check query.
func (d *DB) Ping(ctx context.Context) error {
	var one int
	err := d.Get(ctx, func(row *sql.Row) error { return row.Scan(&one) }, "SELECT 1")
	if err == nil && one != 1 {
		err = fmt.Errorf("unexpected health check result %d", one)
	}
	d.healthy.Store(err == nil)
	return err
}

// Healthy reports whether the last health check succeeded.
func (d *DB) Healthy() bool {
	return d.healthy.Load()
}

// =============================================================================
// TRANSACTIONS (fast path)
// =============================================================================

// WithTx runs fn in a transaction. Only BEGIN is retried.
func (d *DB) WithTx(ctx context.Context, fn func(tx Querier) error) error {
	var sqlTx *sql.Tx
	err := d.do(ctx, "begin", func(conn *sql.DB) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		sqlTx = tx
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Tx is the non-retrying Querier used inside WithTx.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Run(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *Tx) Get(ctx context.Context, scan RowFunc, query string, args ...any) error {
	return unwrapScan(scanRow(t.tx.QueryRowContext(ctx, query, args...), scan))
}

func (t *Tx) All(ctx context.Context, scan RowsFunc, query string, args ...any) error {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	return unwrapScan(scanRows(rows, scan))
}

// =============================================================================
// RETRY LOOP
// =============================================================================

func (d *DB) do(ctx context.Context, op string, fn func(conn *sql.DB) error) error {
	attempts := d.cfg.MaxRetries
	logger := d.log(ctx)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := d.current()
		if err != nil {
			return err
		}

		err = fn(conn)
		if err == nil {
			return nil
		}
		lastErr = err

		if !d.retryable(ctx, err) {
			return unwrapScan(err)
		}
		if attempt == attempts {
			break
		}

		if IsBusy(err) {
			delay := d.cfg.BaseDelay * time.Duration(1<<(attempt-1))
			logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).
				Dur("delay", delay).Msg("store busy, backing off")
			d.metrics.ObserveRetry(op, telemetry.ReasonBusy)
			if err := d.sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("store error, reconnecting")
		d.metrics.ObserveRetry(op, telemetry.ReasonReconnect)
		if rerr := d.reconnect(ctx, conn); rerr != nil {
			if errors.Is(rerr, ErrClosed) {
				return rerr
			}
			logger.Error().Err(rerr).Str("op", op).Msg("reconnect failed")
		}
		if err := d.sleep(ctx, d.cfg.ReconnectDelay); err != nil {
			return err
		}
	}

	d.metrics.ObserveExhausted(op)
	logger.Error().Err(lastErr).Str("op", op).Int("attempts", attempts).Msg("store retries exhausted")
	return &RetryError{Op: op, Attempts: attempts, Err: lastErr}
}

func (d *DB) current() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	return d.conn, nil
}

// reconnect swaps in a new connection unless another caller already did.
// The stale pool is closed only once the replacement is open.
func (d *DB) reconnect(ctx context.Context, stale *sql.DB) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if d.conn != stale {
		return nil
	}

	conn, err := d.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to reconnect: %w", err)
	}
	_ = stale.Close()
	d.conn = conn
	d.healthy.Store(false)
	return nil
}

func (d *DB) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *scanError
	switch {
	case errors.As(err, &se),
		errors.Is(err, sql.ErrNoRows),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrClosed),
		IsConstraint(err):
		return false
	}
	return true
}

func (d *DB) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &d.logger
}

// =============================================================================
// HELPERS
// =============================================================================

// IsBusy reports whether err means the database was busy or locked.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

// IsConstraint reports whether err is a constraint violation.
func IsConstraint(err error) bool {
	if err == nil {
		return false
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanRow runs scan on row. sql.Row defers stepping to Scan, so a busy or
// broken connection surfaces from inside the callback; only errors that
// did not come from the driver are treated as scan errors.
func scanRow(row *sql.Row, scan RowFunc) error {
	if err := row.Err(); err != nil {
		return err
	}
	if err := scan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isDriverError(err) {
			return err
		}
		return &scanError{err: err}
	}
	return nil
}

func scanRows(rows *sql.Rows, scan RowsFunc) error {
	serr := scan(rows)
	if err := rows.Err(); err != nil {
		return err
	}
	if serr != nil {
		if isDriverError(serr) {
			return serr
		}
		return &scanError{err: serr}
	}
	return nil
}

// isDriverError reports whether err was raised by the database rather than
// by the caller's scan logic.
func isDriverError(err error) bool {
	var se sqlite3.Error
	return IsBusy(err) ||
		errors.As(err, &se) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone)
}

func unwrapScan(err error) error {
	var se *scanError
	if errors.As(err, &se) {
		return se.err
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
