package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/revenue-engine/store"
	"github.com/warp/revenue-engine/store/sqlite"
)

func TestOpen_MemoryMigratesAndPings(t *testing.T) {
	ctx := context.Background()
	db, err := store.New(ctx, sqlite.Opener(":memory:"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Ping(ctx))
	assert.True(t, db.Healthy())

	_, err = db.Run(ctx, `
		INSERT INTO revenue_records (customer, service_type, year, month, calendar_days, created_at, updated_at)
		VALUES ('Acme', 'Cloud', 2025, 1, 31, 'now', 'now')`)
	require.NoError(t, err)
}

func TestOpen_NaturalKeyIsUnique(t *testing.T) {
	ctx := context.Background()
	db, err := store.New(ctx, sqlite.Opener(":memory:"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	insert := `
		INSERT INTO revenue_records (customer, service_type, year, month, calendar_days, created_at, updated_at)
		VALUES ('Acme', 'Cloud', 2025, 2, 28, 'now', 'now')`
	_, err = db.Run(ctx, insert)
	require.NoError(t, err)

	// WHEN: the same natural key is inserted again without upsert
	_, err = db.Run(ctx, insert)

	// THEN: constraint violations are surfaced immediately, not retried
	require.Error(t, err)
	assert.True(t, store.IsConstraint(err))
	var retryErr *store.RetryError
	assert.NotErrorAs(t, err, &retryErr)
}

func TestOpen_RejectsInvalidMonth(t *testing.T) {
	ctx := context.Background()
	db, err := store.New(ctx, sqlite.Opener(":memory:"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Run(ctx, `
		INSERT INTO revenue_records (customer, service_type, year, month, calendar_days, created_at, updated_at)
		VALUES ('Acme', 'Cloud', 2025, 13, 31, 'now', 'now')`)
	assert.Error(t, err)
}

func TestReset_ClearsRecords(t *testing.T) {
	ctx := context.Background()
	db, err := store.New(ctx, sqlite.Opener(":memory:"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Run(ctx, `
		INSERT INTO revenue_records (customer, service_type, year, month, calendar_days, created_at, updated_at)
		VALUES ('Acme', 'Cloud', 2025, 3, 31, 'now', 'now')`)
	require.NoError(t, err)

	require.NoError(t, sqlite.Reset(ctx, db))

	var n int
	require.NoError(t, db.Get(ctx, func(row *sql.Row) error { return row.Scan(&n) }, "SELECT COUNT(*) FROM revenue_records"))
	assert.Zero(t, n)
}

func countRecords(t *testing.T, db store.Querier) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(context.Background(), func(row *sql.Row) error { return row.Scan(&n) },
		"SELECT COUNT(*) FROM revenue_records"))
	return n
}

func TestOpener_MemoryReconnectKeepsRecords(t *testing.T) {
	// GIVEN: one record in an in-memory store
	ctx := context.Background()
	cfg := store.Config{MaxRetries: 3, BaseDelay: time.Millisecond, ReconnectDelay: time.Millisecond}
	db, err := store.New(ctx, sqlite.Opener(":memory:"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Run(ctx, `
		INSERT INTO revenue_records (customer, service_type, year, month, calendar_days, created_at, updated_at)
		VALUES ('Acme', 'Cloud', 2025, 4, 30, 'now', 'now')`)
	require.NoError(t, err)

	// WHEN: a bad statement drives the store through its reconnect path
	_, err = db.Run(ctx, `INSERT INTO revenue_records (nope) VALUES (1)`)
	var retryErr *store.RetryError
	require.ErrorAs(t, err, &retryErr)

	// THEN: the reopened pool still sees the record
	assert.Equal(t, 1, countRecords(t, db))
	require.NoError(t, db.Ping(ctx))
}

func TestOpener_MemoryStoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	a, err := store.New(ctx, sqlite.Opener(":memory:"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	b, err := store.New(ctx, sqlite.Opener(":memory:"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	_, err = a.Run(ctx, `
		INSERT INTO revenue_records (customer, service_type, year, month, calendar_days, created_at, updated_at)
		VALUES ('Acme', 'Cloud', 2025, 5, 31, 'now', 'now')`)
	require.NoError(t, err)

	assert.Equal(t, 1, countRecords(t, a))
	assert.Zero(t, countRecords(t, b))
}
