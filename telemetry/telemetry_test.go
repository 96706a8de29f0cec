package telemetry_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/revenue-engine/telemetry"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.Metrics
	assert.NotPanics(t, func() {
		m.ObserveRetry("run", telemetry.ReasonBusy)
		m.ObserveExhausted("run")
		m.ObserveIngest(telemetry.IngestOutcome{Inserted: 1})
	})
}

func TestMetrics_CountsIngestOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)

	m.ObserveIngest(telemetry.IngestOutcome{Inserted: 3, Updated: 2, Errors: 1})
	m.ObserveRetry("all", telemetry.ReasonReconnect)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	n, err := testutil.GatherAndCount(reg, "revenue_etl_records_total")
	require.NoError(t, err)
	assert.Equal(t, 5, n, "one series per outcome label")

	n, err = testutil.GatherAndCount(reg, "revenue_store_retries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
