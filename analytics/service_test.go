package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/revenue-engine/analytics"
	"github.com/warp/revenue-engine/calendar"
	"github.com/warp/revenue-engine/performance"
	"github.com/warp/revenue-engine/period"
	"github.com/warp/revenue-engine/store"
	"github.com/warp/revenue-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var fixedNow = time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

type row struct {
	customer    string
	service     string
	unit        string
	year        int
	month       int
	revenue     float64
	target      float64
	cost        float64
	receivables float64
}

func newTestService(t *testing.T) (*analytics.Service, *store.DB) {
	ctx := context.Background()
	db, err := store.New(ctx, sqlite.Opener(":memory:"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := analytics.NewService(db, analytics.WithClock(func() time.Time { return fixedNow }))
	return svc, db
}

func seed(t *testing.T, db store.Querier, rows ...row) {
	t.Helper()
	for _, r := range rows {
		if r.unit == "" {
			r.unit = "Unassigned"
		}
		_, err := db.Run(context.Background(), `
			INSERT INTO revenue_records
			(customer, service_type, business_unit, year, month, revenue, target, original_target,
			 cost, original_cost, receivables_collected, days, calendar_days, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'test', 'test')`,
			r.customer, r.service, r.unit, r.year, r.month, r.revenue, r.target, r.target,
			r.cost, r.cost, r.receivables, calendar.DaysIn(r.year, r.month), calendar.DaysIn(r.year, r.month),
		)
		require.NoError(t, err)
	}
}

// halfYear seeds 2025 with Jan-Jun complete and Jul-Dec missing cost.
func halfYear(t *testing.T, db store.Querier) {
	for m := 1; m <= 12; m++ {
		cost := 600.0
		if m > 6 {
			cost = 0
		}
		seed(t, db, row{customer: "Acme", service: "Cloud", year: 2025, month: m,
			revenue: 1000, target: 800, cost: cost, receivables: 900})
	}
}

// =============================================================================
// ANALYSIS PERIOD VALIDATION
// =============================================================================

func TestValidateAnalysisPeriod_MissingCostSecondHalf(t *testing.T) {
	svc, db := newTestService(t)
	halfYear(t, db)

	v, err := svc.GetAnalysisPeriodValidation(context.Background(), 2025)
	require.NoError(t, err)

	assert.Equal(t, []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun"}, v.CompliantMonths)
	assert.Equal(t, []string{"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}, v.NonCompliantMonths)
	assert.Equal(t, []string{analytics.FieldCost}, v.MissingDataDetails["Jul"])
	assert.Equal(t, analytics.AnalysisPeriod{Start: "Jan", End: "Jun", IsComplete: true, MonthCount: 6}, v.AnalysisPeriod)
}

func TestValidateAnalysisPeriod_GapMakesWindowIncomplete(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db,
		row{customer: "Acme", service: "Cloud", year: 2024, month: 2, revenue: 10, target: 10, cost: 5},
		row{customer: "Acme", service: "Cloud", year: 2024, month: 3, revenue: 10, target: 0, cost: 5},
		row{customer: "Acme", service: "Cloud", year: 2024, month: 5, revenue: 10, target: 10, cost: 5},
	)

	v, err := svc.ValidateAnalysisPeriod(context.Background(), 2024)
	require.NoError(t, err)

	assert.Equal(t, []string{"Feb", "May"}, v.CompliantMonths)
	assert.Equal(t, "Feb", v.AnalysisPeriod.Start)
	assert.Equal(t, "May", v.AnalysisPeriod.End)
	assert.False(t, v.AnalysisPeriod.IsComplete)
	assert.Equal(t, []string{analytics.FieldTarget}, v.MissingDataDetails["Mar"])
	assert.Equal(t, []string{analytics.FieldRevenue, analytics.FieldCost, analytics.FieldTarget}, v.MissingDataDetails["Jan"])
}

func TestValidateAnalysisPeriod_EmptyYear(t *testing.T) {
	svc, _ := newTestService(t)

	v, err := svc.ValidateAnalysisPeriod(context.Background(), 2030)
	require.NoError(t, err)
	assert.Empty(t, v.CompliantMonths)
	assert.Len(t, v.NonCompliantMonths, 12)
	assert.Equal(t, 0, v.AnalysisPeriod.MonthCount)
}

// =============================================================================
// OVERVIEW
// =============================================================================

func TestGetOverviewData_YearSumsOnlyCompliantMonths(t *testing.T) {
	svc, db := newTestService(t)
	halfYear(t, db)

	data, err := svc.GetOverviewData(context.Background(), period.Spec{Year: 2025, Kind: period.YEAR})
	require.NoError(t, err)

	assert.Equal(t, 6000.0, data.Overview.Revenue)
	assert.Equal(t, 4800.0, data.Overview.Target)
	assert.Equal(t, 3600.0, data.Overview.Cost)
	assert.Equal(t, 5400.0, data.Overview.Receivables)
	assert.Equal(t, 6, data.Overview.Records)
	assert.Equal(t, 1, data.Overview.CustomerCount)
	assert.Equal(t, 1, data.Overview.ServiceCount)
	assert.InDelta(t, 125.0, data.Overview.Achievement, 1e-9)
	assert.InDelta(t, performance.GrossProfit(6000, 4800, 3600), data.Overview.GrossProfit, 1e-9)

	assert.True(t, data.Period.HasNonCompliantMonths)
	require.Len(t, data.Period.Years, 1)
	assert.Equal(t, []string{"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}, data.Period.Years[0].Excluded)
	assert.Contains(t, data.Period.Warnings, "Jul 2025 excluded: missing cost")
}

func TestGetOverviewData_NoneIsEmptyNotError(t *testing.T) {
	svc, db := newTestService(t)
	halfYear(t, db)

	data, err := svc.GetOverviewData(context.Background(), period.Spec{Year: 2025, Kind: period.NONE})
	require.NoError(t, err)

	assert.Equal(t, 0.0, data.Overview.Revenue)
	assert.Empty(t, data.ServiceBreakdown)
	assert.Equal(t, period.ReasonNone, data.Period.Reason)
}

func TestGetOverviewData_OnlyNonCompliantRequested(t *testing.T) {
	svc, db := newTestService(t)
	halfYear(t, db)

	data, err := svc.GetOverviewData(context.Background(), period.Spec{Year: 2025, Kind: period.QTD, Quarter: "Q4"})
	require.NoError(t, err)

	assert.Equal(t, 0.0, data.Overview.Revenue)
	assert.Equal(t, analytics.ReasonNoCompliantMonths, data.Period.Reason)
}

func TestGetOverviewData_MultiYearSelection(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db,
		row{customer: "Acme", service: "Cloud", year: 2024, month: 1, revenue: 100, target: 100, cost: 50},
		row{customer: "Acme", service: "Cloud", year: 2024, month: 4, revenue: 100, target: 100, cost: 50},
		row{customer: "Beta", service: "Support", year: 2025, month: 1, revenue: 300, target: 200, cost: 100},
		// Feb 2025 is not compliant: no target
		row{customer: "Beta", service: "Support", year: 2025, month: 2, revenue: 999, target: 0, cost: 100},
	)

	data, err := svc.GetOverviewData(context.Background(), period.Spec{
		Kind:           period.MTD,
		MultiSelect:    true,
		SelectedYears:  []int{2024, 2025},
		SelectedMonths: []string{"Jan", "Feb"},
	})
	require.NoError(t, err)

	assert.Equal(t, 400.0, data.Overview.Revenue, "Jan 2024 + Jan 2025 only")
	assert.Equal(t, 2, data.Overview.CustomerCount)
	assert.Equal(t, 2, data.Overview.ServiceCount)
	assert.True(t, data.Period.HasNonCompliantMonths)
}

// =============================================================================
// BREAKDOWNS
// =============================================================================

func TestBreakdown_MetricsDerivedFromRowSums(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db,
		row{customer: "Acme", service: "Cloud", unit: "Enterprise", year: 2025, month: 1, revenue: 200, target: 100, cost: 10},
		row{customer: "Beta", service: "Cloud", unit: "SMB", year: 2025, month: 1, revenue: 0, target: 100, cost: 100},
		row{customer: "Acme", service: "Support", unit: "Enterprise", year: 2025, month: 1, revenue: 50, target: 50, cost: 20},
	)
	spec := period.Spec{Year: 2025, Kind: period.MTD, Month: "Jan"}

	services, err := svc.GetServiceBreakdown(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, services.Rows, 2)

	cloud := services.Rows[0]
	assert.Equal(t, "Cloud", cloud.Name)
	assert.Equal(t, 2, cloud.CustomerCount)
	// Summing per-customer performance costs would give 20 + 0.
	assert.InDelta(t, (200.0/200.0)*110.0, cloud.PerformanceCost, 1e-9)
	assert.InDelta(t, 200.0-110.0, cloud.GrossProfit, 1e-9)

	units, err := svc.GetBusinessUnitData(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, units.Rows, 2)
	assert.Equal(t, "Enterprise", units.Rows[0].Name)
	assert.Equal(t, 250.0, units.Rows[0].Revenue)

	customers, err := svc.GetCustomerData(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, customers.Rows, 2)
	assert.Equal(t, "Acme", customers.Rows[0].Name)
	assert.Equal(t, 2, customers.Rows[0].ServiceCount)
}

// =============================================================================
// TRENDS
// =============================================================================

func TestGetMonthlyTrends_OnlyCompliantMonths(t *testing.T) {
	svc, db := newTestService(t)
	halfYear(t, db)
	seed(t, db, row{customer: "Beta", service: "Support", year: 2025, month: 2, revenue: 10, target: 10, cost: 1})

	points, err := svc.GetMonthlyTrends(context.Background(), 2025, "")
	require.NoError(t, err)

	v, err := svc.GetAnalysisPeriodValidation(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, points, 6)
	for _, p := range points {
		assert.Contains(t, v.CompliantMonths, p.Month)
	}
	assert.Equal(t, 1010.0, points[1].Revenue)

	support, err := svc.GetMonthlyTrends(context.Background(), 2025, "Support")
	require.NoError(t, err)
	require.Len(t, support, 1)
	assert.Equal(t, "Feb", support[0].Month)
}

func TestGetAvailableYears(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, db,
		row{customer: "Acme", service: "Cloud", year: 2023, month: 1, revenue: 1, target: 1, cost: 1},
		row{customer: "Acme", service: "Cloud", year: 2025, month: 1, revenue: 1, target: 1, cost: 1},
	)

	years, err := svc.GetAvailableYears(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2025, 2023}, years)
}

func TestGetOverviewData_IsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	halfYear(t, db)
	spec := period.Spec{Year: 2025, Kind: period.YTD}

	a, err := svc.GetOverviewData(context.Background(), spec)
	require.NoError(t, err)
	b, err := svc.GetOverviewData(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
