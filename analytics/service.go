/*
service.go - Read-only query API consumed by the dashboard

PURPOSE:
  The functions the UI and report layers call. Each request resolves the
  period, validates compliance, then aggregates. Nothing is cached and
  the same inputs always give the same output.

OPERATIONS:
  GetOverviewData              Totals + service breakdown
  GetServiceBreakdown          Grouped by service type
  GetBusinessUnitData          Grouped by business unit
  GetCustomerData              Grouped by customer
  GetMonthlyTrends             Per-month sums, compliant months only
  GetAnalysisPeriodValidation  Data-quality report for one year
  GetAvailableYears            Years present in the store

EMPTY STATES:
  A NONE period, no selected year, or a period without compliant months
  yields zero totals and empty breakdowns with Period.Reason set. These
  are not errors.

DEPENDENCIES:
  store.Querier only. Construct with NewService; no package-level
  instances.

SEE ALSO:
  - validation.go, queries.go
  - api/handlers.go: HTTP exposure
*/
package analytics

import (
	"context"
	"time"

	"github.com/warp/revenue-engine/period"
	"github.com/warp/revenue-engine/store"
)

// Service answers dashboard queries.
type Service struct {
	db  store.Querier
	now func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock fixes the notion of "now" used to resolve MTD/QTD defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service reading through db.
func NewService(db store.Querier, opts ...Option) *Service {
	s := &Service{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOverviewData returns headline totals and the service breakdown.
func (s *Service) GetOverviewData(ctx context.Context, spec period.Spec) (*OverviewData, error) {
	vp, err := s.ValidatedPeriodMonths(ctx, spec)
	if err != nil {
		return nil, err
	}

	overview, err := s.overviewTotals(ctx, vp)
	if err != nil {
		return nil, err
	}
	services, err := s.breakdown(ctx, vp, byService)
	if err != nil {
		return nil, err
	}

	return &OverviewData{Overview: overview, ServiceBreakdown: services, Period: *vp}, nil
}

// GetServiceBreakdown groups the period by service type.
func (s *Service) GetServiceBreakdown(ctx context.Context, spec period.Spec) (*BreakdownData, error) {
	return s.breakdownData(ctx, spec, byService)
}

// GetBusinessUnitData groups the period by business unit.
func (s *Service) GetBusinessUnitData(ctx context.Context, spec period.Spec) (*BreakdownData, error) {
	return s.breakdownData(ctx, spec, byBusinessUnit)
}

// GetCustomerData groups the period by customer.
func (s *Service) GetCustomerData(ctx context.Context, spec period.Spec) (*BreakdownData, error) {
	return s.breakdownData(ctx, spec, byCustomer)
}

func (s *Service) breakdownData(ctx context.Context, spec period.Spec, dim dimension) (*BreakdownData, error) {
	vp, err := s.ValidatedPeriodMonths(ctx, spec)
	if err != nil {
		return nil, err
	}
	rows, err := s.breakdown(ctx, vp, dim)
	if err != nil {
		return nil, err
	}
	return &BreakdownData{Rows: rows, Period: *vp}, nil
}

// GetMonthlyTrends returns per-month sums for year, optionally for one
// service type. Only compliant months of the year are returned.
func (s *Service) GetMonthlyTrends(ctx context.Context, year int, serviceType string) ([]TrendPoint, error) {
	if year <= 0 {
		return []TrendPoint{}, nil
	}
	validation, err := s.ValidateAnalysisPeriod(ctx, year)
	if err != nil {
		return nil, err
	}
	return s.monthlyTrend(ctx, year, validation.CompliantMonthNumbers(), serviceType)
}

// GetAnalysisPeriodValidation returns the data-quality report for year.
func (s *Service) GetAnalysisPeriodValidation(ctx context.Context, year int) (*AnalysisPeriodValidation, error) {
	return s.ValidateAnalysisPeriod(ctx, year)
}

// GetAvailableYears lists the years with any data, newest first.
func (s *Service) GetAvailableYears(ctx context.Context) ([]int, error) {
	return s.availableYears(ctx)
}
