/*
queries.go - Grouped sums over validated months

PURPOSE:
  Overview totals and the service / customer / business-unit breakdowns.
  Each query runs over the month set produced by ValidatedPeriodMonths;
  each result row gets its metrics from performance.Compute on its own
  sums, since performance cost does not add up across rows.

DIMENSIONS:
  Group-by columns come from a fixed list (dimension constants), never
  from user input.

SEE ALSO:
  - filter.go: (year, month) predicate builder
  - performance/performance.go: Formulas
*/
package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/revenue-engine/performance"
	"github.com/warp/revenue-engine/period"
)

type dimension string

const (
	byService      dimension = "service_type"
	byCustomer     dimension = "customer"
	byBusinessUnit dimension = "business_unit"
)

const sumColumns = `
	COALESCE(SUM(revenue), 0),
	COALESCE(SUM(target), 0),
	COALESCE(SUM(cost), 0),
	COALESCE(SUM(original_target), 0),
	COALESCE(SUM(original_cost), 0),
	COALESCE(SUM(receivables_collected), 0),
	COUNT(DISTINCT customer),
	COUNT(DISTINCT service_type),
	COUNT(*)
`

// overviewTotals sums every record in the validated months.
func (s *Service) overviewTotals(ctx context.Context, p *ValidatedPeriod) (Overview, error) {
	var o Overview
	clause, args, ok := periodFilter(p)
	if !ok {
		o.Metrics = performance.Compute(0, 0, 0)
		return o, nil
	}

	query := "SELECT " + sumColumns + " FROM revenue_records WHERE " + clause
	err := s.db.Get(ctx, func(row *sql.Row) error {
		return row.Scan(
			&o.Revenue, &o.Target, &o.Cost, &o.OriginalTarget, &o.OriginalCost, &o.Receivables,
			&o.CustomerCount, &o.ServiceCount, &o.Records,
		)
	}, query, args...)
	if err != nil {
		return Overview{}, fmt.Errorf("failed to load overview totals: %w", err)
	}

	o.Metrics = performance.Compute(o.Revenue, o.Target, o.Cost)
	return o, nil
}

// breakdown groups the validated months by dim, largest revenue first.
func (s *Service) breakdown(ctx context.Context, p *ValidatedPeriod, dim dimension) ([]Breakdown, error) {
	clause, args, ok := periodFilter(p)
	if !ok {
		return []Breakdown{}, nil
	}

	col := string(dim)
	query := "SELECT " + col + "," + sumColumns +
		" FROM revenue_records WHERE " + clause +
		" GROUP BY " + col +
		" ORDER BY SUM(revenue) DESC, " + col

	var out []Breakdown
	err := s.db.All(ctx, func(rows *sql.Rows) error {
		out = []Breakdown{}
		for rows.Next() {
			var b Breakdown
			if err := rows.Scan(
				&b.Name,
				&b.Revenue, &b.Target, &b.Cost, &b.OriginalTarget, &b.OriginalCost, &b.Receivables,
				&b.CustomerCount, &b.ServiceCount, &b.Records,
			); err != nil {
				return err
			}
			b.Metrics = performance.Compute(b.Revenue, b.Target, b.Cost)
			out = append(out, b)
		}
		return nil
	}, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s breakdown: %w", col, err)
	}
	return out, nil
}

// monthlyTrend sums one year by month, restricted to months.
func (s *Service) monthlyTrend(ctx context.Context, year int, months []int, serviceType string) ([]TrendPoint, error) {
	if len(months) == 0 {
		return []TrendPoint{}, nil
	}

	query := `
		SELECT month,
		       COALESCE(SUM(revenue), 0),
		       COALESCE(SUM(target), 0),
		       COALESCE(SUM(cost), 0),
		       COALESCE(SUM(receivables_collected), 0)
		FROM revenue_records
		WHERE year = ? AND month IN (` + placeholders(len(months)) + `)`
	args := []any{year}
	for _, m := range months {
		args = append(args, m)
	}
	if serviceType != "" {
		query += " AND service_type = ?"
		args = append(args, serviceType)
	}
	query += " GROUP BY month ORDER BY month"

	var out []TrendPoint
	err := s.db.All(ctx, func(rows *sql.Rows) error {
		out = []TrendPoint{}
		for rows.Next() {
			var p TrendPoint
			if err := rows.Scan(&p.MonthNumber, &p.Revenue, &p.Target, &p.Cost, &p.Receivables); err != nil {
				return err
			}
			p.Month = period.MonthName(p.MonthNumber)
			p.Metrics = performance.Compute(p.Revenue, p.Target, p.Cost)
			out = append(out, p)
		}
		return nil
	}, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly trend %d: %w", year, err)
	}
	return out, nil
}

// availableYears lists the years present in the store, newest first.
func (s *Service) availableYears(ctx context.Context) ([]int, error) {
	var years []int
	err := s.db.All(ctx, func(rows *sql.Rows) error {
		years = []int{}
		for rows.Next() {
			var y int
			if err := rows.Scan(&y); err != nil {
				return err
			}
			years = append(years, y)
		}
		return nil
	}, "SELECT DISTINCT year FROM revenue_records ORDER BY year DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list years: %w", err)
	}
	return years, nil
}
