/*
validation.go - Analysis period (data completeness) validation

PURPOSE:
  Decides which months of a year can be trusted. A month is compliant
  only when revenue, cost and target each sum to a positive value.
  Mixing complete and partially loaded months in one sum understates
  achievement, so every aggregate in this package goes through
  ValidatedPeriodMonths first.

NOT CACHED:
  Compliance changes with every upload. Validation runs per request
  with one grouped query per year.

SEE ALSO:
  - queries.go: Aggregates over the validated month set
  - period/period.go: Requested month resolution
*/
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/warp/revenue-engine/period"
)

// ReasonNoCompliantMonths is reported when validation removes every month.
const ReasonNoCompliantMonths = "no month in the selected period has complete revenue, cost and target data"

const complianceQuery = `
	SELECT month,
	       COUNT(*),
	       COALESCE(SUM(revenue), 0),
	       COALESCE(SUM(cost), 0),
	       COALESCE(SUM(target), 0)
	FROM revenue_records
	WHERE year = ?
	GROUP BY month
	ORDER BY month
`

// ValidateAnalysisPeriod inspects the data of one year.
func (s *Service) ValidateAnalysisPeriod(ctx context.Context, year int) (*AnalysisPeriodValidation, error) {
	months := make([]MonthCompliance, 12)
	for i := range months {
		months[i] = MonthCompliance{Month: period.MonthName(i + 1), MonthNumber: i + 1}
	}

	err := s.db.All(ctx, func(rows *sql.Rows) error {
		for i := range months {
			months[i] = MonthCompliance{Month: period.MonthName(i + 1), MonthNumber: i + 1}
		}
		for rows.Next() {
			var (
				month                 int
				records               int
				revenue, cost, target float64
			)
			if err := rows.Scan(&month, &records, &revenue, &cost, &target); err != nil {
				return err
			}
			if month < 1 || month > 12 {
				continue
			}
			m := &months[month-1]
			m.Records = records
			m.Revenue, m.Cost, m.Target = revenue, cost, target
		}
		return nil
	}, complianceQuery, year)
	if err != nil {
		return nil, fmt.Errorf("failed to validate analysis period %d: %w", year, err)
	}

	return buildValidation(year, months), nil
}

func buildValidation(year int, months []MonthCompliance) *AnalysisPeriodValidation {
	v := &AnalysisPeriodValidation{
		Year:               year,
		CompliantMonths:    []string{},
		NonCompliantMonths: []string{},
		MissingDataDetails: map[string][]string{},
		Months:             months,
	}

	first, last := 0, 0
	for i := range months {
		m := &months[i]
		m.HasRevenue = m.Revenue > 0
		m.HasCost = m.Cost > 0
		m.HasTarget = m.Target > 0
		m.Compliant = m.HasRevenue && m.HasCost && m.HasTarget

		if m.Compliant {
			v.CompliantMonths = append(v.CompliantMonths, m.Month)
			if first == 0 {
				first = m.MonthNumber
			}
			last = m.MonthNumber
			continue
		}

		if !m.HasRevenue {
			m.Missing = append(m.Missing, FieldRevenue)
		}
		if !m.HasCost {
			m.Missing = append(m.Missing, FieldCost)
		}
		if !m.HasTarget {
			m.Missing = append(m.Missing, FieldTarget)
		}
		v.NonCompliantMonths = append(v.NonCompliantMonths, m.Month)
		v.MissingDataDetails[m.Month] = m.Missing
	}

	if first > 0 {
		v.AnalysisPeriod = AnalysisPeriod{
			Start:      period.MonthName(first),
			End:        period.MonthName(last),
			MonthCount: len(v.CompliantMonths),
			IsComplete: len(v.CompliantMonths) == last-first+1,
		}
	}
	return v
}

// ValidatedPeriodMonths resolves spec and keeps only compliant months of
// each requested year. Narrowing is reported, never zero-filled.
func (s *Service) ValidatedPeriodMonths(ctx context.Context, spec period.Spec) (*ValidatedPeriod, error) {
	res, err := spec.Resolve(s.now())
	if err != nil {
		return nil, err
	}

	vp := &ValidatedPeriod{Requested: res, Years: []YearMonths{}, Reason: res.Reason}
	if res.Empty() {
		return vp, nil
	}

	requested := res.MonthNumbers()
	for _, year := range res.Years {
		validation, err := s.ValidateAnalysisPeriod(ctx, year)
		if err != nil {
			return nil, err
		}

		ym := YearMonths{Year: year, Months: []string{}}
		for _, m := range requested {
			name := period.MonthName(m)
			if validation.IsCompliant(m) {
				ym.Months = append(ym.Months, name)
				ym.MonthNumbers = append(ym.MonthNumbers, m)
				continue
			}
			vp.HasNonCompliantMonths = true
			ym.Excluded = append(ym.Excluded, name)
			vp.Warnings = append(vp.Warnings, fmt.Sprintf("%s %d excluded: missing %s",
				name, year, strings.Join(validation.Months[m-1].Missing, ", ")))
		}
		vp.Years = append(vp.Years, ym)
	}

	if vp.Empty() {
		vp.Reason = ReasonNoCompliantMonths
	}
	if vp.HasNonCompliantMonths {
		zerolog.Ctx(ctx).Debug().
			Ints("years", res.Years).
			Strs("warnings", vp.Warnings).
			Msg("requested period narrowed to compliant months")
	}
	return vp, nil
}
