/*
period.go - Reporting period resolution

PURPOSE:
  Turns what the dashboard asks for ("Q2 of 2025", "YTD", "Jan+Q3 of 2024
  and 2025") into a concrete, ordered set of months per year. Nothing here
  touches the store: availability of data is decided later by the
  analysis-period validator.

PERIOD KINDS:
  NONE   Always empty. Downstream aggregation short-circuits on it.
  MTD    The given month, "all" for the whole year, else the current month.
  QTD    The given quarter, "all" for the whole year, else the current quarter.
  YTD    All 12 months.
  YEAR   All 12 months.

  YTD resolves to the full year, not "up to the current month". This is
  the established dashboard behaviour and differs from the MTD/QTD
  "current period" defaults.

MULTI-SELECT:
  Union of SelectedMonths and the months of SelectedQuarters, deduplicated
  and sorted by month number, applied to every year in SelectedYears.
  No selected years means no data. Years without any month or quarter
  selection cover the full year.

SEE ALSO:
  - months.go: Month / quarter parsing
  - analytics/validation.go: Intersection with compliant months
*/
package period

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrInvalidKind    = errors.New("invalid period")
	ErrInvalidMonth   = errors.New("invalid month")
	ErrInvalidQuarter = errors.New("invalid quarter")
)

// Reasons reported for an empty resolution. An empty resolution is a
// valid answer, not an error.
const (
	ReasonNone   = "period NONE selected"
	ReasonNoYear = "no year selected"
)

// All selects every month of the year for MTD and QTD.
const All = "all"

// =============================================================================
// KIND
// =============================================================================

// Kind is the canonical period selector.
type Kind string

const (
	MTD  Kind = "MTD"
	QTD  Kind = "QTD"
	YTD  Kind = "YTD"
	YEAR Kind = "YEAR"
	NONE Kind = "NONE"
)

// ParseKind is case-insensitive. An empty string means YTD.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case "":
		return YTD, nil
	case MTD, QTD, YTD, YEAR, NONE:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// =============================================================================
// SINGLE PERIOD
// =============================================================================

// Resolve maps one period kind to month names in calendar order.
// month and quarter may be empty, All, or a value accepted by ParseMonth /
// ParseQuarter. now picks the current month or quarter when none is given.
func Resolve(kind Kind, month, quarter string, now time.Time) ([]string, error) {
	months, err := resolveNumbers(kind, month, quarter, now)
	if err != nil {
		return nil, err
	}
	return names(months), nil
}

func resolveNumbers(kind Kind, month, quarter string, now time.Time) ([]int, error) {
	switch kind {
	case NONE:
		return []int{}, nil

	case MTD:
		switch {
		case isAll(month):
			return allMonths(), nil
		case strings.TrimSpace(month) != "":
			m, err := ParseMonth(month)
			if err != nil {
				return nil, err
			}
			return []int{m}, nil
		default:
			return []int{int(now.Month())}, nil
		}

	case QTD:
		switch {
		case isAll(quarter):
			return allMonths(), nil
		case strings.TrimSpace(quarter) != "":
			q, err := ParseQuarter(quarter)
			if err != nil {
				return nil, err
			}
			return QuarterMonths(q), nil
		default:
			return QuarterMonths(QuarterOf(int(now.Month()))), nil
		}

	case YTD, YEAR:
		return allMonths(), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, string(kind))
	}
}

func isAll(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), All)
}

// =============================================================================
// SPEC / RESOLUTION
// =============================================================================

// Spec is a reporting-period request from the dashboard.
type Spec struct {
	Year    int
	Kind    Kind
	Month   string
	Quarter string

	MultiSelect      bool
	SelectedMonths   []string
	SelectedQuarters []string
	SelectedYears    []int
}

// Resolution is the concrete month set of a Spec. Months apply to every
// year in Years.
type Resolution struct {
	Years  []int    `json:"years"`
	Months []string `json:"months"`
	Reason string   `json:"reason,omitempty"`
}

// Empty reports whether the resolution selects no data.
func (r Resolution) Empty() bool {
	return len(r.Years) == 0 || len(r.Months) == 0
}

// MonthNumbers returns Months as 1-12.
func (r Resolution) MonthNumbers() []int {
	out := make([]int, 0, len(r.Months))
	for _, name := range r.Months {
		if m, err := ParseMonth(name); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Resolve turns the request into concrete years and months as of now.
func (s Spec) Resolve(now time.Time) (Resolution, error) {
	if s.Kind == NONE {
		return Resolution{Years: []int{}, Months: []string{}, Reason: ReasonNone}, nil
	}
	if s.MultiSelect {
		return ResolveSelection(s.SelectedYears, s.SelectedMonths, s.SelectedQuarters)
	}

	if s.Year <= 0 {
		return Resolution{Years: []int{}, Months: []string{}, Reason: ReasonNoYear}, nil
	}
	kind := s.Kind
	if kind == "" {
		kind = YTD
	}
	months, err := Resolve(kind, s.Month, s.Quarter, now)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Years: []int{s.Year}, Months: months}, nil
}

// ResolveSelection resolves a multi-select request.
func ResolveSelection(years []int, months, quarters []string) (Resolution, error) {
	ys := uniqueSorted(years, func(y int) bool { return y > 0 })
	if len(ys) == 0 {
		return Resolution{Years: []int{}, Months: []string{}, Reason: ReasonNoYear}, nil
	}

	var picked []int
	for _, name := range months {
		m, err := ParseMonth(name)
		if err != nil {
			return Resolution{}, err
		}
		picked = append(picked, m)
	}
	for _, name := range quarters {
		q, err := ParseQuarter(name)
		if err != nil {
			return Resolution{}, err
		}
		picked = append(picked, QuarterMonths(q)...)
	}
	if len(months) == 0 && len(quarters) == 0 {
		picked = allMonths()
	}

	return Resolution{Years: ys, Months: names(uniqueSorted(picked, nil))}, nil
}

func uniqueSorted(in []int, keep func(int) bool) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if seen[v] || (keep != nil && !keep(v)) {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
