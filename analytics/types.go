package analytics

import (
	"github.com/warp/revenue-engine/performance"
	"github.com/warp/revenue-engine/period"
)

// =============================================================================
// ANALYSIS PERIOD VALIDATION
// =============================================================================

// Field names reported in MissingDataDetails.
const (
	FieldRevenue = "revenue"
	FieldCost    = "cost"
	FieldTarget  = "target"
)

// MonthCompliance is the data-completeness verdict for one month.
type MonthCompliance struct {
	Month       string   `json:"month"`
	MonthNumber int      `json:"monthNumber"`
	Records     int      `json:"records"`
	Revenue     float64  `json:"revenue"`
	Cost        float64  `json:"cost"`
	Target      float64  `json:"target"`
	HasRevenue  bool     `json:"hasRevenue"`
	HasCost     bool     `json:"hasCost"`
	HasTarget   bool     `json:"hasTarget"`
	Compliant   bool     `json:"compliant"`
	Missing     []string `json:"missing,omitempty"`
}

// AnalysisPeriod is the window bounded by the earliest and latest
// compliant months. IsComplete is true when every month inside the window
// is compliant.
type AnalysisPeriod struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	IsComplete bool   `json:"isComplete"`
	MonthCount int    `json:"monthCount"`
}

// AnalysisPeriodValidation is recomputed per request from the store.
type AnalysisPeriodValidation struct {
	Year               int                 `json:"year"`
	CompliantMonths    []string            `json:"compliantMonths"`
	NonCompliantMonths []string            `json:"nonCompliantMonths"`
	MissingDataDetails map[string][]string `json:"missingDataDetails"`
	AnalysisPeriod     AnalysisPeriod      `json:"analysisPeriod"`
	Months             []MonthCompliance   `json:"months"`
}

// IsCompliant reports whether month (1-12) has complete data.
func (v *AnalysisPeriodValidation) IsCompliant(month int) bool {
	if v == nil || month < 1 || month > len(v.Months) {
		return false
	}
	return v.Months[month-1].Compliant
}

// CompliantMonthNumbers returns compliant months as 1-12.
func (v *AnalysisPeriodValidation) CompliantMonthNumbers() []int {
	var out []int
	for _, m := range v.Months {
		if m.Compliant {
			out = append(out, m.MonthNumber)
		}
	}
	return out
}

// YearMonths is the validated month set of one year.
type YearMonths struct {
	Year         int      `json:"year"`
	Months       []string `json:"months"`
	Excluded     []string `json:"excluded,omitempty"`
	MonthNumbers []int    `json:"-"`
}

// ValidatedPeriod is the requested period narrowed to compliant months.
type ValidatedPeriod struct {
	Requested             period.Resolution `json:"requested"`
	Years                 []YearMonths      `json:"years"`
	HasNonCompliantMonths bool              `json:"hasNonCompliantMonths"`
	Warnings              []string          `json:"warnings,omitempty"`
	Reason                string            `json:"reason,omitempty"`
}

// Empty reports whether no month survived validation.
func (p *ValidatedPeriod) Empty() bool {
	for _, y := range p.Years {
		if len(y.MonthNumbers) > 0 {
			return false
		}
	}
	return true
}

// =============================================================================
// AGGREGATES
// =============================================================================

// Totals are the raw sums of one aggregate.
type Totals struct {
	Revenue        float64 `json:"revenue"`
	Target         float64 `json:"target"`
	Cost           float64 `json:"cost"`
	OriginalTarget float64 `json:"originalTarget"`
	OriginalCost   float64 `json:"originalCost"`
	Receivables    float64 `json:"receivables"`
}

// Overview is the headline block of the dashboard.
type Overview struct {
	Totals
	CustomerCount int `json:"customerCount"`
	ServiceCount  int `json:"serviceCount"`
	Records       int `json:"records"`
	performance.Metrics
}

// Breakdown is one row of a grouped view (service type, customer or
// business unit). Metrics are derived from the row's own sums.
type Breakdown struct {
	Name string `json:"name"`
	Totals
	CustomerCount int `json:"customerCount"`
	ServiceCount  int `json:"serviceCount"`
	Records       int `json:"records"`
	performance.Metrics
}

// OverviewData is returned by GetOverviewData.
type OverviewData struct {
	Overview         Overview        `json:"overview"`
	ServiceBreakdown []Breakdown     `json:"serviceBreakdown"`
	Period           ValidatedPeriod `json:"period"`
}

// BreakdownData wraps a grouped view with the period it covers.
type BreakdownData struct {
	Rows   []Breakdown     `json:"rows"`
	Period ValidatedPeriod `json:"period"`
}

// TrendPoint is one compliant month of a yearly trend.
type TrendPoint struct {
	Month       string  `json:"month"`
	MonthNumber int     `json:"monthNumber"`
	Revenue     float64 `json:"revenue"`
	Target      float64 `json:"target"`
	Cost        float64 `json:"cost"`
	Receivables float64 `json:"receivables"`
	performance.Metrics
}
