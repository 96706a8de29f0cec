/*
record.go - Canonical revenue record and input normalization

PURPOSE:
  Uploads arrive as spreadsheets, CSV exports and JSON posted by the UI.
  Each names its columns differently ("Customer Name", "customer",
  "serviceType", "Service Type"...). Normalize maps every variant onto one
  canonical Record before any validation or storage happens, so the rest
  of the package only deals with typed fields.

NUMBERS:
  Amount cells are parsed with shopspring/decimal after stripping
  thousands separators and currency symbols. "(1,200.50)" is -1200.50.
  Empty cells are zero.

DAYS:
  A missing days column means the whole month was reported. For the month
  in progress the ingester narrows that to the days elapsed so far.

SEE ALSO:
  - parse.go: CSV / XLSX readers producing Rows
  - ingest.go: Validation, proration and upsert
*/
package etl

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/calendar"
	"github.com/warp/revenue-engine/period"
)

// DefaultBusinessUnit is stored when a row names no business unit.
const DefaultBusinessUnit = "Unassigned"

var (
	// ErrMissingField is returned when a required field is empty.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidValue is returned when a cell cannot be parsed.
	ErrInvalidValue = errors.New("invalid value")
)

// Row is one raw input record keyed by its source column name.
type Row map[string]any

// Record is the canonical form of one input row.
type Record struct {
	Customer     string  `json:"customer" validate:"required"`
	ServiceType  string  `json:"serviceType" validate:"required"`
	BusinessUnit string  `json:"businessUnit"`
	Year         int     `json:"year" validate:"required,gte=1900,lte=9999"`
	Month        int     `json:"month" validate:"required,min=1,max=12"`
	Revenue      float64 `json:"revenue"`
	Target       float64 `json:"target"`
	Cost         float64 `json:"cost"`
	Receivables  float64 `json:"receivablesCollected"`
	Days         float64 `json:"days"`

	// DaysDefaulted is set when the row had no days value and Days was
	// filled in by Normalize.
	DaysDefaulted bool `json:"-"`
}

// Key returns the natural key of the record.
func (r Record) Key() Key {
	return Key{Customer: r.Customer, ServiceType: r.ServiceType, Year: r.Year, Month: r.Month}
}

// Key identifies one stored row.
type Key struct {
	Customer    string `json:"customer"`
	ServiceType string `json:"serviceType"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s %s %d", k.Customer, k.ServiceType, period.MonthName(k.Month), k.Year)
}

// =============================================================================
// COLUMN ALIASES
// =============================================================================

// Canonical field names.
const (
	colCustomer     = "customer"
	colServiceType  = "service_type"
	colBusinessUnit = "business_unit"
	colYear         = "year"
	colMonth        = "month"
	colRevenue      = "revenue"
	colTarget       = "target"
	colCost         = "cost"
	colReceivables  = "receivables_collected"
	colDays         = "days"
)

// aliases maps a folded column name to its canonical field.
var aliases = map[string]string{
	"customer":              colCustomer,
	"customer_name":         colCustomer,
	"customername":          colCustomer,
	"client":                colCustomer,
	"client_name":           colCustomer,
	"service_type":          colServiceType,
	"servicetype":           colServiceType,
	"service":               colServiceType,
	"service_line":          colServiceType,
	"business_unit":         colBusinessUnit,
	"businessunit":          colBusinessUnit,
	"bu":                    colBusinessUnit,
	"unit":                  colBusinessUnit,
	"year":                  colYear,
	"month":                 colMonth,
	"month_name":            colMonth,
	"revenue":               colRevenue,
	"actual_revenue":        colRevenue,
	"actual":                colRevenue,
	"target":                colTarget,
	"revenue_target":        colTarget,
	"target_revenue":        colTarget,
	"budget":                colTarget,
	"cost":                  colCost,
	"costs":                 colCost,
	"total_cost":            colCost,
	"receivables_collected": colReceivables,
	"receivablescollected":  colReceivables,
	"receivables":           colReceivables,
	"collections":           colReceivables,
	"days":                  colDays,
	"days_worked":           colDays,
	"working_days":          colDays,
	"reported_days":         colDays,
}

// foldColumn lower-cases a header and joins words with underscores.
func foldColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	}), "_")
}

// canonical re-keys row by canonical field name. When two source columns
// map to the same field, the first non-empty one in column-name order wins.
func canonical(row Row) map[string]string {
	out := make(map[string]string, len(row))
	for _, name := range slices.Sorted(maps.Keys(row)) {
		v := row[name]
		field, ok := aliases[foldColumn(name)]
		if !ok {
			continue
		}
		s := cellString(v)
		if s == "" || out[field] != "" {
			continue
		}
		out[field] = s
	}
	return out
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case decimal.Decimal:
		return t.String()
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// =============================================================================
// NORMALIZE
// =============================================================================

// Normalize converts a raw row into a Record. Parse failures are returned
// wrapped in ErrInvalidValue; required-field checks happen later.
func Normalize(row Row) (Record, error) {
	f := canonical(row)

	rec := Record{
		Customer:     f[colCustomer],
		ServiceType:  f[colServiceType],
		BusinessUnit: f[colBusinessUnit],
	}
	if rec.BusinessUnit == "" {
		rec.BusinessUnit = DefaultBusinessUnit
	}

	var err error
	if s := f[colYear]; s != "" {
		if rec.Year, err = parseInt(s); err != nil {
			return Record{}, fmt.Errorf("%w: year %q", ErrInvalidValue, s)
		}
	}
	if s := f[colMonth]; s != "" {
		if rec.Month, err = parseMonth(s); err != nil {
			return Record{}, fmt.Errorf("%w: month %q", ErrInvalidValue, s)
		}
	}

	amounts := []struct {
		field string
		dst   *float64
	}{
		{colRevenue, &rec.Revenue},
		{colTarget, &rec.Target},
		{colCost, &rec.Cost},
		{colReceivables, &rec.Receivables},
	}
	for _, a := range amounts {
		if *a.dst, err = ParseAmount(f[a.field]); err != nil {
			return Record{}, fmt.Errorf("%w: %s %q", ErrInvalidValue, a.field, f[a.field])
		}
	}

	if s := f[colDays]; s != "" {
		if rec.Days, err = ParseAmount(s); err != nil {
			return Record{}, fmt.Errorf("%w: days %q", ErrInvalidValue, s)
		}
	} else {
		rec.Days = float64(calendar.DaysIn(rec.Year, rec.Month))
		rec.DaysDefaulted = true
	}
	return rec, nil
}

// ParseAmount parses a money or count cell.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\u00a0', '$', '€', '£', '¥':
			return -1
		}
		return r
	}, s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if negative {
		d = d.Neg()
	}
	f, _ := d.Float64()
	return f, nil
}

func parseInt(s string) (int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s is not a whole number", s)
	}
	return int(d.IntPart()), nil
}

// parseMonth accepts names and numbers, including spreadsheet floats like "3.0".
func parseMonth(s string) (int, error) {
	if m, err := period.ParseMonth(s); err == nil {
		return m, nil
	}
	n, err := parseInt(s)
	if err != nil {
		return 0, err
	}
	return period.ParseMonth(strconv.Itoa(n))
}
