package period

import (
	"fmt"
	"strconv"
	"strings"
)

// MonthNames in calendar order. These are the labels used everywhere a
// month leaves the engine.
var MonthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var fullMonthNames = [12]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// MonthName returns the short label for month 1-12, or "" if out of range.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return MonthNames[month-1]
}

// ParseMonth accepts "Jan", "january", "JAN", "1" or "01".
func ParseMonth(s string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidMonth)
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidMonth, n)
		}
		return n, nil
	}
	for i, full := range fullMonthNames {
		if v == full || v == full[:3] {
			return i + 1, nil
		}
	}
	// "Sept" shows up in exported sheets.
	if v == "sept" {
		return 9, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
}

// ParseQuarter accepts "Q1".."Q4" or "1".."4".
func ParseQuarter(s string) (int, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "Q")
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuarter, s)
	}
	return n, nil
}

// QuarterMonths returns the three months of quarter q (1-4).
func QuarterMonths(q int) []int {
	if q < 1 || q > 4 {
		return nil
	}
	first := (q-1)*3 + 1
	return []int{first, first + 1, first + 2}
}

// QuarterOf returns the quarter containing month.
func QuarterOf(month int) int {
	return (month-1)/3 + 1
}

func allMonths() []int {
	out := make([]int, 12)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func names(months []int) []string {
	out := make([]string, 0, len(months))
	for _, m := range months {
		out = append(out, MonthName(m))
	}
	return out
}
