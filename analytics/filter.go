package analytics

import (
	"strings"
)

// periodFilter builds the WHERE fragment selecting the validated months:
//
//	((year = ? AND month IN (?, ?)) OR (year = ? AND month IN (?)))
//
// Args line up with the placeholders in order. Years without months are
// skipped; ok is false when nothing is left to select.
func periodFilter(p *ValidatedPeriod) (clause string, args []any, ok bool) {
	var groups []string
	for _, y := range p.Years {
		if len(y.MonthNumbers) == 0 {
			continue
		}
		groups = append(groups, "(year = ? AND month IN ("+placeholders(len(y.MonthNumbers))+"))")
		args = append(args, y.Year)
		for _, m := range y.MonthNumbers {
			args = append(args, m)
		}
	}
	if len(groups) == 0 {
		return "", nil, false
	}
	return "(" + strings.Join(groups, " OR ") + ")", args, true
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
