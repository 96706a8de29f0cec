/*
calendar.go - Calendar days, month status and proration

PURPOSE:
  Everything that depends on "how many days does this month have" and
  "how far into it are we". All functions are pure: the current time is
  passed in, never read from the clock.

KEY FUNCTIONS:
  IsLeapYear, DaysIn:   Gregorian rules incl. the century exception
  StatusOf:             Past / current / future relative to now
  ElapsedDays:          Days elapsed in a month as of now
  Prorate:              Scale a full-month value to the elapsed fraction

SEE ALSO:
  - days.go: Days-worked validation built on these
  - etl/ingest.go: Current-month proration during ingestion
*/
package calendar

import "time"

// =============================================================================
// CALENDAR DAYS
// =============================================================================

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

var monthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysIn returns the number of days in month (1-12) of year.
// It returns 0 for a month outside 1-12.
func DaysIn(year, month int) int {
	if month < 1 || month > 12 {
		return 0
	}
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	return monthDays[month-1]
}

// =============================================================================
// MONTH STATUS
// =============================================================================

// Status places a month relative to the current date.
type Status int

const (
	Past Status = iota
	Current
	Future
)

func (s Status) String() string {
	switch s {
	case Past:
		return "past"
	case Current:
		return "current"
	default:
		return "future"
	}
}

// StatusOf reports whether (year, month) is fully elapsed, in progress or
// not started as of now.
func StatusOf(year, month int, now time.Time) Status {
	ny, nm := now.Year(), int(now.Month())
	switch {
	case year < ny || (year == ny && month < nm):
		return Past
	case year == ny && month == nm:
		return Current
	default:
		return Future
	}
}

// ElapsedDays returns how many days of the month have elapsed as of now,
// counting today. Past months return the full month, future months 0.
func ElapsedDays(year, month int, now time.Time) int {
	switch StatusOf(year, month, now) {
	case Past:
		return DaysIn(year, month)
	case Current:
		return now.Day()
	default:
		return 0
	}
}

// =============================================================================
// PRORATION
// =============================================================================

// Prorate scales a full-month value to elapsed/calendarDays. A non-positive
// calendarDays leaves the value unchanged.
func Prorate(value float64, elapsed, calendarDays int) float64 {
	if calendarDays <= 0 {
		return value
	}
	return value * float64(elapsed) / float64(calendarDays)
}
