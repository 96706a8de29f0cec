package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/revenue-engine/calendar"
)

var now = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

// =============================================================================
// CALENDAR DAYS
// =============================================================================

func TestDaysIn_MatchesGoCalendar(t *testing.T) {
	for year := 1896; year <= 2404; year++ {
		for month := 1; month <= 12; month++ {
			want := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
			if got := calendar.DaysIn(year, month); got != want {
				t.Fatalf("DaysIn(%d, %d) = %d, want %d", year, month, got, want)
			}
		}
	}
}

func TestDaysIn_CenturyLeapYears(t *testing.T) {
	assert.Equal(t, 29, calendar.DaysIn(2000, 2))
	assert.Equal(t, 28, calendar.DaysIn(1900, 2))
	assert.Equal(t, 29, calendar.DaysIn(2024, 2))
	assert.Equal(t, 28, calendar.DaysIn(2025, 2))
	assert.Equal(t, 0, calendar.DaysIn(2025, 13))
}

func TestStatusAndElapsed(t *testing.T) {
	assert.Equal(t, calendar.Past, calendar.StatusOf(2025, 2, now))
	assert.Equal(t, calendar.Past, calendar.StatusOf(2024, 12, now))
	assert.Equal(t, calendar.Current, calendar.StatusOf(2025, 3, now))
	assert.Equal(t, calendar.Future, calendar.StatusOf(2025, 4, now))

	assert.Equal(t, 28, calendar.ElapsedDays(2025, 2, now))
	assert.Equal(t, 10, calendar.ElapsedDays(2025, 3, now))
	assert.Equal(t, 0, calendar.ElapsedDays(2026, 1, now))
}

func TestProrate(t *testing.T) {
	assert.InDelta(t, 1000.0*10/31, calendar.Prorate(1000, 10, 31), 1e-9)
	assert.Equal(t, 500.0, calendar.Prorate(500, 3, 0))
}

// =============================================================================
// DAYS VALIDATION
// =============================================================================

func TestValidateDays_JanuaryOneIsAutoCorrected(t *testing.T) {
	// GIVEN: January 2025 is fully elapsed and the sheet says 1 day
	v := calendar.ValidateDays(2025, 1, 1, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC))

	assert.False(t, v.IsValid)
	assert.Equal(t, 31.0, v.CorrectedDays)
	assert.Equal(t, calendar.AutoCorrected, v.ValidationType)
	assert.Equal(t, calendar.ConfidenceHigh, v.Confidence)
}

func TestValidateDays_MessageNamesMonth(t *testing.T) {
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	assert.Contains(t, calendar.ValidateDays(2025, 9, 1, now).Message, "Sep 2025")
	assert.Contains(t, calendar.ValidateDays(2026, 10, 16, now).Message, "Oct 2026")
}

func TestValidateDays_Cases(t *testing.T) {
	tests := []struct {
		name        string
		year        int
		month       int
		reported    float64
		wantType    calendar.ValidationType
		wantStored  float64
		wantSuggest float64
	}{
		{"exact calendar days", 2025, 2, 28, calendar.Valid, 28, 28},
		{"leap february", 2024, 2, 29, calendar.Valid, 29, 29},
		{"zero past month", 2025, 1, 0, calendar.AutoCorrected, 31, 31},
		{"too many days", 2025, 2, 31, calendar.AutoCorrected, 28, 28},
		{"partial past month", 2025, 1, 15, calendar.ConfirmationRequired, 15, 31},
		{"current month elapsed", 2025, 3, 10, calendar.Valid, 10, 10},
		{"current month full", 2025, 3, 31, calendar.Valid, 31, 31},
		{"current month one", 2025, 3, 1, calendar.ConfirmationRequired, 1, 10},
		{"future month one", 2025, 6, 1, calendar.AutoCorrected, 30, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := calendar.ValidateDays(tt.year, tt.month, tt.reported, now)
			assert.Equal(t, tt.wantType, v.ValidationType)
			assert.Equal(t, tt.wantStored, v.CorrectedDays)
			assert.Equal(t, tt.wantSuggest, v.SuggestedDays)
			assert.Equal(t, tt.wantType == calendar.Valid, v.IsValid)
			assert.NotEmpty(t, v.Message)
		})
	}
}
