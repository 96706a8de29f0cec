package calendar

import (
	"fmt"
	"time"
)

// ValidationType classifies the outcome of ValidateDays.
type ValidationType string

const (
	Valid                ValidationType = "valid"
	AutoCorrected        ValidationType = "auto-corrected"
	ConfirmationRequired ValidationType = "confirmation-required"
)

// Confidence describes how sure the validator is about its suggestion.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// DaysValidation is the result of checking a reported "days worked" value.
//
// CorrectedDays is the value to store. It equals the reported value unless
// ValidationType is AutoCorrected. SuggestedDays is what the caller should
// offer the user when confirmation is required.
type DaysValidation struct {
	IsValid        bool           `json:"isValid"`
	CorrectedDays  float64        `json:"correctedDays"`
	ValidationType ValidationType `json:"validationType"`
	Message        string         `json:"message"`
	SuggestedDays  float64        `json:"suggestedDays"`
	Confidence     Confidence     `json:"confidence"`
	CalendarDays   int            `json:"calendarDays"`
	Status         string         `json:"monthStatus"`
}

// ValidateDays checks a reported days value for (year, month) as of now.
//
// Spreadsheets sometimes carry 1 where "the whole month" was meant.
// Prorating by 1/31 would deflate targets and costs by ~97%, so for months
// that are not in progress an obviously wrong value (<= 1 or more than the
// month has) is corrected to the calendar days. Anything else that does
// not match is handed back for confirmation instead of being guessed.
func ValidateDays(year, month int, reported float64, now time.Time) DaysValidation {
	calDays := DaysIn(year, month)
	status := StatusOf(year, month, now)
	v := DaysValidation{
		CorrectedDays: reported,
		SuggestedDays: float64(calDays),
		CalendarDays:  calDays,
		Status:        status.String(),
	}

	if reported == float64(calDays) {
		v.IsValid = true
		v.ValidationType = Valid
		v.Confidence = ConfidenceHigh
		v.Message = fmt.Sprintf("%s %d has %d days", monthLabel(month), year, calDays)
		return v
	}

	if status == Current {
		elapsed := now.Day()
		v.SuggestedDays = float64(elapsed)
		if reported == float64(elapsed) {
			v.IsValid = true
			v.ValidationType = Valid
			v.Confidence = ConfidenceHigh
			v.Message = fmt.Sprintf("%s %d is in progress, %d days elapsed", monthLabel(month), year, elapsed)
			return v
		}
		v.ValidationType = ConfirmationRequired
		v.Confidence = ConfidenceMedium
		v.Message = fmt.Sprintf("%s %d is in progress: reported %g days, %d elapsed; please confirm",
			monthLabel(month), year, reported, elapsed)
		return v
	}

	if reported <= 1 || reported > float64(calDays) {
		v.CorrectedDays = float64(calDays)
		v.ValidationType = AutoCorrected
		v.Confidence = ConfidenceHigh
		v.Message = fmt.Sprintf("%s %d is %s: reported %g days corrected to %d",
			monthLabel(month), year, status, reported, calDays)
		return v
	}

	v.ValidationType = ConfirmationRequired
	v.Confidence = ConfidenceLow
	v.Message = fmt.Sprintf("%s %d is %s: reported %g of %d days, partial month? please confirm",
		monthLabel(month), year, status, reported, calDays)
	return v
}

func monthLabel(month int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("month %d", month)
	}
	return time.Month(month).String()[:3]
}
