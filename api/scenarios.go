/*
scenarios.go - Demo datasets for testing and demonstrations

PURPOSE:

	Provides pre-built datasets that populate the store with realistic
	revenue data for demos. Each one exercises a specific behaviour of the
	engine: compliance gating, over-achievement, multi-year selection,
	days correction and current-month proration.

AVAILABLE SCENARIOS:

	half-year:        Jan-Jun complete, Jul-Dec missing cost
	over-achievement: Every account at 150% of target
	multi-year:       Two complete years for period comparisons
	day-corrections:  Spreadsheet "1 day" rows and ambiguous partial months
	in-progress:      Current month loaded mid-month, prorated

HOW SCENARIOS WORK:
 1. Build rows the way an upload would deliver them
 2. Ingest through etl.Ingester with Replace set: the old records are
    deleted in the same transaction, so a failed load keeps them

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "half-year"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add a row builder to 'scenarioRows'

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - etl/ingest.go: InsertData
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/revenue-engine/calendar"
	"github.com/warp/revenue-engine/etl"
	"github.com/warp/revenue-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "half-year",
		Name:        "Half Year Loaded",
		Description: "Jan-Jun fully loaded, Jul-Dec have revenue and target but no cost yet",
		Category:    "compliance",
	},
	{
		ID:          "over-achievement",
		Name:        "Over-Achievement",
		Description: "Every account delivers 150% of target; performance cost scales with it",
		Category:    "metrics",
	},
	{
		ID:          "multi-year",
		Name:        "Multi-Year",
		Description: "Two complete years for year-over-year and multi-select periods",
		Category:    "periods",
	},
	{
		ID:          "day-corrections",
		Name:        "Day Corrections",
		Description: "Rows reporting 1 day for full past months, plus ambiguous partial months",
		Category:    "etl",
	},
	{
		ID:          "in-progress",
		Name:        "In-Progress Month",
		Description: "Year to date including the current month, prorated by elapsed days",
		Category:    "etl",
	},
}

// scenarioRows builds the rows of a scenario as of now.
var scenarioRows = map[string]func(now time.Time) []etl.Row{
	"half-year":        halfYearRows,
	"over-achievement": overAchievementRows,
	"multi-year":       multiYearRows,
	"day-corrections":  dayCorrectionRows,
	"in-progress":      inProgressRows,
}

// account is one customer/service line of the demo portfolio.
type account struct {
	customer string
	service  string
	unit     string
	revenue  float64 // monthly target revenue
	margin   float64 // planned cost as a share of target
}

var portfolio = []account{
	{"Northwind", "Managed Cloud", "Enterprise", 42000, 0.62},
	{"Northwind", "Support", "Enterprise", 8000, 0.45},
	{"Contoso", "Managed Cloud", "Enterprise", 31000, 0.58},
	{"Fabrikam", "Consulting", "Professional Services", 18500, 0.7},
	{"Tailspin", "Support", "SMB", 4200, 0.5},
	{"Wingtip", "Consulting", "Professional Services", 12000, 0.66},
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns all available demo datasets.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded dataset, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
}

// LoadScenario resets the store and ingests a demo dataset.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	build, ok := scenarioRows[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	res, err := h.loadScenario(r.Context(), req.ScenarioID, build)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "scenario": req.ScenarioID, "result": res})
}

// ResetDatabase deletes every revenue record.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := sqlite.Reset(r.Context(), h.Store); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) loadScenario(ctx context.Context, id string, build func(time.Time) []etl.Row) (*etl.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := h.Ingester.InsertData(ctx, build(h.now()), etl.Options{Replace: true})
	if err != nil {
		return nil, err
	}
	h.currentScenario = id
	return res, nil
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// =============================================================================
// ROW BUILDERS
// =============================================================================

func monthRow(a account, year, month int, revenue, target, cost float64, days any) etl.Row {
	return etl.Row{
		"Customer":              a.customer,
		"Service Type":          a.service,
		"Business Unit":         a.unit,
		"Year":                  year,
		"Month":                 month,
		"Revenue":               revenue,
		"Target":                target,
		"Cost":                  cost,
		"Receivables Collected": revenue * 0.9,
		"Days":                  days,
	}
}

// seasonal nudges revenue by month so trends are not flat.
func seasonal(month int) float64 {
	return []float64{0.92, 0.95, 1.02, 1.0, 1.04, 1.08, 0.9, 0.88, 1.03, 1.06, 1.1, 1.12}[month-1]
}

func halfYearRows(now time.Time) []etl.Row {
	year := now.Year() - 1
	var rows []etl.Row
	for _, a := range portfolio {
		for m := 1; m <= 12; m++ {
			target := a.revenue
			cost := target * a.margin
			if m > 6 {
				cost = 0
			}
			rows = append(rows, monthRow(a, year, m, target*seasonal(m), target, cost, calendar.DaysIn(year, m)))
		}
	}
	return rows
}

func overAchievementRows(now time.Time) []etl.Row {
	year := now.Year() - 1
	var rows []etl.Row
	for _, a := range portfolio {
		for m := 1; m <= 12; m++ {
			target := a.revenue
			rows = append(rows, monthRow(a, year, m, target*1.5, target, target*a.margin, calendar.DaysIn(year, m)))
		}
	}
	return rows
}

func multiYearRows(now time.Time) []etl.Row {
	var rows []etl.Row
	for _, year := range []int{now.Year() - 2, now.Year() - 1} {
		growth := 1.0
		if year == now.Year()-1 {
			growth = 1.12
		}
		for _, a := range portfolio {
			for m := 1; m <= 12; m++ {
				target := a.revenue * growth
				rows = append(rows, monthRow(a, year, m, target*seasonal(m), target, target*a.margin, calendar.DaysIn(year, m)))
			}
		}
	}
	return rows
}

func dayCorrectionRows(now time.Time) []etl.Row {
	year := now.Year() - 1
	var rows []etl.Row
	for i, a := range portfolio {
		for m := 1; m <= 12; m++ {
			target := a.revenue
			var days any = calendar.DaysIn(year, m)
			switch {
			case i%2 == 0 && m <= 3:
				days = 1
			case i == 1 && m == 8:
				days = 20
			}
			rows = append(rows, monthRow(a, year, m, target*seasonal(m), target, target*a.margin, days))
		}
	}
	return rows
}

func inProgressRows(now time.Time) []etl.Row {
	year, current := now.Year(), int(now.Month())
	var rows []etl.Row
	for _, a := range portfolio {
		for m := 1; m <= current; m++ {
			target := a.revenue
			revenue := target * seasonal(m)
			days := calendar.DaysIn(year, m)
			if m == current {
				days = now.Day()
				revenue = revenue * float64(days) / float64(calendar.DaysIn(year, m))
			}
			rows = append(rows, monthRow(a, year, m, revenue, target, target*a.margin, days))
		}
	}
	return rows
}
