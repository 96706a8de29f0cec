/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes that only exist at the HTTP boundary. Analytics and ETL
  results are already plain structs with json tags and are returned as-is;
  the types here wrap them or carry request bodies.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - analytics/types.go, etl/ingest.go: Embedded result types
*/
package api

import (
	"github.com/warp/revenue-engine/analytics"
	"github.com/warp/revenue-engine/etl"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// IngestRequest is the body of POST /api/ingest.
type IngestRequest struct {
	Rows          []etl.Row          `json:"rows"`
	Confirmations []etl.Confirmation `json:"confirmations,omitempty"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// DashboardDTO bundles the views the dashboard page shows together.
type DashboardDTO struct {
	Overview      *analytics.OverviewData  `json:"overview"`
	BusinessUnits *analytics.BreakdownData `json:"businessUnits"`
	Customers     *analytics.BreakdownData `json:"customers"`
}

// TrendsDTO is the response of GET /api/trends.
type TrendsDTO struct {
	Year        int                    `json:"year"`
	ServiceType string                 `json:"serviceType,omitempty"`
	Points      []analytics.TrendPoint `json:"points"`
}

// YearsDTO lists the years with data.
type YearsDTO struct {
	Years []int `json:"years"`
}

// HealthDTO is the response of GET /healthz.
type HealthDTO struct {
	Status string `json:"status"`
}

// ScenarioDTO describes a demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
