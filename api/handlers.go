/*
handlers.go - HTTP API handlers for the revenue analytics engine

PURPOSE:
  Exposes analytics.Service and etl.Ingester over REST. Handles HTTP
  request/response, JSON serialization, and delegates to the engine.

ENDPOINTS:
  Health:
    GET    /healthz                     Store health (SELECT 1)

  Dashboard:
    GET    /api/overview                Totals + service breakdown
    GET    /api/services                Grouped by service type
    GET    /api/business-units          Grouped by business unit
    GET    /api/customers               Grouped by customer
    GET    /api/dashboard               Overview, business units, customers
    GET    /api/trends                  ?year=&service_type=
    GET    /api/validation/{year}       Data-quality report
    GET    /api/years                   Years with data

  Ingestion:
    POST   /api/ingest                  JSON rows + confirmations
    POST   /api/ingest/upload           multipart "file" (.csv / .xlsx)

PERIOD PARAMETERS:
  Single:  year=2025&period=MTD|QTD|YTD|YEAR|NONE&month=Mar&quarter=Q1
  Multi:   multi=true&years=2024,2025&months=Jan,Feb&quarters=Q3

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Unparseable period, month, quarter, year or body
  - 500: Store and internal errors
  Empty periods (NONE, no year, nothing compliant) are 200 with zero
  totals and a reason.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo dataset loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/warp/revenue-engine/analytics"
	"github.com/warp/revenue-engine/etl"
	"github.com/warp/revenue-engine/period"
	"github.com/warp/revenue-engine/store"
	"golang.org/x/sync/errgroup"
)

// maxUploadSize bounds multipart uploads held in memory.
const maxUploadSize = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Database is the store the handlers need.
type Database interface {
	store.Store
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     Database
	Analytics *analytics.Service
	Ingester  *etl.Ingester

	Logger         zerolog.Logger
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string

	// Clock dates demo scenarios; nil means time.Now.
	Clock func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler around an open store.
func NewHandler(db Database, svc *analytics.Service, ing *etl.Ingester) *Handler {
	return &Handler{
		Store:          db,
		Analytics:      svc,
		Ingester:       ing,
		Logger:         zerolog.Nop(),
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports whether the store answers SELECT 1.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, HealthDTO{Status: "ok"})
}

// =============================================================================
// DASHBOARD ENDPOINTS
// =============================================================================

// GetOverview returns totals and the service breakdown.
// GET /api/overview
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	spec, err := parseSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	data, err := h.Analytics.GetOverviewData(r.Context(), spec)
	if err != nil {
		writeQueryError(w, "Failed to load overview", err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// GetServices returns the service-type breakdown.
// GET /api/services
func (h *Handler) GetServices(w http.ResponseWriter, r *http.Request) {
	h.breakdown(w, r, h.Analytics.GetServiceBreakdown, "Failed to load services")
}

// GetBusinessUnits returns the business-unit breakdown.
// GET /api/business-units
func (h *Handler) GetBusinessUnits(w http.ResponseWriter, r *http.Request) {
	h.breakdown(w, r, h.Analytics.GetBusinessUnitData, "Failed to load business units")
}

// GetCustomers returns the customer breakdown.
// GET /api/customers
func (h *Handler) GetCustomers(w http.ResponseWriter, r *http.Request) {
	h.breakdown(w, r, h.Analytics.GetCustomerData, "Failed to load customers")
}

type breakdownFunc func(context.Context, period.Spec) (*analytics.BreakdownData, error)

func (h *Handler) breakdown(w http.ResponseWriter, r *http.Request, load breakdownFunc, failure string) {
	spec, err := parseSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	data, err := load(r.Context(), spec)
	if err != nil {
		writeQueryError(w, failure, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// GetDashboard loads overview, business units and customers concurrently.
// GET /api/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	spec, err := parseSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	var dto DashboardDTO
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		dto.Overview, err = h.Analytics.GetOverviewData(ctx, spec)
		return err
	})
	g.Go(func() error {
		var err error
		dto.BusinessUnits, err = h.Analytics.GetBusinessUnitData(ctx, spec)
		return err
	})
	g.Go(func() error {
		var err error
		dto.Customers, err = h.Analytics.GetCustomerData(ctx, spec)
		return err
	})
	if err := g.Wait(); err != nil {
		writeQueryError(w, "Failed to load dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetTrends returns compliant months of one year.
// GET /api/trends?year=2025&service_type=Cloud
func (h *Handler) GetTrends(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	serviceType := strings.TrimSpace(r.URL.Query().Get("service_type"))

	points, err := h.Analytics.GetMonthlyTrends(r.Context(), year, serviceType)
	if err != nil {
		writeQueryError(w, "Failed to load trends", err)
		return
	}
	writeJSON(w, http.StatusOK, TrendsDTO{Year: year, ServiceType: serviceType, Points: points})
}

// GetValidation returns the analysis-period validation of one year.
// GET /api/validation/{year}
func (h *Handler) GetValidation(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(chi.URLParam(r, "year"))
	if err != nil || year <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	v, err := h.Analytics.GetAnalysisPeriodValidation(r.Context(), year)
	if err != nil {
		writeQueryError(w, "Failed to validate period", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetYears lists the years with data.
// GET /api/years
func (h *Handler) GetYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.Analytics.GetAvailableYears(r.Context())
	if err != nil {
		writeQueryError(w, "Failed to list years", err)
		return
	}
	writeJSON(w, http.StatusOK, YearsDTO{Years: years})
}

// =============================================================================
// INGESTION ENDPOINTS
// =============================================================================

// Ingest stores JSON rows.
// POST /api/ingest
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "No rows to ingest", nil)
		return
	}
	h.ingest(w, r, req.Rows, req.Confirmations)
}

// UploadFile stores the rows of an uploaded CSV or XLSX file. An optional
// "confirmations" form field carries a JSON array of confirmations.
// POST /api/ingest/upload
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file", err)
		return
	}
	defer file.Close()

	rows, err := etl.ParseFile(header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse file", err)
		return
	}

	var confirmations []etl.Confirmation
	if raw := r.FormValue("confirmations"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &confirmations); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid confirmations", err)
			return
		}
	}
	zerolog.Ctx(r.Context()).Info().
		Str("file", header.Filename).
		Int("rows", len(rows)).
		Msg("upload parsed")

	h.ingest(w, r, rows, confirmations)
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, rows []etl.Row, confirmations []etl.Confirmation) {
	res, err := h.Ingester.InsertData(r.Context(), rows, etl.Options{Confirmations: confirmations})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to ingest data", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// PARAMETERS
// =============================================================================

// parseSpec reads the period parameters of a dashboard request.
func parseSpec(r *http.Request) (period.Spec, error) {
	q := r.URL.Query()

	kind, err := period.ParseKind(q.Get("period"))
	if err != nil {
		return period.Spec{}, err
	}
	spec := period.Spec{
		Kind:    kind,
		Month:   strings.TrimSpace(q.Get("month")),
		Quarter: strings.TrimSpace(q.Get("quarter")),
	}

	if multi, _ := strconv.ParseBool(q.Get("multi")); multi {
		spec.MultiSelect = true
		spec.SelectedMonths = splitList(q.Get("months"))
		spec.SelectedQuarters = splitList(q.Get("quarters"))
		for _, s := range splitList(q.Get("years")) {
			y, err := parseYear(s)
			if err != nil {
				return period.Spec{}, err
			}
			spec.SelectedYears = append(spec.SelectedYears, y)
		}
		return spec, nil
	}

	spec.Year, err = parseYear(q.Get("year"))
	if err != nil {
		return period.Spec{}, err
	}
	return spec, nil
}

// parseYear returns 0 for an empty value.
func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 0 {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return y, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeQueryError maps period parse errors to 400, everything else to 500.
func writeQueryError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, period.ErrInvalidMonth) ||
		errors.Is(err, period.ErrInvalidQuarter) ||
		errors.Is(err, period.ErrInvalidKind) {
		status = http.StatusBadRequest
	}
	writeError(w, status, message, err)
}
