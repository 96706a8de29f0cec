/*
ingest.go - Batch ingestion of revenue records

PURPOSE:
  Turns a batch of raw rows into stored revenue records. This is the only
  writer of the revenue_records table.

PIPELINE (per row, in input order):
  1. Normalize       column aliases -> Record
  2. Required fields customer, service type, year, month
  3. Days            calendar.ValidateDays; caller confirmations win
  4. Proration       current month only: original * elapsed / calendar days
  5. Upsert          by (customer, service_type, year, month)

CORRECTIONS:
  Each call builds its own Corrections set from the confirmations passed
  in by the caller; auto-corrections found in the batch are reported in
  Result.Corrections. Nothing survives between calls. A row that needs
  confirmation is stored with the days it reported and listed in
  Result.Pending so the caller can confirm and re-submit.

TRANSACTION:
  The batch runs inside one store transaction. With Options.Replace the
  existing records are deleted inside that same transaction first. A row that fails to parse,
  misses a required field or violates a constraint is counted in
  Result.Errors and the batch continues. Any other store error aborts the
  transaction and is returned; nothing from the batch is committed.

SEE ALSO:
  - record.go: Normalize
  - calendar/days.go: ValidateDays
  - store/resilient.go: WithTx
*/
package etl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/revenue-engine/calendar"
	"github.com/warp/revenue-engine/store"
	"github.com/warp/revenue-engine/store/sqlite"
	"github.com/warp/revenue-engine/telemetry"
)

// =============================================================================
// TYPES
// =============================================================================

// Confirmation is a caller's answer to a pending days question.
type Confirmation struct {
	Key
	Days float64 `json:"days"`
}

// Options tunes one InsertData call.
type Options struct {
	Confirmations []Confirmation
	// Replace deletes every stored record in the same transaction before
	// the batch is loaded. An aborted batch leaves the old records intact.
	Replace bool
}

// Correction records a days value that was changed before storage.
type Correction struct {
	Row          int                     `json:"row"`
	Key          Key                     `json:"key"`
	ReportedDays float64                 `json:"reportedDays"`
	Days         float64                 `json:"days"`
	Source       calendar.ValidationType `json:"source"`
	Message      string                  `json:"message"`
}

// PendingConfirmation is a row stored with its reported days that the
// caller should confirm.
type PendingConfirmation struct {
	Row           int                 `json:"row"`
	Key           Key                 `json:"key"`
	ReportedDays  float64             `json:"reportedDays"`
	SuggestedDays float64             `json:"suggestedDays"`
	Confidence    calendar.Confidence `json:"confidence"`
	Message       string              `json:"message"`
}

// RecordError describes one row that was not stored.
type RecordError struct {
	Row     int    `json:"row"`
	Key     *Key   `json:"key,omitempty"`
	Message string `json:"message"`
}

// Result summarises one InsertData call. Row numbers are 1-based input
// positions.
type Result struct {
	Success      bool                  `json:"success"`
	BatchID      string                `json:"batchId"`
	TotalRecords int                   `json:"totalRecords"`
	Inserted     int                   `json:"inserted"`
	Updated      int                   `json:"updated"`
	Errors       int                   `json:"errors"`
	Corrected    int                   `json:"corrected"`
	Pending      []PendingConfirmation `json:"pending"`
	Corrections  []Correction          `json:"corrections"`
	RecordErrors []RecordError         `json:"recordErrors"`
}

// Corrections holds the caller-confirmed days of one batch, keyed by
// natural key. Later confirmations for the same key replace earlier ones.
type Corrections map[Key]float64

func newCorrections(confirmed []Confirmation) Corrections {
	c := make(Corrections, len(confirmed))
	for _, conf := range confirmed {
		c[conf.Key] = conf.Days
	}
	return c
}

// =============================================================================
// INGESTER
// =============================================================================

// Ingester writes batches into the store.
type Ingester struct {
	db       store.Store
	now      func() time.Time
	metrics  *telemetry.Metrics
	validate *validator.Validate
}

// IngesterOption customises an Ingester.
type IngesterOption func(*Ingester)

// WithClock fixes "now" for month status and proration.
func WithClock(now func() time.Time) IngesterOption {
	return func(i *Ingester) { i.now = now }
}

// WithMetrics reports batch outcomes to m.
func WithMetrics(m *telemetry.Metrics) IngesterOption {
	return func(i *Ingester) { i.metrics = m }
}

// NewIngester creates an Ingester writing to db.
func NewIngester(db store.Store, opts ...IngesterOption) *Ingester {
	i := &Ingester{
		db:       db,
		now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// InsertData ingests rows in one transaction.
func (i *Ingester) InsertData(ctx context.Context, rows []Row, opts Options) (*Result, error) {
	now := i.now()
	res := &Result{
		BatchID:      uuid.NewString(),
		TotalRecords: len(rows),
	}
	logger := zerolog.Ctx(ctx).With().Str("batch_id", res.BatchID).Logger()

	err := i.db.WithTx(ctx, func(tx store.Querier) error {
		if opts.Replace {
			if err := sqlite.Reset(ctx, tx); err != nil {
				return err
			}
		}
		corrections := newCorrections(opts.Confirmations)

		for idx, raw := range rows {
			if err := i.insertRow(ctx, tx, idx+1, raw, corrections, now, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		i.metrics.ObserveIngest(telemetry.IngestOutcome{Failed: true})
		logger.Error().Err(err).Int("rows", len(rows)).Msg("ingestion aborted")
		return nil, fmt.Errorf("failed to ingest batch %s: %w", res.BatchID, err)
	}

	res.Success = true
	if res.Pending == nil {
		res.Pending = []PendingConfirmation{}
	}
	if res.Corrections == nil {
		res.Corrections = []Correction{}
	}
	if res.RecordErrors == nil {
		res.RecordErrors = []RecordError{}
	}

	i.metrics.ObserveIngest(telemetry.IngestOutcome{
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		Corrected: res.Corrected,
		Errors:    res.Errors,
		Pending:   len(res.Pending),
	})
	logger.Info().
		Int("total", res.TotalRecords).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("corrected", res.Corrected).
		Int("errors", res.Errors).
		Int("pending", len(res.Pending)).
		Msg("ingestion committed")
	return res, nil
}

// insertRow processes one row. Row-level problems are recorded on res;
// only errors that must abort the transaction are returned.
func (i *Ingester) insertRow(ctx context.Context, tx store.Querier, rowNum int, raw Row, corrections Corrections, now time.Time, res *Result) error {
	rec, err := Normalize(raw)
	if err != nil {
		res.addError(rowNum, nil, err)
		return nil
	}
	key := rec.Key()
	if err := i.checkRequired(rec); err != nil {
		res.addError(rowNum, &key, err)
		return nil
	}

	current := calendar.StatusOf(rec.Year, rec.Month, now) == calendar.Current
	elapsed := calendar.ElapsedDays(rec.Year, rec.Month, now)
	if current && rec.DaysDefaulted {
		rec.Days = float64(elapsed)
	}

	days := i.resolveDays(rowNum, rec, corrections, now, res)

	calDays := calendar.DaysIn(rec.Year, rec.Month)
	target, cost := rec.Target, rec.Cost
	if current {
		target = calendar.Prorate(rec.Target, elapsed, calDays)
		cost = calendar.Prorate(rec.Cost, elapsed, calDays)
	}

	exists, err := recordExists(ctx, tx, key)
	if err != nil {
		return err
	}

	stamp := now.UTC().Format(time.RFC3339)
	_, err = tx.Run(ctx, upsertQuery,
		rec.Customer, rec.ServiceType, rec.BusinessUnit, rec.Year, rec.Month,
		rec.Revenue, target, rec.Target, cost, rec.Cost, rec.Receivables,
		days, calDays, stamp, stamp,
	)
	if err != nil {
		if store.IsConstraint(err) {
			res.addError(rowNum, &key, err)
			return nil
		}
		return fmt.Errorf("row %d (%s): %w", rowNum, key, err)
	}

	if exists {
		res.Updated++
	} else {
		res.Inserted++
	}
	return nil
}

// resolveDays applies caller confirmations, then days validation.
func (i *Ingester) resolveDays(rowNum int, rec Record, corrections Corrections, now time.Time, res *Result) float64 {
	key := rec.Key()
	if confirmed, ok := corrections[key]; ok {
		if confirmed != rec.Days {
			res.Corrected++
			res.Corrections = append(res.Corrections, Correction{
				Row: rowNum, Key: key, ReportedDays: rec.Days, Days: confirmed,
				Source:  calendar.ConfirmationRequired,
				Message: "days confirmed by caller",
			})
		}
		return confirmed
	}

	v := calendar.ValidateDays(rec.Year, rec.Month, rec.Days, now)
	switch v.ValidationType {
	case calendar.AutoCorrected:
		res.Corrected++
		res.Corrections = append(res.Corrections, Correction{
			Row: rowNum, Key: key, ReportedDays: rec.Days, Days: v.CorrectedDays,
			Source: calendar.AutoCorrected, Message: v.Message,
		})
		return v.CorrectedDays
	case calendar.ConfirmationRequired:
		res.Pending = append(res.Pending, PendingConfirmation{
			Row: rowNum, Key: key, ReportedDays: rec.Days, SuggestedDays: v.SuggestedDays,
			Confidence: v.Confidence, Message: v.Message,
		})
	}
	return rec.Days
}

func (i *Ingester) checkRequired(rec Record) error {
	err := i.validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return fmt.Errorf("%w: %s", ErrInvalidValue, strings.Join(invalid, ", "))
}

func (r *Result) addError(rowNum int, key *Key, err error) {
	r.Errors++
	r.RecordErrors = append(r.RecordErrors, RecordError{Row: rowNum, Key: key, Message: err.Error()})
}

// =============================================================================
// SQL
// =============================================================================

const upsertQuery = `
	INSERT INTO revenue_records (
		customer, service_type, business_unit, year, month,
		revenue, target, original_target, cost, original_cost,
		receivables_collected, days, calendar_days, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(customer, service_type, year, month) DO UPDATE SET
		business_unit = excluded.business_unit,
		revenue = excluded.revenue,
		target = excluded.target,
		original_target = excluded.original_target,
		cost = excluded.cost,
		original_cost = excluded.original_cost,
		receivables_collected = excluded.receivables_collected,
		days = excluded.days,
		calendar_days = excluded.calendar_days,
		updated_at = excluded.updated_at
`

func recordExists(ctx context.Context, q store.Querier, k Key) (bool, error) {
	var one int
	err := q.Get(ctx, func(row *sql.Row) error {
		return row.Scan(&one)
	}, `SELECT 1 FROM revenue_records
		WHERE customer = ? AND service_type = ? AND year = ? AND month = ?`,
		k.Customer, k.ServiceType, k.Year, k.Month)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", k, err)
	}
	return true, nil
}
