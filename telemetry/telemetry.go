/*
telemetry.go - Prometheus counters for the store and ingestion paths

PURPOSE:
  Counts the events an operator needs to see when the dashboard misbehaves:
  store retries (busy vs reconnect), exhausted retry budgets, and ETL record
  outcomes. Collectors are registered on an explicit Registerer so tests can
  use a private registry.

NIL SAFETY:
  All methods accept a nil *Metrics and do nothing. Components take an
  optional *Metrics and never need to check it.

SEE ALSO:
  - store/resilient.go: ObserveRetry, ObserveExhausted
  - etl/ingest.go: ObserveIngest
  - api/server.go: /metrics endpoint
*/
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Retry reasons used as label values.
const (
	ReasonBusy      = "busy"
	ReasonReconnect = "reconnect"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	storeRetries   *prometheus.CounterVec
	storeExhausted *prometheus.CounterVec
	ingestRecords  *prometheus.CounterVec
	ingestBatches  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		storeRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revenue",
			Subsystem: "store",
			Name:      "retries_total",
			Help:      "Store operations retried, by reason.",
		}, []string{"op", "reason"}),
		storeExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revenue",
			Subsystem: "store",
			Name:      "retries_exhausted_total",
			Help:      "Store operations that failed after the retry budget.",
		}, []string{"op"}),
		ingestRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revenue",
			Subsystem: "etl",
			Name:      "records_total",
			Help:      "Ingested records, by outcome.",
		}, []string{"outcome"}),
		ingestBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revenue",
			Subsystem: "etl",
			Name:      "batches_total",
			Help:      "Ingestion batches, by status.",
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(m.storeRetries, m.storeExhausted, m.ingestRecords, m.ingestBatches)
	}
	return m
}

// ObserveRetry counts one retry of op for the given reason.
func (m *Metrics) ObserveRetry(op, reason string) {
	if m == nil {
		return
	}
	m.storeRetries.WithLabelValues(op, reason).Inc()
}

// ObserveExhausted counts an operation that ran out of retries.
func (m *Metrics) ObserveExhausted(op string) {
	if m == nil {
		return
	}
	m.storeExhausted.WithLabelValues(op).Inc()
}

// IngestOutcome is the per-batch tally reported by the ETL.
type IngestOutcome struct {
	Inserted  int
	Updated   int
	Corrected int
	Errors    int
	Pending   int
	Failed    bool
}

// ObserveIngest records the outcome of one ingestion batch.
func (m *Metrics) ObserveIngest(o IngestOutcome) {
	if m == nil {
		return
	}
	m.ingestRecords.WithLabelValues("inserted").Add(float64(o.Inserted))
	m.ingestRecords.WithLabelValues("updated").Add(float64(o.Updated))
	m.ingestRecords.WithLabelValues("corrected").Add(float64(o.Corrected))
	m.ingestRecords.WithLabelValues("error").Add(float64(o.Errors))
	m.ingestRecords.WithLabelValues("pending").Add(float64(o.Pending))
	status := "committed"
	if o.Failed {
		status = "failed"
	}
	m.ingestBatches.WithLabelValues(status).Inc()
}
