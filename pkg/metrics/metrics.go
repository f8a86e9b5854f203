package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
)

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BusinessMetrics tracks detector activity. A nil *BusinessMetrics is a no-op.
type BusinessMetrics struct {
	AnalysesTotal    *prometheus.CounterVec   // mode, status
	AnalysisDuration *prometheus.HistogramVec // mode
	RemoteCallsTotal *prometheus.CounterVec   // op, status
	BatchItemsTotal  *prometheus.CounterVec   // status
}

// NewBusinessMetrics registers the detector metrics with reg under namespace.
// A nil reg creates unregistered collectors.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	factory := promauto.With(reg)

	return &BusinessMetrics{
		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of single-text analyses by mode and outcome",
		}, []string{"mode", "status"}),
		AnalysisDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of single-text analyses including remote calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"mode"}),
		RemoteCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Total number of calls to the language-model backend",
		}, []string{"op", "status"}),
		BatchItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Total number of batch items by outcome",
		}, []string{"status"}),
	}
}

// ObserveDurationWithExemplar records seconds on h, attaching the trace ID from ctx as an exemplar
func (m *BusinessMetrics) ObserveDurationWithExemplar(ctx context.Context, h *prometheus.HistogramVec, seconds float64, labels ...string) {
	if m == nil {
		return
	}

	observer := h.WithLabelValues(labels...)
	spanCtx := trace.SpanContextFromContext(ctx)
	if exemplarObserver, ok := observer.(prometheus.ExemplarObserver); ok && spanCtx.HasTraceID() {
		exemplarObserver.ObserveWithExemplar(seconds, prometheus.Labels{
			"trace_id": spanCtx.TraceID().String(),
		})
		return
	}
	observer.Observe(seconds)
}

// RecordAnalysis counts one analysis and observes its duration
func (m *BusinessMetrics) RecordAnalysis(ctx context.Context, mode, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(mode, status).Inc()
	m.ObserveDurationWithExemplar(ctx, m.AnalysisDuration, duration.Seconds(), mode)
}

// RecordRemoteCall counts one remote call for op
func (m *BusinessMetrics) RecordRemoteCall(op string, err error) {
	if m == nil {
		return
	}
	m.RemoteCallsTotal.WithLabelValues(op, statusOf(err)).Inc()
}

// RecordBatchItem counts one batch item outcome
func (m *BusinessMetrics) RecordBatchItem(failed bool) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if failed {
		status = StatusError
	}
	m.BatchItemsTotal.WithLabelValues(status).Inc()
}

// RegisterDBStats exposes sql.DBStats for db under the given name
func RegisterDBStats(reg prometheus.Registerer, db *sql.DB, dbName string) error {
	return reg.Register(collectors.NewDBStatsCollector(db, dbName))
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
