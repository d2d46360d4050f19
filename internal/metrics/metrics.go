package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the API collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeRequests      prometheus.Gauge

	importsTotal        *prometheus.CounterVec
	importedLeads       prometheus.Counter
	duplicateCandidates prometheus.Counter
	invalidRows         prometheus.Counter
	bulkActionsTotal    *prometheus.CounterVec
	bulkAffectedLeads   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		activeRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_requests",
				Help: "Number of in-flight HTTP requests",
			},
		),
		importsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_imports_total",
				Help: "CSV imports by outcome",
			},
			[]string{"outcome"},
		),
		importedLeads: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lead_imported_total",
				Help: "Leads inserted by CSV imports",
			},
		),
		duplicateCandidates: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lead_import_duplicate_candidates_total",
				Help: "Imported rows flagged as possible duplicates",
			},
		),
		invalidRows: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lead_import_invalid_rows_total",
				Help: "Imported rows rejected by validity rules",
			},
		),
		bulkActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_bulk_actions_total",
				Help: "Bulk lead actions by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		bulkAffectedLeads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_bulk_affected_total",
				Help: "Leads changed by bulk actions",
			},
			[]string{"action"},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.activeRequests.Inc()
		defer m.activeRequests.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) RecordImport(outcome string, imported, duplicates, invalid int) {
	if m == nil {
		return
	}
	m.importsTotal.WithLabelValues(outcome).Inc()
	m.importedLeads.Add(float64(imported))
	m.duplicateCandidates.Add(float64(duplicates))
	m.invalidRows.Add(float64(invalid))
}

func (m *Metrics) RecordBulkAction(action, outcome string, affected int64) {
	if m == nil {
		return
	}
	m.bulkActionsTotal.WithLabelValues(action, outcome).Inc()
	if affected > 0 {
		m.bulkAffectedLeads.WithLabelValues(action).Add(float64(affected))
	}
}
