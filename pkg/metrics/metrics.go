// Package metrics exposes Prometheus collectors for the HTTP layer and the
// insight/alert scans.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered on a single registry
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	InsightsCreated *prometheus.CounterVec
	AlertsCreated   *prometheus.CounterVec
	ScanDuration    *prometheus.HistogramVec
	ScanFailures    *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		InsightsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_created_total",
			Help:      "Insights newly stored by the rule engine.",
		}, []string{"type", "priority"}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Stock alerts newly stored by the alert scanner.",
		}, []string{"type", "level"}),
		ScanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of insight and alert scans.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"scan"}),
		ScanFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_failures_total",
			Help:      "Scans that returned an error.",
		}, []string{"scan"}),
	}

	reg.MustRegister(
		m.httpRequests, m.httpDuration,
		m.InsightsCreated, m.AlertsCreated, m.ScanDuration, m.ScanFailures,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveScan records a scan's duration and failure. Safe on a nil receiver.
func (m *Metrics) ObserveScan(scan string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.ScanDuration.WithLabelValues(scan).Observe(time.Since(started).Seconds())
	if err != nil {
		m.ScanFailures.WithLabelValues(scan).Inc()
	}
}

// InsightCreated increments the insight counter. Safe on a nil receiver.
func (m *Metrics) InsightCreated(insightType, priority string) {
	if m == nil {
		return
	}
	m.InsightsCreated.WithLabelValues(insightType, priority).Inc()
}

// AlertCreated increments the alert counter. Safe on a nil receiver.
func (m *Metrics) AlertCreated(alertType, level string) {
	if m == nil {
		return
	}
	m.AlertsCreated.WithLabelValues(alertType, level).Inc()
}

// Middleware records request count and latency labelled by chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
