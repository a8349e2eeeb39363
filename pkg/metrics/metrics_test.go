package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New("pharmacy")

	m.InsightCreated("restocking", "high")
	m.InsightCreated("restocking", "high")
	m.AlertCreated("expired", "critical")
	m.ObserveScan("alerts", time.Now(), errors.New("boom"))
	m.ObserveScan("alerts", time.Now(), nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.InsightsCreated.WithLabelValues("restocking", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsCreated.WithLabelValues("expired", "critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScanFailures.WithLabelValues("alerts")))
}

func TestNilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.InsightCreated("expiry_risk", "medium")
		m.AlertCreated("low_stock", "critical")
		m.ObserveScan("insights", time.Now(), nil)
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New("pharmacy")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/alerts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/alerts/abc", nil))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `pharmacy_http_requests_total{method="GET",route="/alerts/{id}",status="418"} 1`)
}
