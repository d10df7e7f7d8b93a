package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()
	m.ObserveSubmission("created")
	m.ObserveSubmission("created")
	m.ObserveTransition("pending", "under_review", "applied")
	m.ObserveDispatch("confirmation", "delivered")
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveRateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("pending", "under_review", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("confirmation", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
}

func TestMetricsServiceHandler(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")

	var nilMetrics *MetricsService
	nilMetrics.ObserveSubmission("created")
	w = httptest.NewRecorder()
	nilMetrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
