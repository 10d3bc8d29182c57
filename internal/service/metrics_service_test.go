package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceObservesAPIRequests(t *testing.T) {
	m := NewMetricsService()

	m.ObserveAPIRequest(http.MethodGet, "/user/profile", http.StatusOK, 20*time.Millisecond)
	m.ObserveAPIRequest(http.MethodGet, "/user/profile", http.StatusUnauthorized, 10*time.Millisecond)
	m.ObserveAPIRequest(http.MethodPost, "/pass/request", 0, 30*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.apiTotal.WithLabelValues(http.MethodGet, "/user/profile", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.apiTotal.WithLabelValues(http.MethodPost, "/pass/request", "none")))

	snap := m.Snapshot()
	assert.Equal(t, uint64(3), snap.APIRequests)
	assert.Equal(t, uint64(2), snap.APIFailures)
	assert.InDelta(t, 20, snap.AverageAPIDurationMs, 0.001)
}

func TestMetricsServiceCompressionAndPager(t *testing.T) {
	m := NewMetricsService()

	m.ObserveCompression(120*1024, 25, 5*time.Millisecond)
	m.ObserveCompression(80*1024, 30, 5*time.Millisecond)
	m.RecordPageFetch("my", nil)
	m.RecordPageFetch("my", errors.New("offline"))
	m.RecordPageFetch("my", nil)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.ImagesCompressed)
	assert.Equal(t, uint64(200*1024), snap.CompressedBytes)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.pagerFetches.WithLabelValues("my", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.pagerFetches.WithLabelValues("my", "error")))
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/group/list", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{method="GET",path="/group/list",status="200"} 1`))
	assert.True(t, strings.Contains(body, "goroutines_total"))
}

func TestMetricsServiceNilReceiver(t *testing.T) {
	var m *MetricsService

	assert.NotPanics(t, func() {
		m.ObserveAPIRequest(http.MethodGet, "/", 200, time.Millisecond)
		m.ObserveCompression(1, 30, time.Millisecond)
		m.RecordPageFetch("all", nil)
	})
	assert.Nil(t, m.Registry())
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
