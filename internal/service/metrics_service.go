package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the client and
// the stub server, and keeps cheap totals for the CLI summary.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	apiDuration      *prometheus.HistogramVec
	apiTotal         *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpTotal        *prometheus.CounterVec
	compressedBytes  prometheus.Histogram
	compressQuality  prometheus.Histogram
	compressDuration prometheus.Histogram
	pagerFetches     *prometheus.CounterVec

	apiCount         uint64
	apiFailures      uint64
	apiDurationTotal uint64
	imageCount       uint64
	imageBytesTotal  uint64
}

// MetricsSnapshot is a point-in-time summary.
type MetricsSnapshot struct {
	APIRequests          uint64
	APIFailures          uint64
	AverageAPIDurationMs float64
	ImagesCompressed     uint64
	CompressedBytes      uint64
	Goroutines           int
	GeneratedAt          time.Time
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_client_request_duration_seconds",
		Help:    "Duration of outbound API requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	apiTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_client_requests_total",
		Help: "Total number of outbound API requests",
	}, []string{"method", "route", "status"})

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests served in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"method", "path", "status"})

	compressedBytes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_compressed_bytes",
		Help:    "Size of compressed attachments",
		Buckets: prometheus.ExponentialBuckets(16*1024, 2, 8),
	})

	compressQuality := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_compression_quality",
		Help:    "Final JPEG quality chosen for attachments",
		Buckets: prometheus.LinearBuckets(5, 5, 6),
	})

	compressDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_compression_duration_seconds",
		Help:    "Time spent resizing and encoding one attachment",
		Buckets: prometheus.DefBuckets,
	})

	pagerFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pager_fetches_total",
		Help: "Page fetches by listing and outcome",
	}, []string{"listing", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(apiDuration, apiTotal, httpDuration, httpTotal, compressedBytes, compressQuality, compressDuration, pagerFetches, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		apiDuration:      apiDuration,
		apiTotal:         apiTotal,
		httpDuration:     httpDuration,
		httpTotal:        httpTotal,
		compressedBytes:  compressedBytes,
		compressQuality:  compressQuality,
		compressDuration: compressDuration,
		pagerFetches:     pagerFetches,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAPIRequest records one outbound call. Status zero means no response.
func (m *MetricsService) ObserveAPIRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := statusLabel(status)
	m.apiDuration.WithLabelValues(method, route, labelStatus).Observe(duration.Seconds())
	m.apiTotal.WithLabelValues(method, route, labelStatus).Inc()
	atomic.AddUint64(&m.apiCount, 1)
	atomic.AddUint64(&m.apiDurationTotal, uint64(duration.Nanoseconds()))
	if status == 0 || status >= http.StatusBadRequest {
		atomic.AddUint64(&m.apiFailures, 1)
	}
}

// ObserveHTTPRequest records a request served by the stub server.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := statusLabel(status)
	m.httpDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveCompression records one compressed attachment.
func (m *MetricsService) ObserveCompression(size, quality int, duration time.Duration) {
	if m == nil {
		return
	}
	m.compressedBytes.Observe(float64(size))
	m.compressQuality.Observe(float64(quality))
	m.compressDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.imageCount, 1)
	atomic.AddUint64(&m.imageBytesTotal, uint64(size))
}

// RecordPageFetch counts a pager fetch for listing.
func (m *MetricsService) RecordPageFetch(listing string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.pagerFetches.WithLabelValues(listing, outcome).Inc()
}

// Snapshot returns aggregated totals.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.apiCount)
	durationTotal := atomic.LoadUint64(&m.apiDurationTotal)

	var avgMs float64
	if requests > 0 {
		avgMs = float64(durationTotal) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		APIRequests:          requests,
		APIFailures:          atomic.LoadUint64(&m.apiFailures),
		AverageAPIDurationMs: avgMs,
		ImagesCompressed:     atomic.LoadUint64(&m.imageCount),
		CompressedBytes:      atomic.LoadUint64(&m.imageBytesTotal),
		Goroutines:           runtime.NumGoroutine(),
		GeneratedAt:          time.Now().UTC(),
	}
}

func statusLabel(status int) string {
	if status == 0 {
		return "none"
	}
	return fmt.Sprintf("%d", status)
}
