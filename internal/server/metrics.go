package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanqa_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scanqa_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Assessment request metrics
	assessmentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanqa_assessment_requests_total",
			Help: "Total number of assessment requests",
		},
		[]string{"type", "status"}, // type: single, multi, preview, batch, websocket_batch
	)

	assessmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scanqa_assessment_duration_seconds",
			Help:    "Assessment request duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100, 300},
		},
		[]string{"type"},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanqa_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: rate, data
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scanqa_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scanqa_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanqa_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// observeAssessment records the outcome of one assessment request. The status label is
// the mapped HTTP status, so no-document outcomes are distinguishable from failures.
func observeAssessment(kind string, start time.Time, err error) {
	assessmentDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = strconv.Itoa(statusFor(err))
	}
	assessmentRequestsTotal.WithLabelValues(kind, status).Inc()
}

// observeRateLimit counts a rejected request by limit type.
func observeRateLimit(err error) {
	var rl *RateLimitError
	var q *QuotaExceededError
	switch {
	case errors.As(err, &rl):
		rateLimitHits.WithLabelValues("rate").Inc()
	case errors.As(err, &q):
		rateLimitHits.WithLabelValues("data").Inc()
	}
}

// routeLabel keeps metric cardinality bounded by using the matched mux pattern.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.URL.Path
}
