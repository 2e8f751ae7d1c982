// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "memgarden"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	sagaTotal          *prometheus.CounterVec
	sagaDuration       *prometheus.HistogramVec
	compensationsTotal *prometheus.CounterVec
	swapFailuresTotal  prometheus.Counter
	narrativeDuration  prometheus.Histogram
	narrativeErrors    *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	rateLimitedTotal   prometheus.Counter
	gcDeletedTotal     prometheus.Counter
	gcFailedTotal      prometheus.Counter
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sagaTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_total",
			Help:      "Story mutations by saga and final state.",
		}, []string{"saga", "state"}),
		sagaDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "saga_duration_seconds",
			Help:      "Wall time of story mutations.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 90},
		}, []string{"saga"}),
		compensationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensating_deletes_total",
			Help:      "Compensating blob deletes by saga and result.",
		}, []string{"saga", "result"}),
		swapFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replace_swap_failures_total",
			Help:      "Replace operations whose final record write failed after old blobs were deleted.",
		}),
		narrativeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "narrative_duration_seconds",
			Help:      "Latency of narrative generation calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		}),
		narrativeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrative_errors_total",
			Help:      "Failed narrative generation calls by reason.",
		}, []string{"reason"}),
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimitedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the mutation rate limiter.",
		}),
		gcDeletedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gc_deleted_blobs_total",
			Help:      "Orphan blobs deleted by the sweeper.",
		}),
		gcFailedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gc_failed_blobs_total",
			Help:      "Orphan blob deletes that failed.",
		}),
	}
}

// SagaFinished records the final state and duration of one saga run.
func (m *Metrics) SagaFinished(saga, state string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sagaTotal.WithLabelValues(saga, state).Inc()
	m.sagaDuration.WithLabelValues(saga).Observe(elapsed.Seconds())
}

// Compensated records one compensating delete.
func (m *Metrics) Compensated(saga string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.compensationsTotal.WithLabelValues(saga, result).Inc()
}

// SwapFailed records a failed final write in replace.
func (m *Metrics) SwapFailed() {
	if m == nil {
		return
	}
	m.swapFailuresTotal.Inc()
}

// NarrativeCalled records one generator call; reason is empty on success.
func (m *Metrics) NarrativeCalled(elapsed time.Duration, reason string) {
	if m == nil {
		return
	}
	m.narrativeDuration.Observe(elapsed.Seconds())
	if reason != "" {
		m.narrativeErrors.WithLabelValues(reason).Inc()
	}
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RateLimited records one rejected request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedTotal.Inc()
}

// GCSwept records the outcome of one orphan sweep.
func (m *Metrics) GCSwept(deleted, failed int) {
	if m == nil {
		return
	}
	m.gcDeletedTotal.Add(float64(deleted))
	m.gcFailedTotal.Add(float64(failed))
}
