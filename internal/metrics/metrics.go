// Package metrics holds the Prometheus collectors of the service.
//
// Go Pattern: collectors are package-level vars registered once with promauto
// on the default registry; the router exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Highlight outcomes.
const (
	HighlightApplied    = "highlighted"
	HighlightFallback   = "fallback"
	HighlightSuperseded = "superseded"
	HighlightFailed     = "failed"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsight_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsight_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Backends
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsight_backend_requests_total",
			Help: "Outbound requests to analysis, LLM and speech backends",
		},
		[]string{"operation", "outcome"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsight_backend_request_duration_seconds",
			Help:    "Outbound backend request latency",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	// Sessions
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docsight_active_sessions",
			Help: "Number of live document sessions",
		},
	)

	HighlightTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsight_highlight_total",
			Help: "Heading highlight sequences by outcome",
		},
		[]string{"outcome"},
	)

	StaleResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsight_stale_results_total",
			Help: "Backend results discarded because a newer request superseded them",
		},
		[]string{"operation"},
	)

	PreviewsRevokedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docsight_previews_revoked_total",
			Help: "Preview handles revoked",
		},
	)

	NameResolutionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsight_name_resolution_total",
			Help: "Backend document names reconciled against the local set, by tier",
		},
		[]string{"tier"},
	)

	// Worker pool
	WorkerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docsight_worker_queue_depth",
			Help: "Jobs waiting in the worker queue",
		},
	)
)
