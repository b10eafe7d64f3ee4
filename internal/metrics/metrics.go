/*
Package metrics provides Prometheus instrumentation for the recommendation service.

Metrics are exposed at /metrics in Prometheus text format.

  - harmony_http_requests_total: HTTP requests by method, path and status
  - harmony_upstream_requests_total: taste-graph and text-generation calls by service and outcome
  - harmony_upstream_request_duration_seconds: latency of those calls by service
  - harmony_pipeline_requests_total: recommendation requests by mode and HTTP status
  - harmony_narrative_parse_total: which parse tier produced the narrative
*/
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream service labels
const (
	ServiceSearch     = "tastegraph_search"
	ServiceInsights   = "tastegraph_insights"
	ServiceGeneration = "generation"
)

// Upstream outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeEmpty   = "empty"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmony_http_requests_total",
			Help: "Total HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmony_upstream_requests_total",
			Help: "Total calls to external services",
		},
		[]string{"service", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harmony_upstream_request_duration_seconds",
			Help:    "Latency of calls to external services",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 15},
		},
		[]string{"service"},
	)

	PipelineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmony_pipeline_requests_total",
			Help: "Recommendation requests by mode and resulting HTTP status",
		},
		[]string{"mode", "status"},
	)

	NarrativeParse = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmony_narrative_parse_total",
			Help: "Narrative parse results by strategy",
		},
		[]string{"strategy"},
	)
)

// ObserveUpstream records one external call.
func ObserveUpstream(service, outcome string, started time.Time) {
	UpstreamRequests.WithLabelValues(service, outcome).Inc()
	UpstreamDuration.WithLabelValues(service).Observe(time.Since(started).Seconds())
}
