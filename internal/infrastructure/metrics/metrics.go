// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipdeck_http_requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipdeck_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipdeck_http_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter",
	})

	// Relationships
	EdgeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipdeck_edge_toggles_total",
		Help: "Relationship toggles by kind and resulting state",
	}, []string{"kind", "state"})

	// Read views
	PipelineRuns = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipdeck_pipeline_duration_seconds",
		Help:    "Read pipeline execution time by collection and store",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"collection", "store"})

	StatsCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipdeck_stats_cache_lookups_total",
		Help: "Channel stats cache lookups by result",
	}, []string{"result"})

	// Events
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipdeck_events_published_total",
		Help: "Domain events published by type and sink",
	}, []string{"type", "sink"})

	EventHandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipdeck_event_handler_duration_seconds",
		Help:    "Event handler execution time",
		Buckets: prometheus.DefBuckets,
	}, []string{"type", "success"})

	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipdeck_event_publish_failures_total",
		Help: "Events that could not be delivered to an external sink",
	}, []string{"sink"})

	// Media
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipdeck_media_uploads_total",
		Help: "Media uploads by kind and outcome",
	}, []string{"kind", "outcome"})
)

// State renders a presence flag as a label value.
func State(present bool) string {
	if present {
		return "present"
	}
	return "absent"
}
