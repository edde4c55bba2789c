// Package metrics holds the Prometheus collectors for the recommendation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics.
var (
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediarec_pipeline_runs_total",
			Help: "Total number of recommendation pipeline runs",
		},
		[]string{"kind", "outcome"}, // outcome: published, empty, aborted
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediarec_pipeline_duration_seconds",
			Help:    "Duration of recommendation pipeline runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"kind"},
	)

	PipelineInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediarec_pipeline_in_flight",
			Help: "Number of pipeline runs currently holding a worker slot",
		},
	)

	RecommendationsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediarec_recommendations_persisted_total",
			Help: "Total number of recommendation records written",
		},
		[]string{"kind"},
	)

	CandidatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediarec_candidates_dropped_total",
			Help: "Total number of parsed items dropped during validation",
		},
		[]string{"reason"},
	)

	MediaTypeCoerced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediarec_media_type_coerced_total",
			Help: "Total number of items whose unknown media type was replaced by the default",
		},
	)
)

// AI endpoint metrics.
var (
	AIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediarec_ai_requests_total",
			Help: "Total number of AI endpoint calls",
		},
		[]string{"endpoint", "outcome"}, // outcome: ok, fallback, unrecoverable
	)

	AIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediarec_ai_request_duration_seconds",
			Help:    "Duration of AI endpoint calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediarec_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// Messaging metrics.
var (
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediarec_events_consumed_total",
			Help: "Total number of inbound session events handled",
		},
		[]string{"outcome"}, // outcome: ack, nack, malformed, dropped
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediarec_events_published_total",
			Help: "Total number of outbound notification attempts",
		},
		[]string{"outcome"}, // outcome: ok, error
	)
)
