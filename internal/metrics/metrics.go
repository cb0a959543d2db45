// Package metrics holds the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Batch metrics
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_intel_batches_total",
			Help: "Total number of batch files processed",
		},
		[]string{"status"}, // success, empty, malformed, sink_failed
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telhawk_intel_batch_duration_seconds",
			Help:    "Duration of batch processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Routing metrics
	RecordsRouted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_intel_records_routed_total",
			Help: "Total number of records routed",
		},
	)

	RuleMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_intel_rule_matches_total",
			Help: "Total number of records matched per routing rule",
		},
		[]string{"rule"},
	)

	PointsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_intel_points_emitted_total",
			Help: "Total number of metric points emitted",
		},
		[]string{"measurement"},
	)

	// Enrichment metrics
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_intel_lookups_total",
			Help: "Total number of enrichment lookups by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Sink metrics
	SinkWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telhawk_intel_sink_write_duration_seconds",
			Help:    "Duration of sink writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_intel_sink_errors_total",
			Help: "Total number of failed sink writes",
		},
		[]string{"sink"},
	)

	// Dead letter metrics
	DLQWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_intel_dlq_writes_total",
			Help: "Total number of rejected batches written to the dead letter queue",
		},
	)
)
