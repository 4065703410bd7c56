package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Batch-level metrics
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clearline_engine_batches_total",
			Help: "Total number of batches processed",
		},
		[]string{"status"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clearline_engine_batch_duration_seconds",
			Help:    "Duration of batch processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	GroupsPerBatch = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clearline_engine_groups_per_batch",
			Help:    "Number of entity groups formed per batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// Record-level metrics
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clearline_engine_records_total",
			Help: "Total number of records routed, by outcome",
		},
		[]string{"status"},
	)

	RuleFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clearline_engine_rule_failures_total",
			Help: "Total rule failures, by rule name and severity",
		},
		[]string{"rule", "severity"},
	)

	DeduplicatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clearline_engine_deduplicated_total",
			Help: "Total records discarded as exact duplicates",
		},
	)

	// Sink metrics
	SinkWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clearline_engine_sink_write_duration_seconds",
			Help:    "Duration of sink writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clearline_engine_sink_errors_total",
			Help: "Total sink write errors",
		},
		[]string{"sink"},
	)
)
