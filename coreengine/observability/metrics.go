// Package observability provides Prometheus metrics instrumentation for the engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// PIPELINE METRICS
// =============================================================================

var (
	pipelineExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answerhub_pipeline_executions_total",
			Help: "Total number of pipeline executions",
		},
		[]string{"strategy", "status"}, // status: succeeded, failed
	)

	pipelineDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "answerhub_pipeline_duration_seconds",
			Help:    "Pipeline execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"strategy"},
	)

	pipelineRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "answerhub_pipeline_retries_total",
			Help: "Total number of pipeline retry passes",
		},
	)
)

// =============================================================================
// STAGE METRICS
// =============================================================================

var (
	stageExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answerhub_stage_executions_total",
			Help: "Total number of stage executions",
		},
		[]string{"stage", "status"}, // status: success, degraded, error
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "answerhub_stage_duration_seconds",
			Help:    "Stage execution duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)
)

// =============================================================================
// MESSAGE FABRIC METRICS
// =============================================================================

var (
	messagesRoutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answerhub_messages_routed_total",
			Help: "Total envelopes routed, by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: delivered, resolved, rejected, dropped
	)

	requestTimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answerhub_request_timeouts_total",
			Help: "Total request timeouts by recipient worker",
		},
		[]string{"recipient"},
	)

	workerInboxDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "answerhub_worker_inbox_depth",
			Help: "Current depth of each worker's inbox",
		},
		[]string{"role"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordPipelineExecution records pipeline execution metrics.
// This should be called after Process completes.
func RecordPipelineExecution(strategy string, status string, durationMS int) {
	pipelineExecutionsTotal.WithLabelValues(strategy, status).Inc()
	pipelineDurationSeconds.WithLabelValues(strategy).Observe(float64(durationMS) / 1000.0)
}

// RecordPipelineRetry records one retry pass.
func RecordPipelineRetry() {
	pipelineRetriesTotal.Inc()
}

// RecordStageExecution records stage execution metrics.
// This should be called after each executor stage completes.
func RecordStageExecution(stage string, status string, durationMS int) {
	stageExecutionsTotal.WithLabelValues(stage, status).Inc()
	stageDurationSeconds.WithLabelValues(stage).Observe(float64(durationMS) / 1000.0)
}

// RecordMessageRouted records an envelope routing outcome.
// This should be called from the router.
func RecordMessageRouted(kind string, outcome string) {
	messagesRoutedTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRequestTimeout records a request timeout against a recipient.
func RecordRequestTimeout(recipient string) {
	requestTimeoutsTotal.WithLabelValues(recipient).Inc()
}

// SetWorkerInboxDepth updates the inbox depth gauge for a worker.
// This should be called from the health monitor poll.
func SetWorkerInboxDepth(role string, depth int) {
	workerInboxDepth.WithLabelValues(role).Set(float64(depth))
}
