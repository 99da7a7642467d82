package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// METRICS TESTS
// =============================================================================

func TestRecordPipelineExecution(t *testing.T) {
	tests := []struct {
		name       string
		strategy   string
		status     string
		durationMS int
	}{
		{"succeeded sequential", "sequential", "succeeded", 1000},
		{"failed sequential", "sequential", "failed", 500},
		{"succeeded parallel", "parallel", "succeeded", 200},
		{"zero duration", "hybrid", "succeeded", 0},
		{"long duration", "hybrid", "failed", 60000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Should not panic
			RecordPipelineExecution(tt.strategy, tt.status, tt.durationMS)

			// Verify counter was incremented
			count := testutil.ToFloat64(pipelineExecutionsTotal.WithLabelValues(tt.strategy, tt.status))
			assert.Greater(t, count, 0.0)
		})
	}
}

func TestRecordPipelineRetry(t *testing.T) {
	before := testutil.ToFloat64(pipelineRetriesTotal)
	RecordPipelineRetry()
	RecordPipelineRetry()
	assert.Equal(t, before+2, testutil.ToFloat64(pipelineRetriesTotal))
}

func TestRecordStageExecution(t *testing.T) {
	tests := []struct {
		name       string
		stage      string
		status     string
		durationMS int
	}{
		{"successful search", "search", "ok", 100},
		{"degraded search", "search", "degraded", 50},
		{"successful synthesis", "synthesis", "ok", 5000},
		{"degraded categorization", "categorization", "degraded", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Should not panic
			RecordStageExecution(tt.stage, tt.status, tt.durationMS)

			// Verify counter was incremented
			count := testutil.ToFloat64(stageExecutionsTotal.WithLabelValues(tt.stage, tt.status))
			assert.Greater(t, count, 0.0)
		})
	}
}

func TestRecordMessageRouted(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		outcome string
	}{
		{"delivered request", "search_request", "delivered"},
		{"resolved reply", "search_response", "resolved"},
		{"rejected envelope", "search_request", "rejected"},
		{"dropped unregistered kind", "heartbeat", "dropped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordMessageRouted(tt.kind, tt.outcome)

			count := testutil.ToFloat64(messagesRoutedTotal.WithLabelValues(tt.kind, tt.outcome))
			assert.Greater(t, count, 0.0)
		})
	}
}

func TestRecordRequestTimeout(t *testing.T) {
	before := testutil.ToFloat64(requestTimeoutsTotal.WithLabelValues("retriever"))
	RecordRequestTimeout("retriever")
	assert.Equal(t, before+1, testutil.ToFloat64(requestTimeoutsTotal.WithLabelValues("retriever")))
}

func TestSetWorkerInboxDepth(t *testing.T) {
	SetWorkerInboxDepth("synthesizer", 7)
	assert.Equal(t, 7.0, testutil.ToFloat64(workerInboxDepth.WithLabelValues("synthesizer")))

	// Gauge overwrites, never accumulates
	SetWorkerInboxDepth("synthesizer", 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(workerInboxDepth.WithLabelValues("synthesizer")))
}

func TestMetrics_Concurrent(t *testing.T) {
	// Test that metrics recording is thread-safe
	const goroutines = 10
	const iterations = 100

	before := testutil.ToFloat64(pipelineExecutionsTotal.WithLabelValues("concurrent-test", "succeeded"))
	done := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			for j := 0; j < iterations; j++ {
				RecordPipelineExecution("concurrent-test", "succeeded", 100)
				RecordStageExecution("search", "ok", 50)
				RecordMessageRouted("search_request", "delivered")
			}
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < goroutines; i++ {
		<-done
	}

	count := testutil.ToFloat64(pipelineExecutionsTotal.WithLabelValues("concurrent-test", "succeeded"))
	assert.Equal(t, before+float64(goroutines*iterations), count)
}

func TestMetrics_DifferentLabels(t *testing.T) {
	// Test that metrics with different labels are tracked separately
	RecordPipelineExecution("strategy-a", "succeeded", 100)
	RecordPipelineExecution("strategy-a", "failed", 200)
	RecordPipelineExecution("strategy-b", "succeeded", 300)

	countASucceeded := testutil.ToFloat64(pipelineExecutionsTotal.WithLabelValues("strategy-a", "succeeded"))
	countAFailed := testutil.ToFloat64(pipelineExecutionsTotal.WithLabelValues("strategy-a", "failed"))
	countBSucceeded := testutil.ToFloat64(pipelineExecutionsTotal.WithLabelValues("strategy-b", "succeeded"))

	assert.Greater(t, countASucceeded, 0.0)
	assert.Greater(t, countAFailed, 0.0)
	assert.Greater(t, countBSucceeded, 0.0)
}

// =============================================================================
// TRACING TESTS
// =============================================================================

func TestInitTracer_ReturnsShutdown(t *testing.T) {
	// The OTLP exporter connects lazily, so initialization succeeds even
	// when no collector is listening.
	shutdown, err := InitTracer("test-service", "localhost:4317")
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}

func TestInitTracer_ShutdownWithCancelledContext(t *testing.T) {
	shutdown, err := InitTracer("test-service", "localhost:4317")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Shutdown must return rather than block on the unreachable collector.
	_ = shutdown(ctx)
}

func TestSamplerFromEnv(t *testing.T) {
	tests := []struct {
		name  string
		ratio string
		want  string
	}{
		{"unset samples everything", "", "AlwaysOnSampler"},
		{"unparseable samples everything", "lots", "AlwaysOnSampler"},
		{"ratio of one samples everything", "1.0", "AlwaysOnSampler"},
		{"fractional ratio is parent based", "0.25", "ParentBased"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANSWERHUB_TRACE_SAMPLE_RATIO", tt.ratio)
			assert.Contains(t, sampler().Description(), tt.want)
		})
	}
}

func TestEnvironmentFromEnv(t *testing.T) {
	t.Setenv("ANSWERHUB_ENVIRONMENT", "")
	assert.Equal(t, "development", environment())

	t.Setenv("ANSWERHUB_ENVIRONMENT", "staging")
	assert.Equal(t, "staging", environment())
}
