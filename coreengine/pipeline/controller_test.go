package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeves-cluster-organization/answerhub/agentcomm"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/config"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/testutil"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func cdssDocuments() []envelope.Document {
	return []envelope.Document{
		{ID: "d1", Title: "CDSS Overview", URL: "https://docs/cdss-overview", Snippet: "Clinical decision support basics.", Score: 3},
		{ID: "d2", Title: "CDSS Implementation Guide", URL: "https://docs/cdss-impl", Snippet: "Rollout steps.", Score: 2},
		{ID: "d3", Title: "CDSS Evaluation Metrics", URL: "https://docs/cdss-eval", Snippet: "Measuring effectiveness.", Score: 1},
	}
}

func scriptedBackends() (Backends, *testutil.ScriptedAnalyzer, *testutil.ScriptedSearcher, *testutil.ScriptedGenerator, *testutil.ScriptedCategorizer) {
	analyzer := &testutil.ScriptedAnalyzer{
		Result: envelope.AnalysisResult{ExpandedKeywords: []string{"cdss"}, Intent: "qa"},
	}
	searcher := &testutil.ScriptedSearcher{Results: cdssDocuments()}
	generator := &testutil.ScriptedGenerator{Insights: []string{"3 documents match"}}
	categorizer := &testutil.ScriptedCategorizer{}

	return Backends{
		Analyzer:    analyzer,
		Searcher:    searcher,
		Generator:   generator,
		Categorizer: categorizer,
	}, analyzer, searcher, generator, categorizer
}

func startController(t *testing.T, cfg *config.EngineConfig, b Backends) *Controller {
	t.Helper()
	c, err := NewController(cfg, b, nil)
	require.NoError(t, err)
	c.Start()
	t.Cleanup(c.Stop)
	return c
}

// =============================================================================
// PROCESS
// =============================================================================

func TestProcessCDSSScenario(t *testing.T) {
	b, _, searcher, _, _ := scriptedBackends()
	c := startController(t, testutil.FastEngineConfig(), b)

	result, err := c.Process(context.Background(), "What is CDSS?")
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "CDSS Overview")
	assert.Contains(t, result.Answer, "CDSS Implementation Guide")
	assert.Contains(t, result.Answer, "CDSS Evaluation Metrics")
	assert.Len(t, result.Sources, 3)
	assert.Empty(t, result.Errors)
	assert.Greater(t, result.ProcessingTime, time.Duration(0))
	assert.Equal(t, StrategySequential, result.Strategy)
	assert.Equal(t, 0, result.RetryCount)
	assert.Equal(t, 3, result.SearchMetadata.TotalFound)
	assert.Equal(t, 1, searcher.Calls())
	assert.NotEmpty(t, result.RequestID)
}

func TestProcessEmptyQueryIdempotent(t *testing.T) {
	analyzer := &testutil.ScriptedAnalyzer{}
	b := Backends{
		Analyzer:    analyzer,
		Searcher:    &testutil.ScriptedSearcher{},
		Generator:   &testutil.ScriptedGenerator{},
		Categorizer: &testutil.ScriptedCategorizer{},
	}
	c := startController(t, testutil.FastEngineConfig(), b)

	for i := 0; i < 2; i++ {
		result, err := c.Process(context.Background(), "")
		require.NoError(t, err)

		assert.NotEmpty(t, result.Answer)
		assert.NotNil(t, result.Sources)
		assert.NotNil(t, result.GroupedSources)
		assert.NotNil(t, result.Errors)
		assert.Equal(t, 0, result.RetryCount)
	}
}

func TestProcessStoppedController(t *testing.T) {
	b, _, _, _, _ := scriptedBackends()
	c, err := NewController(testutil.FastEngineConfig(), b, nil)
	require.NoError(t, err)

	_, err = c.Process(context.Background(), "anything")
	assert.Error(t, err)
}

func TestProcessStageTimings(t *testing.T) {
	b, _, _, _, _ := scriptedBackends()
	c := startController(t, testutil.FastEngineConfig(), b)

	result, err := c.Process(context.Background(), "What is CDSS?")
	require.NoError(t, err)

	for _, stage := range []string{stageAnalysis, stageSearch, stageContent, stageCategorization, stageSynthesis} {
		_, ok := result.StageTimes[stage]
		assert.True(t, ok, "missing timing for stage %s", stage)
	}
}

// =============================================================================
// RETRY STATE MACHINE
// =============================================================================

func TestRetryExhaustsBudget(t *testing.T) {
	cfg := testutil.FastEngineConfig()
	cfg.MaxRetries = 2

	generator := &testutil.ScriptedGenerator{
		GenerateErr: errors.New("quota exceeded"),
		AnalyzeErr:  errors.New("quota exceeded"),
	}
	b := Backends{
		Analyzer:    &testutil.ScriptedAnalyzer{Err: errors.New("analyzer down")},
		Searcher:    &testutil.ScriptedSearcher{Err: errors.New("index down")},
		Generator:   generator,
		Categorizer: &testutil.ScriptedCategorizer{Err: errors.New("categorizer down")},
	}
	c := startController(t, cfg, b)

	start := time.Now()
	result, err := c.Process(context.Background(), "doomed query")
	elapsed := time.Since(start)
	require.NoError(t, err, "Process never surfaces pipeline failure as an error")

	// Exactly max_retries + 1 total passes.
	assert.Equal(t, cfg.MaxRetries+1, generator.GenerateCalls())
	assert.Equal(t, cfg.MaxRetries, result.RetryCount)
	assert.Equal(t, FailedAnswer, result.Answer)
	assert.Empty(t, result.Sources)
	assert.NotEmpty(t, result.Errors)

	// Backoff before pass k is 2^k units: 2 + 4 units with two retries.
	minBackoff := time.Duration(2+4) * cfg.BackoffUnit()
	assert.GreaterOrEqual(t, elapsed, minBackoff)
}

func TestRetryForcesSequentialAndClearsErrors(t *testing.T) {
	cfg := testutil.FastEngineConfig()
	cfg.MaxRetries = 3

	// Broad analysis drives the first pass through the parallel executor.
	analyzer := &testutil.ScriptedAnalyzer{
		Result: envelope.AnalysisResult{IsBroadSubject: true, ExpandedKeywords: keywords(5)},
	}
	// Synthesis and search fail on the first pass only.
	generator := &testutil.ScriptedGenerator{
		GenerateErr:      errors.New("transient failure"),
		GenerateErrCount: 1,
	}
	searcher := &testutil.ScriptedSearcher{
		Results:  cdssDocuments(),
		Err:      errors.New("index down"),
		ErrCount: 1,
	}
	b := Backends{
		Analyzer:    analyzer,
		Searcher:    searcher,
		Generator:   generator,
		Categorizer: &testutil.ScriptedCategorizer{},
	}
	c := startController(t, cfg, b)

	result, err := c.Process(context.Background(), "broad topic")
	require.NoError(t, err)

	assert.Equal(t, StrategySequential, result.Strategy, "retry passes force the sequential strategy")
	assert.Equal(t, 1, result.RetryCount)
	assert.Empty(t, result.Errors, "errors from failed passes are cleared on retry")
	assert.Len(t, result.Sources, 3, "the healed pass produces real output")
}

func TestDegradedStagesDoNotTriggerRetry(t *testing.T) {
	cfg := testutil.FastEngineConfig()

	// Search and categorization fail, synthesis succeeds: the pass degrades
	// in place and never retries.
	generator := &testutil.ScriptedGenerator{Answer: "partial answer"}
	b := Backends{
		Analyzer:    &testutil.ScriptedAnalyzer{},
		Searcher:    &testutil.ScriptedSearcher{Err: errors.New("index down")},
		Generator:   generator,
		Categorizer: &testutil.ScriptedCategorizer{Err: errors.New("categorizer down")},
	}
	c := startController(t, cfg, b)

	result, err := c.Process(context.Background(), "partial query")
	require.NoError(t, err)

	assert.Equal(t, 0, result.RetryCount)
	assert.Equal(t, "partial answer", result.Answer)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, 1, generator.GenerateCalls())
}

// =============================================================================
// SYSTEM STATUS
// =============================================================================

func TestGetSystemStatus(t *testing.T) {
	b, _, _, _, _ := scriptedBackends()
	c := startController(t, testutil.FastEngineConfig(), b)

	status := c.GetSystemStatus()

	assert.True(t, status.Running)
	assert.Equal(t, len(envelope.WorkerRoles()), status.WorkerCount)
	assert.Equal(t, 0, status.ActiveRequestCount)
	require.Contains(t, status.WorkerStatuses, envelope.RoleController)
	for _, role := range envelope.WorkerRoles() {
		require.Contains(t, status.WorkerStatuses, role)
		assert.True(t, status.WorkerStatuses[role].Running)
	}
}

func TestSystemStatusAfterStop(t *testing.T) {
	b, _, _, _, _ := scriptedBackends()
	c, err := NewController(testutil.FastEngineConfig(), b, nil)
	require.NoError(t, err)
	c.Start()
	c.Stop()

	status := c.GetSystemStatus()
	assert.False(t, status.Running)
	for role, ws := range status.WorkerStatuses {
		assert.False(t, ws.Running, "worker %s should be stopped", role)
	}
}

func TestControllerStopDuringConcurrentProcess(t *testing.T) {
	b, _, _, _, _ := scriptedBackends()
	c := startController(t, testutil.FastEngineConfig(), b)

	// Processing and status reads racing a Stop must stay well defined:
	// each Process either completes or reports the controller unavailable.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := c.Process(context.Background(), "what is cdss")
			if err != nil {
				var unavailable *agentcomm.WorkerUnavailableError
				assert.ErrorAs(t, err, &unavailable)
				return
			}
			assert.NotEmpty(t, result.Answer)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.GetSystemStatus()
		}()
	}
	c.Stop()
	wg.Wait()

	assert.False(t, c.GetSystemStatus().Running)
}
