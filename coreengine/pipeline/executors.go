package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/observability"
)

// The three executors differ only in scheduling. Every stage failure is
// caught at the stage boundary, recorded once in the state's error list, and
// replaced with a safe default so the pipeline still reaches synthesis.
// Synthesis is the stage whose completion defines success, so only its
// failure escalates to the retry machine.

// runSequential awaits each stage fully before the next starts. Used for
// narrow queries, and forced on every retry pass.
func (c *Controller) runSequential(ctx context.Context, st *State) error {
	c.stageSearch(ctx, st)
	c.stageContent(ctx, st)
	c.stageCategorize(ctx, st, st.Search.Results)
	return c.stageSynthesis(ctx, st, st.Content.Insights)
}

// runParallel launches retrieval and categorization concurrently, then
// content analysis and synthesis concurrently once retrieval results exist.
// Gather semantics: a failure in one branch never cancels the other.
// Synthesis runs without insights because content analysis has not finished
// when it starts.
func (c *Controller) runParallel(ctx context.Context, st *State) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.stageSearch(ctx, st)
	}()
	go func() {
		defer wg.Done()
		// Categorization has no dependency on retrieval output here; it
		// groups by light heuristics alone.
		c.stageCategorize(ctx, st, nil)
	}()
	wg.Wait()

	var synthErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.stageContent(ctx, st)
	}()
	go func() {
		defer wg.Done()
		synthErr = c.stageSynthesis(ctx, st, nil)
	}()
	wg.Wait()
	return synthErr
}

// runHybrid launches retrieval and categorization concurrently, then runs
// content analysis and synthesis sequentially so synthesis sees the
// insights.
func (c *Controller) runHybrid(ctx context.Context, st *State) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.stageSearch(ctx, st)
	}()
	go func() {
		defer wg.Done()
		c.stageCategorize(ctx, st, nil)
	}()
	wg.Wait()

	c.stageContent(ctx, st)
	return c.stageSynthesis(ctx, st, st.Content.Insights)
}

// =============================================================================
// STAGES
// =============================================================================

// stageAnalysis runs query analysis. On failure the raw query stands in for
// the normalized form, which routes the pass through the sequential
// executor.
func (c *Controller) stageAnalysis(ctx context.Context, st *State) {
	start := time.Now()
	reply, err := c.ctrl.Request(ctx, envelope.RoleQueryAnalyzer, envelope.KindAnalysisRequest,
		envelope.AnalysisRequest{Query: st.Query},
		c.cfg.WorkerTimeout(envelope.RoleQueryAnalyzer))
	elapsed := time.Since(start)
	st.setStageTime(stageAnalysis, elapsed)

	if err != nil {
		observability.RecordStageExecution(stageAnalysis, "degraded", int(elapsed.Milliseconds()))
		st.Analysis = envelope.AnalysisResult{
			OriginalQuery:   st.Query,
			NormalizedQuery: st.Query,
			Intent:          "qa",
		}
		st.addError(stageAnalysis + ": " + err.Error())
		return
	}
	observability.RecordStageExecution(stageAnalysis, "ok", int(elapsed.Milliseconds()))
	st.Analysis = reply.Payload.(envelope.AnalysisResult)
}

// stageSearch runs retrieval. On failure the state gets an empty result set.
func (c *Controller) stageSearch(ctx context.Context, st *State) {
	start := time.Now()
	reply, err := c.ctrl.Request(ctx, envelope.RoleRetriever, envelope.KindSearchRequest,
		envelope.SearchRequest{
			Query:            st.Query,
			NormalizedQuery:  st.Analysis.NormalizedQuery,
			ExpandedKeywords: st.Analysis.ExpandedKeywords,
			IsBroadSubject:   st.Analysis.IsBroadSubject,
			MaxResults:       c.cfg.MaxResults,
		},
		c.cfg.WorkerTimeout(envelope.RoleRetriever))
	elapsed := time.Since(start)
	st.setStageTime(stageSearch, elapsed)

	if err != nil {
		observability.RecordStageExecution(stageSearch, "degraded", int(elapsed.Milliseconds()))
		st.Search = envelope.SearchResult{Results: []envelope.Document{}, TotalFound: 0}
		st.addError(stageSearch + ": " + err.Error())
		return
	}
	observability.RecordStageExecution(stageSearch, "ok", int(elapsed.Milliseconds()))
	st.Search = reply.Payload.(envelope.SearchResult)
}

// stageContent runs the insight pass. On failure the state gets no insights
// and floor confidence.
func (c *Controller) stageContent(ctx context.Context, st *State) {
	start := time.Now()
	reply, err := c.ctrl.Request(ctx, envelope.RoleSynthesizer, envelope.KindContentAnalysisRequest,
		envelope.ContentAnalysisRequest{
			Query:     st.Query,
			Documents: st.Search.Results,
		},
		c.cfg.WorkerTimeout(envelope.RoleSynthesizer))
	elapsed := time.Since(start)
	st.setStageTime(stageContent, elapsed)

	if err != nil {
		observability.RecordStageExecution(stageContent, "degraded", int(elapsed.Milliseconds()))
		st.Content = envelope.ContentAnalysisResult{Insights: []string{}, Confidence: 0.1}
		st.addError(stageContent + ": " + err.Error())
		return
	}
	observability.RecordStageExecution(stageContent, "ok", int(elapsed.Milliseconds()))
	st.Content = reply.Payload.(envelope.ContentAnalysisResult)
}

// stageCategorize runs categorization over the given documents (nil when it
// runs concurrently with retrieval). On failure the state gets an empty
// category map.
func (c *Controller) stageCategorize(ctx context.Context, st *State, docs []envelope.Document) {
	start := time.Now()
	reply, err := c.ctrl.Request(ctx, envelope.RoleCategorizer, envelope.KindCategorizationRequest,
		envelope.CategorizationRequest{Documents: docs},
		c.cfg.WorkerTimeout(envelope.RoleCategorizer))
	elapsed := time.Since(start)
	st.setStageTime(stageCategorization, elapsed)

	if err != nil {
		observability.RecordStageExecution(stageCategorization, "degraded", int(elapsed.Milliseconds()))
		st.Categories = map[string]envelope.CategoryGroup{}
		st.addError(stageCategorization + ": " + err.Error())
		return
	}
	observability.RecordStageExecution(stageCategorization, "ok", int(elapsed.Milliseconds()))
	st.Categories = reply.Payload.(envelope.CategorizationResult).Categories
}

// stageSynthesis runs answer generation. On failure the state gets the
// degraded fallback answer and the error escalates to the retry machine.
func (c *Controller) stageSynthesis(ctx context.Context, st *State, insights []string) error {
	start := time.Now()
	reply, err := c.ctrl.Request(ctx, envelope.RoleSynthesizer, envelope.KindSynthesisRequest,
		envelope.SynthesisRequest{
			Query:            st.Query,
			NormalizedQuery:  st.Analysis.NormalizedQuery,
			ExpandedKeywords: st.Analysis.ExpandedKeywords,
			IsBroadSubject:   st.Analysis.IsBroadSubject,
			Documents:        st.Search.Results,
			Insights:         insights,
		},
		c.cfg.WorkerTimeout(envelope.RoleSynthesizer))
	elapsed := time.Since(start)
	st.setStageTime(stageSynthesis, elapsed)

	if err != nil {
		observability.RecordStageExecution(stageSynthesis, "degraded", int(elapsed.Milliseconds()))
		st.Synthesis = envelope.SynthesisResult{
			Answer:         DegradedSynthesisAnswer,
			Sources:        []envelope.Citation{},
			GroupedSources: map[string]envelope.CategoryGroup{},
		}
		st.addError(stageSynthesis + ": " + err.Error())
		return err
	}
	observability.RecordStageExecution(stageSynthesis, "ok", int(elapsed.Milliseconds()))
	st.Synthesis = reply.Payload.(envelope.SynthesisResult)
	return nil
}
