package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jeeves-cluster-organization/answerhub/agentcomm"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/backends"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/config"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/observability"
)

var tracer = otel.Tracer("answerhub/pipeline")

// FailedAnswer is returned when the retry budget is exhausted.
const FailedAnswer = "I encountered multiple errors while processing your query. Please try again later."

// DegradedSynthesisAnswer substitutes a failed synthesis stage.
const DegradedSynthesisAnswer = "I found relevant information but encountered an error generating a response."

// Backends bundles the implementations behind the worker roles.
type Backends struct {
	Analyzer    backends.Analyzer
	Searcher    backends.Searcher
	Generator   backends.Generator
	Categorizer backends.Categorizer
}

// Controller owns the router, the workers, and the per-query state machine.
// Safe for concurrent Process calls; each call builds its own state.
type Controller struct {
	cfg    *config.EngineConfig
	logger agentcomm.Logger
	router *agentcomm.Router

	// ctrl is the controller's own mailbox: heartbeat sink and the worker
	// whose Request method the stages use.
	ctrl    *agentcomm.Worker
	workers map[envelope.Role]*agentcomm.Worker

	running atomic.Bool
}

// NewController wires the router and one worker per role. Workers are not
// started until Start.
func NewController(cfg *config.EngineConfig, b Backends, logger agentcomm.Logger) (*Controller, error) {
	if logger == nil {
		logger = agentcomm.NopLogger{}
	}
	router := agentcomm.NewRouter(logger)

	c := &Controller{
		cfg:     cfg,
		logger:  logger.Bind("component", "controller"),
		router:  router,
		workers: make(map[envelope.Role]*agentcomm.Worker),
	}

	c.ctrl = agentcomm.NewWorker(envelope.RoleController, router, logger, agentcomm.WorkerConfig{
		MaxConcurrent:     cfg.AnalyzerMaxConcurrent,
		InboxCapacity:     cfg.InboxCapacity,
		DefaultTimeout:    cfg.WorkerTimeout(envelope.RoleRetriever),
		HeartbeatInterval: 0, // the controller does not heartbeat itself
	})
	if err := c.ctrl.Register(envelope.KindHeartbeat, c.handleHeartbeat); err != nil {
		return nil, err
	}
	router.Attach(c.ctrl)

	for _, role := range envelope.WorkerRoles() {
		w := agentcomm.NewWorker(role, router, logger, agentcomm.WorkerConfig{
			MaxConcurrent:     cfg.WorkerMaxConcurrent(role),
			InboxCapacity:     cfg.InboxCapacity,
			DefaultTimeout:    cfg.WorkerTimeout(role),
			HeartbeatInterval: cfg.HeartbeatPeriod(),
		})
		c.workers[role] = w
		router.Attach(w)
	}

	if err := c.registerHandlers(b); err != nil {
		return nil, err
	}
	return c, nil
}

// registerHandlers binds each backend to its worker's message kinds.
func (c *Controller) registerHandlers(b Backends) error {
	bindings := []struct {
		role    envelope.Role
		kind    envelope.Kind
		handler agentcomm.HandlerFunc
	}{
		{envelope.RoleQueryAnalyzer, envelope.KindAnalysisRequest,
			func(ctx context.Context, env *envelope.Envelope) (any, error) {
				return b.Analyzer.Analyze(ctx, env.Payload.(envelope.AnalysisRequest))
			}},
		{envelope.RoleRetriever, envelope.KindSearchRequest,
			func(ctx context.Context, env *envelope.Envelope) (any, error) {
				return b.Searcher.Search(ctx, env.Payload.(envelope.SearchRequest))
			}},
		{envelope.RoleSynthesizer, envelope.KindSynthesisRequest,
			func(ctx context.Context, env *envelope.Envelope) (any, error) {
				return b.Generator.Generate(ctx, env.Payload.(envelope.SynthesisRequest))
			}},
		{envelope.RoleSynthesizer, envelope.KindContentAnalysisRequest,
			func(ctx context.Context, env *envelope.Envelope) (any, error) {
				return b.Generator.AnalyzeContent(ctx, env.Payload.(envelope.ContentAnalysisRequest))
			}},
		{envelope.RoleCategorizer, envelope.KindCategorizationRequest,
			func(ctx context.Context, env *envelope.Envelope) (any, error) {
				return b.Categorizer.Categorize(ctx, env.Payload.(envelope.CategorizationRequest))
			}},
	}

	for _, binding := range bindings {
		if err := c.workers[binding.role].Register(binding.kind, binding.handler); err != nil {
			return err
		}
	}
	return nil
}

// handleHeartbeat logs worker heartbeats. They carry no control semantics.
func (c *Controller) handleHeartbeat(ctx context.Context, env *envelope.Envelope) (any, error) {
	hb := env.Payload.(envelope.HeartbeatPayload)
	c.logger.Debug("heartbeat_received",
		"worker", string(env.Sender),
		"status", hb.Status,
	)
	return nil, nil
}

// Start brings up the controller mailbox and all workers.
func (c *Controller) Start() {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	c.ctrl.Start()
	for _, w := range c.workers {
		w.Start()
	}
	c.logger.Info("pipeline_started", "workers", len(c.workers))
}

// Stop halts all workers, then the controller mailbox.
func (c *Controller) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	for _, w := range c.workers {
		w.Stop()
	}
	c.ctrl.Stop()
	c.logger.Info("pipeline_stopped")
}

// Process runs one query through analysis, strategy selection, the chosen
// executor, and the retry state machine, and always returns a structurally
// complete Result. The error return is reserved for a stopped controller.
func (c *Controller) Process(ctx context.Context, query string) (*Result, error) {
	if !c.running.Load() {
		return nil, agentcomm.NewWorkerUnavailableError(envelope.RoleController, "not running")
	}

	ctx, span := tracer.Start(ctx, "pipeline.process")
	defer span.End()

	st := newState(query, uuid.New().String())
	span.SetAttributes(attribute.String("request.id", st.RequestID))
	c.logger.Info("query_received", "request_id", st.RequestID, "query", truncate(query, 100))

	c.stageAnalysis(ctx, st)
	st.Strategy = SelectStrategy(st.Analysis)
	span.SetAttributes(attribute.String("pipeline.strategy", string(st.Strategy)))
	c.logger.Debug("strategy_selected",
		"request_id", st.RequestID,
		"strategy", string(st.Strategy),
		"keywords", len(st.Analysis.ExpandedKeywords),
		"broad_subject", st.Analysis.IsBroadSubject,
	)

	for {
		err := c.execute(ctx, st)
		if err == nil {
			st.Status = StatusSucceeded
			break
		}

		// The failed terminal state is entered with the retry counter at
		// the budget, never past it. The counter only advances when a
		// retry pass actually runs.
		if st.RetryCount >= c.cfg.MaxRetries {
			st.Status = StatusFailed
			c.logger.Error("pipeline_failed",
				"request_id", st.RequestID,
				"retries", st.RetryCount,
				"error", err.Error(),
			)
			break
		}

		st.RetryCount++
		st.Status = StatusRetrying
		observability.RecordPipelineRetry()
		backoff := c.cfg.BackoffUnit() << st.RetryCount
		c.logger.Warn("pipeline_retrying",
			"request_id", st.RequestID,
			"attempt", st.RetryCount,
			"backoff", backoff.String(),
			"error", err.Error(),
		)
		sleep(ctx, backoff)

		// The retry pass starts clean: errors cleared, stage outputs
		// dropped, strategy forced to the most conservative composition.
		// Analysis is kept; execution restarts from retrieval.
		st.clearErrors()
		st.resetStages()
		st.Strategy = StrategySequential
		st.Status = StatusRunning
	}

	result := c.finalize(st)
	observability.RecordPipelineExecution(string(st.Strategy), string(st.Status),
		int(result.ProcessingTime.Milliseconds()))
	c.logger.Info("query_processed",
		"request_id", st.RequestID,
		"status", string(st.Status),
		"strategy", string(st.Strategy),
		"retries", st.RetryCount,
		"duration_ms", result.ProcessingTime.Milliseconds(),
		"errors", len(result.Errors),
	)
	return result, nil
}

// execute dispatches to the executor for the state's strategy.
func (c *Controller) execute(ctx context.Context, st *State) error {
	switch st.Strategy {
	case StrategyParallel:
		return c.runParallel(ctx, st)
	case StrategyHybrid:
		return c.runHybrid(ctx, st)
	default:
		return c.runSequential(ctx, st)
	}
}

// finalize assembles the caller-facing result. Answer, Sources and
// GroupedSources are always non-nil regardless of what the stages produced.
func (c *Controller) finalize(st *State) *Result {
	result := &Result{
		Answer:         st.Synthesis.Answer,
		Sources:        st.Synthesis.Sources,
		GroupedSources: st.Synthesis.GroupedSources,
		Confidence:     st.Content.Confidence,
		Errors:         st.Errors(),
		RequestID:      st.RequestID,
		Strategy:       st.Strategy,
		RetryCount:     st.RetryCount,
		ProcessingTime: time.Since(st.StartedAt),
		StageTimes:     st.StageTimes(),
		SearchMetadata: SearchMetadata{
			TotalFound:  st.Search.TotalFound,
			SourcesUsed: st.Search.SourcesUsed,
		},
	}

	if st.Status == StatusFailed {
		result.Answer = FailedAnswer
	}
	if result.Answer == "" {
		result.Answer = backends.NoResultsAnswer
	}
	if result.Sources == nil {
		result.Sources = []envelope.Citation{}
	}
	if result.GroupedSources == nil {
		result.GroupedSources = map[string]envelope.CategoryGroup{}
	}
	if result.Errors == nil {
		result.Errors = []string{}
	}
	return result
}

// WorkerStatuses returns a status snapshot per worker role, controller
// mailbox included.
func (c *Controller) WorkerStatuses() map[envelope.Role]agentcomm.StatusSnapshot {
	statuses := make(map[envelope.Role]agentcomm.StatusSnapshot, len(c.workers)+1)
	statuses[envelope.RoleController] = c.ctrl.Status()
	for role, w := range c.workers {
		statuses[role] = w.Status()
	}
	return statuses
}

// SystemStatus is the coarse operational view exposed by the controller.
type SystemStatus struct {
	Running            bool                                      `json:"running"`
	WorkerCount        int                                       `json:"worker_count"`
	WorkerStatuses     map[envelope.Role]agentcomm.StatusSnapshot `json:"worker_statuses"`
	ActiveRequestCount int                                       `json:"active_request_count"`
}

// GetSystemStatus reports whether the pipeline is running and how busy each
// worker is.
func (c *Controller) GetSystemStatus() SystemStatus {
	return SystemStatus{
		Running:            c.running.Load(),
		WorkerCount:        len(c.workers),
		WorkerStatuses:     c.WorkerStatuses(),
		ActiveRequestCount: c.router.Correlations().Len(),
	}
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
