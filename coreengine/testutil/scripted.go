// Package testutil provides scripted backend stubs and helpers for testing
// the pipeline without real retrieval or generation.
//
// Every stub counts its calls and can be told to fail or delay, so tests can
// drive degradation and retry paths deterministically.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeeves-cluster-organization/answerhub/agentcomm"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/config"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

// =============================================================================
// TEST LOGGER
// =============================================================================

// TestLogger collects log entries for assertions. Safe for concurrent use.
type TestLogger struct {
	mu      sync.Mutex
	entries []LogEntry
	bound   []any
}

// LogEntry is one captured log call.
type LogEntry struct {
	Level  string
	Msg    string
	Fields []any
}

// NewTestLogger creates an empty collecting logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{}
}

func (l *TestLogger) log(level, msg string, fields []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := append(append([]any{}, l.bound...), fields...)
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Fields: all})
}

func (l *TestLogger) Info(msg string, fields ...any)  { l.log("info", msg, fields) }
func (l *TestLogger) Debug(msg string, fields ...any) { l.log("debug", msg, fields) }
func (l *TestLogger) Warn(msg string, fields ...any)  { l.log("warn", msg, fields) }
func (l *TestLogger) Error(msg string, fields ...any) { l.log("error", msg, fields) }

// Bind returns a child logger sharing the same entry sink with the given
// fields prepended.
func (l *TestLogger) Bind(fields ...any) agentcomm.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &boundTestLogger{parent: l, fields: append(append([]any{}, l.bound...), fields...)}
}

type boundTestLogger struct {
	parent *TestLogger
	fields []any
}

func (b *boundTestLogger) log(level, msg string, fields []any) {
	b.parent.mu.Lock()
	defer b.parent.mu.Unlock()
	all := append(append([]any{}, b.fields...), fields...)
	b.parent.entries = append(b.parent.entries, LogEntry{Level: level, Msg: msg, Fields: all})
}

func (b *boundTestLogger) Info(msg string, fields ...any)  { b.log("info", msg, fields) }
func (b *boundTestLogger) Debug(msg string, fields ...any) { b.log("debug", msg, fields) }
func (b *boundTestLogger) Warn(msg string, fields ...any)  { b.log("warn", msg, fields) }
func (b *boundTestLogger) Error(msg string, fields ...any) { b.log("error", msg, fields) }

func (b *boundTestLogger) Bind(fields ...any) agentcomm.Logger {
	return &boundTestLogger{parent: b.parent, fields: append(append([]any{}, b.fields...), fields...)}
}

// Entries returns a copy of all captured entries.
func (l *TestLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Contains reports whether any entry has the given message.
func (l *TestLogger) Contains(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Msg == msg {
			return true
		}
	}
	return false
}

// =============================================================================
// SCRIPTED BACKENDS
// =============================================================================

// ScriptedAnalyzer returns a fixed analysis result, or Err when set.
type ScriptedAnalyzer struct {
	Result envelope.AnalysisResult
	Err    error
	Delay  time.Duration

	calls atomic.Int32
}

func (s *ScriptedAnalyzer) Analyze(ctx context.Context, req envelope.AnalysisRequest) (envelope.AnalysisResult, error) {
	s.calls.Add(1)
	if err := wait(ctx, s.Delay); err != nil {
		return envelope.AnalysisResult{}, err
	}
	if s.Err != nil {
		return envelope.AnalysisResult{}, s.Err
	}
	result := s.Result
	if result.OriginalQuery == "" {
		result.OriginalQuery = req.Query
	}
	if result.NormalizedQuery == "" {
		result.NormalizedQuery = req.Query
	}
	return result, nil
}

// Calls returns how many times Analyze ran.
func (s *ScriptedAnalyzer) Calls() int { return int(s.calls.Load()) }

// ScriptedSearcher returns fixed documents, or Err when set. A non-zero
// ErrCount limits the failure to the first ErrCount calls.
type ScriptedSearcher struct {
	Results  []envelope.Document
	Err      error
	ErrCount int32
	Delay    time.Duration

	calls atomic.Int32
}

func (s *ScriptedSearcher) Search(ctx context.Context, req envelope.SearchRequest) (envelope.SearchResult, error) {
	call := s.calls.Add(1)
	if err := wait(ctx, s.Delay); err != nil {
		return envelope.SearchResult{}, err
	}
	if s.Err != nil && (s.ErrCount == 0 || call <= s.ErrCount) {
		return envelope.SearchResult{}, s.Err
	}
	results := append([]envelope.Document{}, s.Results...)
	return envelope.SearchResult{
		Results:     results,
		TotalFound:  len(results),
		SourcesUsed: []string{"scripted"},
	}, nil
}

// Calls returns how many times Search ran.
func (s *ScriptedSearcher) Calls() int { return int(s.calls.Load()) }

// ScriptedGenerator echoes document titles into the answer, or fails with
// GenerateErr / AnalyzeErr when set. Non-zero counts limit the failure to
// the first N calls of the respective method.
type ScriptedGenerator struct {
	Answer           string // optional fixed answer; default echoes titles
	Insights         []string
	Confidence       float64
	GenerateErr      error
	GenerateErrCount int32
	AnalyzeErr       error
	AnalyzeErrCount  int32
	Delay            time.Duration

	generateCalls atomic.Int32
	analyzeCalls  atomic.Int32
}

func (s *ScriptedGenerator) Generate(ctx context.Context, req envelope.SynthesisRequest) (envelope.SynthesisResult, error) {
	call := s.generateCalls.Add(1)
	if err := wait(ctx, s.Delay); err != nil {
		return envelope.SynthesisResult{}, err
	}
	if s.GenerateErr != nil && (s.GenerateErrCount == 0 || call <= s.GenerateErrCount) {
		return envelope.SynthesisResult{}, s.GenerateErr
	}

	answer := s.Answer
	sources := make([]envelope.Citation, 0, len(req.Documents))
	for _, doc := range req.Documents {
		citation := doc.Citation()
		sources = append(sources, citation)
		if s.Answer == "" {
			answer += citation.Title + "\n"
		}
	}
	return envelope.SynthesisResult{
		Answer:         answer,
		Sources:        sources,
		GroupedSources: map[string]envelope.CategoryGroup{},
	}, nil
}

func (s *ScriptedGenerator) AnalyzeContent(ctx context.Context, req envelope.ContentAnalysisRequest) (envelope.ContentAnalysisResult, error) {
	call := s.analyzeCalls.Add(1)
	if err := wait(ctx, s.Delay); err != nil {
		return envelope.ContentAnalysisResult{}, err
	}
	if s.AnalyzeErr != nil && (s.AnalyzeErrCount == 0 || call <= s.AnalyzeErrCount) {
		return envelope.ContentAnalysisResult{}, s.AnalyzeErr
	}
	confidence := s.Confidence
	if confidence == 0 {
		confidence = 0.8
	}
	return envelope.ContentAnalysisResult{Insights: s.Insights, Confidence: confidence}, nil
}

// GenerateCalls returns how many times Generate ran.
func (s *ScriptedGenerator) GenerateCalls() int { return int(s.generateCalls.Load()) }

// AnalyzeCalls returns how many times AnalyzeContent ran.
func (s *ScriptedGenerator) AnalyzeCalls() int { return int(s.analyzeCalls.Load()) }

// ScriptedCategorizer buckets every document under one category, or fails
// with Err when set.
type ScriptedCategorizer struct {
	Category string // defaults to "General Documents"
	Err      error
	Delay    time.Duration

	calls atomic.Int32
}

func (s *ScriptedCategorizer) Categorize(ctx context.Context, req envelope.CategorizationRequest) (envelope.CategorizationResult, error) {
	s.calls.Add(1)
	if err := wait(ctx, s.Delay); err != nil {
		return envelope.CategorizationResult{}, err
	}
	if s.Err != nil {
		return envelope.CategorizationResult{}, s.Err
	}

	category := s.Category
	if category == "" {
		category = "General Documents"
	}
	group := envelope.CategoryGroup{Count: len(req.Documents)}
	for _, doc := range req.Documents {
		group.Documents = append(group.Documents, doc.Citation())
	}
	return envelope.CategorizationResult{
		Categories: map[string]envelope.CategoryGroup{category: group},
	}, nil
}

// Calls returns how many times Categorize ran.
func (s *ScriptedCategorizer) Calls() int { return int(s.calls.Load()) }

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// CONFIG HELPERS
// =============================================================================

// FastEngineConfig returns defaults shrunk for tests: millisecond backoff,
// short timeouts, heartbeats effectively quiet.
func FastEngineConfig() *config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	cfg.BackoffUnitMS = 1
	cfg.AnalyzerTimeout = 2
	cfg.RetrieverTimeout = 2
	cfg.SynthesizerTimeout = 2
	cfg.CategorizerTimeout = 2
	cfg.HeartbeatInterval = 3600
	cfg.HealthPollInterval = 3600
	return cfg
}
