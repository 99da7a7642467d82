// Package pipeline implements the query-processing controller: strategy
// selection, stage executors, and the retry state machine around them.
package pipeline

import (
	"sync"
	"time"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

// Strategy is the chosen composition of worker calls for one query.
type Strategy string

const (
	StrategyParallel   Strategy = "parallel"
	StrategySequential Strategy = "sequential"
	StrategyHybrid     Strategy = "hybrid"
)

// Status tracks one query through the retry state machine.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusRetrying  Status = "retrying"
	StatusFailed    Status = "failed"
)

// Stage names used in timings, error entries, and metrics.
const (
	stageAnalysis       = "analysis"
	stageSearch         = "search"
	stageContent        = "content_analysis"
	stageCategorization = "categorization"
	stageSynthesis      = "synthesis"
)

// State is the per-query pipeline state. Owned by one Process call; the
// mutex covers only the fields that parallel stage groups write together
// (errors and timings), never the stage outputs themselves, which each have
// exactly one writer.
type State struct {
	RequestID string
	Query     string
	StartedAt time.Time

	Analysis envelope.AnalysisResult
	Strategy Strategy

	Search     envelope.SearchResult
	Content    envelope.ContentAnalysisResult
	Categories map[string]envelope.CategoryGroup
	Synthesis  envelope.SynthesisResult

	Status     Status
	RetryCount int

	mu         sync.Mutex
	errors     []string
	stageTimes map[string]time.Duration
}

func newState(query string, requestID string) *State {
	return &State{
		RequestID:  requestID,
		Query:      query,
		StartedAt:  time.Now(),
		Status:     StatusRunning,
		Categories: map[string]envelope.CategoryGroup{},
		stageTimes: make(map[string]time.Duration),
	}
}

func (s *State) addError(entry string) {
	s.mu.Lock()
	s.errors = append(s.errors, entry)
	s.mu.Unlock()
}

func (s *State) clearErrors() {
	s.mu.Lock()
	s.errors = nil
	s.mu.Unlock()
}

// Errors returns a copy of the accumulated error list.
func (s *State) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.errors))
	copy(out, s.errors)
	return out
}

func (s *State) setStageTime(stage string, d time.Duration) {
	s.mu.Lock()
	s.stageTimes[stage] = d
	s.mu.Unlock()
}

// StageTimes returns a copy of the per-stage timings.
func (s *State) StageTimes() map[string]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Duration, len(s.stageTimes))
	for k, v := range s.stageTimes {
		out[k] = v
	}
	return out
}

// resetStages discards stage outputs before a retry pass. Analysis survives;
// execution restarts from retrieval.
func (s *State) resetStages() {
	s.Search = envelope.SearchResult{}
	s.Content = envelope.ContentAnalysisResult{}
	s.Categories = map[string]envelope.CategoryGroup{}
	s.Synthesis = envelope.SynthesisResult{}
}

// SearchMetadata summarizes the retrieval stage for the caller.
type SearchMetadata struct {
	TotalFound  int      `json:"total_found"`
	SourcesUsed []string `json:"sources_used"`
}

// Result is the response structure returned by Process. Answer, Sources and
// GroupedSources are always non-nil, even after total failure.
type Result struct {
	Answer         string                            `json:"answer"`
	Sources        []envelope.Citation               `json:"sources"`
	GroupedSources map[string]envelope.CategoryGroup `json:"grouped_sources"`
	Confidence     float64                           `json:"confidence"`
	Errors         []string                          `json:"errors"`
	RequestID      string                            `json:"request_id"`
	Strategy       Strategy                          `json:"strategy"`
	RetryCount     int                               `json:"retry_count"`
	ProcessingTime time.Duration                     `json:"processing_time"`
	StageTimes     map[string]time.Duration          `json:"stage_times"`
	SearchMetadata SearchMetadata                    `json:"search_metadata"`
}
