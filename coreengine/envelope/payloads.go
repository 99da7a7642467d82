// Package envelope payload definitions.
//
// Each message kind carries exactly one payload type (a discriminated union
// keyed by Kind). ValidatePayload enforces the pairing at the router boundary.
package envelope

import (
	"fmt"
	"time"
)

// =============================================================================
// Shared Document Types
// =============================================================================

// Document is a retrieved document reference with its relevance score.
type Document struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Citation is a document reference as surfaced to the caller.
type Citation struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Citation converts a document into its user-facing citation.
func (d Document) Citation() Citation {
	title := d.Title
	if title == "" {
		title = d.URL
	}
	if title == "" {
		title = "Document"
	}
	return Citation{Title: title, URL: d.URL, Snippet: d.Snippet}
}

// CategoryGroup is one category bucket of grouped sources.
type CategoryGroup struct {
	Count     int        `json:"count"`
	Documents []Citation `json:"documents"`
}

// =============================================================================
// Stage Payloads
// =============================================================================

// AnalysisRequest asks the query analyzer to normalize and expand a query.
type AnalysisRequest struct {
	Query string `json:"query"`
}

// AnalysisResult is the query analyzer's output and the strategy selector's input.
type AnalysisResult struct {
	OriginalQuery    string   `json:"original_query"`
	NormalizedQuery  string   `json:"normalized_query"`
	ExpandedKeywords []string `json:"expanded_keywords"`
	IsBroadSubject   bool     `json:"is_broad_subject"`
	Intent           string   `json:"intent"` // "qa" or "search"
}

// SearchRequest asks the retriever for documents matching a query.
type SearchRequest struct {
	Query            string   `json:"query"`
	NormalizedQuery  string   `json:"normalized_query"`
	ExpandedKeywords []string `json:"expanded_keywords"`
	IsBroadSubject   bool     `json:"is_broad_subject"`
	MaxResults       int      `json:"max_results"`
}

// SearchResult is the retriever's output. Empty results are legitimate,
// never an error.
type SearchResult struct {
	Results     []Document `json:"results"`
	TotalFound  int        `json:"total_found"`
	SourcesUsed []string   `json:"sources_used"`
}

// ContentAnalysisRequest asks for an insight pass over retrieved documents.
type ContentAnalysisRequest struct {
	Query     string     `json:"query"`
	Documents []Document `json:"documents"`
}

// ContentAnalysisResult carries insights and a confidence score.
type ContentAnalysisResult struct {
	Insights   []string `json:"insights"`
	Confidence float64  `json:"confidence"`
}

// SynthesisRequest asks for the final answer over retrieved documents.
type SynthesisRequest struct {
	Query            string     `json:"query"`
	NormalizedQuery  string     `json:"normalized_query"`
	ExpandedKeywords []string   `json:"expanded_keywords"`
	IsBroadSubject   bool       `json:"is_broad_subject"`
	Documents        []Document `json:"documents"`
	Insights         []string   `json:"insights,omitempty"`
}

// SynthesisResult is the assembled answer with flat and grouped citations.
type SynthesisResult struct {
	Answer         string                   `json:"answer"`
	Sources        []Citation               `json:"sources"`
	GroupedSources map[string]CategoryGroup `json:"grouped_sources"`
}

// CategorizationRequest asks for documents grouped by category.
type CategorizationRequest struct {
	Documents []Document `json:"documents"`
}

// CategorizationResult maps category names to their document groups.
type CategorizationResult struct {
	Categories map[string]CategoryGroup `json:"categories"`
}

// =============================================================================
// Control Payloads
// =============================================================================

// ErrorPayload is carried by error replies: the failure text and the id of
// the request whose handler failed.
type ErrorPayload struct {
	Error             string `json:"error"`
	OriginalMessageID string `json:"original_message_id"`
}

// HeartbeatPayload is carried by periodic worker heartbeats. Receivers only
// log it; it has no control semantics.
type HeartbeatPayload struct {
	Status string    `json:"status"`
	SentAt time.Time `json:"sent_at"`
}

// =============================================================================
// Validation
// =============================================================================

// ValidatePayload checks that payload is the concrete type paired with kind.
func ValidatePayload(kind Kind, payload any) error {
	var ok bool
	switch kind {
	case KindAnalysisRequest:
		_, ok = payload.(AnalysisRequest)
	case KindAnalysisResponse:
		_, ok = payload.(AnalysisResult)
	case KindSearchRequest:
		_, ok = payload.(SearchRequest)
	case KindSearchResponse:
		_, ok = payload.(SearchResult)
	case KindContentAnalysisRequest:
		_, ok = payload.(ContentAnalysisRequest)
	case KindContentAnalysisResponse:
		_, ok = payload.(ContentAnalysisResult)
	case KindSynthesisRequest:
		_, ok = payload.(SynthesisRequest)
	case KindSynthesisResponse:
		_, ok = payload.(SynthesisResult)
	case KindCategorizationRequest:
		_, ok = payload.(CategorizationRequest)
	case KindCategorizationResponse:
		_, ok = payload.(CategorizationResult)
	case KindError:
		_, ok = payload.(ErrorPayload)
	case KindHeartbeat:
		_, ok = payload.(HeartbeatPayload)
	default:
		return fmt.Errorf("unknown message kind %q", kind)
	}
	if !ok {
		return fmt.Errorf("payload %T does not match kind %q", payload, kind)
	}
	return nil
}
