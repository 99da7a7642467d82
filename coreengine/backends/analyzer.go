// Package backends provides the reference implementations behind the worker
// roles: query analysis, retrieval, synthesis, and categorization.
//
// Each backend is reached only through the message fabric, so any of them can
// be swapped for a remote implementation without touching the pipeline.
package backends

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

// Analyzer normalizes a raw query into keywords, intent, and breadth signals.
type Analyzer interface {
	Analyze(ctx context.Context, req envelope.AnalysisRequest) (envelope.AnalysisResult, error)
}

var wordPattern = regexp.MustCompile(`\w+`)

// stopWords are question scaffolding stripped before keyword extraction.
var stopWords = map[string]struct{}{
	"can": {}, "you": {}, "please": {}, "list": {}, "all": {}, "the": {},
	"files": {}, "related": {}, "to": {}, "show": {}, "me": {}, "find": {},
	"search": {}, "for": {}, "about": {}, "what": {}, "is": {}, "are": {},
	"how": {}, "do": {}, "does": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "tell": {}, "give": {}, "get": {},
	"help": {}, "assist": {}, "with": {}, "regarding": {}, "concerning": {},
	"information": {}, "resources": {}, "documents": {}, "data": {}, "content": {},
}

// subjectExpansions widens common subjects with related terms for better
// search coverage.
var subjectExpansions = map[string][]string{
	"health":       {"healthcare", "medical", "clinical", "patient", "hospital"},
	"healthcare":   {"health", "medical", "clinical", "patient", "hospital"},
	"medical":      {"health", "healthcare", "clinical", "patient", "hospital"},
	"clinical":     {"health", "healthcare", "medical", "patient", "hospital"},
	"ai":           {"artificial intelligence", "machine learning", "ml", "automation"},
	"artificial":   {"ai", "intelligence", "machine learning", "ml"},
	"intelligence": {"ai", "artificial", "machine learning", "ml"},
	"data":         {"analytics", "analysis", "insights", "metrics"},
	"analytics":    {"data", "analysis", "insights", "metrics"},
	"business":     {"enterprise", "corporate", "organization", "company"},
	"technology":   {"tech", "technical", "system", "platform"},
	"system":       {"platform", "technology", "tech", "solution"},
}

// searchIntentWords flip intent from qa to search.
var searchIntentWords = []string{"list", "show", "find", "search"}

// specificTerms suppress broad-subject detection even for short queries.
var specificTerms = []string{"cdss", "implementation", "guide", "manual", "document"}

// HeuristicAnalyzer is the deterministic reference analyzer. Stateless and
// safe for concurrent use.
type HeuristicAnalyzer struct{}

// NewHeuristicAnalyzer creates the reference analyzer.
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

// Analyze implements Analyzer.
func (a *HeuristicAnalyzer) Analyze(ctx context.Context, req envelope.AnalysisRequest) (envelope.AnalysisResult, error) {
	query := strings.TrimSpace(req.Query)
	lower := strings.ToLower(query)

	keywords := extractKeywords(lower)

	// Expand keywords with related terms, deduplicated.
	expandedSet := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		expandedSet[kw] = struct{}{}
	}
	for _, kw := range keywords {
		for _, related := range subjectExpansions[kw] {
			expandedSet[related] = struct{}{}
		}
	}
	expanded := make([]string, 0, len(expandedSet))
	for kw := range expandedSet {
		expanded = append(expanded, kw)
	}
	sort.Strings(expanded)

	normalized := query
	if len(keywords) > 0 {
		normalized = strings.Join(expanded, " ")
	}

	intent := "qa"
	if containsAny(lower, searchIntentWords) {
		intent = "search"
	}

	isBroad := len(keywords) <= 2 &&
		containsAny(lower, []string{"what", "show", "list", "find"}) &&
		!containsAny(lower, specificTerms)

	return envelope.AnalysisResult{
		OriginalQuery:    query,
		NormalizedQuery:  normalized,
		ExpandedKeywords: expanded,
		IsBroadSubject:   isBroad,
		Intent:           intent,
	}, nil
}

// extractKeywords returns lowercase words longer than two characters that
// are not stop words, in query order.
func extractKeywords(lowerQuery string) []string {
	var keywords []string
	for _, word := range wordPattern.FindAllString(lowerQuery, -1) {
		if len(word) <= 2 {
			continue
		}
		if _, stopped := stopWords[word]; stopped {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
