package backends

import (
	"context"
	"strings"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

// Categorizer groups retrieved documents into named categories.
type Categorizer interface {
	Categorize(ctx context.Context, req envelope.CategorizationRequest) (envelope.CategorizationResult, error)
}

// FallbackCategory is assigned when no category pattern matches.
const FallbackCategory = "General Documents"

// categoryPatterns maps category names to the keywords that vote for them.
var categoryPatterns = map[string][]string{
	"Implementation Guides": {
		"implementation", "setup", "install", "configuration", "deployment",
		"getting started", "quick start", "tutorial", "guide", "how to",
	},
	"Best Practices": {
		"best practice", "recommendation", "guideline", "standard",
		"policy", "procedure", "methodology", "approach",
	},
	"Evaluation & Metrics": {
		"evaluation", "assessment", "metrics", "measurement", "kpi",
		"performance", "effectiveness", "analysis", "testing",
	},
	"Use Cases": {
		"use case", "scenario", "example", "case study", "application",
		"workflow", "process", "business case",
	},
	"Technical Documentation": {
		"api", "technical", "specification", "architecture", "design",
		"system", "integration", "development", "code",
	},
	"Research & Studies": {
		"research", "study", "paper", "analysis", "findings",
		"survey", "report", "investigation", "experiment",
	},
	"Training & Education": {
		"training", "education", "learning", "course", "workshop",
		"certification", "tutorial", "lesson", "module",
	},
	"Policies & Compliance": {
		"policy", "compliance", "regulation", "standard", "requirement",
		"governance", "audit", "security", "privacy",
	},
}

// KeywordCategorizer is the deterministic reference categorizer. Pure, no
// I/O, safe for concurrent use.
type KeywordCategorizer struct{}

// NewKeywordCategorizer creates the reference categorizer.
func NewKeywordCategorizer() *KeywordCategorizer {
	return &KeywordCategorizer{}
}

// Categorize implements Categorizer.
func (c *KeywordCategorizer) Categorize(ctx context.Context, req envelope.CategorizationRequest) (envelope.CategorizationResult, error) {
	categories := GroupByCategory(req.Documents)
	return envelope.CategorizationResult{Categories: categories}, nil
}

// CategorizeDocument scores each category by keyword occurrences in the
// document's title and snippet, returning the highest scorer or the fallback
// when nothing matches. Title and snippet weigh equally.
func CategorizeDocument(title, snippet string) string {
	content := strings.ToLower(title) + " " + strings.ToLower(snippet)

	best := FallbackCategory
	bestScore := 0
	for category, keywords := range categoryPatterns {
		score := 0
		for _, kw := range keywords {
			score += strings.Count(content, kw)
		}
		// Ties break lexicographically so grouping stays deterministic.
		if score > bestScore || (score == bestScore && score > 0 && category < best) {
			best = category
			bestScore = score
		}
	}
	return best
}

// GroupByCategory buckets documents by their determined category. The result
// map is never nil.
func GroupByCategory(docs []envelope.Document) map[string]envelope.CategoryGroup {
	grouped := make(map[string]envelope.CategoryGroup)
	for _, doc := range docs {
		category := CategorizeDocument(doc.Title, doc.Snippet)
		group := grouped[category]
		group.Count++
		group.Documents = append(group.Documents, doc.Citation())
		grouped[category] = group
	}
	return grouped
}
