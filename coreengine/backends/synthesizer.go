package backends

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

// Generator produces the final answer and serves the content-analysis pass.
// Both run on the same backend because they share the generation model.
type Generator interface {
	Generate(ctx context.Context, req envelope.SynthesisRequest) (envelope.SynthesisResult, error)
	AnalyzeContent(ctx context.Context, req envelope.ContentAnalysisRequest) (envelope.ContentAnalysisResult, error)
}

// NoResultsAnswer is returned when synthesis runs with an empty document set.
const NoResultsAnswer = "I couldn't find relevant information for your query."

const maxListedSources = 10

// TemplateSynthesizer is the reference generator: deterministic answer
// composition from retrieved snippets, with a distinct overview mode for
// broad-subject queries. Stateless and safe for concurrent use.
type TemplateSynthesizer struct{}

// NewTemplateSynthesizer creates the reference generator.
func NewTemplateSynthesizer() *TemplateSynthesizer {
	return &TemplateSynthesizer{}
}

// Generate implements Generator.
func (s *TemplateSynthesizer) Generate(ctx context.Context, req envelope.SynthesisRequest) (envelope.SynthesisResult, error) {
	if err := ctx.Err(); err != nil {
		return envelope.SynthesisResult{}, err
	}

	grouped := GroupByCategory(req.Documents)
	sources := make([]envelope.Citation, 0, len(req.Documents))
	for _, doc := range req.Documents {
		sources = append(sources, doc.Citation())
	}

	if len(req.Documents) == 0 {
		return envelope.SynthesisResult{
			Answer:         NoResultsAnswer,
			Sources:        sources,
			GroupedSources: grouped,
		}, nil
	}

	query := req.NormalizedQuery
	if query == "" {
		query = req.Query
	}

	var answer string
	if req.IsBroadSubject {
		answer = s.overviewAnswer(query, req.Documents, grouped, req.Insights)
	} else {
		answer = s.focusedAnswer(query, req.Documents, req.Insights)
	}

	return envelope.SynthesisResult{
		Answer:         answer,
		Sources:        sources,
		GroupedSources: grouped,
	}, nil
}

// overviewAnswer summarizes the scope of available material for a broad
// subject: category breakdown first, then the top sources.
func (s *TemplateSynthesizer) overviewAnswer(
	query string,
	docs []envelope.Document,
	grouped map[string]envelope.CategoryGroup,
	insights []string,
) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d relevant documents for your query: '%s'\n\n", len(docs), query)

	b.WriteString("The available material covers these areas:\n")
	for _, category := range sortedCategories(grouped) {
		fmt.Fprintf(&b, "- %s (%d documents)\n", category, grouped[category].Count)
	}

	if len(insights) > 0 {
		b.WriteString("\nKey points:\n")
		for _, insight := range insights {
			fmt.Fprintf(&b, "- %s\n", insight)
		}
	}

	b.WriteString("\nHere are the relevant sources:\n")
	writeSourceList(&b, docs)
	return b.String()
}

// focusedAnswer composes a direct answer from the highest-scoring snippets.
func (s *TemplateSynthesizer) focusedAnswer(query string, docs []envelope.Document, insights []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the search results for '%s':\n\n", query)

	for i, doc := range docs {
		if i >= maxListedSources {
			break
		}
		if doc.Snippet == "" {
			continue
		}
		b.WriteString(doc.Snippet)
		b.WriteString("\n\n")
	}

	if len(insights) > 0 {
		b.WriteString("Key points:\n")
		for _, insight := range insights {
			fmt.Fprintf(&b, "- %s\n", insight)
		}
	}

	b.WriteString("Sources:\n")
	writeSourceList(&b, docs)
	return b.String()
}

// AnalyzeContent implements Generator: a deterministic insight pass over the
// retrieved set. Confidence grows with corpus coverage and peak relevance.
func (s *TemplateSynthesizer) AnalyzeContent(ctx context.Context, req envelope.ContentAnalysisRequest) (envelope.ContentAnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return envelope.ContentAnalysisResult{}, err
	}

	if len(req.Documents) == 0 {
		return envelope.ContentAnalysisResult{Insights: []string{}, Confidence: 0.1}, nil
	}

	grouped := GroupByCategory(req.Documents)
	insights := make([]string, 0, len(grouped)+1)
	insights = append(insights,
		fmt.Sprintf("%d documents match the query", len(req.Documents)))
	for _, category := range sortedCategories(grouped) {
		insights = append(insights,
			fmt.Sprintf("%s: %d documents", category, grouped[category].Count))
	}

	var peak float64
	for _, doc := range req.Documents {
		if doc.Score > peak {
			peak = doc.Score
		}
	}

	confidence := 0.3 + 0.05*float64(len(req.Documents))
	if peak > 1 {
		confidence += 0.2
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	return envelope.ContentAnalysisResult{Insights: insights, Confidence: confidence}, nil
}

func sortedCategories(grouped map[string]envelope.CategoryGroup) []string {
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeSourceList(b *strings.Builder, docs []envelope.Document) {
	for i, doc := range docs {
		if i >= maxListedSources {
			break
		}
		citation := doc.Citation()
		fmt.Fprintf(b, "%d. %s\n", i+1, citation.Title)
	}
}
