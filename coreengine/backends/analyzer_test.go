package backends

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

func TestAnalyzerKeywordExtraction(t *testing.T) {
	analyzer := NewHeuristicAnalyzer()

	result, err := analyzer.Analyze(context.Background(),
		envelope.AnalysisRequest{Query: "Can you please list all the files related to kubernetes deployment"})
	require.NoError(t, err)

	assert.Contains(t, result.ExpandedKeywords, "kubernetes")
	assert.Contains(t, result.ExpandedKeywords, "deployment")
	assert.NotContains(t, result.ExpandedKeywords, "please", "stop words must be stripped")
	assert.NotContains(t, result.ExpandedKeywords, "the")
}

func TestAnalyzerSubjectExpansion(t *testing.T) {
	analyzer := NewHeuristicAnalyzer()

	result, err := analyzer.Analyze(context.Background(),
		envelope.AnalysisRequest{Query: "tell me about health outcomes"})
	require.NoError(t, err)

	assert.Contains(t, result.ExpandedKeywords, "health")
	assert.Contains(t, result.ExpandedKeywords, "healthcare")
	assert.Contains(t, result.ExpandedKeywords, "clinical")
}

func TestAnalyzerIntent(t *testing.T) {
	tests := []struct {
		query  string
		intent string
	}{
		{"list all deployment guides", "search"},
		{"show me security policies", "search"},
		{"what is a clinical decision support system", "qa"},
		{"why does replication lag", "qa"},
	}

	analyzer := NewHeuristicAnalyzer()
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			result, err := analyzer.Analyze(context.Background(),
				envelope.AnalysisRequest{Query: tt.query})
			require.NoError(t, err)
			assert.Equal(t, tt.intent, result.Intent)
		})
	}
}

func TestAnalyzerBroadSubjectDetection(t *testing.T) {
	tests := []struct {
		name  string
		query string
		broad bool
	}{
		{"short what-query is broad", "what about healthcare", true},
		{"specific term suppresses breadth", "what is the CDSS implementation guide", false},
		{"many keywords is not broad", "show kubernetes ingress controller certificates rotation", false},
		{"plain statement is not broad", "healthcare analytics", false},
	}

	analyzer := NewHeuristicAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := analyzer.Analyze(context.Background(),
				envelope.AnalysisRequest{Query: tt.query})
			require.NoError(t, err)
			assert.Equal(t, tt.broad, result.IsBroadSubject)
		})
	}
}

func TestAnalyzerEmptyQuery(t *testing.T) {
	analyzer := NewHeuristicAnalyzer()

	result, err := analyzer.Analyze(context.Background(), envelope.AnalysisRequest{Query: "   "})
	require.NoError(t, err)

	assert.Empty(t, result.ExpandedKeywords)
	assert.Equal(t, "", result.NormalizedQuery)
	assert.Equal(t, "qa", result.Intent)
	assert.False(t, result.IsBroadSubject)
}

func TestAnalyzerNormalizedQueryIsSorted(t *testing.T) {
	analyzer := NewHeuristicAnalyzer()

	first, err := analyzer.Analyze(context.Background(),
		envelope.AnalysisRequest{Query: "kubernetes monitoring alerts"})
	require.NoError(t, err)
	second, err := analyzer.Analyze(context.Background(),
		envelope.AnalysisRequest{Query: "alerts monitoring kubernetes"})
	require.NoError(t, err)

	assert.Equal(t, first.NormalizedQuery, second.NormalizedQuery,
		"keyword order in the raw query must not change the normalized form")
}
