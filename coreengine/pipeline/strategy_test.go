package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

func keywords(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("kw%d", i)
	}
	return out
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		name     string
		broad    bool
		keywords int
		want     Strategy
	}{
		{"broad with many keywords", true, 5, StrategyParallel},
		{"narrow single keyword", false, 1, StrategySequential},
		{"narrow but keyword-rich", false, 4, StrategyHybrid},
		{"boundary two keywords", false, 2, StrategySequential},
		{"boundary three keywords", false, 3, StrategyHybrid},
		{"broad but few keywords", true, 2, StrategySequential},
		{"broad boundary three keywords", true, 3, StrategyHybrid},
		{"broad boundary four keywords", true, 4, StrategyParallel},
		{"no keywords", false, 0, StrategySequential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectStrategy(envelope.AnalysisResult{
				IsBroadSubject:   tt.broad,
				ExpandedKeywords: keywords(tt.keywords),
			})
			assert.Equal(t, tt.want, got)
		})
	}
}
