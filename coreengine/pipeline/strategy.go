package pipeline

import "github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"

// SelectStrategy chooses the worker composition for one query. Pure function
// of the analysis output.
//
// Broad, loosely-scoped queries get maximal fan-out; narrow queries are
// cheap enough that sequential simplicity beats coordination overhead;
// everything else takes the middle ground.
func SelectStrategy(analysis envelope.AnalysisResult) Strategy {
	keywords := len(analysis.ExpandedKeywords)

	switch {
	case analysis.IsBroadSubject && keywords > 3:
		return StrategyParallel
	case keywords <= 2:
		return StrategySequential
	default:
		return StrategyHybrid
	}
}
