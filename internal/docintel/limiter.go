package docintel

import (
	"context"

	"golang.org/x/time/rate"
)

type limitedAnalyzer struct {
	limiter  *rate.Limiter
	analyzer Analyzer
}

// NewLimited throttles calls to analyzer. A nil limiter disables throttling.
func NewLimited(l *rate.Limiter, a Analyzer) Analyzer {
	return &limitedAnalyzer{
		limiter:  l,
		analyzer: a,
	}
}

// NewRateLimiter builds a limiter allowing rps calls per second with a burst of
// one. Non-positive rps yields nil.
func NewRateLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func (p *limitedAnalyzer) Analyze(ctx context.Context, modelID string, document []byte, pages []int) (*AnalysisResult, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return p.analyzer.Analyze(ctx, modelID, document, pages)
}
