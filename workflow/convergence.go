package workflow

import (
	"math"
	"strings"
)

// Convergence decides when iterative coordination can stop early: when the
// difference between consecutive rounds falls below Threshold, further rounds
// are unlikely to change the outcome.
type Convergence struct {
	Threshold float64
}

// DefaultConvergence returns the stock threshold.
func DefaultConvergence() Convergence {
	return Convergence{Threshold: 0.3}
}

// Converged reports whether curr differs from prev by less than the
// threshold.
func (c Convergence) Converged(prev, curr string) bool {
	return diffScore(prev, curr) < c.Threshold
}

// diffScore measures round-over-round change in [0,1]: a weighted blend of
// relative length delta and token novelty. Identical inputs score 0.
func diffScore(prev, curr string) float64 {
	if prev == curr {
		return 0
	}
	if prev == "" || curr == "" {
		return 1
	}

	lp, lc := float64(len(prev)), float64(len(curr))
	lengthDelta := math.Abs(lp-lc) / math.Max(lp, lc)

	prevTokens := tokenSet(prev)
	currTokens := tokenSet(curr)
	shared := 0
	for tok := range currTokens {
		if _, ok := prevTokens[tok]; ok {
			shared++
		}
	}
	union := len(prevTokens) + len(currTokens) - shared
	novelty := 1.0
	if union > 0 {
		novelty = 1 - float64(shared)/float64(union)
	}

	return 0.3*lengthDelta + 0.7*novelty
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		out[strings.Trim(tok, ".,;:!?\"'()")] = struct{}{}
	}
	return out
}
