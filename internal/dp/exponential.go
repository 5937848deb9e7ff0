// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dp

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// maxDraws bounds how often the CDF is sampled before giving up.
const maxDraws = 10

// ExponentialMechanism picks an index into gains. Larger gains are
// exponentially more likely: p_i = exp(g_i - logsumexp(g)) for g_i > 0 and
// 0 otherwise. It returns -1 when no gain is positive or no candidate was
// hit after maxDraws draws. With deterministic set (or rng nil) it returns
// the index of the largest gain.
func ExponentialMechanism(gains []float64, rng *rand.Rand, deterministic bool) int {
	positive := 0
	for _, g := range gains {
		if g > 0 {
			positive++
		}
	}
	if positive == 0 {
		return -1
	}

	lse := floats.LogSumExp(gains)
	probabilities := make([]float64, len(gains))
	for i, g := range gains {
		if g > 0 {
			probabilities[i] = math.Exp(g - lse)
		}
	}

	if deterministic || rng == nil {
		return floats.MaxIdx(probabilities)
	}

	cdf := make([]float64, len(probabilities))
	floats.CumSum(cdf, probabilities)

	for draw := 0; draw < maxDraws; draw++ {
		r := rng.Float64()
		for i, c := range cdf {
			if c >= r {
				return i
			}
		}
	}
	return -1
}
