package usecase

import (
	"math"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

const defaultMMRLambda = 0.5

// maximalMarginalRelevance greedily picks up to k candidate indexes. The first
// pick is the candidate most similar to the query; each later pick maximizes
// lambda*sim(c, query) - (1-lambda)*max sim(c, picked). Ties keep the lower
// index, so the result is deterministic for a given candidate order.
func maximalMarginalRelevance(query []float32, candidates [][]float32, k int, lambda float64) []int {
	n := len(candidates)
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}

	relevance := make([]float64, n)
	for i, candidate := range candidates {
		relevance[i] = domain.CosineSimilarity(query, candidate)
	}
	redundancy := make([]float64, n)
	picked := make([]bool, n)
	selected := make([]int, 0, k)

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if picked[i] {
				continue
			}
			score := relevance[i]
			if len(selected) > 0 {
				score = lambda*relevance[i] - (1-lambda)*redundancy[i]
			}
			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}

		picked[best] = true
		selected = append(selected, best)
		for i := range candidates {
			if picked[i] {
				continue
			}
			sim := domain.CosineSimilarity(candidates[i], candidates[best])
			if len(selected) == 1 || sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}
	return selected
}

func normalizeLambda(lambda float64) float64 {
	if math.IsNaN(lambda) || lambda < 0 || lambda > 1 {
		return defaultMMRLambda
	}
	return lambda
}
