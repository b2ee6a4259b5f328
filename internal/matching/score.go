package matching

import (
	"math"
	"sort"

	"tourism-compliance/internal/models"
)

const (
	ExactThreshold    = 0.85
	ProbableThreshold = 0.65
	PossibleThreshold = 0.40
)

// Score is the weighted mean of the present factors, renormalized over their weights.
// Factors without a positive weight are ignored. No usable factor scores 0. Factors are
// summed in name order so the result is bit-for-bit reproducible.
func Score(factors models.Factors, weights Weights) float64 {
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum, sumW float64
	for _, name := range names {
		v := factors[name]
		w := weights[name]
		if w <= 0 {
			continue
		}
		sum += w * clamp01(v)
		sumW += w
	}
	if sumW == 0 {
		return 0
	}
	return round4(clamp01(sum / sumW))
}

// Tier maps a score onto its confidence tier.
func Tier(score float64) models.MatchType {
	switch {
	case score >= ExactThreshold:
		return models.MatchExact
	case score >= ProbableThreshold:
		return models.MatchProbable
	case score >= PossibleThreshold:
		return models.MatchPossible
	default:
		return models.MatchNone
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
