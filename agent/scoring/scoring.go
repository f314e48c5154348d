package scoring

import (
	"math"
	"slices"
	"sort"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
)

const (
	DefaultMaxDistanceM = 10000.0
	DefaultMaxRating    = 5.0
	// missingPriceLevel stands in for candidates with no price information.
	missingPriceLevel = 2
	weightTolerance   = 0.01
)

// Weights are the composite score coefficients.
type Weights struct {
	Rating   float64 `split_words:"true" default:"0.4"`
	Distance float64 `split_words:"true" default:"0.25"`
	Value    float64 `split_words:"true" default:"0.2"`
	Open     float64 `split_words:"true" default:"0.15"`
}

var DefaultWeights = Weights{Rating: 0.4, Distance: 0.25, Value: 0.2, Open: 0.15}

func (w Weights) sum() float64 {
	return w.Rating + w.Distance + w.Value + w.Open
}

// Normalize rescales the weights to sum to 1 when they are off by more than
// the tolerance. Non-positive sums fall back to DefaultWeights.
func (w Weights) Normalize() Weights {
	total := w.sum()
	if total <= 0 {
		return DefaultWeights
	}
	if math.Abs(total-1) <= weightTolerance {
		return w
	}
	return Weights{
		Rating:   w.Rating / total,
		Distance: w.Distance / total,
		Value:    w.Value / total,
		Open:     w.Open / total,
	}
}

// NormalizeDistance decays linearly from 1 at zero to 0 at maxD.
func NormalizeDistance(d, maxD float64) float64 {
	if maxD <= 0 {
		maxD = DefaultMaxDistanceM
	}
	if d < 0 {
		return 0
	}
	if d >= maxD {
		return 0
	}
	return 1 - d/maxD
}

func NormalizeRating(r, maxR float64) float64 {
	if maxR <= 0 {
		maxR = DefaultMaxRating
	}
	if r <= 0 {
		return 0
	}
	return math.Min(r/maxR, 1)
}

// ValueScore rewards high ratings at low prices.
func ValueScore(rating float64, priceLevel int) float64 {
	if priceLevel <= 0 {
		priceLevel = missingPriceLevel
	}
	v := NormalizeRating(rating, DefaultMaxRating)*0.7 + (1-float64(priceLevel)/4)*0.3
	return clamp01(v)
}

func CompositeScore(c state.Candidate, maxDistanceM float64, w Weights) float64 {
	w = w.Normalize()
	score := w.Rating*NormalizeRating(c.Rating, DefaultMaxRating) +
		w.Distance*NormalizeDistance(c.DistanceM, maxDistanceM) +
		w.Value*clamp01(c.ValueScore)
	if c.OpenNow {
		score += w.Open
	}
	return clamp01(score)
}

// Rank annotates every candidate in place with its composite score and
// returns the best topN, keeping input order among equal scores.
func Rank(candidates []state.Candidate, maxDistanceM float64, topN int, w Weights) []state.Candidate {
	for i := range candidates {
		candidates[i].CompositeScore = CompositeScore(candidates[i], maxDistanceM, w)
	}
	ranked := make([]state.Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore > ranked[j].CompositeScore
	})
	if topN >= 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// FilterByBudget keeps candidates whose price level falls in the budget's
// band. Unknown prices count as mid-range; budgets outside 1-4 keep all.
func FilterByBudget(candidates []state.Candidate, budgetLevel int) []state.Candidate {
	levels := PriceLevelsForBudget(budgetLevel)
	if len(levels) == 0 {
		return candidates
	}
	out := make([]state.Candidate, 0, len(candidates))
	for _, c := range candidates {
		price := c.PriceLevel
		if price <= 0 {
			price = missingPriceLevel
		}
		if slices.Contains(levels, price) {
			out = append(out, c)
		}
	}
	return out
}

func FilterByOpen(candidates []state.Candidate) []state.Candidate {
	out := make([]state.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.OpenNow {
			out = append(out, c)
		}
	}
	return out
}

// PriceLevelsForBudget is the set of acceptable price levels for a budget.
func PriceLevelsForBudget(budgetLevel int) []int {
	switch budgetLevel {
	case 1:
		return []int{1}
	case 2:
		return []int{1, 2}
	case 3:
		return []int{2, 3}
	case 4:
		return []int{3, 4}
	default:
		return nil
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
