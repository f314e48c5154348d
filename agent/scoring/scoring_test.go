package scoring

import (
	"math"
	"testing"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalizeDistance(t *testing.T) {
	t.Parallel()

	cases := []struct {
		d, max, want float64
	}{
		{0, 10000, 1},
		{2500, 10000, 0.75},
		{10000, 10000, 0},
		{15000, 10000, 0},
		{-1, 10000, 0},
		{5000, 0, 0.5},
	}
	for _, tc := range cases {
		if got := NormalizeDistance(tc.d, tc.max); !almostEqual(got, tc.want) {
			t.Fatalf("NormalizeDistance(%v, %v) = %v, want %v", tc.d, tc.max, got, tc.want)
		}
	}
}

func TestNormalizeRating(t *testing.T) {
	t.Parallel()

	if got := NormalizeRating(4, 5); !almostEqual(got, 0.8) {
		t.Fatalf("NormalizeRating(4) = %v", got)
	}
	if got := NormalizeRating(7, 5); got != 1 {
		t.Fatalf("NormalizeRating(7) = %v, want 1", got)
	}
	if got := NormalizeRating(0, 5); got != 0 {
		t.Fatalf("NormalizeRating(0) = %v, want 0", got)
	}
}

func TestValueScore(t *testing.T) {
	t.Parallel()

	// 4.5/5*0.7 + (1-2/4)*0.3 = 0.63 + 0.15
	if got := ValueScore(4.5, 2); !almostEqual(got, 0.78) {
		t.Fatalf("ValueScore(4.5, 2) = %v, want 0.78", got)
	}
	if got, want := ValueScore(4.5, 0), ValueScore(4.5, 2); !almostEqual(got, want) {
		t.Fatalf("missing price should score like level 2: %v vs %v", got, want)
	}
}

func TestCompositeScoreStaysInUnitInterval(t *testing.T) {
	t.Parallel()

	weightSets := []Weights{
		DefaultWeights,
		{Rating: 1},
		{Rating: 0.25, Distance: 0.25, Value: 0.25, Open: 0.25},
		{Rating: 2, Distance: 2, Value: 2, Open: 2},
	}
	for _, w := range weightSets {
		for r := 0.0; r <= 5.0; r += 0.25 {
			for _, open := range []bool{true, false} {
				c := state.Candidate{Rating: r, DistanceM: 0, ValueScore: 1.5, OpenNow: open}
				got := CompositeScore(c, 10000, w)
				if got < 0 || got > 1 {
					t.Fatalf("CompositeScore(r=%v, w=%+v) = %v out of [0,1]", r, w, got)
				}
			}
		}
	}
}

func TestCompositeScoreMissingFieldsContributeZero(t *testing.T) {
	t.Parallel()

	c := state.Candidate{DistanceM: -1}
	if got := CompositeScore(c, 10000, DefaultWeights); got != 0 {
		t.Fatalf("CompositeScore(empty) = %v, want 0", got)
	}

	open := state.Candidate{DistanceM: -1, OpenNow: true}
	if got := CompositeScore(open, 10000, DefaultWeights); !almostEqual(got, 0.15) {
		t.Fatalf("CompositeScore(open only) = %v, want 0.15", got)
	}
}

func TestWeightsNormalize(t *testing.T) {
	t.Parallel()

	w := Weights{Rating: 2, Distance: 1, Value: 1, Open: 0}.Normalize()
	if !almostEqual(w.Rating, 0.5) || !almostEqual(w.Distance, 0.25) || !almostEqual(w.Open, 0) {
		t.Fatalf("Normalize() = %+v", w)
	}

	within := Weights{Rating: 0.4, Distance: 0.25, Value: 0.2, Open: 0.155}
	if got := within.Normalize(); got != within {
		t.Fatalf("Normalize() within tolerance changed weights: %+v", got)
	}

	if got := (Weights{}).Normalize(); got != DefaultWeights {
		t.Fatalf("Normalize() zero weights = %+v, want defaults", got)
	}
}

func TestRankSortsTruncatesAndAnnotates(t *testing.T) {
	t.Parallel()

	candidates := []state.Candidate{
		{PlaceID: "far", Rating: 4.0, DistanceM: 9000},
		{PlaceID: "best", Rating: 4.8, DistanceM: 500, OpenNow: true, ValueScore: 0.8},
		{PlaceID: "tie-a", Rating: 4.0, DistanceM: 2000},
		{PlaceID: "tie-b", Rating: 4.0, DistanceM: 2000},
		{PlaceID: "mid", Rating: 4.5, DistanceM: 3000, OpenNow: true},
	}

	ranked := Rank(candidates, 10000, 3, DefaultWeights)
	if len(ranked) != 3 {
		t.Fatalf("Rank() len = %d, want 3", len(ranked))
	}
	want := []string{"best", "mid", "tie-a"}
	for i, id := range want {
		if ranked[i].PlaceID != id {
			t.Fatalf("Rank()[%d] = %s, want %s", i, ranked[i].PlaceID, id)
		}
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].CompositeScore > ranked[i-1].CompositeScore {
			t.Fatalf("Rank() not sorted at %d", i)
		}
	}
	for _, c := range candidates {
		if c.CompositeScore == 0 {
			t.Fatalf("candidate %s not annotated", c.PlaceID)
		}
	}

	inputIDs := map[string]bool{}
	for _, c := range candidates {
		inputIDs[c.PlaceID] = true
	}
	for _, r := range ranked {
		if !inputIDs[r.PlaceID] {
			t.Fatalf("Rank() produced %s not in input", r.PlaceID)
		}
	}
}

func TestRankShortInput(t *testing.T) {
	t.Parallel()

	if got := Rank(nil, 10000, 3, DefaultWeights); len(got) != 0 {
		t.Fatalf("Rank(nil) = %v", got)
	}
	one := []state.Candidate{{PlaceID: "only"}}
	if got := Rank(one, 10000, 3, DefaultWeights); len(got) != 1 {
		t.Fatalf("Rank(one) len = %d", len(got))
	}
}

func TestFilterByBudget(t *testing.T) {
	t.Parallel()

	candidates := []state.Candidate{
		{PlaceID: "cheap", PriceLevel: 1},
		{PlaceID: "unknown"},
		{PlaceID: "mid", PriceLevel: 2},
		{PlaceID: "pricey", PriceLevel: 4},
	}
	got := FilterByBudget(candidates, 1)
	if len(got) != 1 || got[0].PlaceID != "cheap" {
		t.Fatalf("FilterByBudget(1) = %v", got)
	}
	got = FilterByBudget(candidates, 2)
	if len(got) != 3 {
		t.Fatalf("FilterByBudget(2) len = %d, want 3", len(got))
	}
	got = FilterByBudget(candidates, 3)
	if len(got) != 2 || got[0].PlaceID != "unknown" || got[1].PlaceID != "mid" {
		t.Fatalf("FilterByBudget(3) = %v", got)
	}
	got = FilterByBudget(candidates, 4)
	if len(got) != 1 || got[0].PlaceID != "pricey" {
		t.Fatalf("FilterByBudget(4) = %v", got)
	}
	if got = FilterByBudget(candidates, 0); len(got) != len(candidates) {
		t.Fatalf("FilterByBudget(0) len = %d, want all", len(got))
	}
}

func TestFilterByOpen(t *testing.T) {
	t.Parallel()

	got := FilterByOpen([]state.Candidate{{PlaceID: "a", OpenNow: true}, {PlaceID: "b"}})
	if len(got) != 1 || got[0].PlaceID != "a" {
		t.Fatalf("FilterByOpen() = %v", got)
	}
}

func TestPriceLevelsForBudget(t *testing.T) {
	t.Parallel()

	want := map[int][]int{1: {1}, 2: {1, 2}, 3: {2, 3}, 4: {3, 4}}
	for budget, levels := range want {
		got := PriceLevelsForBudget(budget)
		if len(got) != len(levels) {
			t.Fatalf("PriceLevelsForBudget(%d) = %v, want %v", budget, got, levels)
		}
		for i := range got {
			if got[i] != levels[i] {
				t.Fatalf("PriceLevelsForBudget(%d) = %v, want %v", budget, got, levels)
			}
		}
	}
	if PriceLevelsForBudget(0) != nil {
		t.Fatal("PriceLevelsForBudget(0) should be nil")
	}
}
