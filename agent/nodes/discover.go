package nodes

import (
	"context"
	"strings"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/scoring"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/slots"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
	logx "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/logger"
)

func (d *Dialogue) discoverRestaurants(ctx context.Context, t *turn) error {
	conv := t.conv
	if !conv.HasLocation() {
		conv.Stage = statex.StageCollectLocation
		t.say("I need to know where you are before I can search. What suburb, street or landmark are you near?")
		return nil
	}

	if !t.chained {
		if stop := d.applyDiscoveryAdjustments(t); stop {
			return nil
		}
	}

	searchCtx, cancel := context.WithTimeout(ctx, d.settings.SearchTimeout)
	results := d.gateway.NearbySearch(searchCtx, contract.NearbyQuery{
		Latitude:    conv.Location.Latitude,
		Longitude:   conv.Location.Longitude,
		RadiusM:     conv.SearchRadiusM,
		Keyword:     conv.PreferredCuisine,
		PriceLevels: scoring.PriceLevelsForBudget(conv.BudgetLevel),
		OpenNow:     true,
		Type:        "restaurant",
	})
	timedOut := searchCtx.Err() != nil
	cancel()

	results = scoring.FilterByBudget(scoring.FilterByOpen(results), conv.BudgetLevel)
	candidates := d.prepareCandidates(filterByCuisine(results, conv.PreferredCuisine))
	t.resp.Cuisine = conv.PreferredCuisine
	t.resp.SearchRadiusM = conv.SearchRadiusM

	if len(candidates) == 0 {
		logx.Debug().
			Str("context_id", conv.ContextID).
			Str("cuisine", conv.PreferredCuisine).
			Int("radius_m", conv.SearchRadiusM).
			Bool("timed_out", timedOut).
			Msg("discovery returned no candidates")
		conv.ResetDiscovery(t.now)
		t.resp.Suggestions = append([]string(nil), discoverySuggestions...)
		t.say("I couldn't find any open %s restaurants within %s right now. "+
			"Want to try a different cuisine, expand the search radius, or name a specific restaurant?",
			conv.PreferredCuisine, formatDistance(float64(conv.SearchRadiusM)))
		return nil
	}

	conv.ResetDiscovery(t.now)
	conv.SetCandidates(candidates, t.now)
	t.resp.CandidatesCount = len(candidates)
	t.say("Found %d great %s %s within %s!",
		len(candidates), conv.PreferredCuisine, plural(len(candidates), "restaurant", "restaurants"),
		formatDistance(float64(conv.SearchRadiusM)))
	t.continueWith(statex.StageCompose)
	return nil
}

// applyDiscoveryAdjustments takes a new cuisine, distance or "expand" request
// from the utterance. It reports true when the turn should stop and wait.
func (d *Dialogue) applyDiscoveryAdjustments(t *turn) bool {
	conv := t.conv
	if m, ok := d.extractor.Cuisine(t.text); ok && !strings.EqualFold(m.Cuisine, conv.PreferredCuisine) {
		conv.SetCuisinePreference(m.Cuisine, m.Dish, t.now)
		conv.QuickMode = false
	}

	if meters, ok := slots.Distance(t.text); ok {
		if err := conv.ConfirmDistance(meters, t.now); err != nil {
			t.resp.SearchRadiusM = conv.SearchRadiusM
			t.say("%s is outside what I can search. Pick something between %s and %s.",
				formatDistance(float64(meters)),
				formatDistance(statex.MinSearchRadiusM), formatDistance(statex.MaxSearchRadiusM))
			return true
		}
		return false
	}

	if slots.WantsExpansion(t.text) {
		if conv.SearchRadiusM >= statex.MaxSearchRadiusM {
			t.say("I'm already searching as far as I can (%s).", formatDistance(statex.MaxSearchRadiusM))
			return false
		}
		radius := min(conv.SearchRadiusM*2, statex.MaxSearchRadiusM)
		if err := conv.ConfirmDistance(radius, t.now); err != nil {
			logx.Warn().Err(err).Str("context_id", conv.ContextID).Msg("radius expansion rejected")
		}
	}
	return false
}

// filterByCuisine keeps results whose name carries a cuisine keyword. An
// empty match falls back to the unfiltered results.
func filterByCuisine(results []statex.Candidate, cuisine string) []statex.Candidate {
	if strings.TrimSpace(cuisine) == "" {
		return results
	}
	keywords := slots.CuisineKeywords(cuisine)
	filtered := make([]statex.Candidate, 0, len(results))
	for _, c := range results {
		name := strings.ToLower(c.Name)
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				filtered = append(filtered, c)
				break
			}
		}
	}
	if len(filtered) == 0 {
		return results
	}
	return filtered
}

func (d *Dialogue) prepareCandidates(results []statex.Candidate) []statex.Candidate {
	if len(results) > d.settings.MaxCandidates {
		results = results[:d.settings.MaxCandidates]
	}
	out := make([]statex.Candidate, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, c := range results {
		if c.PlaceID == "" || seen[c.PlaceID] {
			continue
		}
		seen[c.PlaceID] = true
		c.ValueScore = scoring.ValueScore(c.Rating, c.PriceLevel)
		c.CompositeScore = 0
		out = append(out, c)
	}
	return out
}

// cuisineChange resets results when the utterance names a different cuisine
// and parks the conversation in discovery.
func (d *Dialogue) cuisineChange(t *turn) bool {
	m, ok := d.extractor.Cuisine(t.text)
	if !ok || strings.EqualFold(m.Cuisine, t.conv.PreferredCuisine) {
		return false
	}
	conv := t.conv
	conv.ResetDiscovery(t.now)
	conv.SetCuisinePreference(m.Cuisine, m.Dish, t.now)
	conv.QuickMode = false
	conv.Stage = statex.StageDiscoverRestaurants

	t.resp.Cuisine = m.Cuisine
	t.say("No problem, switching to %s. Say go and I'll search within %s.",
		m.Cuisine, formatDistance(float64(conv.SearchRadiusM)))
	return true
}
