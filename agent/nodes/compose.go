package nodes

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/scoring"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/timing"
)

type rejection struct {
	name   string
	reason string
}

func (d *Dialogue) analyzeAndCompose(_ context.Context, t *turn) error {
	if !t.chained && d.cuisineChange(t) {
		return nil
	}
	return d.compose(t)
}

// compose ranks the candidates and keeps the ones the user can still reach
// and eat at before closing.
func (d *Dialogue) compose(t *turn) error {
	conv := t.conv
	if len(conv.Candidates) == 0 {
		t.continueWith(statex.StageDiscoverRestaurants)
		return nil
	}

	tz := ""
	if conv.Location != nil {
		tz = conv.Location.TimezoneID
	}
	local := timing.LocalTime(t.now, tz)

	ranked := scoring.Rank(conv.Candidates, d.settings.MaxDistanceM, d.settings.TopN, d.settings.Weights)
	recs := make([]statex.Recommendation, 0, len(ranked))
	var dropped []rejection
	for _, c := range ranked {
		travel := timing.TravelMinutes(c.DistanceM, d.settings.SpeedKmh)
		remaining := timing.MinutesUntilClose(c.ClosingText, local, d.settings.DefaultClosingHour)
		if !timing.Feasible(remaining, travel, d.settings.DwellMinutes) {
			dropped = append(dropped, rejection{
				name: c.Name,
				reason: fmt.Sprintf("Not enough time (%.0f min needed, %.0f min until closing)",
					math.Ceil(travel+d.settings.DwellMinutes), math.Max(math.Floor(remaining), 0)),
			})
			continue
		}
		recs = append(recs, statex.Recommendation{
			Rank:              len(recs) + 1,
			Candidate:         c,
			Score:             c.CompositeScore,
			Rationale:         rationale(conv.PreferredCuisine, c, travel, remaining),
			TravelMinutes:     math.Round(travel*10) / 10,
			MinutesUntilClose: math.Round(remaining),
		})
	}

	if len(recs) == 0 {
		conv.ResetDiscovery(t.now)
		conv.Stage = statex.StageDiscoverRestaurants
		t.resp.Suggestions = append([]string(nil), discoverySuggestions...)
		t.say("%s\n\nWant me to try a different cuisine, expand the search radius, or look up a specific restaurant?",
			formatRejections(dropped))
		return nil
	}

	if err := conv.SetRecommendations(recs, t.now); err != nil {
		return err
	}
	conv.Stage = statex.StageSelectRestaurant
	t.resp.Recommendations = conv.Recommendations
	t.resp.CandidatesCount = len(conv.Candidates)

	var b strings.Builder
	b.WriteString(formatRecommendations(recs))
	if len(dropped) > 0 {
		b.WriteString("\n\n")
		b.WriteString(formatRejections(dropped))
	}
	if len(recs) == 1 {
		b.WriteString("\n\nWant to go with it? Reply 1 or just say yes.")
	} else {
		fmt.Fprintf(&b, "\n\nWhich one would you like? Reply with %s.", choiceRange(len(recs)))
	}
	t.say(b.String())
	return nil
}

func rationale(cuisine string, c statex.Candidate, travel, remaining float64) string {
	parts := make([]string, 0, 4)
	if c.Rating > 0 {
		parts = append(parts, fmt.Sprintf("%.1f★ from %d reviews", c.Rating, c.RatingCount))
	}
	if c.PriceLevel > 0 {
		parts = append(parts, strings.Repeat("$", c.PriceLevel))
	}
	parts = append(parts, fmt.Sprintf("about %.0f min away", math.Max(math.Ceil(travel), 1)))
	if remaining >= 24*60 {
		parts = append(parts, "open around the clock")
	} else if c.ClosingText != "" {
		parts = append(parts, strings.ToLower(c.ClosingText[:1])+c.ClosingText[1:])
	}

	label := "Solid"
	if c.Rating >= 4.5 {
		label = "Excellent"
	}
	if cuisine == "" {
		return fmt.Sprintf("%s option: %s", label, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s %s option: %s", label, cuisine, strings.Join(parts, ", "))
}

func formatRejections(dropped []rejection) string {
	var b strings.Builder
	b.WriteString("Unfortunately, the best matches close too soon:")
	for _, r := range dropped {
		fmt.Fprintf(&b, "\n- %s: %s", r.name, r.reason)
	}
	return b.String()
}
