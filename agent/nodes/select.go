package nodes

import (
	"context"
	"fmt"
	"math"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/slots"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/timing"
)

func (d *Dialogue) selectRestaurant(ctx context.Context, t *turn) error {
	conv := t.conv
	n := len(conv.Recommendations)
	if n == 0 {
		if len(conv.Candidates) > 0 {
			t.continueWith(statex.StageCompose)
		} else {
			t.continueWith(statex.StageDiscoverRestaurants)
		}
		return nil
	}

	if choice, ok := slots.LeadingInt(t.text); ok {
		if choice < 1 || choice > n {
			t.resp.Recommendations = conv.Recommendations
			t.say("There's no option %d. Please reply with %s.", choice, choiceRange(n))
			return nil
		}
		return d.finalize(t, choice)
	}
	if n == 1 && slots.IsAffirmative(t.text) {
		return d.finalize(t, 1)
	}
	query, isQuery := slots.PlaceQuery(t.text)
	if isQuery && d.namesPlace(query) {
		return d.searchSpecificPlace(ctx, t, query)
	}
	if d.cuisineChange(t) {
		return nil
	}
	if isQuery {
		return d.searchSpecificPlace(ctx, t, query)
	}

	t.resp.Recommendations = conv.Recommendations
	t.say("I didn't catch that. Please reply with %s to pick a restaurant, name a different cuisine, "+
		"or ask about a specific place.", choiceRange(n))
	return nil
}

// namesPlace separates "how about Sushi Hub" from "how about sushi".
func (d *Dialogue) namesPlace(query string) bool {
	m, ok := d.extractor.Cuisine(query)
	return ok && slots.NamesPlace(query, m)
}

func (d *Dialogue) finalize(t *turn, choice int) error {
	conv := t.conv
	selected, err := conv.SelectRestaurant(choice, t.now)
	if err != nil {
		return err
	}
	t.resp.Selected = selected

	tz := ""
	if conv.Location != nil {
		tz = conv.Location.TimezoneID
	}
	multiplier := timing.TrafficMultiplier(timing.LocalTime(t.now, tz))
	minutes := math.Max(math.Ceil(selected.TravelMinutes*multiplier), 1)

	msg := fmt.Sprintf("Great choice! %s is %s away, about %.0f minutes by car",
		selected.Name, formatDistance(selected.DistanceM), minutes)
	if multiplier > 1 {
		msg += " with rush-hour traffic"
	}
	msg += "."
	if selected.ClosingText != "" {
		msg += fmt.Sprintf(" Opening hours: %s.", selected.ClosingText)
	}
	if selected.Address != "" {
		msg += fmt.Sprintf(" Address: %s.", selected.Address)
	}
	t.say(msg + " Enjoy your meal!")
	return nil
}

// searchSpecificPlace looks up a restaurant the user named and, on a hit,
// replaces the candidates with the results.
func (d *Dialogue) searchSpecificPlace(ctx context.Context, t *turn, query string) error {
	conv := t.conv
	searchCtx, cancel := context.WithTimeout(ctx, d.settings.SearchTimeout)
	results := d.gateway.TextSearch(searchCtx, contract.TextQuery{
		Query:     query,
		Latitude:  conv.Location.Latitude,
		Longitude: conv.Location.Longitude,
		RadiusM:   conv.SearchRadiusM,
	})
	cancel()

	candidates := d.prepareCandidates(results)
	if len(candidates) == 0 {
		t.resp.Recommendations = conv.Recommendations
		t.say("I couldn't find %q nearby. You can try another name, pick one of the current options (%s), "+
			"or name a different cuisine.", query, choiceRange(len(conv.Recommendations)))
		return nil
	}

	conv.ResetDiscovery(t.now)
	conv.SetCandidates(candidates, t.now)
	t.resp.CandidatesCount = len(candidates)
	t.say("Found %d %s for %q.", len(candidates), plural(len(candidates), "match", "matches"), query)
	t.continueWith(statex.StageCompose)
	return nil
}

func (d *Dialogue) complete(_ context.Context, t *turn) error {
	t.resp.Selected = t.conv.SelectedRestaurant
	if t.conv.SelectedRestaurant == nil {
		t.say("This conversation is finished. Start a new chat for another recommendation.")
		return nil
	}
	t.say("You're all set with %s. Start a new chat if you'd like another recommendation.",
		t.conv.SelectedRestaurant.Name)
	return nil
}
