package nodes

import (
	"context"
	"strings"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/slots"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
)

func (d *Dialogue) collectLocation(ctx context.Context, t *turn) error {
	if t.text == "" {
		t.say("Where are you right now? A suburb, street or landmark is enough.")
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, d.settings.SearchTimeout)
	loc, ok := d.gateway.Geocode(lookupCtx, t.text)
	cancel()
	if !ok {
		t.say("I couldn't find %q. Could you give me a nearby suburb, street or landmark?", t.text)
		return nil
	}

	t.conv.SetLocation(loc, t.now)
	t.conv.Stage = statex.StageCollectEnergy
	t.resp.Location = t.conv.Location

	where := loc.FormattedAddress
	if where == "" {
		where = t.text
	}
	t.say("Great, I've got you near %s. Quick question: have you had a long day, or are you still full of energy? "+
		"Rate it 1-5 or just tell me how you feel.", where)
	return nil
}

func (d *Dialogue) collectEnergy(_ context.Context, t *turn) error {
	conv := t.conv
	if d.extractor.IsExhausted(t.text) {
		return d.quickMode(t)
	}

	level, ok := d.extractor.EnergyLevel(t.text)
	if !ok {
		level = 3
	}
	if err := conv.SetEnergyLevel(level, t.now); err != nil {
		return err
	}
	conv.Stage = statex.StageConfirmDistance
	t.resp.EnergyLevel = level
	t.resp.SearchRadiusM = conv.SearchRadiusM

	t.say("Got it, %s. I'll search within %s of you. Does that distance work? "+
		"Say yes, or give me a distance like 2km or 800m.",
		energyDescription(level), formatDistance(float64(conv.SearchRadiusM)))
	return nil
}

// quickMode skips distance, budget, group and cuisine for exhausted users.
func (d *Dialogue) quickMode(t *turn) error {
	conv := t.conv
	if err := conv.SetEnergyLevel(1, t.now); err != nil {
		return err
	}
	if err := conv.ConfirmDistance(conv.SearchRadiusM, t.now); err != nil {
		return err
	}
	if err := conv.SetBudget(1, 1, t.now); err != nil {
		return err
	}
	conv.SetCuisinePreference(slots.FastFood, "", t.now)
	conv.QuickMode = true
	conv.Stage = statex.StageDiscoverRestaurants

	t.resp.QuickMode = true
	t.resp.EnergyLevel = conv.EnergyLevel
	t.resp.SearchRadiusM = conv.SearchRadiusM
	t.resp.DistanceConfirmed = true
	t.resp.BudgetLevel = conv.BudgetLevel
	t.resp.GroupSize = conv.GroupSize
	t.resp.Cuisine = conv.PreferredCuisine

	t.say("Sounds like you're exhausted, so let's keep it simple. I'll look for cheap fast food within %s, "+
		"just for you. Say go when you're ready, or name something else you'd rather eat.",
		formatDistance(float64(conv.SearchRadiusM)))
	return nil
}

func (d *Dialogue) confirmDistance(_ context.Context, t *turn) error {
	conv := t.conv
	if rest, ok := slots.SkipAndSearch(t.text); ok {
		return d.skipAndSearch(t, rest)
	}

	if meters, ok := slots.Distance(t.text); ok {
		if err := conv.ConfirmDistance(meters, t.now); err != nil {
			t.resp.SearchRadiusM = conv.SearchRadiusM
			t.say("%s is outside what I can search. Pick something between %s and %s, for example 1km, 3km or 5km.",
				formatDistance(float64(meters)),
				formatDistance(statex.MinSearchRadiusM), formatDistance(statex.MaxSearchRadiusM))
			return nil
		}
		d.distanceConfirmed(t)
		return nil
	}

	switch {
	case slots.IsReject(t.text):
		t.resp.SearchRadiusM = conv.SearchRadiusM
		t.say("No problem. How far are you willing to go? Give me a figure like 1km or 500m.")
	case slots.IsAccept(t.text):
		if err := conv.ConfirmDistance(conv.SearchRadiusM, t.now); err != nil {
			return err
		}
		d.distanceConfirmed(t)
	default:
		t.resp.SearchRadiusM = conv.SearchRadiusM
		t.say("Should I search within %s? Reply yes, no, or a distance like 2km.",
			formatDistance(float64(conv.SearchRadiusM)))
	}
	return nil
}

func (d *Dialogue) distanceConfirmed(t *turn) {
	t.conv.Stage = statex.StageCollectBudget
	t.resp.DistanceConfirmed = true
	t.resp.SearchRadiusM = t.conv.SearchRadiusM
	t.say("Perfect, I'll search within %s. What's your budget? Casual and affordable, mid-range, or something nicer?",
		formatDistance(float64(t.conv.SearchRadiusM)))
}

// skipAndSearch fills budget, group and cuisine with defaults so the user can
// jump straight to discovery.
func (d *Dialogue) skipAndSearch(t *turn, rest string) error {
	conv := t.conv
	if err := conv.ConfirmDistance(conv.SearchRadiusM, t.now); err != nil {
		return err
	}
	if err := conv.SetBudget(2, statex.DefaultGroupSize, t.now); err != nil {
		return err
	}

	cuisine, dish := d.extractor.DefaultCuisine(), ""
	if m, ok := d.extractor.Cuisine(rest); ok {
		cuisine, dish = m.Cuisine, m.Dish
	} else if m, ok := d.extractor.Cuisine(t.text); ok {
		cuisine, dish = m.Cuisine, m.Dish
	}
	conv.SetCuisinePreference(cuisine, dish, t.now)
	conv.Stage = statex.StageDiscoverRestaurants

	t.resp.DistanceConfirmed = true
	t.resp.SearchRadiusM = conv.SearchRadiusM
	t.resp.BudgetLevel = conv.BudgetLevel
	t.resp.GroupSize = conv.GroupSize
	t.resp.Cuisine = cuisine
	t.say("Skipping ahead. I'll look for mid-range %s places within %s for two. Say go to start the search.",
		cuisine, formatDistance(float64(conv.SearchRadiusM)))
	return nil
}

func (d *Dialogue) collectBudget(_ context.Context, t *turn) error {
	conv := t.conv
	level, ok := d.extractor.BudgetLevel(t.text)
	if !ok {
		t.say("Not quite sure about your budget. Are you thinking casual and affordable, mid-range comfort, or a nicer experience?")
		return nil
	}

	group := conv.GroupSize
	if group < 1 {
		group = statex.DefaultGroupSize
	}
	if err := conv.SetBudget(level, group, t.now); err != nil {
		return err
	}
	conv.Stage = statex.StageCollectGroupSize
	t.resp.BudgetLevel = level
	t.resp.GroupSize = group
	t.say("%s it is! How many people are eating? Just you, or bringing company?",
		capitalize(budgetDescription(level)))
	return nil
}

// collectGroupSize never re-prompts: unparseable input keeps the default.
func (d *Dialogue) collectGroupSize(_ context.Context, t *turn) error {
	conv := t.conv
	size, ok := d.extractor.GroupSize(t.text)
	if !ok {
		size = conv.GroupSize
	}
	if err := conv.SetGroupSize(size, t.now); err != nil {
		return err
	}
	t.resp.GroupSize = size

	if m, ok := d.extractor.Cuisine(t.text); ok {
		conv.SetCuisinePreference(m.Cuisine, m.Dish, t.now)
		t.resp.Cuisine = m.Cuisine
		t.say("Got it, %s %s. Let me find some spots.", m.Cuisine, groupDescription(size))
		t.continueWith(statex.StageDiscoverRestaurants)
		return nil
	}

	conv.Stage = statex.StageCollectCuisine
	t.say("Got it, a table %s. What are you in the mood for? For example %s.",
		groupDescription(size), cuisineExamples(d.extractor.Cuisines()))
	return nil
}

func (d *Dialogue) collectCuisine(_ context.Context, t *turn) error {
	conv := t.conv
	if size, ok := d.extractor.GroupSize(t.text); ok {
		if err := conv.SetGroupSize(size, t.now); err != nil {
			return err
		}
		t.resp.GroupSize = size
	}

	m, ok := d.extractor.Cuisine(t.text)
	if !ok {
		m = slots.CuisineMatch{Cuisine: d.extractor.DefaultCuisine()}
	}
	conv.SetCuisinePreference(m.Cuisine, m.Dish, t.now)
	t.resp.Cuisine = m.Cuisine

	t.say("Excellent! Searching for %s restaurants %s.", m.Cuisine, groupDescription(conv.GroupSize))
	t.continueWith(statex.StageDiscoverRestaurants)
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
