package nodes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/slots"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
)

type fakeGateway struct {
	mu        sync.Mutex
	locations map[string]statex.Location
	nearby    []statex.Candidate
	text      []statex.Candidate
	block     bool

	nearbyQueries []contract.NearbyQuery
	textQueries   []contract.TextQuery
}

func (f *fakeGateway) Geocode(_ context.Context, query string) (statex.Location, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.locations[strings.ToLower(query)]
	return loc, ok
}

func (f *fakeGateway) NearbySearch(ctx context.Context, q contract.NearbyQuery) []statex.Candidate {
	f.mu.Lock()
	f.nearbyQueries = append(f.nearbyQueries, q)
	block := f.block
	out := append([]statex.Candidate(nil), f.nearby...)
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil
	}
	return out
}

func (f *fakeGateway) TextSearch(_ context.Context, q contract.TextQuery) []statex.Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textQueries = append(f.textQueries, q)
	return append([]statex.Candidate(nil), f.text...)
}

func (f *fakeGateway) lastNearby(t *testing.T) contract.NearbyQuery {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.nearbyQueries) == 0 {
		t.Fatal("expected a nearby search")
	}
	return f.nearbyQueries[len(f.nearbyQueries)-1]
}

var melbourne = statex.Location{
	Latitude:         -37.8136,
	Longitude:        144.9631,
	FormattedAddress: "Melbourne VIC 3000, Australia",
	TimezoneID:       "UTC",
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 4, hour, minute, 0, 0, time.UTC)
}

func candidate(id, name string, distanceM, rating float64, price int, closing string) statex.Candidate {
	return statex.Candidate{
		PlaceID:     id,
		Name:        name,
		DistanceM:   distanceM,
		Rating:      rating,
		RatingCount: 100,
		PriceLevel:  price,
		OpenNow:     true,
		ClosingText: closing,
	}
}

func thaiCandidates() []statex.Candidate {
	return []statex.Candidate{
		candidate("p1", "Golden Thai", 800, 4.6, 2, "Closes 10 PM"),
		candidate("p2", "Siam Corner", 1500, 4.2, 1, "Closes 11 PM"),
		candidate("p3", "Bangkok Street Food", 2500, 4.4, 2, "Open 24 hours"),
		candidate("p4", "Generic Cafe", 900, 3.9, 2, "Closes 9 PM"),
	}
}

func newTestDialogue(t *testing.T, gw *fakeGateway) *Dialogue {
	t.Helper()
	d, err := NewDialogue(gw, slots.NewExtractor(nil), Settings{SearchTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewDialogue() error = %v", err)
	}
	return d
}

func conversationAt(stage statex.Stage, now time.Time) *statex.ConversationState {
	conv := statex.NewConversationState("ctx-1", "user-1", now)
	order := []statex.Stage{
		statex.StageCollectEnergy,
		statex.StageConfirmDistance,
		statex.StageCollectBudget,
		statex.StageCollectGroupSize,
		statex.StageCollectCuisine,
		statex.StageDiscoverRestaurants,
	}
	for _, s := range order {
		if !stage.After(s) && stage != s {
			break
		}
		switch s {
		case statex.StageCollectEnergy:
			conv.SetLocation(melbourne, now)
		case statex.StageConfirmDistance:
			_ = conv.SetEnergyLevel(3, now)
		case statex.StageCollectBudget:
			_ = conv.ConfirmDistance(3000, now)
		case statex.StageCollectGroupSize:
			_ = conv.SetBudget(2, 2, now)
		case statex.StageDiscoverRestaurants:
			conv.SetCuisinePreference("Thai", "", now)
		}
	}
	conv.Stage = stage
	return conv
}

func advance(t *testing.T, d *Dialogue, conv *statex.ConversationState, text string, now time.Time) contract.TurnResponse {
	t.Helper()
	resp, err := d.Advance(context.Background(), conv, text, now)
	if err != nil {
		t.Fatalf("Advance(%q) error = %v", text, err)
	}
	if err := conv.Validate(); err != nil {
		t.Fatalf("state invalid after %q: %v", text, err)
	}
	if resp.NextStage != conv.Stage {
		t.Fatalf("NextStage = %s, conversation stage = %s", resp.NextStage, conv.Stage)
	}
	if strings.TrimSpace(resp.Message) == "" {
		t.Fatalf("Advance(%q) returned an empty message", text)
	}
	return resp
}

func TestNewDialogueRequiresGateway(t *testing.T) {
	t.Parallel()

	if _, err := NewDialogue(nil, nil, Settings{}); err == nil {
		t.Fatal("expected error without gateway")
	}
}

func TestCollectLocation(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{locations: map[string]statex.Location{"melbourne cbd": melbourne}}
	d := newTestDialogue(t, gw)
	now := at(18, 0)
	conv := statex.NewConversationState("ctx-1", "user-1", now)

	resp := advance(t, d, conv, "Atlantis", now)
	if resp.NextStage != statex.StageCollectLocation || conv.HasLocation() {
		t.Fatalf("unknown place should re-prompt, got stage %s", resp.NextStage)
	}

	resp = advance(t, d, conv, "", now)
	if resp.NextStage != statex.StageCollectLocation {
		t.Fatalf("blank location should re-prompt, got %s", resp.NextStage)
	}

	resp = advance(t, d, conv, "Melbourne CBD", now)
	if resp.NextStage != statex.StageCollectEnergy {
		t.Fatalf("NextStage = %s, want collect_energy", resp.NextStage)
	}
	if resp.Location == nil || resp.Location.TimezoneID != "UTC" {
		t.Fatalf("Location = %+v", resp.Location)
	}
}

func TestCollectEnergyQuickMode(t *testing.T) {
	t.Parallel()

	phrases := []string{
		"I'm completely exhausted",
		"dead tired after work",
		"absolutely shattered",
		"knackered",
		"wiped",
		"worn out",
		"beat",
		"drained",
		"too tired to think",
		"so tired",
	}
	for _, phrase := range phrases {
		phrase := phrase
		t.Run(phrase, func(t *testing.T) {
			t.Parallel()

			d := newTestDialogue(t, &fakeGateway{})
			now := at(18, 0)
			conv := conversationAt(statex.StageCollectEnergy, now)

			resp := advance(t, d, conv, phrase, now)
			if !resp.QuickMode || resp.NextStage != statex.StageDiscoverRestaurants {
				t.Fatalf("quick mode not triggered: %+v", resp)
			}
			msg := strings.ToLower(resp.Message)
			if !strings.Contains(msg, "exhausted") || !strings.Contains(msg, "fast food") {
				t.Fatalf("message = %q", resp.Message)
			}
			if conv.EnergyLevel != 1 || conv.BudgetLevel != 1 || conv.GroupSize != 1 {
				t.Fatalf("slots = energy %d budget %d group %d", conv.EnergyLevel, conv.BudgetLevel, conv.GroupSize)
			}
			if conv.PreferredCuisine != slots.FastFood || !conv.DistanceConfirmed {
				t.Fatalf("cuisine %q confirmed %v", conv.PreferredCuisine, conv.DistanceConfirmed)
			}
		})
	}
}

func TestCollectEnergyPlainTiredIsNotQuickMode(t *testing.T) {
	t.Parallel()

	d := newTestDialogue(t, &fakeGateway{})
	now := at(18, 0)
	conv := conversationAt(statex.StageCollectEnergy, now)

	resp := advance(t, d, conv, "I'm tired", now)
	if resp.QuickMode || conv.QuickMode {
		t.Fatal("plain tired must not trigger quick mode")
	}
	if resp.NextStage != statex.StageConfirmDistance || conv.EnergyLevel != 2 {
		t.Fatalf("stage %s energy %d", resp.NextStage, conv.EnergyLevel)
	}
	if resp.SearchRadiusM != 1000 {
		t.Fatalf("SearchRadiusM = %d, want 1000", resp.SearchRadiusM)
	}
}

func TestCollectEnergyLevels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text   string
		level  int
		radius int
	}{
		{"4", 4, 5000},
		{"moderate energy", 3, 3000},
		{"full of energy", 5, 5000},
		{"hmm not sure", 3, 3000},
	}
	for _, tc := range cases {
		d := newTestDialogue(t, &fakeGateway{})
		now := at(18, 0)
		conv := conversationAt(statex.StageCollectEnergy, now)

		resp := advance(t, d, conv, tc.text, now)
		if resp.EnergyLevel != tc.level || resp.SearchRadiusM != tc.radius {
			t.Fatalf("%q: level %d radius %d, want %d %d", tc.text, resp.EnergyLevel, resp.SearchRadiusM, tc.level, tc.radius)
		}
	}
}

func TestConfirmDistanceParsesCustomDistance(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"2km", "2 km", "2000m", "2000 meters", "make it 2000 metres"} {
		d := newTestDialogue(t, &fakeGateway{})
		now := at(18, 0)
		conv := conversationAt(statex.StageConfirmDistance, now)

		resp := advance(t, d, conv, text, now)
		if resp.NextStage != statex.StageCollectBudget {
			t.Fatalf("%q: NextStage = %s", text, resp.NextStage)
		}
		if conv.SearchRadiusM != 2000 || !conv.DistanceConfirmed || !resp.DistanceConfirmed {
			t.Fatalf("%q: radius %d confirmed %v", text, conv.SearchRadiusM, conv.DistanceConfirmed)
		}
	}
}

func TestConfirmDistanceRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"100m", "30km", "499 meters"} {
		d := newTestDialogue(t, &fakeGateway{})
		now := at(18, 0)
		conv := conversationAt(statex.StageConfirmDistance, now)

		resp := advance(t, d, conv, text, now)
		if resp.NextStage != statex.StageConfirmDistance {
			t.Fatalf("%q: NextStage = %s", text, resp.NextStage)
		}
		if conv.SearchRadiusM != 3000 || conv.DistanceConfirmed {
			t.Fatalf("%q: radius %d confirmed %v", text, conv.SearchRadiusM, conv.DistanceConfirmed)
		}
	}
}

func TestConfirmDistanceAcceptRejectAmbiguous(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text      string
		stage     statex.Stage
		confirmed bool
	}{
		{"yes", statex.StageCollectBudget, true},
		{"sounds good", statex.StageCollectBudget, true},
		{"no, too far", statex.StageConfirmDistance, false},
		{"purple", statex.StageConfirmDistance, false},
	}
	for _, tc := range cases {
		d := newTestDialogue(t, &fakeGateway{})
		now := at(18, 0)
		conv := conversationAt(statex.StageConfirmDistance, now)

		resp := advance(t, d, conv, tc.text, now)
		if resp.NextStage != tc.stage || conv.DistanceConfirmed != tc.confirmed {
			t.Fatalf("%q: stage %s confirmed %v", tc.text, resp.NextStage, conv.DistanceConfirmed)
		}
		if conv.SearchRadiusM != 3000 {
			t.Fatalf("%q: radius changed to %d", tc.text, conv.SearchRadiusM)
		}
	}
}

func TestConfirmDistanceSkipAndSearch(t *testing.T) {
	t.Parallel()

	d := newTestDialogue(t, &fakeGateway{})
	now := at(18, 0)
	conv := conversationAt(statex.StageConfirmDistance, now)

	resp := advance(t, d, conv, "skip the questions and search for sushi", now)
	if resp.NextStage != statex.StageDiscoverRestaurants {
		t.Fatalf("NextStage = %s", resp.NextStage)
	}
	if conv.PreferredCuisine != "Japanese" || conv.BudgetLevel != 2 || conv.GroupSize != 2 || !conv.DistanceConfirmed {
		t.Fatalf("defaults not applied: %+v", conv)
	}

	conv = conversationAt(statex.StageConfirmDistance, now)
	advance(t, d, conv, "just search", now)
	if conv.PreferredCuisine != "Thai" {
		t.Fatalf("default cuisine = %q, want first configured", conv.PreferredCuisine)
	}
}

func TestCollectBudget(t *testing.T) {
	t.Parallel()

	d := newTestDialogue(t, &fakeGateway{})
	now := at(18, 0)
	conv := conversationAt(statex.StageCollectBudget, now)

	resp := advance(t, d, conv, "whatever", now)
	if resp.NextStage != statex.StageCollectBudget || conv.HasBudget() {
		t.Fatalf("unparseable budget should re-prompt, got %s", resp.NextStage)
	}

	resp = advance(t, d, conv, "mid-range", now)
	if resp.NextStage != statex.StageCollectGroupSize || conv.BudgetLevel != 2 || conv.GroupSize != 2 {
		t.Fatalf("stage %s budget %d group %d", resp.NextStage, conv.BudgetLevel, conv.GroupSize)
	}
}

func TestCollectGroupSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text  string
		size  int
		stage statex.Stage
	}{
		{"just me", 1, statex.StageCollectCuisine},
		{"4", 4, statex.StageCollectCuisine},
		{"no idea", 2, statex.StageCollectCuisine},
		{"6 people, thinking Italian", 6, statex.StageSelectRestaurant},
	}
	for _, tc := range cases {
		gw := &fakeGateway{nearby: []statex.Candidate{candidate("i1", "Trattoria Roma", 900, 4.5, 2, "Closes 11 PM")}}
		d := newTestDialogue(t, gw)
		now := at(18, 0)
		conv := conversationAt(statex.StageCollectGroupSize, now)

		resp := advance(t, d, conv, tc.text, now)
		if conv.GroupSize != tc.size || resp.NextStage != tc.stage {
			t.Fatalf("%q: size %d stage %s, want %d %s", tc.text, conv.GroupSize, resp.NextStage, tc.size, tc.stage)
		}
	}
}

func TestCollectCuisineChainsIntoRecommendations(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{nearby: thaiCandidates()}
	d := newTestDialogue(t, gw)
	now := at(18, 0)
	conv := conversationAt(statex.StageCollectCuisine, now)

	resp := advance(t, d, conv, "Thai", now)
	if resp.NextStage != statex.StageSelectRestaurant {
		t.Fatalf("NextStage = %s", resp.NextStage)
	}
	if len(resp.Recommendations) == 0 || len(resp.Recommendations) > statex.MaxRecommendations {
		t.Fatalf("recommendations = %d", len(resp.Recommendations))
	}
	if !strings.Contains(resp.Message, "recommendation") {
		t.Fatalf("message = %q", resp.Message)
	}

	q := gw.lastNearby(t)
	if q.Keyword != "Thai" || q.RadiusM != 3000 || !q.OpenNow || q.Type != "restaurant" {
		t.Fatalf("nearby query = %+v", q)
	}
	if len(q.PriceLevels) != 2 || q.PriceLevels[0] != 1 || q.PriceLevels[1] != 2 {
		t.Fatalf("PriceLevels = %v", q.PriceLevels)
	}
	for _, c := range conv.Candidates {
		if c.PlaceID == "p4" {
			t.Fatal("cuisine keyword filter should drop Generic Cafe")
		}
		if c.ValueScore <= 0 {
			t.Fatalf("ValueScore not set on %s", c.PlaceID)
		}
	}
}

func TestCollectCuisineDefaultsAndCapturesGroup(t *testing.T) {
	t.Parallel()

	d := newTestDialogue(t, &fakeGateway{})
	now := at(18, 0)
	conv := conversationAt(statex.StageCollectCuisine, now)

	resp := advance(t, d, conv, "for 3, anything really", now)
	if conv.PreferredCuisine != "Thai" || conv.GroupSize != 3 {
		t.Fatalf("cuisine %q group %d", conv.PreferredCuisine, conv.GroupSize)
	}
	// No results: the turn lands in discovery with suggestions.
	if resp.NextStage != statex.StageDiscoverRestaurants || len(resp.Suggestions) == 0 {
		t.Fatalf("stage %s suggestions %v", resp.NextStage, resp.Suggestions)
	}
}

func TestDiscoveryFallsBackWhenKeywordFilterEmpty(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{nearby: []statex.Candidate{
		candidate("x1", "The Corner Kitchen", 700, 4.1, 2, "Closes 11 PM"),
		candidate("x2", "Harbour House", 1200, 4.3, 2, "Closes 11 PM"),
	}}
	d := newTestDialogue(t, gw)
	now := at(18, 0)
	conv := conversationAt(statex.StageDiscoverRestaurants, now)

	resp := advance(t, d, conv, "go", now)
	if len(conv.Candidates) != 2 || resp.NextStage != statex.StageSelectRestaurant {
		t.Fatalf("candidates %d stage %s", len(conv.Candidates), resp.NextStage)
	}
}

func TestDiscoveryDropsClosedAndOffBudgetResults(t *testing.T) {
	t.Parallel()

	closed := candidate("c1", "Thai Night", 400, 4.9, 0, "Closes 8 PM")
	closed.OpenNow = false
	unpriced := candidate("u1", "Thai Garden", 600, 4.3, 0, "Closes 11 PM")
	gw := &fakeGateway{nearby: []statex.Candidate{
		closed,
		unpriced,
		candidate("e1", "Thai Royale", 700, 4.8, 4, "Closes 11 PM"),
		candidate("k1", "Thai Kitchen", 900, 4.1, 1, "Closes 11 PM"),
	}}
	d := newTestDialogue(t, gw)
	now := at(18, 0)
	conv := conversationAt(statex.StageDiscoverRestaurants, now)

	advance(t, d, conv, "go", now)
	got := make([]string, 0, len(conv.Candidates))
	for _, c := range conv.Candidates {
		got = append(got, c.PlaceID)
	}
	if strings.Join(got, ",") != "u1,k1" {
		t.Fatalf("candidates = %v, want the open unpriced and budget places", got)
	}

	gw.mu.Lock()
	gw.nearby = []statex.Candidate{unpriced}
	gw.mu.Unlock()
	conv = conversationAt(statex.StageDiscoverRestaurants, now)
	conv.BudgetLevel = 1
	resp := advance(t, d, conv, "go", now)
	if len(conv.Candidates) != 0 || resp.NextStage != statex.StageDiscoverRestaurants {
		t.Fatalf("unpriced place should count as mid-range on a tight budget: %d candidates", len(conv.Candidates))
	}
}

func TestDiscoveryTruncatesCandidates(t *testing.T) {
	t.Parallel()

	var many []statex.Candidate
	for i := 0; i < 30; i++ {
		many = append(many, candidate(string(rune('a'+i%26))+strings.Repeat("x", i/26), "Thai Place", 1000, 4, 2, "Closes 11 PM"))
	}
	d := newTestDialogue(t, &fakeGateway{nearby: many})
	now := at(18, 0)
	conv := conversationAt(statex.StageDiscoverRestaurants, now)

	advance(t, d, conv, "", now)
	if len(conv.Candidates) != 20 {
		t.Fatalf("candidates = %d, want 20", len(conv.Candidates))
	}
}

func TestDiscoveryTimeoutIsRetryable(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{block: true}
	d, err := NewDialogue(gw, nil, Settings{SearchTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewDialogue() error = %v", err)
	}
	now := at(18, 0)
	conv := conversationAt(statex.StageDiscoverRestaurants, now)

	resp := advance(t, d, conv, "", now)
	if resp.NextStage != statex.StageDiscoverRestaurants || len(conv.Candidates) != 0 {
		t.Fatalf("stage %s candidates %d", resp.NextStage, len(conv.Candidates))
	}
	if len(resp.Suggestions) != len(discoverySuggestions) {
		t.Fatalf("Suggestions = %v", resp.Suggestions)
	}
}

func TestDiscoveryAdjustments(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{nearby: thaiCandidates()}
	d := newTestDialogue(t, gw)
	now := at(18, 0)

	conv := conversationAt(statex.StageDiscoverRestaurants, now)
	advance(t, d, conv, "expand the search", now)
	if q := gw.lastNearby(t); q.RadiusM != 6000 {
		t.Fatalf("expanded radius = %d, want 6000", q.RadiusM)
	}

	conv = conversationAt(statex.StageDiscoverRestaurants, now)
	advance(t, d, conv, "try 1.5km with japanese", now)
	q := gw.lastNearby(t)
	if q.RadiusM != 1500 || q.Keyword != "Japanese" {
		t.Fatalf("query = %+v", q)
	}

	conv = conversationAt(statex.StageDiscoverRestaurants, now)
	before := len(gw.nearbyQueries)
	resp := advance(t, d, conv, "50km", now)
	if resp.NextStage != statex.StageDiscoverRestaurants || len(gw.nearbyQueries) != before {
		t.Fatal("out-of-range distance should re-prompt without searching")
	}
}

func TestDiscoveryRequiresLocation(t *testing.T) {
	t.Parallel()

	d := newTestDialogue(t, &fakeGateway{})
	now := at(18, 0)
	conv := statex.NewConversationState("ctx-1", "user-1", now)
	conv.Stage = statex.StageDiscoverRestaurants

	resp, err := d.Advance(context.Background(), conv, "", now)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if resp.NextStage != statex.StageCollectLocation {
		t.Fatalf("NextStage = %s, want collect_location", resp.NextStage)
	}
}

func TestComposeTimeFeasibility(t *testing.T) {
	t.Parallel()

	far := candidate("far", "Thai Far Away", 5000, 4.5, 2, "Closes 11 PM")

	d := newTestDialogue(t, &fakeGateway{})
	late := at(22, 30)
	conv := conversationAt(statex.StageCompose, late)
	conv.SetCandidates([]statex.Candidate{far}, late)

	resp := advance(t, d, conv, "", late)
	if resp.NextStage != statex.StageDiscoverRestaurants {
		t.Fatalf("NextStage = %s, want discover_restaurants", resp.NextStage)
	}
	if !strings.Contains(resp.Message, "Unfortunately, the best matches close too soon") ||
		!strings.Contains(resp.Message, "Not enough time") {
		t.Fatalf("message = %q", resp.Message)
	}
	if len(conv.Recommendations) != 0 || len(conv.Candidates) != 0 {
		t.Fatal("infeasible composition should clear results")
	}

	early := at(18, 0)
	conv = conversationAt(statex.StageCompose, early)
	conv.SetCandidates([]statex.Candidate{far}, early)

	resp = advance(t, d, conv, "", early)
	if resp.NextStage != statex.StageSelectRestaurant || len(resp.Recommendations) != 1 {
		t.Fatalf("stage %s recs %d", resp.NextStage, len(resp.Recommendations))
	}
	if !strings.Contains(resp.Message, "Here are my top 1 recommendation") {
		t.Fatalf("message = %q", resp.Message)
	}
	rec := resp.Recommendations[0]
	if rec.TravelMinutes != 10 || rec.MinutesUntilClose != 300 {
		t.Fatalf("travel %v remaining %v", rec.TravelMinutes, rec.MinutesUntilClose)
	}
}

func TestComposeReportsDroppedCandidates(t *testing.T) {
	t.Parallel()

	now := at(22, 40)
	conv := conversationAt(statex.StageCompose, now)
	conv.SetCandidates([]statex.Candidate{
		candidate("close", "Close Thai Restaurant", 500, 4.9, 2, "Closes 11 PM"),
		candidate("late", "Open Late Thai Restaurant", 1000, 4.2, 2, "Open until 2 AM"),
		candidate("always", "Very Late Thai Restaurant", 2000, 4.0, 2, "Open 24 hours"),
	}, now)
	d := newTestDialogue(t, &fakeGateway{})

	resp := advance(t, d, conv, "", now)
	if resp.NextStage != statex.StageSelectRestaurant || len(resp.Recommendations) != 2 {
		t.Fatalf("stage %s recs %d", resp.NextStage, len(resp.Recommendations))
	}
	for _, want := range []string{"Open Late Thai Restaurant", "Very Late Thai Restaurant", "Unfortunately, the best matches close too soon"} {
		if !strings.Contains(resp.Message, want) {
			t.Fatalf("message missing %q: %q", want, resp.Message)
		}
	}
	for i, r := range resp.Recommendations {
		if r.Rank != i+1 {
			t.Fatalf("rank %d at %d", r.Rank, i)
		}
		if i > 0 && r.Score > resp.Recommendations[i-1].Score {
			t.Fatal("recommendations not sorted by score")
		}
	}
}

func composedConversation(t *testing.T, d *Dialogue, now time.Time) *statex.ConversationState {
	t.Helper()
	conv := conversationAt(statex.StageCompose, now)
	conv.SetCandidates(thaiCandidates()[:3], now)
	advance(t, d, conv, "", now)
	if conv.Stage != statex.StageSelectRestaurant || len(conv.Recommendations) != 3 {
		t.Fatalf("setup: stage %s recs %d", conv.Stage, len(conv.Recommendations))
	}
	return conv
}

func TestSelectByNumber(t *testing.T) {
	t.Parallel()

	d := newTestDialogue(t, &fakeGateway{})
	now := at(20, 0)
	conv := composedConversation(t, d, now)

	resp := advance(t, d, conv, "7", now)
	if resp.NextStage != statex.StageSelectRestaurant || conv.SelectedRestaurant != nil {
		t.Fatal("out of range choice should re-prompt")
	}
	if !strings.Contains(resp.Message, "1-3") {
		t.Fatalf("message = %q", resp.Message)
	}

	resp = advance(t, d, conv, "2", now)
	if resp.NextStage != statex.StageComplete || resp.Selected == nil {
		t.Fatalf("stage %s selected %v", resp.NextStage, resp.Selected)
	}
	if resp.Selected.PlaceID != conv.Recommendations[1].PlaceID {
		t.Fatalf("selected %s, want %s", resp.Selected.PlaceID, conv.Recommendations[1].PlaceID)
	}
	if strings.Contains(resp.Message, "rush-hour") {
		t.Fatalf("20:00 is outside rush hour: %q", resp.Message)
	}

	resp = advance(t, d, conv, "3", now)
	if resp.NextStage != statex.StageComplete || conv.SelectedRestaurant.PlaceID != resp.Selected.PlaceID {
		t.Fatal("complete must be terminal")
	}
}

func TestSelectAppliesRushHour(t *testing.T) {
	t.Parallel()

	d := newTestDialogue(t, &fakeGateway{})
	now := at(8, 15)
	conv := composedConversation(t, d, now)

	resp := advance(t, d, conv, "1", now)
	if !strings.Contains(resp.Message, "rush-hour") {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestSelectAffirmativeNeedsSingleOption(t *testing.T) {
	t.Parallel()

	d := newTestDialogue(t, &fakeGateway{})
	now := at(18, 0)
	conv := composedConversation(t, d, now)

	advance(t, d, conv, "yes", now)
	if conv.Stage != statex.StageSelectRestaurant {
		t.Fatal("yes with several options should re-prompt")
	}

	conv = conversationAt(statex.StageCompose, now)
	conv.SetCandidates(thaiCandidates()[:1], now)
	advance(t, d, conv, "", now)
	resp := advance(t, d, conv, "ok", now)
	if resp.NextStage != statex.StageComplete || resp.Selected.PlaceID != "p1" {
		t.Fatalf("stage %s selected %+v", resp.NextStage, resp.Selected)
	}
}

func TestSelectCuisineChangeReentersDiscovery(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	d := newTestDialogue(t, gw)
	now := at(18, 0)
	conv := composedConversation(t, d, now)

	resp := advance(t, d, conv, "how about Italian?", now)
	if resp.NextStage != statex.StageDiscoverRestaurants {
		t.Fatalf("NextStage = %s", resp.NextStage)
	}
	if conv.PreferredCuisine != "Italian" || len(conv.Candidates) != 0 || len(conv.Recommendations) != 0 {
		t.Fatalf("cuisine %q candidates %d recs %d", conv.PreferredCuisine, len(conv.Candidates), len(conv.Recommendations))
	}
	if !strings.Contains(resp.Message, "Italian") {
		t.Fatalf("message = %q", resp.Message)
	}

	gw.nearby = []statex.Candidate{candidate("i1", "Bella Italia", 900, 4.5, 2, "Closes 11 PM")}
	resp = advance(t, d, conv, "", now)
	if !strings.Contains(resp.Message, "Italian") || !strings.Contains(strings.ToLower(resp.Message), "recommend") {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestComposeStageAcceptsCuisineChange(t *testing.T) {
	t.Parallel()

	d := newTestDialogue(t, &fakeGateway{})
	now := at(18, 0)
	conv := conversationAt(statex.StageCompose, now)
	conv.SetCandidates(thaiCandidates(), now)

	resp := advance(t, d, conv, "How about Italian?", now)
	if resp.NextStage != statex.StageDiscoverRestaurants || conv.PreferredCuisine != "Italian" {
		t.Fatalf("stage %s cuisine %q", resp.NextStage, conv.PreferredCuisine)
	}
}

func TestSelectSpecificPlace(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	d := newTestDialogue(t, gw)
	now := at(18, 0)
	conv := composedConversation(t, d, now)

	resp := advance(t, d, conv, "what about Chin Chin?", now)
	if resp.NextStage != statex.StageSelectRestaurant || len(conv.Recommendations) != 3 {
		t.Fatal("a miss should keep the current recommendations")
	}
	if len(gw.textQueries) != 1 || gw.textQueries[0].Query != "Chin Chin" || gw.textQueries[0].RadiusM != 3000 {
		t.Fatalf("text queries = %+v", gw.textQueries)
	}

	gw.text = []statex.Candidate{candidate("cc", "Chin Chin", 600, 4.4, 3, "Closes 11 PM")}
	resp = advance(t, d, conv, "what about Chin Chin?", now)
	if resp.NextStage != statex.StageSelectRestaurant || len(resp.Recommendations) != 1 {
		t.Fatalf("stage %s recs %d", resp.NextStage, len(resp.Recommendations))
	}
	if resp.Recommendations[0].PlaceID != "cc" || len(conv.Candidates) != 1 {
		t.Fatalf("candidates not replaced: %+v", conv.Candidates)
	}
}

func TestSelectNamedPlaceBeatsDishCuisine(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ text, query string }{
		{"how about Sushi Hub?", "Sushi Hub"},
		{"what about Pizza Hut", "Pizza Hut"},
	} {
		gw := &fakeGateway{}
		d := newTestDialogue(t, gw)
		now := at(18, 0)
		conv := composedConversation(t, d, now)

		resp := advance(t, d, conv, tc.text, now)
		if resp.NextStage != statex.StageSelectRestaurant || conv.PreferredCuisine != "Thai" {
			t.Fatalf("%q: stage %s cuisine %q", tc.text, resp.NextStage, conv.PreferredCuisine)
		}
		if len(gw.textQueries) != 1 || gw.textQueries[0].Query != tc.query {
			t.Fatalf("%q: text queries = %+v", tc.text, gw.textQueries)
		}
	}

	d := newTestDialogue(t, &fakeGateway{})
	now := at(18, 0)
	conv := composedConversation(t, d, now)
	resp := advance(t, d, conv, "how about sushi?", now)
	if resp.NextStage != statex.StageDiscoverRestaurants || conv.PreferredCuisine != "Japanese" {
		t.Fatalf("dish alone should switch cuisine: stage %s cuisine %q", resp.NextStage, conv.PreferredCuisine)
	}
}

func TestSelectUnrecognisedRePrompts(t *testing.T) {
	t.Parallel()

	d := newTestDialogue(t, &fakeGateway{})
	now := at(18, 0)
	conv := composedConversation(t, d, now)

	resp := advance(t, d, conv, "hmm", now)
	if resp.NextStage != statex.StageSelectRestaurant || len(resp.Recommendations) != 3 {
		t.Fatalf("stage %s recs %d", resp.NextStage, len(resp.Recommendations))
	}
}

func TestAdvanceUnknownStage(t *testing.T) {
	t.Parallel()

	d := newTestDialogue(t, &fakeGateway{})
	conv := statex.NewConversationState("ctx-1", "user-1", at(18, 0))
	conv.Stage = "bogus"

	if _, err := d.Advance(context.Background(), conv, "hi", at(18, 0)); !errors.Is(err, statex.ErrInvalidConversation) {
		t.Fatalf("Advance() error = %v", err)
	}
}

func TestGreeting(t *testing.T) {
	t.Parallel()

	d := newTestDialogue(t, &fakeGateway{})
	msg, env := d.Greeting(time.Date(2025, 3, 8, 12, 0, 0, 0, time.Local))
	if env.Weekday != "Saturday" || env.IsWorkday {
		t.Fatalf("env = %+v", env)
	}
	if len(env.FoodTypes) == 0 || !strings.Contains(msg, "Saturday") {
		t.Fatalf("msg = %q env = %+v", msg, env)
	}
}

func TestFormatDistance(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{
		800:   "800m",
		1000:  "1km",
		2500:  "2.5km",
		25000: "25km",
		-1:    "an unknown distance",
	}
	for in, want := range cases {
		if got := formatDistance(in); got != want {
			t.Fatalf("formatDistance(%v) = %q, want %q", in, got, want)
		}
	}
}
