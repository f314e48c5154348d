package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage is the dialogue position stored on the conversation record.
type Stage string

const (
	StageCollectLocation     Stage = "collect_location"
	StageCollectEnergy       Stage = "collect_energy"
	StageConfirmDistance     Stage = "confirm_distance"
	StageCollectBudget       Stage = "collect_budget"
	StageCollectGroupSize    Stage = "collect_group_size"
	StageCollectCuisine      Stage = "collect_cuisine"
	StageDiscoverRestaurants Stage = "discover_restaurants"
	StageCompose             Stage = "analyze_and_compose"
	StageSelectRestaurant    Stage = "select_restaurant"
	StageComplete            Stage = "complete"
)

var stageOrder = map[Stage]int{
	StageCollectLocation:     0,
	StageCollectEnergy:       1,
	StageConfirmDistance:     2,
	StageCollectBudget:       3,
	StageCollectGroupSize:    4,
	StageCollectCuisine:      5,
	StageDiscoverRestaurants: 6,
	StageCompose:             7,
	StageSelectRestaurant:    8,
	StageComplete:            9,
}

func (s Stage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

func (s Stage) IsTerminal() bool {
	return s == StageComplete
}

// After reports whether s comes strictly after other in the forward order.
func (s Stage) After(other Stage) bool {
	return stageOrder[s] > stageOrder[other]
}

const (
	MinSearchRadiusM     = 500
	MaxSearchRadiusM     = 25000
	DefaultSearchRadiusM = 3000
	DefaultGroupSize     = 2
	MaxRecommendations   = 3
)

var (
	ErrRadiusOutOfRange      = errors.New("search radius out of range")
	ErrInvalidEnergyLevel    = errors.New("energy level must be 1-5")
	ErrInvalidBudgetLevel    = errors.New("budget level must be 1-4")
	ErrInvalidGroupSize      = errors.New("group size must be >= 1")
	ErrSelectionOutOfRange   = errors.New("selection out of range")
	ErrInvalidConversation   = errors.New("invalid conversation state")
	ErrRecommendationInvalid = errors.New("recommendation not in candidates")
)

// RadiusForEnergy maps an energy level to its default search radius.
func RadiusForEnergy(level int) int {
	switch {
	case level <= 0:
		return DefaultSearchRadiusM
	case level <= 2:
		return 1000
	case level == 3:
		return 3000
	default:
		return 5000
	}
}

type Location struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	TimezoneID       string  `json:"timezone_id,omitempty"`
	LocationTime     string  `json:"location_time,omitempty"` // RFC3339 in TimezoneID
}

// Candidate is a raw search result. Zero PriceLevel and Rating mean unknown;
// a negative DistanceM means the distance could not be computed.
type Candidate struct {
	PlaceID        string   `json:"place_id"`
	Name           string   `json:"name"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Address        string   `json:"address,omitempty"`
	DistanceM      float64  `json:"distance_m"`
	PriceLevel     int      `json:"price_level,omitempty"`
	Rating         float64  `json:"rating,omitempty"`
	RatingCount    int      `json:"user_ratings_total,omitempty"`
	OpenNow        bool     `json:"open_now"`
	ClosingText    string   `json:"opening_hours_snippet,omitempty"`
	Types          []string `json:"types,omitempty"`
	ValueScore     float64  `json:"value_score"`
	CompositeScore float64  `json:"composite_score,omitempty"`
}

type Recommendation struct {
	Rank int `json:"rank"`
	Candidate
	Score             float64 `json:"score"`
	Rationale         string  `json:"rationale"`
	TravelMinutes     float64 `json:"travel_minutes"`
	MinutesUntilClose float64 `json:"minutes_until_close"`
}

// ConversationState is one conversation's collected slots and results.
// Zero values of the integer slots mean "not collected yet".
type ConversationState struct {
	ContextID string `json:"context_id"`
	UserID    string `json:"user_id"`
	Stage     Stage  `json:"stage"`

	Location          *Location `json:"location,omitempty"`
	EnergyLevel       int       `json:"energy_level,omitempty"`
	DistanceConfirmed bool      `json:"distance_confirmed"`
	SearchRadiusM     int       `json:"search_radius_m"`
	BudgetLevel       int       `json:"budget_level,omitempty"`
	GroupSize         int       `json:"group_size,omitempty"`
	PreferredCuisine  string    `json:"preferred_cuisine,omitempty"`
	PreferredDish     string    `json:"preferred_dish,omitempty"`
	QuickMode         bool      `json:"quick_mode,omitempty"`

	Candidates         []Candidate      `json:"candidates,omitempty"`
	Recommendations    []Recommendation `json:"recommendations,omitempty"`
	SelectedRestaurant *Recommendation  `json:"selected_restaurant,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

func NewContextID() string {
	return uuid.NewString()
}

func NewConversationState(contextID, userID string, now time.Time) *ConversationState {
	return &ConversationState{
		ContextID:     contextID,
		UserID:        userID,
		Stage:         StageCollectLocation,
		SearchRadiusM: DefaultSearchRadiusM,
		CreatedAt:     now.UTC(),
		LastUpdated:   now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.LastUpdated = now.UTC()
}

func (s *ConversationState) HasLocation() bool { return s != nil && s.Location != nil }
func (s *ConversationState) HasEnergy() bool   { return s != nil && s.EnergyLevel > 0 }
func (s *ConversationState) HasBudget() bool   { return s != nil && s.BudgetLevel > 0 }
func (s *ConversationState) HasGroup() bool    { return s != nil && s.GroupSize > 0 }
func (s *ConversationState) HasCuisine() bool {
	return s != nil && strings.TrimSpace(s.PreferredCuisine) != ""
}

func (s *ConversationState) SetLocation(loc Location, now time.Time) {
	s.Location = &loc
	s.Touch(now)
}

// SetEnergyLevel stores the level and derives the default radius from it.
func (s *ConversationState) SetEnergyLevel(level int, now time.Time) error {
	if level < 1 || level > 5 {
		return fmt.Errorf("%w: got %d", ErrInvalidEnergyLevel, level)
	}
	s.EnergyLevel = level
	s.SearchRadiusM = RadiusForEnergy(level)
	s.Touch(now)
	return nil
}

// ConfirmDistance marks the radius as accepted. The radius must be within bounds.
func (s *ConversationState) ConfirmDistance(radiusM int, now time.Time) error {
	if radiusM < MinSearchRadiusM || radiusM > MaxSearchRadiusM {
		return fmt.Errorf("%w: %dm not in [%d, %d]", ErrRadiusOutOfRange, radiusM, MinSearchRadiusM, MaxSearchRadiusM)
	}
	s.SearchRadiusM = radiusM
	s.DistanceConfirmed = true
	s.Touch(now)
	return nil
}

func (s *ConversationState) SetBudget(budget, groupSize int, now time.Time) error {
	if budget < 1 || budget > 4 {
		return fmt.Errorf("%w: got %d", ErrInvalidBudgetLevel, budget)
	}
	if groupSize < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidGroupSize, groupSize)
	}
	s.BudgetLevel = budget
	s.GroupSize = groupSize
	s.Touch(now)
	return nil
}

func (s *ConversationState) SetGroupSize(size int, now time.Time) error {
	if size < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidGroupSize, size)
	}
	s.GroupSize = size
	s.Touch(now)
	return nil
}

func (s *ConversationState) SetCuisinePreference(cuisine, dish string, now time.Time) {
	s.PreferredCuisine = strings.TrimSpace(cuisine)
	s.PreferredDish = strings.TrimSpace(dish)
	s.Touch(now)
}

func (s *ConversationState) SetCandidates(candidates []Candidate, now time.Time) {
	s.Candidates = candidates
	s.Touch(now)
}

// SetRecommendations replaces the recommendation list. Every entry must
// reference a current candidate and the list is capped at MaxRecommendations.
func (s *ConversationState) SetRecommendations(recs []Recommendation, now time.Time) error {
	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	for _, r := range recs {
		if !s.hasCandidate(r.PlaceID) {
			return fmt.Errorf("%w: place_id=%s", ErrRecommendationInvalid, r.PlaceID)
		}
	}
	s.Recommendations = recs
	s.Touch(now)
	return nil
}

// SelectRestaurant finalizes the 1-based choice from the recommendations.
func (s *ConversationState) SelectRestaurant(choice int, now time.Time) (*Recommendation, error) {
	if choice < 1 || choice > len(s.Recommendations) {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrSelectionOutOfRange, choice, len(s.Recommendations))
	}
	selected := s.Recommendations[choice-1]
	s.SelectedRestaurant = &selected
	s.Stage = StageComplete
	s.Touch(now)
	return s.SelectedRestaurant, nil
}

// ResetDiscovery drops search results so discovery runs again.
func (s *ConversationState) ResetDiscovery(now time.Time) {
	s.Candidates = nil
	s.Recommendations = nil
	s.SelectedRestaurant = nil
	s.Touch(now)
}

func (s *ConversationState) hasCandidate(placeID string) bool {
	for _, c := range s.Candidates {
		if c.PlaceID == placeID {
			return true
		}
	}
	return false
}

// Validate checks the slot dependency order and the result invariants.
func (s *ConversationState) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidConversation)
	}
	if strings.TrimSpace(s.ContextID) == "" {
		return ErrInvalidSession
	}
	if !s.Stage.Valid() {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidConversation, s.Stage)
	}

	requires := []struct {
		stage Stage
		ok    bool
		slot  string
	}{
		{StageCollectLocation, s.HasLocation(), "location"},
		{StageCollectEnergy, s.HasEnergy(), "energy_level"},
		{StageConfirmDistance, s.DistanceConfirmed, "distance_confirmed"},
		{StageCollectBudget, s.HasBudget(), "budget_level"},
		{StageCollectGroupSize, s.HasGroup(), "group_size"},
		{StageCollectCuisine, s.HasCuisine(), "preferred_cuisine"},
	}
	for _, r := range requires {
		if s.Stage.After(r.stage) && !r.ok {
			return fmt.Errorf("%w: stage %s requires %s", ErrInvalidConversation, s.Stage, r.slot)
		}
	}

	if s.DistanceConfirmed && (s.SearchRadiusM < MinSearchRadiusM || s.SearchRadiusM > MaxSearchRadiusM) {
		return fmt.Errorf("%w: %dm", ErrRadiusOutOfRange, s.SearchRadiusM)
	}

	if len(s.Recommendations) > MaxRecommendations {
		return fmt.Errorf("%w: %d recommendations", ErrInvalidConversation, len(s.Recommendations))
	}
	for i, r := range s.Recommendations {
		if !s.hasCandidate(r.PlaceID) {
			return fmt.Errorf("%w: place_id=%s", ErrRecommendationInvalid, r.PlaceID)
		}
		if i > 0 && r.Score > s.Recommendations[i-1].Score {
			return fmt.Errorf("%w: recommendations not sorted by score", ErrInvalidConversation)
		}
	}

	if s.SelectedRestaurant != nil {
		found := false
		for _, r := range s.Recommendations {
			if r.PlaceID == s.SelectedRestaurant.PlaceID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: selected restaurant %s not in recommendations", ErrInvalidConversation, s.SelectedRestaurant.PlaceID)
		}
	}
	return nil
}

// Clone returns a deep copy so stored snapshots never alias a turn in flight.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	if s.Location != nil {
		loc := *s.Location
		out.Location = &loc
	}
	if s.Candidates != nil {
		out.Candidates = make([]Candidate, len(s.Candidates))
		for i, c := range s.Candidates {
			out.Candidates[i] = c.clone()
		}
	}
	if s.Recommendations != nil {
		out.Recommendations = make([]Recommendation, len(s.Recommendations))
		for i, r := range s.Recommendations {
			r.Candidate = r.Candidate.clone()
			out.Recommendations[i] = r
		}
	}
	if s.SelectedRestaurant != nil {
		sel := *s.SelectedRestaurant
		sel.Candidate = sel.Candidate.clone()
		out.SelectedRestaurant = &sel
	}
	return &out
}

func (c Candidate) clone() Candidate {
	if c.Types != nil {
		c.Types = append([]string(nil), c.Types...)
	}
	return c
}
