package contract

import (
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
)

type NearbyQuery struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	RadiusM     int     `json:"radius_m"`
	Keyword     string  `json:"keyword,omitempty"`
	PriceLevels []int   `json:"price_levels,omitempty"`
	OpenNow     bool    `json:"open_now"`
	Type        string  `json:"type,omitempty"`
}

type TextQuery struct {
	Query     string  `json:"query"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusM   int     `json:"radius_m"`
}

type PhraseRequest struct {
	Stage       statex.Stage `json:"stage"`
	UserMessage string       `json:"user_message"`
	Draft       string       `json:"draft"`
}

type StartRequest struct {
	UserID         string `json:"user_id,omitempty"`
	InitialMessage string `json:"initial_message,omitempty"`
}

// Environment describes the user's surroundings at the start of a chat.
type Environment struct {
	LocalTime string   `json:"local_time"`
	Weekday   string   `json:"weekday"`
	IsWorkday bool     `json:"is_workday"`
	FoodTypes []string `json:"food_types"`
}

type StartResponse struct {
	ContextID   string       `json:"context_id"`
	UserID      string       `json:"user_id"`
	Message     string       `json:"message"`
	NextStage   statex.Stage `json:"next_step"`
	Environment Environment  `json:"environment"`
}

type TurnRequest struct {
	ContextID   string `json:"context_id"`
	UserMessage string `json:"user_message"`
}

// TurnResponse carries the reply and whichever slot values the turn touched.
type TurnResponse struct {
	ContextID string       `json:"context_id"`
	Message   string       `json:"message"`
	NextStage statex.Stage `json:"next_step"`

	Location          *statex.Location        `json:"location,omitempty"`
	EnergyLevel       int                     `json:"energy_level,omitempty"`
	SearchRadiusM     int                     `json:"search_radius_m,omitempty"`
	DistanceConfirmed bool                    `json:"confirmed,omitempty"`
	QuickMode         bool                    `json:"quick_mode,omitempty"`
	BudgetLevel       int                     `json:"budget_level,omitempty"`
	GroupSize         int                     `json:"group_size,omitempty"`
	Cuisine           string                  `json:"cuisine,omitempty"`
	CandidatesCount   int                     `json:"candidates_count,omitempty"`
	Recommendations   []statex.Recommendation `json:"recommendations,omitempty"`
	Selected          *statex.Recommendation  `json:"selected,omitempty"`
	Suggestions       []string                `json:"suggestions,omitempty"`
}
