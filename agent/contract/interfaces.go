package contract

import (
	"context"

	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
)

// PlacesGateway is the directory the dialogue searches. Implementations
// degrade upstream failures to "not found" or an empty list.
type PlacesGateway interface {
	Geocode(ctx context.Context, query string) (statex.Location, bool)
	NearbySearch(ctx context.Context, q NearbyQuery) []statex.Candidate
	TextSearch(ctx context.Context, q TextQuery) []statex.Candidate
}

// Phraser rewrites a drafted reply. Errors keep the draft.
type Phraser interface {
	Phrase(ctx context.Context, req PhraseRequest) (string, error)
}
