package nodes

import (
	"strings"
	"time"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
)

type GraphInput struct {
	ContextID string
	Text      string
}

type GraphOutput struct {
	Response    contract.TurnResponse
	StageBefore statex.Stage
}

// GraphState travels through every node of one turn.
type GraphState struct {
	ContextID string
	Text      string
	Now       time.Time

	Conversation *statex.ConversationState
	StageBefore  statex.Stage

	Response contract.TurnResponse
}

// ValidateRequest rejects a blank context id. A blank utterance is allowed
// because discovery and composition run without user input.
func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	contextID := strings.TrimSpace(in.ContextID)
	if contextID == "" {
		return nil, contract.ErrInvalidContext
	}

	return &GraphState{
		ContextID: contextID,
		Text:      strings.TrimSpace(in.Text),
		Now:       nowFn().UTC(),
	}, nil
}
