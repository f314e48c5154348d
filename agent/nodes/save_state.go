package nodes

import (
	"context"
	"fmt"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
)

func ValidateAndSaveState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contract.ErrInvalidContext)
	}

	in.Conversation.Touch(in.Now)
	if err := in.Conversation.Validate(); err != nil {
		return nil, fmt.Errorf("state validation failed: %w", err)
	}
	if err := store.Save(ctx, in.Conversation); err != nil {
		return nil, err
	}
	return in, nil
}
