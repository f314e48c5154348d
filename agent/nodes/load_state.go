package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
)

func LoadState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrInvalidContext)
	}

	st, err := store.Load(ctx, in.ContextID)
	if errors.Is(err, statex.ErrStateNotFound) {
		return nil, fmt.Errorf("%w: context_id=%s", contract.ErrContextNotFound, in.ContextID)
	}
	if err != nil {
		return nil, err
	}

	in.Conversation = st
	in.StageBefore = st.Stage
	return in, nil
}
