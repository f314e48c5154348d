package nodes

import (
	"context"
	"strings"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	logx "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/logger"
)

// PhraseReply lets the phraser rewrite the drafted reply. Any failure keeps
// the draft.
func PhraseReply(ctx context.Context, in *GraphState, phraser contract.Phraser) (*GraphState, error) {
	if in == nil || phraser == nil {
		return in, nil
	}
	draft := strings.TrimSpace(in.Response.Message)
	if draft == "" {
		return in, nil
	}

	out, err := phraser.Phrase(ctx, contract.PhraseRequest{
		Stage:       in.Response.NextStage,
		UserMessage: in.Text,
		Draft:       draft,
	})
	if err != nil {
		logx.Warn().Err(err).
			Str("context_id", in.ContextID).
			Str("stage", string(in.Response.NextStage)).
			Msg("phraser failed, keeping draft")
		return in, nil
	}
	if out = strings.TrimSpace(out); out != "" {
		in.Response.Message = out
	}
	return in, nil
}
