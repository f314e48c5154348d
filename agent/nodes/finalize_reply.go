package nodes

import (
	"fmt"
	"strings"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contract.ErrInvalidContext)
	}

	resp := in.Response
	resp.Message = strings.TrimSpace(resp.Message)
	if resp.Message == "" {
		return GraphOutput{}, fmt.Errorf("stage %s produced an empty message", in.StageBefore)
	}
	resp.ContextID = in.ContextID
	return GraphOutput{Response: resp, StageBefore: in.StageBefore}, nil
}
