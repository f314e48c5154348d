package phraser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
)

var _ contract.Phraser = (*Phraser)(nil)

// Phraser rewrites template replies with a chat model.
type Phraser struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Phraser, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: phraser", contract.ErrPromptMissing)
	}

	runner, err := compilePhraseGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrModelInvoke, err)
	}
	return &Phraser{runner: runner}, nil
}

func (p *Phraser) Phrase(ctx context.Context, req contract.PhraseRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal phrase request: %w", err)
	}

	msg, err := p.runner.Invoke(ctx, map[string]any{"input": string(payload)})
	if err != nil {
		return "", fmt.Errorf("%w: phraser: %v", contract.ErrModelInvoke, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: phraser returned no message", contract.ErrModelInvoke)
	}
	return strings.TrimSpace(msg.Content), nil
}

func compilePhraseGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add phraser prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add phraser model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add phraser edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add phraser edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add phraser edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("phraser.model_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile phraser graph: %w", err)
	}
	return runner, nil
}
