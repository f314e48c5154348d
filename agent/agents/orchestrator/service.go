package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	nodex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/nodes"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/scoring"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/slots"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
	logx "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/logger"
)

// Config tunes the dialogue. It is loaded with the DIALOGUE prefix.
type Config struct {
	Cuisines           []string        `split_words:"true"`
	Weights            scoring.Weights `split_words:"true"`
	MaxDistanceM       float64         `envconfig:"MAX_DISTANCE_M" default:"10000"`
	TopN               int             `envconfig:"TOP_N" default:"3"`
	MaxCandidates      int             `split_words:"true" default:"20"`
	MinDwellMinutes    float64         `split_words:"true" default:"30"`
	AverageSpeedKmh    float64         `envconfig:"AVERAGE_SPEED_KMH" default:"30"`
	DefaultClosingHour int             `split_words:"true" default:"23"`
	SearchTimeout      time.Duration   `split_words:"true" default:"10s"`
}

func (c Config) settings() nodex.Settings {
	return nodex.Settings{
		Weights:            c.Weights,
		MaxDistanceM:       c.MaxDistanceM,
		TopN:               c.TopN,
		MaxCandidates:      c.MaxCandidates,
		DwellMinutes:       c.MinDwellMinutes,
		SpeedKmh:           c.AverageSpeedKmh,
		DefaultClosingHour: c.DefaultClosingHour,
		SearchTimeout:      c.SearchTimeout,
	}
}

type Option func(*Orchestrator)

// WithPhraser enables LLM rephrasing of the drafted replies.
func WithPhraser(p contract.Phraser) Option {
	return func(o *Orchestrator) {
		o.phraser = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator owns the conversation lifecycle: it creates conversations,
// runs one turn at a time per context id and exposes read-only snapshots.
type Orchestrator struct {
	store    statex.Store
	dialogue *nodex.Dialogue
	phraser  contract.Phraser

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	inflight *xsync.MapOf[string, struct{}]
	now      func() time.Time
}

func New(
	store statex.Store,
	gateway contract.PlacesGateway,
	cfg Config,
	opts ...Option,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if gateway == nil {
		return nil, errors.New("places gateway is required")
	}

	dialogue, err := nodex.NewDialogue(gateway, slots.NewExtractor(cfg.Cuisines), cfg.settings())
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		store:    store,
		dialogue: dialogue,
		inflight: xsync.NewMapOf[string, struct{}](),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	graphRunner, err := o.compileAdvanceGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Start creates a conversation and greets the user. The initial message is
// only logged; the first turn always asks for a location.
func (o *Orchestrator) Start(ctx context.Context, req contract.StartRequest) (contract.StartResponse, error) {
	st, err := o.store.Create(ctx, req.UserID)
	if err != nil {
		return contract.StartResponse{}, fmt.Errorf("create conversation: %w", err)
	}

	msg, env := o.dialogue.Greeting(o.now())
	logx.Info().
		Str("context_id", st.ContextID).
		Str("user_id", st.UserID).
		Str("initial_message", strings.TrimSpace(req.InitialMessage)).
		Msg("conversation started")

	return contract.StartResponse{
		ContextID:   st.ContextID,
		UserID:      st.UserID,
		Message:     msg,
		NextStage:   st.Stage,
		Environment: env,
	}, nil
}

// Advance runs one turn. A second turn for the same context id while one is
// running fails with contract.ErrTurnInProgress.
func (o *Orchestrator) Advance(ctx context.Context, req contract.TurnRequest) (contract.TurnResponse, error) {
	contextID := strings.TrimSpace(req.ContextID)
	if contextID == "" {
		return contract.TurnResponse{}, contract.ErrInvalidContext
	}

	if _, busy := o.inflight.LoadOrStore(contextID, struct{}{}); busy {
		return contract.TurnResponse{}, fmt.Errorf("%w: context_id=%s", contract.ErrTurnInProgress, contextID)
	}
	defer o.inflight.Delete(contextID)

	started := time.Now()
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		ContextID: contextID,
		Text:      req.UserMessage,
	})
	if err != nil {
		if !errors.Is(err, contract.ErrContextNotFound) {
			logx.Error().Err(err).Str("context_id", contextID).Msg("turn failed")
		}
		return contract.TurnResponse{}, err
	}

	logx.Debug().
		Str("context_id", contextID).
		Str("stage_before", string(out.StageBefore)).
		Str("stage_after", string(out.Response.NextStage)).
		Dur("duration", time.Since(started)).
		Msg("turn completed")
	return out.Response, nil
}

// Inspect returns a snapshot of the stored conversation.
func (o *Orchestrator) Inspect(ctx context.Context, contextID string) (*statex.ConversationState, error) {
	contextID = strings.TrimSpace(contextID)
	if contextID == "" {
		return nil, contract.ErrInvalidContext
	}
	st, err := o.store.Load(ctx, contextID)
	if errors.Is(err, statex.ErrStateNotFound) {
		return nil, fmt.Errorf("%w: context_id=%s", contract.ErrContextNotFound, contextID)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}
