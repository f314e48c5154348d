package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/scoring"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/slots"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/timing"
)

// maxChainedStages bounds how many stages one turn may run.
const maxChainedStages = 4

// Settings tune discovery, ranking and time feasibility.
type Settings struct {
	Weights            scoring.Weights
	MaxDistanceM       float64
	TopN               int
	MaxCandidates      int
	DwellMinutes       float64
	SpeedKmh           float64
	DefaultClosingHour int
	SearchTimeout      time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Weights:            scoring.DefaultWeights,
		MaxDistanceM:       scoring.DefaultMaxDistanceM,
		TopN:               statex.MaxRecommendations,
		MaxCandidates:      20,
		DwellMinutes:       timing.DefaultDwellMinutes,
		SpeedKmh:           timing.DefaultSpeedKmh,
		DefaultClosingHour: timing.DefaultClosingHour,
		SearchTimeout:      10 * time.Second,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	s.Weights = s.Weights.Normalize()
	if s.MaxDistanceM <= 0 {
		s.MaxDistanceM = d.MaxDistanceM
	}
	if s.TopN <= 0 || s.TopN > statex.MaxRecommendations {
		s.TopN = d.TopN
	}
	if s.MaxCandidates <= 0 {
		s.MaxCandidates = d.MaxCandidates
	}
	if s.DwellMinutes <= 0 {
		s.DwellMinutes = d.DwellMinutes
	}
	if s.SpeedKmh <= 0 {
		s.SpeedKmh = d.SpeedKmh
	}
	if s.DefaultClosingHour < 0 || s.DefaultClosingHour > 23 {
		s.DefaultClosingHour = d.DefaultClosingHour
	}
	if s.SearchTimeout <= 0 {
		s.SearchTimeout = d.SearchTimeout
	}
	return s
}

type stageHandler func(ctx context.Context, t *turn) error

// Dialogue is the conversation state machine. Each stage has one handler in
// the dispatch table; handlers may ask for the next stage to run in the same
// turn.
type Dialogue struct {
	gateway   contract.PlacesGateway
	extractor *slots.Extractor
	settings  Settings
	handlers  map[statex.Stage]stageHandler
}

func NewDialogue(gateway contract.PlacesGateway, extractor *slots.Extractor, settings Settings) (*Dialogue, error) {
	if gateway == nil {
		return nil, errors.New("places gateway is required")
	}
	if extractor == nil {
		extractor = slots.NewExtractor(nil)
	}

	d := &Dialogue{
		gateway:   gateway,
		extractor: extractor,
		settings:  settings.withDefaults(),
	}
	d.handlers = map[statex.Stage]stageHandler{
		statex.StageCollectLocation:     d.collectLocation,
		statex.StageCollectEnergy:       d.collectEnergy,
		statex.StageConfirmDistance:     d.confirmDistance,
		statex.StageCollectBudget:       d.collectBudget,
		statex.StageCollectGroupSize:    d.collectGroupSize,
		statex.StageCollectCuisine:      d.collectCuisine,
		statex.StageDiscoverRestaurants: d.discoverRestaurants,
		statex.StageCompose:             d.analyzeAndCompose,
		statex.StageSelectRestaurant:    d.selectRestaurant,
		statex.StageComplete:            d.complete,
	}
	return d, nil
}

// turn is the mutable context of one Advance call.
type turn struct {
	conv *statex.ConversationState
	text string
	now  time.Time

	// chained is set while running a stage the previous stage handed over to;
	// such stages ignore the utterance.
	chained bool
	next    bool

	messages []string
	resp     contract.TurnResponse
}

func (t *turn) say(format string, args ...any) {
	if len(args) == 0 {
		t.messages = append(t.messages, format)
		return
	}
	t.messages = append(t.messages, fmt.Sprintf(format, args...))
}

// continueWith moves to stage and runs it within the same turn.
func (t *turn) continueWith(stage statex.Stage) {
	t.conv.Stage = stage
	t.next = true
}

// Advance runs the handler for the conversation's stage and returns the reply.
// conv is mutated in place; saving it is the caller's job.
func (d *Dialogue) Advance(ctx context.Context, conv *statex.ConversationState, text string, now time.Time) (contract.TurnResponse, error) {
	if conv == nil {
		return contract.TurnResponse{}, fmt.Errorf("%w: conversation is nil", contract.ErrInvalidContext)
	}

	t := &turn{conv: conv, text: strings.TrimSpace(text), now: now}
	for i := 0; i < maxChainedStages; i++ {
		handler, ok := d.handlers[conv.Stage]
		if !ok {
			return contract.TurnResponse{}, fmt.Errorf("%w: unknown stage %q", statex.ErrInvalidConversation, conv.Stage)
		}
		t.next = false
		if err := handler(ctx, t); err != nil {
			return contract.TurnResponse{}, fmt.Errorf("stage %s: %w", conv.Stage, err)
		}
		if !t.next {
			break
		}
		t.chained = true
		t.text = ""
	}

	t.resp.ContextID = conv.ContextID
	t.resp.NextStage = conv.Stage
	t.resp.Message = strings.Join(t.messages, "\n\n")
	return t.resp, nil
}

func DispatchStage(ctx context.Context, in *GraphState, d *Dialogue) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contract.ErrInvalidContext)
	}

	resp, err := d.Advance(ctx, in.Conversation, in.Text, in.Now)
	if err != nil {
		return nil, err
	}
	in.Response = resp
	return in, nil
}

// Greeting opens a new conversation and describes the caller's surroundings.
func (d *Dialogue) Greeting(now time.Time) (string, contract.Environment) {
	local := now.In(time.Local)
	env := contract.Environment{
		LocalTime: local.Format("15:04"),
		Weekday:   local.Weekday().String(),
		IsWorkday: local.Weekday() != time.Saturday && local.Weekday() != time.Sunday,
		FoodTypes: d.extractor.Cuisines(),
	}
	return greetingMessage(env), env
}
