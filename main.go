package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/agents/phraser"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/places"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/prompt"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
	"github.com/tanpawarit/Chative-Restaurant-Recommender/internal/httpapi"
	configx "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/config"
	logx "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/logger"
	_ "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/openrouter"
	redisx "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/redis"
)

type AppConfig struct {
	Port            int           `default:"8000"`
	StoreBackend    string        `split_words:"true" default:"memory"`
	ConversationTTL time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	SweepInterval   time.Duration `split_words:"true" default:"10m"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

func main() {
	if err := run(); err != nil {
		logx.Error().Err(err).Msg("service stopped")
		os.Exit(1)
	}
}

func run() error {
	appCfg := configx.MustNew[AppConfig]("APP")
	logCfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, *appCfg)
	if err != nil {
		return fmt.Errorf("init %s store: %w", appCfg.StoreBackend, err)
	}
	defer closeStore()

	gateway, err := newGateway(*configx.MustNew[places.Config]("PLACES"))
	if err != nil {
		return fmt.Errorf("init places gateway: %w", err)
	}

	var opts []orchestrator.Option
	if p := newPhraser(ctx, *configx.MustNew[openrouterx.Config]("OPENROUTER")); p != nil {
		opts = append(opts, orchestrator.WithPhraser(p))
	}

	orch, err := orchestrator.New(store, gateway, *configx.MustNew[orchestrator.Config]("DIALOGUE"), opts...)
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	if sweeper, ok := store.(statex.Sweeper); ok {
		go runSweeper(ctx, sweeper, appCfg.ConversationTTL, appCfg.SweepInterval)
	}

	e := httpapi.NewServer(orch, *configx.MustNew[httpapi.Config]("HTTP"))
	serverErr := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(appCfg.Port)
		logx.Info().Str("addr", addr).Str("store", appCfg.StoreBackend).Msg("http server listening")
		serverErr <- e.Start(addr)
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logx.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func newStore(ctx context.Context, cfg AppConfig) (statex.Store, func(), error) {
	ttl := statex.WithTTL(cfg.ConversationTTL)
	noop := func() {}

	switch strings.ToLower(strings.TrimSpace(cfg.StoreBackend)) {
	case "", "memory":
		s, err := statex.NewMemoryStore(ttl)
		return s, noop, err

	case "redis":
		redisCfg := configx.MustNew[redisx.Config]("REDIS")
		client, err := redisCfg.New(ctx)
		if err != nil {
			return nil, noop, err
		}
		s, err := statex.NewRedisStore(client, ttl)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return s, func() { _ = client.Close() }, nil

	case "upstash":
		s, err := statex.NewUpstashRedisStore(*configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS"), ttl)
		return s, noop, err

	case "postgres":
		db, err := statex.OpenPostgres(ctx, *configx.MustNew[statex.PostgresConfig]("POSTGRES"))
		if err != nil {
			return nil, noop, err
		}
		s, err := statex.NewPostgresStore(db, ttl)
		if err == nil {
			err = s.Migrate(ctx)
		}
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return s, func() { _ = db.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newGateway(cfg places.Config) (contract.PlacesGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		logx.Warn().Msg("PLACES_API_KEY is not set, serving labeled demo places")
		return places.NewDemoGateway(), nil
	}
	g, err := places.NewGoogleGateway(cfg)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// newPhraser returns nil when OpenRouter is not configured or fails to
// initialise; replies then go out as drafted.
func newPhraser(ctx context.Context, cfg openrouterx.Config) *phraser.Phraser {
	if !cfg.Enabled() {
		return nil
	}
	chatModel, err := cfg.New(ctx)
	if err != nil {
		logx.Warn().Err(err).Msg("phraser disabled")
		return nil
	}
	p, err := phraser.New(ctx, chatModel, prompt.LoadPromptSet().Phraser)
	if err != nil {
		logx.Warn().Err(err).Msg("phraser disabled")
		return nil
	}
	logx.Info().Str("model", cfg.Model).Msg("phraser enabled")
	return p
}

func runSweeper(ctx context.Context, sweeper statex.Sweeper, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := sweeper.Sweep(ctx, now.Add(-ttl))
			if err != nil {
				logx.Error().Err(err).Msg("conversation sweep failed")
				continue
			}
			if n > 0 {
				logx.Info().Int("removed", n).Msg("expired conversations swept")
			}
		}
	}
}
