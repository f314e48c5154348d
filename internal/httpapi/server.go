package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	statex "github.com/tanpawarit/Chative-Restaurant-Recommender/agent/state"
)

// Service is the conversation API the transport exposes.
type Service interface {
	Start(ctx context.Context, req contract.StartRequest) (contract.StartResponse, error)
	Advance(ctx context.Context, req contract.TurnRequest) (contract.TurnResponse, error)
	Inspect(ctx context.Context, contextID string) (*statex.ConversationState, error)
}

// Config is loaded with the HTTP prefix.
type Config struct {
	RateLimitRequests int           `split_words:"true" default:"60"`
	RateLimitInterval time.Duration `split_words:"true" default:"1m"`
	AllowedOrigins    []string      `split_words:"true"`
}

type Handler struct {
	svc      Service
	upgrader websocket.Upgrader
}

func NewHandler(svc Service, cfg Config) *Handler {
	return &Handler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

// NewServer builds the echo instance with middleware and routes.
func NewServer(svc Service, cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(RequestID())
	e.Use(Logging())
	e.Use(RateLimiter("/chat", cfg.RateLimitRequests, cfg.RateLimitInterval))

	Register(e, NewHandler(svc, cfg))
	return e
}

func Register(e *echo.Echo, h *Handler) {
	e.GET("/healthz", func(c echo.Context) error {
		return Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	e.POST("/chat/start", h.Start)
	e.POST("/chat/message", h.Message)
	e.GET("/state/:context_id", h.State)
	e.GET("/ws", h.WebSocket)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			set[strings.ToLower(o)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
