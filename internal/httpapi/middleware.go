package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	logx "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/logger"
)

const (
	HeaderRequestID     = "X-Request-ID"
	contextKeyRequestID = "request_id"
)

// RequestID injects an identifier for traceability if the caller did not provide one.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := strings.TrimSpace(c.Request().Header.Get(HeaderRequestID))
			if rid == "" {
				rid = uuid.NewString()
			}

			c.Set(contextKeyRequestID, rid)
			c.Response().Header().Set(HeaderRequestID, rid)

			return next(c)
		}
	}
}

func RequestIDFromContext(c echo.Context) string {
	if val, ok := c.Get(contextKeyRequestID).(string); ok {
		return val
	}
	return ""
}

// Logging writes one structured line per request.
func Logging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logx.Info().
				Str("request_id", RequestIDFromContext(c)).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Msg("http request")

			return err
		}
	}
}

func logRequestError(c echo.Context, err error) {
	logx.Error().Err(err).
		Str("request_id", RequestIDFromContext(c)).
		Str("path", c.Request().URL.Path).
		Msg("request failed")
}

// RateLimiter applies a token bucket to every path under prefix. A zero
// config disables it.
func RateLimiter(prefix string, requests int, interval time.Duration) echo.MiddlewareFunc {
	if requests <= 0 || interval <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	perRequest := interval / time.Duration(requests)
	if perRequest <= 0 {
		perRequest = time.Millisecond
	}

	limiter := rate.NewLimiter(rate.Every(perRequest), requests)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.HasPrefix(c.Request().URL.Path, prefix) {
				return next(c)
			}

			if !limiter.Allow() {
				return Error(c, http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
