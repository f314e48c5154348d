package httpapi

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
	logx "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/logger"
)

const (
	frameStart   = "start"
	frameMessage = "message"
	frameError   = "error"
)

// wsFrame is a client frame. Message frames may omit context_id once the
// connection has started a conversation.
type wsFrame struct {
	Type           string `json:"type"`
	UserID         string `json:"user_id,omitempty"`
	InitialMessage string `json:"initial_message,omitempty"`
	ContextID      string `json:"context_id,omitempty"`
	UserMessage    string `json:"user_message,omitempty"`
}

type wsReply struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *Handler) WebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logx.Warn().Err(err).Str("request_id", RequestIDFromContext(c)).Msg("websocket upgrade failed")
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	var contextID string
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logx.Debug().Err(err).Str("context_id", contextID).Msg("websocket closed")
			}
			return nil
		}

		var frame wsFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			if err := conn.WriteJSON(wsReply{Type: frameError, Status: "error", Message: "invalid frame"}); err != nil {
				return nil
			}
			continue
		}

		var reply wsReply
		switch strings.ToLower(strings.TrimSpace(frame.Type)) {
		case frameStart:
			resp, err := h.svc.Start(ctx, contract.StartRequest{UserID: frame.UserID, InitialMessage: frame.InitialMessage})
			if err != nil {
				reply = errorReply(err)
				break
			}
			contextID = resp.ContextID
			reply = wsReply{Type: frameStart, Status: "success", Data: resp}
		case frameMessage:
			req := contract.TurnRequest{ContextID: frame.ContextID, UserMessage: frame.UserMessage}
			if strings.TrimSpace(req.ContextID) == "" {
				req.ContextID = contextID
			}
			if err := validateTurn(req); err != nil {
				reply = errorReply(err)
				break
			}
			resp, err := h.svc.Advance(ctx, req)
			if err != nil {
				reply = errorReply(err)
				break
			}
			contextID = resp.ContextID
			reply = wsReply{Type: frameMessage, Status: "success", Data: resp}
		default:
			reply = wsReply{Type: frameError, Status: "error", Message: "unknown frame type"}
		}

		if err := conn.WriteJSON(reply); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				logx.Debug().Err(err).Str("context_id", contextID).Msg("websocket write failed")
			}
			return nil
		}
	}
}

func errorReply(err error) wsReply {
	_, msg := statusFor(err)
	if msg == "internal error" {
		logx.Error().Err(err).Msg("websocket turn failed")
	}
	return wsReply{Type: frameError, Status: "error", Message: msg}
}
