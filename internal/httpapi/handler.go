package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
)

func (h *Handler) Start(c echo.Context) error {
	var req contract.StartRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.svc.Start(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return Success(c, http.StatusCreated, "conversation started", resp)
}

func (h *Handler) Message(c echo.Context) error {
	var req contract.TurnRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid request body")
	}
	if err := validateTurn(req); err != nil {
		return writeError(c, err)
	}

	resp, err := h.svc.Advance(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return Success(c, http.StatusOK, "", resp)
}

func (h *Handler) State(c echo.Context) error {
	st, err := h.svc.Inspect(c.Request().Context(), c.Param("context_id"))
	if err != nil {
		return writeError(c, err)
	}
	return Success(c, http.StatusOK, "", st)
}

func validateTurn(req contract.TurnRequest) error {
	if strings.TrimSpace(req.ContextID) == "" {
		return contract.ErrInvalidContext
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		return contract.ErrInvalidMessage
	}
	return nil
}
