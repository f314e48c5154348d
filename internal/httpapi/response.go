package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tanpawarit/Chative-Restaurant-Recommender/agent/contract"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Success(c echo.Context, status int, message string, data any) error {
	if status == 0 {
		status = http.StatusOK
	}
	return c.JSON(status, APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func Error(c echo.Context, status int, message string) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, APIResponse{
		Status:  "error",
		Message: message,
	})
}

// statusFor maps service errors to HTTP status codes and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, contract.ErrContextNotFound):
		return http.StatusNotFound, contract.ErrContextNotFound.Error()
	case errors.Is(err, contract.ErrTurnInProgress):
		return http.StatusConflict, contract.ErrTurnInProgress.Error()
	case errors.Is(err, contract.ErrInvalidContext):
		return http.StatusBadRequest, contract.ErrInvalidContext.Error()
	case errors.Is(err, contract.ErrInvalidMessage):
		return http.StatusBadRequest, contract.ErrInvalidMessage.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(c echo.Context, err error) error {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		logRequestError(c, err)
	}
	return Error(c, status, msg)
}
