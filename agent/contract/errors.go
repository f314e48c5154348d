package contract

import "errors"

var (
	ErrContextNotFound = errors.New("conversation context not found")
	ErrTurnInProgress  = errors.New("another turn is in progress for this context")
	ErrInvalidMessage  = errors.New("user message is invalid")
	ErrInvalidContext  = errors.New("context id is required")
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrPromptMissing   = errors.New("required prompt is missing")
)
