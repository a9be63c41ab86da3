package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrChatNotFound  = errors.New("chat not found")
	ErrInvalidAgent  = errors.New("invalid agent")
	ErrBadRequest    = errors.New("bad request")
)
