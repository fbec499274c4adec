package memory

import "errors"

// Sentinel errors for store operations.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrAgentExists  = errors.New("agent already registered")
)
