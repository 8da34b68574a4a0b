package memrag

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by APIError.Is.
// Use errors.Is() to check.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSessionNotFound = errors.New("session not found")
	ErrProviderError   = errors.New("provider error")
	ErrIndexAlignment  = errors.New("index alignment")
	ErrInternal        = errors.New("internal error")
)

var codeSentinels = map[string]error{
	"bad_request":       ErrBadRequest,
	"unauthorized":      ErrUnauthorized,
	"session_not_found": ErrSessionNotFound,
	"provider_error":    ErrProviderError,
	"index_alignment":   ErrIndexAlignment,
	"internal_error":    ErrInternal,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	// Answer is the apology text sent with a degraded answer.
	Answer string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("memrag: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is reports whether target is the sentinel for the error code.
func (e *APIError) Is(target error) bool {
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}
