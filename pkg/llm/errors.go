package llm

import (
	"errors"
	"fmt"
)

// ErrAllProvidersFailed is returned by Router.Chat when every eligible
// provider in the fallback chain was attempted and none produced a response.
var ErrAllProvidersFailed = errors.New("all llm providers failed")

// ErrNoProviderAvailable is returned when the registry is empty, so there was
// nothing to attempt at all. It wraps ErrAllProvidersFailed so callers that
// only distinguish "chat failed" from transport errors can match either with
// a single errors.Is check.
var ErrNoProviderAvailable = fmt.Errorf("no llm provider available: %w", ErrAllProvidersFailed)

// Error describes a failure reported by a provider backend.
type Error struct {
	Provider string
	Status   int // HTTP status from the backend, 0 when not applicable
	Message  string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// NewHTTPError builds a provider error carrying the backend's HTTP status.
func NewHTTPError(provider string, status int, message string) *Error {
	return &Error{Provider: provider, Status: status, Message: message}
}
