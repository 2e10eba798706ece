package synthesis

import (
	"errors"
	"fmt"
)

// Common errors returned by completers and the generator.
var (
	// ErrMissingAPIKey indicates no Anthropic API key was configured.
	ErrMissingAPIKey = errors.New("ANTHROPIC_API_KEY not set")

	// ErrEmptyResponse indicates the model returned no text.
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrMalformedResponse indicates the response lacked the expected tags.
	ErrMalformedResponse = errors.New("response missing <summary> section")

	// ErrTimeout indicates the model did not answer in time.
	ErrTimeout = errors.New("synthesis request timed out")
)

// APIError represents an error response from the Anthropic API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("anthropic API error (status %d, %s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("anthropic API error (status %d): %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether err is a rate limit or overload that may
// succeed on a later attempt.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode == 529 || apiErr.StatusCode >= 500
	}
	return false
}
