package arxiv

import (
	"errors"
	"fmt"
)

// Common errors returned by the arXiv client.
var (
	// ErrInvalidID indicates the input does not contain an arXiv identifier.
	ErrInvalidID = errors.New("invalid arXiv ID")

	// ErrNotFound indicates arXiv returned no entry for the identifier.
	ErrNotFound = errors.New("paper not found on arXiv")

	// ErrIncompleteMetadata indicates the entry lacks title, authors or year.
	ErrIncompleteMetadata = errors.New("incomplete metadata from arXiv")

	// ErrInvalidResponse indicates the Atom feed could not be parsed.
	ErrInvalidResponse = errors.New("invalid response from arXiv")
)

// APIError represents a non-200 response from arXiv.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("arXiv request failed (status %d): %s", e.StatusCode, e.URL)
}

// IsNotFound returns true if the error indicates the paper does not exist.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}
