package grobid

import (
	"errors"
	"fmt"
)

// Common errors returned by the GROBID client and TEI parser.
var (
	// ErrPDFNotFound indicates the input PDF does not exist.
	ErrPDFNotFound = errors.New("PDF not found")

	// ErrUnavailable indicates the GROBID service could not be reached.
	ErrUnavailable = errors.New("GROBID service unavailable")

	// ErrTimeout indicates GROBID did not answer in time.
	ErrTimeout = errors.New("GROBID request timed out")

	// ErrInvalidXML indicates the response was not well-formed TEI.
	ErrInvalidXML = errors.New("invalid XML from GROBID")

	// ErrMissingFields indicates title, authors or year could not be extracted.
	ErrMissingFields = errors.New("could not extract required fields (title, authors, year) from GROBID output")
)

// APIError represents a non-200 response from GROBID.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GROBID error (status %d): %s", e.StatusCode, e.Message)
}

// IsUnavailable returns true if GROBID could not be reached or is overloaded.
func IsUnavailable(err error) bool {
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 503
	}
	return false
}
