package web

import (
	"errors"
	"fmt"
)

// Common errors returned by the web fetcher.
var (
	// ErrInvalidURL indicates the input is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnsupportedSource indicates a host whose content cannot be processed.
	ErrUnsupportedSource = errors.New("unsupported source")

	// ErrTooShort indicates too little article content was extracted.
	ErrTooShort = errors.New("extracted content too short")

	// ErrPaywall indicates the page appears to be paywalled or restricted.
	ErrPaywall = errors.New("page appears to be paywalled or restricted")

	// ErrNotFound indicates the page does not exist.
	ErrNotFound = errors.New("page not found")

	// ErrRateLimited indicates the site asked us to slow down.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnknownContentType indicates a response that is neither HTML nor PDF.
	ErrUnknownContentType = errors.New("unknown content type")
)

// HTTPError represents an unexpected HTTP status from a fetched page.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.URL)
}

// statusError maps an HTTP status to the most specific error.
func statusError(status int, url string) error {
	switch status {
	case 404:
		return fmt.Errorf("%w (404): %s", ErrNotFound, url)
	case 403:
		return fmt.Errorf("%w (403): %s", ErrPaywall, url)
	case 429:
		return fmt.Errorf("%w (429): wait and try again", ErrRateLimited)
	default:
		return &HTTPError{StatusCode: status, URL: url}
	}
}
