package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownIdentifier indicates an identifier matched no supported source.
	ErrUnknownIdentifier = errors.New("could not determine source type")

	// ErrFileNotFound indicates a local PDF path that does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrNoText indicates neither the PDF nor the metadata yielded text to
	// synthesize.
	ErrNoText = errors.New("no text available for synthesis")
)

// StageError records which pipeline stage failed for an identifier.
type StageError struct {
	Identifier string
	Stage      Stage
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("processing %s: %s: %v", e.Identifier, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failing stage of err, or "" if err carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
