package main

import (
	"errors"

	"github.com/matsen/paperlib/internal/grobid"
	"github.com/matsen/paperlib/internal/pipeline"
	"github.com/matsen/paperlib/internal/synthesis"
)

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (missing API key, invalid vault)
	ExitDataError   = 3 // Data error (malformed input, corrupt library)
	ExitUnavailable = 4 // External service (GROBID, Claude) unavailable
	ExitPartial     = 5 // Batch finished with some identifiers failed
)

// exitCodeFor maps a processing error to an exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case grobid.IsUnavailable(err):
		return ExitUnavailable
	case synthesis.IsRetryable(err):
		return ExitUnavailable
	case errors.Is(err, pipeline.ErrUnknownIdentifier), errors.Is(err, pipeline.ErrFileNotFound):
		return ExitDataError
	default:
		return ExitError
	}
}

// batchExitCode picks the exit code for a run with the given outcome.
func batchExitCode(processed, failed int, firstErr error) int {
	switch {
	case failed == 0:
		return ExitSuccess
	case processed > 0:
		return ExitPartial
	default:
		return exitCodeFor(firstErr)
	}
}
