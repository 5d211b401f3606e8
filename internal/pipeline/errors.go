package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// The pipeline error taxonomy. Gateway failures are fatal to the current
// run and surface to the caller unmodified; data-quality issues degrade
// gracefully via answer flags instead of errors. Callers distinguish kinds
// with errors.As / errors.Is.

// EmbeddingError wraps a failure of the embedding gateway. The pipeline
// never retries embedding — retries, if any, belong inside the gateway.
type EmbeddingError struct {
	// Err is the underlying gateway error.
	Err error
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failure: %v", e.Err)
}

// Unwrap exposes the underlying error for errors.Is chains (notably
// context.DeadlineExceeded on timeouts).
func (e *EmbeddingError) Unwrap() error { return e.Err }

// GenerationError wraps a failure of the generation gateway backend.
type GenerationError struct {
	// Err is the underlying gateway error.
	Err error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failure: %v", e.Err)
}

// Unwrap exposes the underlying error for errors.Is chains.
func (e *GenerationError) Unwrap() error { return e.Err }

// MalformedOutputError reports that the model's structured output could not
// be parsed after the initial attempt and exactly one stricter retry.
type MalformedOutputError struct {
	// Attempts is the number of generation calls made (always 2).
	Attempts int

	// Reason describes the final parse failure.
	Reason string

	// Raw is the unparsable model output from the last attempt, kept for
	// debugging and logging.
	Raw string
}

// Error implements the error interface.
func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed generation output after %d attempts: %s", e.Attempts, e.Reason)
}

// IsTimeout reports whether err was caused by an external call exceeding
// its caller-supplied deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// Kind returns a short stable label for an error, used by the CLI and the
// HTTP surface when reporting failures.
func Kind(err error) string {
	var embErr *EmbeddingError
	var genErr *GenerationError
	var malErr *MalformedOutputError

	switch {
	case IsTimeout(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &embErr):
		return "embedding_failure"
	case errors.As(err, &malErr):
		return "malformed_generation_output"
	case errors.As(err, &genErr):
		return "generation_failure"
	default:
		return "error"
	}
}
