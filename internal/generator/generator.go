// Package generator is the content-generation capability boundary: turn a
// prompt into email text. Two backends are provided — OpenRouter (any
// OpenAI-compatible hosted model) and AWS Bedrock (Claude, in-VPC).
// Callers treat failures uniformly; the dispatcher owns retries.
package generator

import (
	"context"
	"errors"
	"fmt"
)

// Generator produces email text from a prompt. Implementations must respect
// ctx cancellation; the dispatcher applies a per-call timeout.
type Generator interface {
	Generate(ctx context.Context, prompt, modelID string) (string, error)
}

// ErrEmptyContent is returned when the backend answered successfully but
// produced nothing usable. Treated like any other generation failure:
// retried, never advanced past.
var ErrEmptyContent = errors.New("generator returned empty content")

// Error wraps a backend failure with the backend name and model for
// campaign-level alerting.
type Error struct {
	Backend string
	ModelID string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s generation failed (model %s): %v", e.Backend, e.ModelID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
