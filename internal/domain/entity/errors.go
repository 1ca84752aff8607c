package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidVector indicates that an embedding vector does not match the
	// dimensionality registered for its model version.
	ErrInvalidVector = errors.New("invalid embedding vector")

	// ErrInvalidBudget indicates a negative per-article link budget.
	ErrInvalidBudget = errors.New("invalid link budget")

	// ErrEmbeddingTransient marks an embedding service failure that may succeed on a later pass
	// (timeouts, 5xx, rate limiting, open circuit breaker).
	ErrEmbeddingTransient = errors.New("embedding service unavailable")

	// ErrEmbeddingPermanent marks an embedding service rejection of the input itself.
	// The same text must not be retried until it changes.
	ErrEmbeddingPermanent = errors.New("embedding service rejected input")

	// ErrEdgeRetired indicates an operation on a link edge that has been retired.
	ErrEdgeRetired = errors.New("link edge is retired")

	// ErrRunInProgress is returned when a reconciliation is triggered for a workspace
	// that already has one in flight. The trigger is coalesced, not queued.
	ErrRunInProgress = errors.New("reconciliation already running for workspace")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Unwrap lets callers match any ValidationError with errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// InvalidVectorError reports a vector whose length differs from the dimensionality
// configured for its model version. It matches ErrInvalidVector via errors.Is.
type InvalidVectorError struct {
	ArticleID    string
	ModelVersion string
	Expected     int
	Got          int
}

func (e *InvalidVectorError) Error() string {
	if e.Expected == 0 {
		return fmt.Sprintf("invalid vector for article %q: unknown model version %q", e.ArticleID, e.ModelVersion)
	}
	return fmt.Sprintf("invalid vector for article %q: model %q expects %d dimensions, got %d",
		e.ArticleID, e.ModelVersion, e.Expected, e.Got)
}

func (e *InvalidVectorError) Unwrap() error {
	return ErrInvalidVector
}

// InvalidBudgetError reports a negative max-links-per-article value.
// It matches ErrInvalidBudget via errors.Is.
type InvalidBudgetError struct {
	Budget int
}

func (e *InvalidBudgetError) Error() string {
	return fmt.Sprintf("max links per article must be >= 0, got %d", e.Budget)
}

func (e *InvalidBudgetError) Unwrap() error {
	return ErrInvalidBudget
}
