package types

import (
	"errors"
	"fmt"
)

var (
	// ErrCorpusUnavailable means the corpus produced no documents or could not be read.
	ErrCorpusUnavailable = errors.New("corpus unavailable")

	// ErrInvalidInput marks trip form input that must not reach the model.
	ErrInvalidInput = errors.New("invalid input")

	// ErrReviewValidation marks a review that is missing required fields.
	ErrReviewValidation = errors.New("invalid review")

	// ErrCorruptReviewStore is logged when the reviews file is not valid JSON.
	// It never reaches callers of the store.
	ErrCorruptReviewStore = errors.New("corrupt review store")
)

// GenerationError wraps any failure on the retrieval or completion path.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("an error occurred while processing your request: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidInput) match field errors from the trip form.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
