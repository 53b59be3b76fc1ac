package ingest

import (
	"errors"
	"strings"

	"github.com/okian/touchline/internal/domain/model"
)

// Sentinel kinds for ingestion errors.
var (
	ErrValidation  = errors.New("event failed validation")
	ErrPersistence = errors.New("event could not be persisted")
)

// RejectedError carries the validation result of a rejected submission.
type RejectedError struct {
	Result model.ValidationResult
}

func (e *RejectedError) Error() string {
	return ErrValidation.Error() + ": " + strings.Join(e.Result.Errors, "; ")
}

// Unwrap lets errors.Is match ErrValidation.
func (e *RejectedError) Unwrap() error { return ErrValidation }
