package attachment

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("attachment not found")
	ErrParentNotFound   = errors.New("parent not found")
	ErrConflict         = errors.New("attachment conflict")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrUnauthorized     = errors.New("unauthorized")
	// ErrDataLoss marks a completed attachment whose object is gone from storage.
	ErrDataLoss = errors.New("attachment object missing from storage")
)

type ValidationError struct {
	Reason string
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func conflict(reason string) error { return fmt.Errorf("%w: %s", ErrConflict, reason) }

var (
	ErrAlreadyCompleted    = conflict("attachment already completed")
	ErrNotUploaded         = conflict("object not yet uploaded")
	ErrContentTypeMismatch = conflict("uploaded content type does not match declared content type")
	ErrNotCompleted        = fmt.Errorf("%w: attachment not completed", ErrInvalidOperation)
)
