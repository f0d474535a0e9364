package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for classifying domain failures. Callers match with
// errors.Is or by inspecting DomainError.Err.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrPromotionInvalid = errors.New("promotion invalid")
)

// DomainError wraps a sentinel error with a human-readable message.
type DomainError struct {
	Err     error
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Err }

// NewNotFoundError reports that an entity with the given identifier does not exist.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s with id %s not found", entity, id),
	}
}

// NewConflictError reports a state or concurrency conflict. Optimistic-lock
// losers and approval-guard violations both surface through this type.
func NewConflictError(message string) *DomainError {
	return &DomainError{Err: ErrConflict, Message: message}
}

// NewValidationError reports invalid input rejected before any mutation.
func NewValidationError(message string) *DomainError {
	return &DomainError{Err: ErrValidation, Message: message}
}

// NewInvalidStateError reports an illegal lifecycle transition.
func NewInvalidStateError(from, to string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidState,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// NewPromotionInvalidError reports an unknown, expired, exhausted or
// unowned promotion code.
func NewPromotionInvalidError(message string) *DomainError {
	return &DomainError{Err: ErrPromotionInvalid, Message: message}
}

// IsNotFound reports whether err classifies as a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err classifies as a conflict failure.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
