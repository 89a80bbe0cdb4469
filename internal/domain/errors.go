package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by services, repositories and delivery.
var (
	ErrNotFound        = errors.New("not found")
	ErrCategoryFull    = errors.New("category is full")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidFormat   = errors.New("invalid format")
	ErrSessionConflict = errors.New("setup already in progress for this guild")
	ErrTimeoutAbort    = errors.New("setup step timed out")
	ErrRosterTooLarge  = errors.New("roster exceeds message size limit")
	ErrTooManyEvents   = errors.New("too many active events in guild")
	ErrSetupCancelled  = errors.New("setup cancelled")
	ErrNotReady        = errors.New("controls are not ready yet")
	ErrVersionConflict = errors.New("event was modified concurrently")
	ErrUnauthorized    = errors.New("unauthorized")
)

// InputError reports a rejected piece of operator input. It matches ErrInvalidFormat with errors.Is.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidFormat
}

// NewInputError returns an *InputError for field.
func NewInputError(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}
