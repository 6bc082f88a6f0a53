// Package apperrors holds the error kinds shared by the workflows and the
// HTTP layer.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("user not found")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrAlreadyVerified  = errors.New("user is already verified")
	ErrNoOTP            = errors.New("no verification code found")
	ErrOTPExpired       = errors.New("verification code has expired")
	ErrInvalidOTP       = errors.New("invalid verification code")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrEmailDispatch    = errors.New("email dispatch failed")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field-level problem of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Add records a problem with field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns e when it holds at least one field error.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// RateLimitError is returned when a guarded operation ran out of slots.
type RateLimitError struct {
	Operation string
	ResetTime time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, resets at %s", e.Operation, e.ResetTime.Format(time.RFC3339))
}

// MigrationIncompleteError means the archive phase stored fewer rows than were
// read. Nothing has been deleted.
type MigrationIncompleteError struct {
	Expected int
	Moved    int
}

func (e *MigrationIncompleteError) Error() string {
	return fmt.Sprintf("failed to move all users to archive: expected %d, moved %d", e.Expected, e.Moved)
}

// PartialDeletionError means archived rows and deleted rows disagree. Records
// now exist in both stores and need operator attention.
type PartialDeletionError struct {
	Expected int
	Moved    int
	Deleted  int
}

func (e *PartialDeletionError) Error() string {
	return fmt.Sprintf("partial deletion: expected %d, moved %d, deleted %d", e.Expected, e.Moved, e.Deleted)
}
