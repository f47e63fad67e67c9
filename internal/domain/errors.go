package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("file record not found")
	ErrConflict    = errors.New("file record version conflict")
	ErrTransition  = errors.New("illegal status transition")
	ErrStore       = errors.New("object store rejected the operation")
	ErrPersistence = errors.New("metadata store rejected the operation")
)

// ValidationError means the caller sent missing or malformed input.
// It is never retried automatically.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError is a shorthand for a field-level ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError means the operation targeted an id the metadata store does not hold.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file record %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError means the caller supplied a version that no longer matches the row.
type ConflictError struct {
	ID       string
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("file record %q is at version %d, expected %d", e.ID, e.Actual, e.Expected)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// TransitionError means the requested status move is not in the lifecycle table.
type TransitionError struct {
	ID   string
	From FileStatus
	To   FileStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("file record %q cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrTransition }

// StoreError carries the object store's status code and message.
type StoreError struct {
	Op         string
	Bucket     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("object store %s %s/%s", e.Op, e.Bucket, e.Path)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *StoreError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrStore, e.Err}
	}
	return []error{ErrStore}
}

// PersistenceError wraps a metadata store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("metadata store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
