// Package errs defines the ledger's error taxonomy. Every typed error unwraps
// to a sentinel so callers can branch with errors.Is.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for each failure class.
var (
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrPostingIntegrity = errors.New("posting integrity")
)

// ValidationError reports input that violates a ledger rule. Problems lists
// every violation found, not just the first.
type ValidationError struct {
	Message  string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Message, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validation returns a ValidationError with a formatted message.
func Validation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Invalid returns a ValidationError carrying a list of problems.
func Invalid(message string, problems []string) error {
	return &ValidationError{Message: message, Problems: problems}
}

// ConflictError reports an operation refused because other records still
// depend on the target.
type ConflictError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", ErrConflict, e.Resource, e.ID, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Conflict returns a ConflictError.
func Conflict(resource, id, reason string) error {
	return &ConflictError{Resource: resource, ID: id, Reason: reason}
}

// NotFoundError reports an unknown id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Resource, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound returns a NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// PostingIntegrityError reports that a posting could not resolve an account
// it requires. The posting is aborted.
type PostingIntegrityError struct {
	Event    string
	SourceID string
	Missing  []string
}

func (e *PostingIntegrityError) Error() string {
	subject := e.Event
	if e.SourceID != "" {
		subject += " " + e.SourceID
	}
	if subject == "" {
		subject = "chart"
	}
	return fmt.Sprintf("%s: %s: unresolved accounts: %s", ErrPostingIntegrity, subject, strings.Join(e.Missing, ", "))
}

func (e *PostingIntegrityError) Unwrap() error { return ErrPostingIntegrity }

// PostingIntegrity returns a PostingIntegrityError.
func PostingIntegrity(event, sourceID string, missing ...string) error {
	return &PostingIntegrityError{Event: event, SourceID: sourceID, Missing: missing}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConflict reports whether err is a conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsPostingIntegrity reports whether err is a posting integrity failure.
func IsPostingIntegrity(err error) bool { return errors.Is(err, ErrPostingIntegrity) }
