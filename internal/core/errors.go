// errors.go defines the error taxonomy shared by the orchestrator, store and
// command surface. Validation, not-found and conflict errors are always
// raised before any store mutation; ConfirmationRequired is a normal
// control-flow outcome, not a failure.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports malformed or missing required input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a field-scoped validation error.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError reports a reference to a nonexistent entity.
type NotFoundError struct {
	Kind string // session | profile | idp-url | integration | segment
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFoundError builds a not-found error for the given entity kind and id.
func NewNotFoundError(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ConflictError reports input that is structurally valid but semantically
// disallowed, such as chaining from a non-chainable session type.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// NewConflictError builds a conflict error.
func NewConflictError(reason string) error {
	return &ConflictError{Reason: reason}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// ConfirmationRequired signals that a destructive operation has dependents
// and was not forced. Callers prompt the user and retry with force; no store
// mutation has happened when this is returned.
type ConfirmationRequired struct {
	Kind     string // the entity kind being deleted
	ID       string
	Affected []Session
}

func (e *ConfirmationRequired) Error() string {
	names := make([]string, 0, len(e.Affected))
	for _, s := range e.Affected {
		names = append(names, s.Name)
	}
	return fmt.Sprintf("deleting %s %s affects %d session(s): %s",
		e.Kind, e.ID, len(e.Affected), strings.Join(names, ", "))
}

// AsConfirmationRequired extracts a ConfirmationRequired from err, if present.
func AsConfirmationRequired(err error) (*ConfirmationRequired, bool) {
	var cr *ConfirmationRequired
	if errors.As(err, &cr) {
		return cr, true
	}
	return nil, false
}
