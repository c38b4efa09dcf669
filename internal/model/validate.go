package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateTask checks the invariants the board relies on: a task needs an
// identity and a status from the declared stage set.
// It returns a *ValidationError if any rule fails, or nil if the task is valid.
func ValidateTask(t *Task) error {
	if t == nil {
		return &ValidationError{Errors: []FieldError{{Field: "task", Message: "is required"}}}
	}
	var ve ValidationError

	if strings.TrimSpace(t.ID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "_id", Message: "is required"})
	}

	if !t.Status.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "status",
			Message: fmt.Sprintf("invalid value %q", t.Status),
		})
	}

	// Approval metadata only makes sense once a task is closed.
	if t.ApprovedDate != nil && t.Status != StageClosed && t.Status != StageDone {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "approved_date",
			Message: "must be nil before the task is done",
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
