package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrParse         = errors.New("parse error")
	ErrNoValidFields = errors.New("no valid fields to update")

	// ErrTraversal is reported when a path resolves outside its allowed root.
	// It also matches ErrValidation.
	ErrTraversal error = traversalError{}
)

type traversalError struct{}

func (traversalError) Error() string { return "path is outside the allowed directory" }

func (traversalError) Is(target error) bool { return target == ErrValidation }

// ValidationError aggregates field-level validation messages.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError from one or more messages.
func Invalid(messages ...string) error {
	return &ValidationError{Messages: messages}
}

// Invalidf builds a single-message ValidationError.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Messages: []string{fmt.Sprintf(format, args...)}}
}

// NotFound tags a not-found condition with a description of the missing subject.
func NotFound(subject string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, subject)
}

// Conflict tags a duplicate creation target.
func Conflict(subject string) error {
	return fmt.Errorf("%w: %s", ErrConflict, subject)
}

// Parse wraps a decoding failure of the document at path.
func Parse(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrParse, path, err)
}

// Details returns the field messages carried by err, if any.
func Details(err error) []string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		out := make([]string, len(verr.Messages))
		copy(out, verr.Messages)
		return out
	}
	return nil
}

// HTTPStatus maps an error onto the status code the HTTP API reports.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNoValidFields):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message renders err for clients. Parse and unclassified errors are reported
// without internal detail.
func Message(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		if len(verr.Messages) == 1 {
			return verr.Messages[0]
		}
		return "Validation failed"
	case errors.Is(err, ErrTraversal):
		return "Invalid path"
	case errors.Is(err, ErrNoValidFields):
		return "No valid fields to update"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrValidation):
		return err.Error()
	default:
		return "Internal server error"
	}
}
