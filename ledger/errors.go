package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvariantViolation marks mutations that would break a draft invariant.
	ErrInvariantViolation = errors.New("ledger: invariant violation")
	// ErrLastItem is returned when removing the only remaining line item.
	ErrLastItem = fmt.Errorf("%w: a draft must keep at least one line item", ErrInvariantViolation)

	ErrItemNotFound       = errors.New("ledger: line item not found")
	ErrNotEditable        = errors.New("ledger: draft is not editable")
	ErrSubmissionInFlight = errors.New("ledger: submission already in flight")
	ErrInvalidStatus      = errors.New("ledger: invalid invoice status")
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field-level problems. A mutation that fails
// validation leaves the draft untouched.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "ledger: validation failed: " + strings.Join(parts, "; ")
}

// Add records a problem with field.
func (e *ValidationError) Add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// Err returns nil when nothing was collected so callers never see a typed nil.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Map flattens the field errors, keyed by field name.
func (e *ValidationError) Map() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Field] = f.Message
	}
	return out
}

// SubmissionError wraps a failed or timed out backend call. The draft is back
// in the editing state with its items intact, so the call can be retried.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return "ledger: submission failed: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Retryable() bool { return true }
