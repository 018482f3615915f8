package paye

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned when the salary is not a finite positive
	// number or the employment type is unknown. Not retryable: the caller
	// must fix the input.
	ErrInvalidInput = errors.New("invalid assessment input")

	// ErrInvalidSchedule is returned when a rate schedule is malformed.
	ErrInvalidSchedule = errors.New("invalid rate schedule")
)

// Input field names, matching the form/API field names.
const (
	FieldSalary         = "salary"
	FieldEmploymentType = "employment_type"
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidInputError names the offending field so the presentation layer can
// show a field-level message.
type InvalidInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// IsInvalidInput returns true if err is (or wraps) an input contract violation.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func scheduleError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSchedule, fmt.Sprintf(format, args...))
}
