package vars

import "fmt"

// ValidationError reports a required variable that could not be resolved or a
// raw value that could not be coerced. Row is the 1-based product row, or 0
// for quote-level variables.
type ValidationError struct {
	Field  string
	Row    int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s for product row %d: %s", e.Field, e.Row, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validationErr(field string, row int, reason string) *ValidationError {
	return &ValidationError{Field: field, Row: row, Reason: reason}
}
