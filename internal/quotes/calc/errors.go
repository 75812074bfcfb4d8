package calc

import "fmt"

// CalculationError reports a phase that met an invalid numeric precondition.
// The per-product calculation aborts; no partial result is produced.
type CalculationError struct {
	Phase  int
	Field  string
	Reason string
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculation phase %d: %s: %s", e.Phase, e.Field, e.Reason)
}

func calcErr(phase int, field, reason string) *CalculationError {
	return &CalculationError{Phase: phase, Field: field, Reason: reason}
}
