package sketch

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for the sketch domain. Callers match them with
// errors.Is; messages carry the offending value.
var (
	// ErrValidation marks malformed identifiers, names, or formula syntax.
	ErrValidation = errors.New("validation error")
	// ErrReference marks a dangling variable, dataset, or observation reference.
	ErrReference = errors.New("reference error")
	// ErrVariantMismatch marks field access or mutation on a property of the
	// wrong tagged variant.
	ErrVariantMismatch = errors.New("variant mismatch")
	// ErrState marks a pipeline artifact requested before its producing stage,
	// or an illegal stage transition.
	ErrState = errors.New("state error")
	// ErrNotImplemented marks a property kind without compiled constraint
	// semantics.
	ErrNotImplemented = errors.New("not implemented")
	// ErrEngine marks a failure propagated from the symbolic engine.
	ErrEngine = errors.New("engine error")
	// ErrNotFound marks a missing stored record.
	ErrNotFound = errors.New("not found")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func referencef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrReference, fmt.Sprintf(format, args...))
}

func variantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrVariantMismatch, fmt.Sprintf(format, args...))
}
