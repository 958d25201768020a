// Package errors provides structured error types for msgwire.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes the offending field path and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseValidate, errors.KindInvalidEnum).
//		Path("elements", "1", "rows", "0").
//		Detail("unknown style %d", style).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.FieldTooLarge(path, size, limit)
//	err := errors.Unterminated(ptr, memSize)
//
// Match categories with errors.Is against the exported targets:
//
//	if errors.Is(err, msgerrors.ErrValidation) { ... }
//	if errors.Is(err, msgerrors.ErrFieldTooLarge) { ... }
package errors
