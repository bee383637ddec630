// Package errors provides structured error types for the ownership runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: path, Go type name, offending value and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAllocate, errors.KindAllocation).
//		GoType("*rc.objectBlock[main.Node]").
//		Detail("budget of %d bytes exhausted", limit).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.AllocationFailed(errors.PhaseAdopt, 48, 8, cause)
//	err := errors.NoOwner("main.Node")
//
// All errors implement the standard error interface and support errors.Is/As.
// Sentinels such as ErrNoOwner match any error with the same phase and kind.
package errors
