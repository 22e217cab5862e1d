// Package errors provides structured error types for the vtable module.
//
// Errors are categorized by Phase (which handle operation failed) and Kind
// (error category). The Error type carries the offending Go type, a path,
// a detail message and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseExport, errors.KindInvalidHandle).
//		GoType("element.VTable").
//		Value(handle).
//		Detail("handle %d was dropped", handle).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidHandle(errors.PhaseExport, 7)
//	err := errors.Underflow("strong")
//
// The handle core never returns errors: fatal conditions (count overflow,
// releasing an unretained handle, inconsistent capability tables) panic with
// an *Error so recovered values can still be inspected with errors.Is/As.
package errors
