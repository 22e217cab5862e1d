package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which handle operation produced the error
type Phase string

const (
	PhaseAlloc   Phase = "alloc"   // control block allocation
	PhaseLayout  Phase = "layout"  // layout arithmetic
	PhaseClone   Phase = "clone"   // strong/weak count increments
	PhaseRelease Phase = "release" // strong/weak count decrements
	PhaseUpgrade Phase = "upgrade" // weak to strong
	PhaseExport  Phase = "export"  // handle table at the ABI boundary
	PhaseHost    Phase = "host"    // wasm host module
	PhaseConfig  Phase = "config"  // configuration loading
	PhaseRuntime Phase = "runtime" // everything else
)

// Kind categorizes the error
type Kind string

const (
	KindAllocation     Kind = "allocation"
	KindInvalidLayout  Kind = "invalid_layout"
	KindLayoutMismatch Kind = "layout_mismatch"
	KindOverflow       Kind = "overflow"
	KindUnderflow      Kind = "underflow"
	KindDoubleFree     Kind = "double_free"
	KindInvalidVTable  Kind = "invalid_vtable"
	KindInvalidHandle  Kind = "invalid_handle"
	KindBorrowed       Kind = "borrowed"
	KindClosed         Kind = "closed"
	KindTypeMismatch   Kind = "type_mismatch"
	KindNotFound       Kind = "not_found"
	KindInvalidInput   Kind = "invalid_input"
	KindRegistration   Kind = "registration"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the path of the offending element
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// AllocationFailed creates an allocation failure error
func AllocationFailed(goType string, size, align uintptr) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindAllocation,
		GoType: goType,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// InvalidLayout creates an invalid layout error
func InvalidLayout(size, align uintptr, detail string) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindInvalidLayout,
		Detail: fmt.Sprintf("size %d align %d: %s", size, align, detail),
		Value:  align,
	}
}

// LayoutMismatch reports a free whose layout differs from the one used at allocation
func LayoutMismatch(goType string, want, got string) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindLayoutMismatch,
		GoType: goType,
		Detail: fmt.Sprintf("allocated as %s, freed as %s", want, got),
	}
}

// DoubleFree reports a block freed twice or never allocated
func DoubleFree(addr uintptr) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindDoubleFree,
		Detail: fmt.Sprintf("block %#x is not live", addr),
		Value:  addr,
	}
}

// Overflow creates a reference count overflow error
func Overflow(phase Phase, counter string, value uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   []string{counter},
		Detail: fmt.Sprintf("%s count overflow at %d", counter, value),
		Value:  value,
	}
}

// Underflow creates an error for a release that was never retained
func Underflow(counter string) *Error {
	return &Error{
		Phase:  PhaseRelease,
		Kind:   KindUnderflow,
		Path:   []string{counter},
		Detail: fmt.Sprintf("%s count released more times than retained", counter),
	}
}

// InvalidVTable creates an error for a capability table that cannot manage a type
func InvalidVTable(goType, detail string) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindInvalidVTable,
		GoType: goType,
		Detail: detail,
	}
}

// InvalidHandle creates an invalid handle error
func InvalidHandle(phase Phase, handle uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("handle %d is not valid", handle),
		Value:  handle,
	}
}

// Borrowed reports an attempt to drop or move a handle with outstanding borrows
func Borrowed(phase Phase, handle uint32, borrows uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBorrowed,
		Detail: fmt.Sprintf("handle %d has %d outstanding borrows", handle, borrows),
		Value:  handle,
	}
}

// Closed reports use of a closed table or module
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		GoType: goType,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a host function registration error
func Registration(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
