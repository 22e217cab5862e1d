package vrc

import (
	"github.com/wippyai/vtable/errors"
)

// Pin holds a reference whose target is guaranteed not to move or be mutated
// through this package for as long as the owning handle is alive. Pins are
// handed out by handles; Project narrows one to a field.
type Pin[P any] struct {
	p P
}

// Get returns the pinned reference.
func (p Pin[P]) Get() P {
	return p.p
}

// PinStatic pins a value that lives for the rest of the process, such as a
// package level variable.
func PinStatic[T any](p *T) Pin[*T] {
	return Pin[*T]{p: p}
}

// Project narrows a pinned reference to a sub-object. field must return a
// pointer into *T (or into memory kept alive by it).
func Project[T any, F any](p Pin[*T], field func(*T) *F) Pin[*F] {
	f := field(p.p)
	if f == nil {
		panic(errors.InvalidInput(errors.PhaseRuntime, "projection returned nil"))
	}
	return Pin[*F]{p: f}
}

// ProjectRef narrows a pinned polymorphic reference, typically by calling
// through its capability table.
func ProjectRef[V any, F any](r Pin[VRef[V]], field func(VRef[V]) *F) Pin[*F] {
	f := field(r.p)
	if f == nil {
		panic(errors.InvalidInput(errors.PhaseRuntime, "projection returned nil"))
	}
	return Pin[*F]{p: f}
}
