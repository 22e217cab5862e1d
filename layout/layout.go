package layout

import (
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/wippyai/vtable/errors"
)

// Layout is a {size, alignment} pair describing a region of memory.
// It has a fixed C-like shape so it can cross an ABI boundary unchanged.
type Layout struct {
	Size  uintptr
	Align uintptr
}

// Of returns the layout of T as laid out by the Go compiler.
func Of[T any]() Layout {
	var zero T
	return Layout{Size: unsafe.Sizeof(zero), Align: unsafe.Alignof(zero)}
}

// New validates size and align. Align must be a non-zero power of two and
// size rounded up to align must not overflow.
func New(size, align uintptr) (Layout, error) {
	if align == 0 || bits.OnesCount64(uint64(align)) != 1 {
		return Layout{}, errors.InvalidLayout(size, align, "align must be a power of two")
	}
	if size > ^uintptr(0)-(align-1) {
		return Layout{}, errors.InvalidLayout(size, align, "size overflows when padded to align")
	}
	return Layout{Size: size, Align: align}, nil
}

// Must is New that panics on an invalid layout.
func Must(size, align uintptr) Layout {
	l, err := New(size, align)
	if err != nil {
		panic(err)
	}
	return l
}

// AlignTo rounds offset up to the next multiple of align.
func AlignTo(offset, align uintptr) uintptr {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// SafeAdd returns a+b and false on overflow.
func SafeAdd(a, b uintptr) (uintptr, bool) {
	if a > ^uintptr(0)-b {
		return 0, false
	}
	return a + b, true
}

// SafeMul returns a*b and false on overflow.
func SafeMul(a, b uintptr) (uintptr, bool) {
	if b != 0 && a > ^uintptr(0)/b {
		return 0, false
	}
	return a * b, true
}

// PadToAlign rounds the size up to a multiple of the alignment.
func (l Layout) PadToAlign() Layout {
	return Layout{Size: AlignTo(l.Size, l.Align), Align: l.Align}
}

// Extend appends next after l, returning the combined layout and the offset
// at which next starts. The result is not padded; call PadToAlign for the
// final size of a record.
func (l Layout) Extend(next Layout) (Layout, uintptr, error) {
	align := max(l.Align, next.Align)
	offset := AlignTo(l.Size, next.Align)
	if offset < l.Size {
		return Layout{}, 0, errors.InvalidLayout(l.Size, next.Align, "offset overflow")
	}
	size, ok := SafeAdd(offset, next.Size)
	if !ok {
		return Layout{}, 0, errors.InvalidLayout(offset, next.Align, "size overflow")
	}
	return Layout{Size: size, Align: align}, offset, nil
}

// MustExtend is Extend for layouts already known to be valid.
func (l Layout) MustExtend(next Layout) (Layout, uintptr) {
	out, offset, err := l.Extend(next)
	if err != nil {
		panic(err)
	}
	return out, offset
}

// Max returns the layout large enough and aligned enough for both a and b.
func Max(a, b Layout) Layout {
	return Layout{Size: max(a.Size, b.Size), Align: max(a.Align, b.Align)}
}

// IsZero reports whether l is the zero value.
func (l Layout) IsZero() bool {
	return l.Size == 0 && l.Align == 0
}

func (l Layout) String() string {
	return fmt.Sprintf("{size=%d align=%d}", l.Size, l.Align)
}
