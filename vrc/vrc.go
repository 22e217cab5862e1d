package vrc

import (
	"unsafe"

	"github.com/wippyai/vtable/alloc"
	"github.com/wippyai/vtable/errors"
)

// VRc is a strong handle to a value of type X published with capability table
// V. X is Dyn once the handle has been type erased; the runtime
// representation is the same in both cases.
//
// A VRc owns one unit of the strong count. Copying the struct does not clone
// it: use Clone, and give every clone its own Release.
type VRc[V any, X any] struct {
	inner *header
}

// New moves x into a freshly allocated control block and returns the only
// strong handle to it. V is usually the only type argument callers spell:
//
//	h := vrc.New[ShapeVTable](Square{Side: 2})
func New[V any, PV interface {
	*V
	VTableMeta
}, X HasStaticVTable[V]](x X) VRc[V, X] {
	vt := x.StaticVTable()
	if vt == nil {
		panic(errors.InvalidVTable(typeName[X](), "StaticVTable returned nil"))
	}
	meta := PV(vt).Meta()
	if meta.DropInPlace == nil || meta.Dealloc == nil {
		panic(errors.InvalidVTable(typeName[X](), "DropInPlace and Dealloc are required"))
	}

	info := infoFor[X]()
	p := alloc.OrHeap(meta.Allocator).Alloc(&info.typ)

	b := (*block[X])(p)
	b.vtable = unsafe.Pointer(vt)
	b.meta = meta
	b.dataOffset = info.dataOffset
	b.data = x
	b.weak.Store(1)
	b.strong.Store(1)

	return VRc[V, X]{inner: &b.header}
}

// FromRaw takes back the strong unit given away by IntoRaw. X must be the
// payload type p was created with, or Dyn.
func FromRaw[V any, X any](p unsafe.Pointer) VRc[V, X] {
	return VRc[V, X]{inner: (*header)(p)}
}

// IsNil reports whether h refers to nothing (the zero value or a released
// handle).
func (h VRc[V, X]) IsNil() bool {
	return h.inner == nil
}

// Clone returns another strong handle to the same object.
func (h VRc[V, X]) Clone() VRc[V, X] {
	if h.inner == nil {
		return h
	}
	h.inner.retainStrong()
	return VRc[V, X]{inner: h.inner}
}

// Release gives up h's strong unit and clears h. The last release destroys the
// payload; the block itself is deallocated once no weak handle remains.
func (h *VRc[V, X]) Release() {
	inner := h.inner
	if inner == nil {
		return
	}
	h.inner = nil
	inner.releaseStrong()
}

// Get returns the payload. The pointer is valid while h is held and must only be
// used for reads.
func (h VRc[V, X]) Get() *X {
	return (*X)(h.inner.data())
}

// AsPinRef returns the payload as a pinned reference.
func (h VRc[V, X]) AsPinRef() Pin[*X] {
	return Pin[*X]{p: h.Get()}
}

// Borrow returns a non-owning reference pairing the payload with its table.
func (h VRc[V, X]) Borrow() VRef[V] {
	return VRef[V]{vtable: (*V)(h.inner.vtable), ptr: h.inner.data()}
}

// BorrowPin returns Borrow as a pinned reference, ready for ProjectRef.
func (h VRc[V, X]) BorrowPin() Pin[VRef[V]] {
	return Pin[VRef[V]]{p: h.Borrow()}
}

// VTable returns the capability table the object was created with.
func (h VRc[V, X]) VTable() *V {
	return (*V)(h.inner.vtable)
}

// Downgrade returns a weak handle to the same object.
func (h VRc[V, X]) Downgrade() VWeak[V, X] {
	h.inner.retainWeak()
	return VWeak[V, X]{inner: h.inner}
}

// StrongCount returns the number of strong handles, h included.
func (h VRc[V, X]) StrongCount() int {
	return int(h.inner.strong.Load())
}

// WeakCount returns the number of weak handles, not counting the reference
// held collectively by the strong handles.
func (h VRc[V, X]) WeakCount() int {
	return h.inner.weakCount()
}

// PtrEq reports whether both handles refer to the same control block.
func (h VRc[V, X]) PtrEq(other VRc[V, X]) bool {
	return h.inner == other.inner
}

// Pointer returns the control block address without affecting ownership.
func (h VRc[V, X]) Pointer() unsafe.Pointer {
	return unsafe.Pointer(h.inner)
}

// IntoRaw hands h's strong unit to the caller as an opaque pointer and clears
// h. Exactly one FromRaw must follow.
func (h *VRc[V, X]) IntoRaw() unsafe.Pointer {
	p := unsafe.Pointer(h.inner)
	h.inner = nil
	return p
}

// IntoDyn erases the payload type. No count changes: the result owns h's unit,
// so h must not be released afterwards.
func IntoDyn[V any, X any](h VRc[V, X]) VRc[V, Dyn] {
	return VRc[V, Dyn]{inner: h.inner}
}

// Downcast recovers the concrete type of an erased handle by comparing table
// identity. On success the result owns h's unit; on failure h is untouched.
func Downcast[V any, X HasStaticVTable[V]](h VRc[V, Dyn]) (VRc[V, X], bool) {
	var zero X
	if h.inner == nil || h.inner.vtable != unsafe.Pointer(zero.StaticVTable()) {
		return VRc[V, X]{}, false
	}
	return VRc[V, X]{inner: h.inner}, true
}

// Map consumes h and projects it onto a sub-object of the payload. project runs
// exactly once, now.
func Map[V any, X any, M any](h VRc[V, X], project func(Pin[*X]) Pin[*M]) VRcMapped[V, M] {
	p := project(h.AsPinRef())
	return VRcMapped[V, M]{owner: IntoDyn(h), ptr: p.p}
}

// MapDyn is Map for erased handles: the projection sees the payload through
// its capability table.
func MapDyn[V any, M any](h VRc[V, Dyn], project func(Pin[VRef[V]]) Pin[*M]) VRcMapped[V, M] {
	p := project(h.BorrowPin())
	return VRcMapped[V, M]{owner: h, ptr: p.p}
}
