package vrc

import "unsafe"

// VRcMapped keeps an erased owner alive and exposes a pinned reference to
// something inside it.
type VRcMapped[V any, M any] struct {
	owner VRc[V, Dyn]
	ptr   *M
}

// IsNil reports whether m owns nothing.
func (m VRcMapped[V, M]) IsNil() bool {
	return m.owner.IsNil()
}

// Get returns the projected value.
func (m VRcMapped[V, M]) Get() *M {
	return m.ptr
}

// AsPinRef returns the projection as a pinned reference, ready for Project.
func (m VRcMapped[V, M]) AsPinRef() Pin[*M] {
	return Pin[*M]{p: m.ptr}
}

// Origin returns a new strong handle to the whole owner.
func (m VRcMapped[V, M]) Origin() VRc[V, Dyn] {
	return m.owner.Clone()
}

// Clone returns another mapped handle with its own owner unit and the same
// projection.
func (m VRcMapped[V, M]) Clone() VRcMapped[V, M] {
	return VRcMapped[V, M]{owner: m.owner.Clone(), ptr: m.ptr}
}

// Downgrade returns a weak mapped handle to the same owner and projection.
func (m VRcMapped[V, M]) Downgrade() VWeakMapped[V, M] {
	return VWeakMapped[V, M]{owner: m.owner.Downgrade(), ptr: unsafe.Pointer(m.ptr)}
}

// Release gives up the owner unit and clears m.
func (m *VRcMapped[V, M]) Release() {
	m.ptr = nil
	m.owner.Release()
}

// PtrEq reports whether both handles share an owner and point at the same
// projected value.
func (m VRcMapped[V, M]) PtrEq(other VRcMapped[V, M]) bool {
	return m.owner.PtrEq(other.owner) && m.ptr == other.ptr
}

// MapMapped consumes m and narrows its projection further. The new handle
// still owns m's original owner.
func MapMapped[V any, M any, R any](m VRcMapped[V, M], project func(Pin[*M]) Pin[*R]) VRcMapped[V, R] {
	p := project(m.AsPinRef())
	return VRcMapped[V, R]{owner: m.owner, ptr: p.p}
}

// IntoDynMapped attaches the projected type's own capability table so the
// projection can be used polymorphically. m is not consumed; the result holds
// its own owner unit.
func IntoDynMapped[MV any, V any, M HasStaticVTable[MV]](m VRcMapped[V, M]) VRcMappedDyn[V, MV] {
	var zero M
	return VRcMappedDyn[V, MV]{
		owner:  m.owner.Clone(),
		ptr:    unsafe.Pointer(m.ptr),
		vtable: zero.StaticVTable(),
	}
}

// VWeakMapped is the weak counterpart of VRcMapped. The projected pointer is
// only dereferenced after a successful Upgrade.
type VWeakMapped[V any, M any] struct {
	owner VWeak[V, Dyn]
	ptr   unsafe.Pointer
}

// IsNil reports whether w is detached.
func (w VWeakMapped[V, M]) IsNil() bool {
	return w.owner.IsNil()
}

// Upgrade rebuilds the mapped handle around the same projected pointer, which
// is still valid because the owner's payload never moves.
func (w VWeakMapped[V, M]) Upgrade() (VRcMapped[V, M], bool) {
	owner, ok := w.owner.Upgrade()
	if !ok {
		return VRcMapped[V, M]{}, false
	}
	return VRcMapped[V, M]{owner: owner, ptr: (*M)(w.ptr)}, true
}

// Clone returns another weak mapped handle with its own weak unit.
func (w VWeakMapped[V, M]) Clone() VWeakMapped[V, M] {
	return VWeakMapped[V, M]{owner: w.owner.Clone(), ptr: w.ptr}
}

// Release gives up the weak owner unit and clears w.
func (w *VWeakMapped[V, M]) Release() {
	w.ptr = nil
	w.owner.Release()
}
