package vrc

import "unsafe"

// VRcMappedDyn is a mapped handle whose projection carries its own capability
// table MV, independent of the owner's table V.
type VRcMappedDyn[V any, MV any] struct {
	owner  VRc[V, Dyn]
	ptr    unsafe.Pointer
	vtable *MV
}

// IsNil reports whether m owns nothing.
func (m VRcMappedDyn[V, MV]) IsNil() bool {
	return m.owner.IsNil()
}

// Borrow returns the projection as a polymorphic reference.
func (m VRcMappedDyn[V, MV]) Borrow() VRef[MV] {
	return VRef[MV]{vtable: m.vtable, ptr: m.ptr}
}

// BorrowPin returns Borrow as a pinned reference.
func (m VRcMappedDyn[V, MV]) BorrowPin() Pin[VRef[MV]] {
	return Pin[VRef[MV]]{p: m.Borrow()}
}

// Origin returns a new strong handle to the whole owner.
func (m VRcMappedDyn[V, MV]) Origin() VRc[V, Dyn] {
	return m.owner.Clone()
}

// Clone returns another handle with its own owner unit.
func (m VRcMappedDyn[V, MV]) Clone() VRcMappedDyn[V, MV] {
	return VRcMappedDyn[V, MV]{owner: m.owner.Clone(), ptr: m.ptr, vtable: m.vtable}
}

// Downgrade returns a weak handle that keeps the projection's table.
func (m VRcMappedDyn[V, MV]) Downgrade() VWeakMappedDyn[V, MV] {
	return VWeakMappedDyn[V, MV]{owner: m.owner.Downgrade(), ptr: m.ptr, vtable: m.vtable}
}

// Release gives up the owner unit and clears m.
func (m *VRcMappedDyn[V, MV]) Release() {
	m.ptr = nil
	m.vtable = nil
	m.owner.Release()
}

// VWeakMappedDyn is the weak counterpart of VRcMappedDyn. The projected
// pointer is only handed out again after a successful Upgrade.
type VWeakMappedDyn[V any, MV any] struct {
	owner  VWeak[V, Dyn]
	ptr    unsafe.Pointer
	vtable *MV
}

// IsNil reports whether w is detached.
func (w VWeakMappedDyn[V, MV]) IsNil() bool {
	return w.owner.IsNil()
}

// Upgrade rebuilds the strong handle around the same projection and table
// if the owner's payload has not been destroyed.
func (w VWeakMappedDyn[V, MV]) Upgrade() (VRcMappedDyn[V, MV], bool) {
	owner, ok := w.owner.Upgrade()
	if !ok {
		return VRcMappedDyn[V, MV]{}, false
	}
	return VRcMappedDyn[V, MV]{owner: owner, ptr: w.ptr, vtable: w.vtable}, true
}

// Clone returns another weak handle with its own weak unit.
func (w VWeakMappedDyn[V, MV]) Clone() VWeakMappedDyn[V, MV] {
	return VWeakMappedDyn[V, MV]{owner: w.owner.Clone(), ptr: w.ptr, vtable: w.vtable}
}

// Release gives up the weak owner unit and clears w.
func (w *VWeakMappedDyn[V, MV]) Release() {
	w.ptr = nil
	w.vtable = nil
	w.owner.Release()
}
