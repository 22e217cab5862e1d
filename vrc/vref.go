package vrc

import "unsafe"

// VRef is a non-owning polymorphic reference: a payload pointer plus the
// capability table that knows how to operate on it.
type VRef[V any] struct {
	vtable *V
	ptr    unsafe.Pointer
}

// RefOf builds a VRef to x using X's static table. The caller keeps x alive.
func RefOf[V any, X HasStaticVTable[V]](x *X) VRef[V] {
	return VRef[V]{vtable: (*x).StaticVTable(), ptr: unsafe.Pointer(x)}
}

// VTable returns the table to call through, passing Pointer as self.
func (r VRef[V]) VTable() *V {
	return r.vtable
}

// Pointer returns the payload address, the self argument of every table function.
func (r VRef[V]) Pointer() unsafe.Pointer {
	return r.ptr
}

// IsNil reports whether r refers to nothing.
func (r VRef[V]) IsNil() bool {
	return r.ptr == nil
}

// DowncastRef returns the concrete payload when r was made with X's table.
func DowncastRef[V any, X HasStaticVTable[V]](r VRef[V]) (*X, bool) {
	var zero X
	if r.ptr == nil || r.vtable != zero.StaticVTable() {
		return nil, false
	}
	return (*X)(r.ptr), true
}
