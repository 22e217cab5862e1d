package vrc

import (
	"unsafe"

	"github.com/wippyai/vtable/alloc"
	"github.com/wippyai/vtable/layout"
)

// VTable is the capability table every managed type publishes. Type specific
// tables embed it and add their own function fields:
//
//	type ShapeVTable struct {
//	    vrc.VTable
//	    Area func(self unsafe.Pointer) float64
//	}
//
// DropInPlace destroys the payload at data and returns the layout the payload
// occupied. Dealloc releases the control block given the block layout
// recomputed from that result. Allocator provides the block in the first place
// and must be the allocator Dealloc returns memory to.
type VTable struct {
	DropInPlace func(data unsafe.Pointer) layout.Layout
	Dealloc     func(block unsafe.Pointer, l layout.Layout)
	Allocator   alloc.Allocator
}

// Meta returns the core table. Tables embedding VTable inherit it.
func (vt *VTable) Meta() *VTable {
	return vt
}

// VTableMeta is implemented by pointers to tables that embed VTable.
type VTableMeta interface {
	Meta() *VTable
}

// HasStaticVTable is implemented by types that publish a process-lifetime
// capability table of type V. Each type must return its own table: table
// identity is what Downcast compares.
type HasStaticVTable[V any] interface {
	StaticVTable() *V
}

// Dropper is optionally implemented by payloads that need cleanup when the
// last strong handle is released.
type Dropper interface {
	Drop()
}

// Dyn marks a handle whose payload type has been erased.
type Dyn struct{}

// VTableFor returns the default core table for X: DropInPlace runs X's Drop
// method when *X implements Dropper and zeroes the payload; blocks come from
// and return to a (Heap when nil).
func VTableFor[X any](a alloc.Allocator) VTable {
	a = alloc.OrHeap(a)
	return VTable{
		DropInPlace: DropInPlace[X],
		Dealloc:     a.Free,
		Allocator:   a,
	}
}

// DropInPlace destroys the X stored at data.
func DropInPlace[X any](data unsafe.Pointer) layout.Layout {
	x := (*X)(data)
	if d, ok := any(x).(Dropper); ok {
		d.Drop()
	}
	var zero X
	*x = zero
	return layout.Of[X]()
}
