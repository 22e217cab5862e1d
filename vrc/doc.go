// Package vrc implements reference counted handles whose dynamic behaviour is
// described by a manually published capability table instead of Go interfaces.
//
// A managed type publishes a table that embeds VTable and returns it from
// StaticVTable:
//
//	type ShapeVTable struct {
//	    vrc.VTable
//	    Area func(self unsafe.Pointer) float64
//	}
//
//	var squareVTable = ShapeVTable{
//	    VTable: vrc.VTableFor[Square](nil),
//	    Area:   func(self unsafe.Pointer) float64 { s := (*Square)(self); return s.Side * s.Side },
//	}
//
//	func (Square) StaticVTable() *ShapeVTable { return &squareVTable }
//
// New moves a value into a control block holding the table reference, a
// strong count, a weak count and the payload. Every handle is one pointer to
// that block, so it can cross an ABI boundary as an opaque value (see IntoRaw
// and the resource package).
//
// Ownership is explicit. Clone adds a strong unit and Release gives one back;
// copying a handle struct does neither. When the strong count reaches zero the
// payload is destroyed through DropInPlace. The block is returned to the
// table's allocator through Dealloc only once the weak count also reaches zero.
// Strong handles collectively hold one weak unit, so the weak count cannot
// reach zero first.
//
// Handles never expose the payload for mutation. Its address is fixed for the
// life of the block, which is what makes Pin, Map and the mapped handles
// sound: a projection taken once stays valid as long as its owner is held,
// and a weak mapped handle can hand the same pointer out again after Upgrade.
//
// All count operations use sync/atomic and are safe for concurrent use.
// Upgrade is a compare-and-swap loop, so it never revives an object whose last
// strong handle is being released concurrently.
package vrc
