// Package vtable is the root of a small family of reference counted handles
// whose payload is reached through a caller defined capability table.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	vtable/
//	├── vrc/         VRc, VWeak and the mapped handle variants
//	├── layout/      Size and alignment arithmetic for control blocks
//	├── alloc/       Allocators behind the control blocks, with leak tracking
//	├── errors/      Structured error types shared by every package
//	├── resource/    32-bit handle tables for passing handles across boundaries
//	├── host/        wazero host module exposing a handle table to guests
//	├── element/     Element tree built on strong children and weak parents
//	├── stress/      Concurrency stress runs and lifecycle scenarios
//	└── cmd/vrc/     Command line front end for stress runs and scenarios
//
// # Quick Start
//
// Publish a capability table and create a handle:
//
//	type ShapeVTable struct {
//		vrc.VTable
//		Area func(self unsafe.Pointer) float64
//	}
//
//	var squareVTable = ShapeVTable{
//		VTable: vrc.VTableFor[Square](nil),
//		Area:   func(self unsafe.Pointer) float64 { s := (*Square)(self); return s.Side * s.Side },
//	}
//
//	func (Square) StaticVTable() *ShapeVTable { return &squareVTable }
//
//	h := vrc.New[ShapeVTable](Square{Side: 2})
//	defer h.Release()
//
//	w := h.Downgrade()
//	defer w.Release()
//
// Erase the payload type and call through the table:
//
//	d := vrc.IntoDyn(h.Clone())
//	defer d.Release()
//	r := d.Borrow()
//	area := r.VTable().Area(r.Pointer())
//
// # Ownership
//
// Handles are plain values. Copying one does not add a reference; Clone does,
// and every handle obtained from New, Clone, Downgrade or Upgrade needs exactly
// one Release. Release clears the handle it is called on.
package vtable
