// Package layout computes memory layouts for control blocks.
//
// A Layout is the pair {Size, Align}. It mirrors the allocation layout the
// platform allocator works with and is the value a capability table returns
// when it destroys a payload in place:
//
//	header := layout.Of[header]()
//	block, dataOffset := header.MustExtend(layout.Of[T]())
//	block = block.PadToAlign()
//
// The same Extend/PadToAlign sequence must be used when a block is created and
// when its final layout is recomputed after destruction; any difference makes
// the allocator free a region of the wrong size.
package layout
