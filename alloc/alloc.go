package alloc

import (
	"unsafe"

	"github.com/wippyai/vtable/errors"
	"github.com/wippyai/vtable/layout"
)

// Type describes one control block allocation: the layout the block occupies
// and a constructor returning zeroed memory of that layout. The constructor
// exists because Go memory that will hold pointers must be allocated with its
// real type so the garbage collector can scan it.
type Type struct {
	New    func() unsafe.Pointer
	Name   string
	Layout layout.Layout
}

// Allocator hands out control blocks and takes them back.
//
// Free is called exactly once per block, with the layout recomputed after the
// payload was destroyed. That layout must equal the one the block was
// allocated with.
type Allocator interface {
	Alloc(t *Type) unsafe.Pointer
	Free(p unsafe.Pointer, l layout.Layout)
}

// Heap allocates from the Go heap. Free is a no-op: the garbage collector
// reclaims the block once nothing references it.
var Heap Allocator = heapAllocator{}

type heapAllocator struct{}

func (heapAllocator) Alloc(t *Type) unsafe.Pointer {
	p := t.New()
	if p == nil {
		panic(errors.AllocationFailed(t.Name, t.Layout.Size, t.Layout.Align))
	}
	return p
}

func (heapAllocator) Free(unsafe.Pointer, layout.Layout) {}

// OrHeap returns a, or Heap when a is nil.
func OrHeap(a Allocator) Allocator {
	if a == nil {
		return Heap
	}
	return a
}
