package stress

import (
	"sync/atomic"
	"unsafe"

	"github.com/wippyai/vtable/alloc"
	"github.com/wippyai/vtable/vrc"
)

// SubjectVTable is the table of the objects the harness races on.
type SubjectVTable struct {
	vrc.VTable
	Alive func(self unsafe.Pointer) bool
}

var blocks = alloc.NewTracking(nil)

// Blocks returns the allocator subjects are created in.
func Blocks() *alloc.Tracking {
	return blocks
}

// subject is alive (1) from construction until its destructor has run, after
// which DropInPlace leaves it zeroed.
type subject struct {
	alive uint32
	id    uint64
	drops *atomic.Int64
}

func (p *subject) Drop() {
	if p.drops != nil {
		p.drops.Add(1)
	}
}

var subjectVTable = SubjectVTable{
	VTable: vrc.VTableFor[subject](blocks),
	Alive:  func(self unsafe.Pointer) bool { return (*subject)(self).alive == 1 },
}

func (subject) StaticVTable() *SubjectVTable { return &subjectVTable }

func newSubject(id uint64, drops *atomic.Int64) vrc.VRc[SubjectVTable, subject] {
	return vrc.New[SubjectVTable](subject{alive: 1, id: id, drops: drops})
}
