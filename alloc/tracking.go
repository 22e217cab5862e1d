package alloc

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/wippyai/vtable/errors"
	"github.com/wippyai/vtable/layout"
)

var (
	blocksAllocated = metrics.NewCounter("vrc_blocks_allocated_total")
	blocksFreed     = metrics.NewCounter("vrc_blocks_freed_total")
	bytesAllocated  = metrics.NewCounter("vrc_bytes_allocated_total")
	blocksLive      = metrics.NewCounter("vrc_blocks_live")
)

// Block is a live allocation known to a Tracking allocator.
type Block struct {
	ptr    unsafe.Pointer
	Type   string
	Addr   uintptr
	Layout layout.Layout
}

// Pointer returns the block address.
func (b Block) Pointer() unsafe.Pointer {
	return b.ptr
}

// Stats is a snapshot of a Tracking allocator's counters.
type Stats struct {
	Allocs    uint64
	Frees     uint64
	Live      int
	LiveBytes uintptr
}

// Tracking wraps another allocator and records every live block, ordered by
// address. Free panics on blocks that are not live and on layouts that differ
// from the allocation layout, so tests can assert that each block is freed
// exactly once and with the right size.
type Tracking struct {
	next      Allocator
	live      *btree.BTreeG[Block]
	allocs    atomic.Uint64
	frees     atomic.Uint64
	liveBytes uintptr
	mu        sync.Mutex
}

// NewTracking wraps next (Heap when nil).
func NewTracking(next Allocator) *Tracking {
	return &Tracking{
		next: OrHeap(next),
		live: btree.NewG(8, func(a, b Block) bool {
			return a.Addr < b.Addr
		}),
	}
}

// Alloc allocates through the wrapped allocator and records the block.
func (t *Tracking) Alloc(typ *Type) unsafe.Pointer {
	p := t.next.Alloc(typ)
	b := Block{
		ptr:    p,
		Type:   typ.Name,
		Addr:   uintptr(p),
		Layout: typ.Layout,
	}

	t.mu.Lock()
	t.live.ReplaceOrInsert(b)
	t.liveBytes += typ.Layout.Size
	t.mu.Unlock()

	t.allocs.Add(1)
	blocksAllocated.Inc()
	blocksLive.Inc()
	bytesAllocated.Add(int(typ.Layout.Size))

	if ce := Logger().Check(zap.DebugLevel, "block allocated"); ce != nil {
		ce.Write(
			zap.String("type", typ.Name),
			zap.Uintptr("addr", b.Addr),
			zap.Uintptr("size", typ.Layout.Size),
			zap.Uintptr("align", typ.Layout.Align),
		)
	}
	return p
}

// Free releases a block previously returned by Alloc.
func (t *Tracking) Free(p unsafe.Pointer, l layout.Layout) {
	key := Block{Addr: uintptr(p)}

	t.mu.Lock()
	b, ok := t.live.Get(key)
	if !ok {
		t.mu.Unlock()
		panic(errors.DoubleFree(key.Addr))
	}
	if b.Layout != l {
		t.mu.Unlock()
		panic(errors.LayoutMismatch(b.Type, b.Layout.String(), l.String()))
	}
	t.live.Delete(key)
	t.liveBytes -= l.Size
	t.mu.Unlock()

	t.frees.Add(1)
	blocksFreed.Inc()
	blocksLive.Dec()

	if ce := Logger().Check(zap.DebugLevel, "block freed"); ce != nil {
		ce.Write(
			zap.String("type", b.Type),
			zap.Uintptr("addr", b.Addr),
			zap.Uintptr("size", l.Size),
		)
	}
	t.next.Free(p, l)
}

// IsLive reports whether p is an allocated, not yet freed block.
func (t *Tracking) IsLive(p unsafe.Pointer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live.Has(Block{Addr: uintptr(p)})
}

// Live returns the live blocks in ascending address order.
func (t *Tracking) Live() []Block {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Block, 0, t.live.Len())
	t.live.Ascend(func(b Block) bool {
		out = append(out, b)
		return true
	})
	return out
}

// Stats returns a snapshot of the allocator counters.
func (t *Tracking) Stats() Stats {
	t.mu.Lock()
	live, bytes := t.live.Len(), t.liveBytes
	t.mu.Unlock()

	return Stats{
		Allocs:    t.allocs.Load(),
		Frees:     t.frees.Load(),
		Live:      live,
		LiveBytes: bytes,
	}
}

// ReportLeaks logs every live block at warn level and returns how many there were.
func (t *Tracking) ReportLeaks() int {
	blocks := t.Live()
	for _, b := range blocks {
		Logger().Warn("block still live",
			zap.String("type", b.Type),
			zap.Uintptr("addr", b.Addr),
			zap.Stringer("layout", b.Layout),
		)
	}
	return len(blocks)
}
