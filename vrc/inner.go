package vrc

import (
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/wippyai/vtable/alloc"
	"github.com/wippyai/vtable/errors"
	"github.com/wippyai/vtable/layout"
)

// maxRefCount bounds both counters. Reaching it is treated as fatal.
const maxRefCount = 1 << 31

// header is the payload independent part of a control block. Handles of any
// static type point at it, so the payload is found through dataOffset rather
// than through a typed field.
type header struct {
	vtable unsafe.Pointer // *V
	meta   *VTable
	strong atomic.Uint32
	// weak counts VWeak handles plus one held collectively by all VRc handles.
	weak       atomic.Uint32
	dataOffset uint16
	// layout is written once, by the release that destroys the payload, and
	// only when explicit weak handles still exist.
	layout layout.Layout
}

type block[X any] struct {
	header
	data X
}

func (c *header) data() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(c), c.dataOffset)
}

// blockInfo caches the allocation type of block[X].
type blockInfo struct {
	typ        alloc.Type
	dataOffset uint16
}

var blockInfos sync.Map // reflect.Type -> *blockInfo

// blockLayout must stay the single place where a block layout is derived from a
// payload layout: construction and destruction both go through it.
//
// A zero-size payload is the trailing field of block[X], and the compiler pads
// such a field with one byte so its address stays inside the allocation.
func blockLayout(payload layout.Layout) (layout.Layout, uintptr) {
	l, offset := layout.Of[header]().MustExtend(payload)
	if payload.Size == 0 {
		l.Size++
	}
	return l.PadToAlign(), offset
}

func infoFor[X any]() *blockInfo {
	rt := reflect.TypeFor[X]()
	if v, ok := blockInfos.Load(rt); ok {
		return v.(*blockInfo)
	}

	l, offset := blockLayout(layout.Of[X]())

	var b block[X]
	if offset != unsafe.Offsetof(b.data) || l != layout.Of[block[X]]() {
		panic(errors.InvalidVTable(rt.String(), "computed block layout disagrees with the compiler"))
	}
	if offset > math.MaxUint16 {
		panic(errors.InvalidVTable(rt.String(), "payload offset does not fit in 16 bits"))
	}

	info := &blockInfo{
		typ: alloc.Type{
			Name:   rt.String(),
			Layout: l,
			New: func() unsafe.Pointer {
				return unsafe.Pointer(new(block[X]))
			},
		},
		dataOffset: uint16(offset),
	}
	v, _ := blockInfos.LoadOrStore(rt, info)
	return v.(*blockInfo)
}

func (c *header) retainStrong() {
	if n := c.strong.Add(1); n >= maxRefCount {
		panic(errors.Overflow(errors.PhaseClone, "strong", n))
	}
}

func (c *header) retainWeak() {
	if n := c.weak.Add(1); n >= maxRefCount {
		panic(errors.Overflow(errors.PhaseClone, "weak", n))
	}
}

// tryRetainStrong increments the strong count unless it is zero. The load and
// the increment are one compare-and-swap so a concurrent final release can
// never be resurrected.
func (c *header) tryRetainStrong() bool {
	for {
		n := c.strong.Load()
		if n == 0 {
			return false
		}
		if n+1 >= maxRefCount {
			panic(errors.Overflow(errors.PhaseUpgrade, "strong", n))
		}
		if c.strong.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (c *header) releaseStrong() {
	prev := c.strong.Add(^uint32(0)) + 1
	if prev == 0 {
		c.strong.Add(1)
		panic(errors.Underflow("strong"))
	}
	if prev != 1 {
		return
	}

	payload := c.meta.DropInPlace(c.data())
	l, _ := blockLayout(payload)

	// No other handle can observe the payload once strong is zero; the
	// implicit weak reference we still hold keeps weak handles from freeing
	// the block while the layout is written.
	if c.weak.Load() > 1 {
		c.layout = l
	}
	if c.weak.Add(^uint32(0)) == 0 {
		c.meta.Dealloc(unsafe.Pointer(c), l)
	}
}

func (c *header) releaseWeak() {
	prev := c.weak.Add(^uint32(0)) + 1
	if prev == 0 {
		c.weak.Add(1)
		panic(errors.Underflow("weak"))
	}
	if prev == 1 {
		c.meta.Dealloc(unsafe.Pointer(c), c.layout)
	}
}

// weakCount returns the number of explicit weak handles.
func (c *header) weakCount() int {
	w := c.weak.Load()
	if c.strong.Load() > 0 && w > 0 {
		w--
	}
	return int(w)
}

func typeName[X any]() string {
	return reflect.TypeFor[X]().String()
}
