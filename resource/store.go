package resource

import (
	"sync"

	"github.com/wippyai/vtable/vrc"
)

// store is the slot array behind a Table: 1-based handles, a free list for
// reuse and per-entry borrow counts. It never releases handles itself; removed
// entries are returned so the caller can release them without holding mu.
type store[V any] struct {
	entries  []entry[V]
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry[V any] struct {
	strong      vrc.VRc[V, vrc.Dyn]
	weak        vrc.VWeak[V, vrc.Dyn]
	kind        Kind
	borrowCount uint32
}

func (e *entry[V]) valid() bool {
	return e.kind != 0
}

func (e *entry[V]) block() uintptr {
	if e.kind == KindWeak {
		return uintptr(e.weak.Pointer())
	}
	return uintptr(e.strong.Pointer())
}

// release gives up whatever unit e owns.
func (e *entry[V]) release() {
	switch e.kind {
	case KindStrong:
		e.strong.Release()
	case KindWeak:
		e.weak.Release()
	}
}

func newStore[V any]() *store[V] {
	return &store[V]{
		entries:  make([]entry[V], 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// insertLocked stores e and returns its handle. mu must be held for writing.
func (s *store[V]) insertLocked(e entry[V]) Handle {
	if len(s.freeList) > 0 {
		handle := s.freeList[len(s.freeList)-1]
		s.freeList = s.freeList[:len(s.freeList)-1]
		s.entries[handle-1] = e
		return handle
	}

	s.entries = append(s.entries, e)
	return Handle(len(s.entries))
}

// lookupLocked returns the live entry for handle. mu must be held.
func (s *store[V]) lookupLocked(handle Handle) (*entry[V], bool) {
	if handle == 0 {
		return nil, false
	}
	idx := handle - 1
	if int(idx) >= len(s.entries) {
		return nil, false
	}
	e := &s.entries[idx]
	if !e.valid() {
		return nil, false
	}
	return e, true
}

// removeLocked clears handle's slot and returns the entry it held.
func (s *store[V]) removeLocked(handle Handle) entry[V] {
	e := s.entries[handle-1]
	s.entries[handle-1] = entry[V]{}
	s.freeList = append(s.freeList, handle)
	return e
}

func (s *store[V]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for i := range s.entries {
		if s.entries[i].valid() {
			count++
		}
	}
	return count
}

// drained is a live entry taken out of a store by drain.
type drained[V any] struct {
	handle Handle
	entry  entry[V]
}

// drain closes the store and returns every live entry in handle order.
func (s *store[V]) drain() []drained[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var live []drained[V]
	for i := range s.entries {
		if s.entries[i].valid() {
			live = append(live, drained[V]{handle: Handle(i + 1), entry: s.entries[i]})
		}
	}
	s.entries = nil
	s.freeList = nil
	return live
}
