package resource

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/vtable/errors"
	"github.com/wippyai/vtable/vrc"
)

// Table maps 32-bit handles to strong and weak handles of objects published
// with capability table V. Each entry owns exactly one unit of the count its
// kind names; the table gives it back on Drop, Import and Close.
type Table[V any] struct {
	store     *store[V]
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable[V any]() *Table[V] {
	return &Table[V]{
		store: newStore[V](),
	}
}

// Export moves h into the table. On error the caller still owns h.
func (t *Table[V]) Export(h vrc.VRc[V, vrc.Dyn]) (Handle, error) {
	if h.IsNil() {
		return 0, errors.InvalidInput(errors.PhaseExport, "cannot export a nil handle")
	}
	return t.insert(entry[V]{strong: h, kind: KindStrong})
}

// ExportWeak moves w into the table. On error the caller still owns w.
func (t *Table[V]) ExportWeak(w vrc.VWeak[V, vrc.Dyn]) (Handle, error) {
	if w.IsNil() {
		return 0, errors.InvalidInput(errors.PhaseExport, "cannot export a nil weak handle")
	}
	return t.insert(entry[V]{weak: w, kind: KindWeak})
}

func (t *Table[V]) insert(e entry[V]) (Handle, error) {
	t.store.mu.Lock()
	if t.store.closed {
		t.store.mu.Unlock()
		return 0, errors.Closed(errors.PhaseExport, "resource table")
	}
	handle := t.store.insertLocked(e)
	t.store.mu.Unlock()

	t.created(handle, &e)
	return handle, nil
}

func (t *Table[V]) created(handle Handle, e *entry[V]) {
	if ce := Logger().Check(zap.DebugLevel, "handle exported"); ce != nil {
		ce.Write(
			zap.Uint32("handle", uint32(handle)),
			zap.Stringer("kind", e.kind),
			zap.Uintptr("block", e.block()),
		)
	}
	t.notify(Event{Type: EventCreated, Handle: handle, Kind: e.kind, Block: e.block()})
}

// Get returns a reference to the payload behind a strong entry. The reference
// is only valid while the entry stays in the table; use Borrow to pin it there.
func (t *Table[V]) Get(handle Handle) (vrc.VRef[V], bool) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	e, ok := t.store.lookupLocked(handle)
	if !ok || e.kind != KindStrong {
		return vrc.VRef[V]{}, false
	}
	return e.strong.Borrow(), true
}

// Kind reports the kind of a live entry.
func (t *Table[V]) Kind(handle Handle) (Kind, bool) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	e, ok := t.store.lookupLocked(handle)
	if !ok {
		return 0, false
	}
	return e.kind, true
}

// Block returns the control block address behind an entry of either kind.
func (t *Table[V]) Block(handle Handle) (uintptr, bool) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	e, ok := t.store.lookupLocked(handle)
	if !ok {
		return 0, false
	}
	return e.block(), true
}

// Counts returns the strong and weak counts of the object behind handle.
func (t *Table[V]) Counts(handle Handle) (strong, weak int, err error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	e, ok := t.store.lookupLocked(handle)
	if !ok {
		return 0, 0, errors.InvalidHandle(errors.PhaseExport, uint32(handle))
	}
	if e.kind == KindWeak {
		// A weak handle cannot see the explicit weak count without a strong unit.
		if s, ok := e.weak.Upgrade(); ok {
			strong, weak = s.StrongCount()-1, s.WeakCount()
			s.Release()
			return strong, weak, nil
		}
		return 0, 0, nil
	}
	return e.strong.StrongCount(), e.strong.WeakCount(), nil
}

// Clone adds another entry owning a new unit of the same kind.
func (t *Table[V]) Clone(handle Handle) (Handle, error) {
	t.store.mu.Lock()
	if t.store.closed {
		t.store.mu.Unlock()
		return 0, errors.Closed(errors.PhaseExport, "resource table")
	}
	e, ok := t.store.lookupLocked(handle)
	if !ok {
		t.store.mu.Unlock()
		return 0, errors.InvalidHandle(errors.PhaseExport, uint32(handle))
	}
	var c entry[V]
	switch e.kind {
	case KindStrong:
		c = entry[V]{strong: e.strong.Clone(), kind: KindStrong}
	case KindWeak:
		c = entry[V]{weak: e.weak.Clone(), kind: KindWeak}
	}
	h := t.store.insertLocked(c)
	t.store.mu.Unlock()

	t.created(h, &c)
	return h, nil
}

// Downgrade adds a weak entry for the object behind a strong entry.
func (t *Table[V]) Downgrade(handle Handle) (Handle, error) {
	t.store.mu.Lock()
	if t.store.closed {
		t.store.mu.Unlock()
		return 0, errors.Closed(errors.PhaseExport, "resource table")
	}
	e, ok := t.store.lookupLocked(handle)
	if !ok {
		t.store.mu.Unlock()
		return 0, errors.InvalidHandle(errors.PhaseExport, uint32(handle))
	}
	if e.kind != KindStrong {
		t.store.mu.Unlock()
		return 0, kindMismatch(handle, e.kind, KindStrong)
	}
	w := entry[V]{weak: e.strong.Downgrade(), kind: KindWeak}
	h := t.store.insertLocked(w)
	t.store.mu.Unlock()

	t.created(h, &w)
	return h, nil
}

// Upgrade adds a strong entry for the object behind a weak entry. It returns
// 0 and no error when the object has already been destroyed.
func (t *Table[V]) Upgrade(handle Handle) (Handle, error) {
	t.store.mu.Lock()
	if t.store.closed {
		t.store.mu.Unlock()
		return 0, errors.Closed(errors.PhaseExport, "resource table")
	}
	e, ok := t.store.lookupLocked(handle)
	if !ok {
		t.store.mu.Unlock()
		return 0, errors.InvalidHandle(errors.PhaseExport, uint32(handle))
	}
	if e.kind != KindWeak {
		t.store.mu.Unlock()
		return 0, kindMismatch(handle, e.kind, KindWeak)
	}
	s, ok := e.weak.Upgrade()
	if !ok {
		t.store.mu.Unlock()
		return 0, nil
	}
	up := entry[V]{strong: s, kind: KindStrong}
	h := t.store.insertLocked(up)
	t.store.mu.Unlock()

	t.created(h, &up)
	return h, nil
}

// Import removes a strong entry and hands its unit back to the caller.
func (t *Table[V]) Import(handle Handle) (vrc.VRc[V, vrc.Dyn], error) {
	e, err := t.take(handle, KindStrong)
	if err != nil {
		return vrc.VRc[V, vrc.Dyn]{}, err
	}
	return e.strong, nil
}

// ImportWeak removes a weak entry and hands its unit back to the caller.
func (t *Table[V]) ImportWeak(handle Handle) (vrc.VWeak[V, vrc.Dyn], error) {
	e, err := t.take(handle, KindWeak)
	if err != nil {
		return vrc.VWeak[V, vrc.Dyn]{}, err
	}
	return e.weak, nil
}

// Drop removes an entry and releases the unit it owns. Entries with
// outstanding borrows cannot be dropped.
func (t *Table[V]) Drop(handle Handle) error {
	e, err := t.take(handle, 0)
	if err != nil {
		return err
	}
	e.release()
	return nil
}

// take removes handle from the table; want 0 accepts either kind.
func (t *Table[V]) take(handle Handle, want Kind) (entry[V], error) {
	t.store.mu.Lock()
	e, ok := t.store.lookupLocked(handle)
	if !ok {
		t.store.mu.Unlock()
		return entry[V]{}, errors.InvalidHandle(errors.PhaseExport, uint32(handle))
	}
	if want != 0 && e.kind != want {
		t.store.mu.Unlock()
		return entry[V]{}, kindMismatch(handle, e.kind, want)
	}
	if e.borrowCount > 0 {
		n := e.borrowCount
		t.store.mu.Unlock()
		return entry[V]{}, errors.Borrowed(errors.PhaseExport, uint32(handle), n)
	}
	removed := t.store.removeLocked(handle)
	t.store.mu.Unlock()

	Logger().Debug("handle removed",
		zap.Uint32("handle", uint32(handle)),
		zap.Stringer("kind", removed.kind),
	)
	t.notify(Event{Type: EventDropped, Handle: handle, Kind: removed.kind, Block: removed.block()})
	return removed, nil
}

// Borrow lends the payload behind a strong entry. Until ReturnBorrow is called
// the entry cannot be dropped or imported, so the reference stays valid.
func (t *Table[V]) Borrow(handle Handle) (vrc.VRef[V], error) {
	t.store.mu.Lock()
	e, ok := t.store.lookupLocked(handle)
	if !ok {
		t.store.mu.Unlock()
		return vrc.VRef[V]{}, errors.InvalidHandle(errors.PhaseExport, uint32(handle))
	}
	if e.kind != KindStrong {
		t.store.mu.Unlock()
		return vrc.VRef[V]{}, kindMismatch(handle, e.kind, KindStrong)
	}
	e.borrowCount++
	ref := e.strong.Borrow()
	block := e.block()
	t.store.mu.Unlock()

	t.notify(Event{Type: EventBorrowed, Handle: handle, Kind: KindStrong, Block: block})
	return ref, nil
}

// ReturnBorrow ends one Borrow.
func (t *Table[V]) ReturnBorrow(handle Handle) error {
	t.store.mu.Lock()
	e, ok := t.store.lookupLocked(handle)
	if !ok || e.borrowCount == 0 {
		t.store.mu.Unlock()
		return errors.InvalidHandle(errors.PhaseExport, uint32(handle))
	}
	e.borrowCount--
	block := e.block()
	t.store.mu.Unlock()

	t.notify(Event{Type: EventBorrowReturned, Handle: handle, Kind: KindStrong, Block: block})
	return nil
}

// Len returns the number of live entries.
func (t *Table[V]) Len() int {
	return t.store.len()
}

// Each calls fn for every live entry in handle order until fn returns false.
// fn must not call back into the table.
func (t *Table[V]) Each(fn func(Handle, Kind) bool) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	for i := range t.store.entries {
		e := &t.store.entries[i]
		if e.valid() {
			if !fn(Handle(i+1), e.kind) {
				break
			}
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table[V]) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table[V]) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Close releases every entry and stops accepting new ones. Observers get an
// EventDropped per entry, after its unit has been released. Outstanding
// borrows do not prevent Close.
func (t *Table[V]) Close() error {
	live := t.store.drain()
	for i := range live {
		d := &live[i]
		kind, block := d.entry.kind, d.entry.block()
		d.entry.release()
		t.notify(Event{Type: EventDropped, Handle: d.handle, Kind: kind, Block: block})
	}
	if len(live) > 0 {
		Logger().Debug("resource table closed", zap.Int("released", len(live)))
	}
	return nil
}

func (t *Table[V]) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

func kindMismatch(handle Handle, got, want Kind) *errors.Error {
	return errors.New(errors.PhaseExport, errors.KindTypeMismatch).
		Detail("handle %d is %s, want %s", handle, got, want).
		Value(uint32(handle)).
		Build()
}
