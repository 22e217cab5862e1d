package vrc

import "unsafe"

// VWeak is a weak handle. It keeps the control block allocated but not the
// payload alive. The zero value is a weak handle that was never attached and
// never upgrades.
type VWeak[V any, X any] struct {
	inner *header
}

// IsNil reports whether w is detached (the zero value or released).
func (w VWeak[V, X]) IsNil() bool {
	return w.inner == nil
}

// Upgrade returns a strong handle if the payload has not been destroyed.
func (w VWeak[V, X]) Upgrade() (VRc[V, X], bool) {
	if w.inner == nil || !w.inner.tryRetainStrong() {
		return VRc[V, X]{}, false
	}
	return VRc[V, X]{inner: w.inner}, true
}

// Clone returns another weak handle to the same block. Cloning a detached
// handle returns a detached handle.
func (w VWeak[V, X]) Clone() VWeak[V, X] {
	if w.inner == nil {
		return w
	}
	w.inner.retainWeak()
	return VWeak[V, X]{inner: w.inner}
}

// Release gives up w's weak unit and clears w. The last weak release after the
// payload is gone deallocates the block.
func (w *VWeak[V, X]) Release() {
	inner := w.inner
	if inner == nil {
		return
	}
	w.inner = nil
	inner.releaseWeak()
}

// StrongCount returns 0 for a detached handle.
func (w VWeak[V, X]) StrongCount() int {
	if w.inner == nil {
		return 0
	}
	return int(w.inner.strong.Load())
}

// PtrEq reports whether both weak handles refer to the same control block.
func (w VWeak[V, X]) PtrEq(other VWeak[V, X]) bool {
	return w.inner == other.inner
}

// Pointer returns the control block address without affecting ownership.
func (w VWeak[V, X]) Pointer() unsafe.Pointer {
	return unsafe.Pointer(w.inner)
}

// WeakIntoDyn erases the payload type of w without touching the counts.
func WeakIntoDyn[V any, X any](w VWeak[V, X]) VWeak[V, Dyn] {
	return VWeak[V, Dyn]{inner: w.inner}
}
