package alloc

import (
	"errors"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/wippyai/vtable/errors"
	"github.com/wippyai/vtable/layout"
)

type sample struct {
	name string
	n    uint64
}

func sampleType() *Type {
	return &Type{
		Name:   "sample",
		Layout: layout.Of[sample](),
		New: func() unsafe.Pointer {
			return unsafe.Pointer(new(sample))
		},
	}
}

func recoverError(t *testing.T, fn func()) *verrors.Error {
	t.Helper()
	var out *verrors.Error
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected panic")
			err, ok := r.(error)
			require.True(t, ok, "panic value should be an error")
			require.True(t, errors.As(err, &out))
		}()
		fn()
	}()
	return out
}

func TestHeap(t *testing.T) {
	typ := sampleType()
	p := Heap.Alloc(typ)
	require.NotNil(t, p)
	assert.Equal(t, sample{}, *(*sample)(p))
	Heap.Free(p, typ.Layout)
}

func TestHeapNilConstructor(t *testing.T) {
	typ := &Type{Name: "broken", Layout: layout.Of[uint64](), New: func() unsafe.Pointer { return nil }}
	err := recoverError(t, func() { Heap.Alloc(typ) })
	assert.Equal(t, verrors.KindAllocation, err.Kind)
}

func TestOrHeap(t *testing.T) {
	assert.Equal(t, Heap, OrHeap(nil))
	tr := NewTracking(nil)
	assert.Same(t, tr, OrHeap(tr).(*Tracking))
}

func TestTrackingAllocFree(t *testing.T) {
	tr := NewTracking(nil)
	typ := sampleType()

	a := tr.Alloc(typ)
	b := tr.Alloc(typ)
	assert.True(t, tr.IsLive(a))
	assert.True(t, tr.IsLive(b))

	st := tr.Stats()
	assert.Equal(t, uint64(2), st.Allocs)
	assert.Equal(t, 2, st.Live)
	assert.Equal(t, 2*typ.Layout.Size, st.LiveBytes)

	live := tr.Live()
	require.Len(t, live, 2)
	assert.Less(t, live[0].Addr, live[1].Addr, "live blocks are address ordered")
	assert.Equal(t, "sample", live[0].Type)

	tr.Free(a, typ.Layout)
	assert.False(t, tr.IsLive(a))
	assert.Equal(t, 1, tr.ReportLeaks())

	tr.Free(b, typ.Layout)
	st = tr.Stats()
	assert.Equal(t, uint64(2), st.Frees)
	assert.Zero(t, st.Live)
	assert.Zero(t, st.LiveBytes)
	assert.Zero(t, tr.ReportLeaks())
}

func TestTrackingDoubleFree(t *testing.T) {
	tr := NewTracking(nil)
	typ := sampleType()
	p := tr.Alloc(typ)
	tr.Free(p, typ.Layout)

	err := recoverError(t, func() { tr.Free(p, typ.Layout) })
	assert.Equal(t, verrors.KindDoubleFree, err.Kind)
}

func TestTrackingLayoutMismatch(t *testing.T) {
	tr := NewTracking(nil)
	typ := sampleType()
	p := tr.Alloc(typ)

	err := recoverError(t, func() {
		tr.Free(p, layout.Layout{Size: typ.Layout.Size + 8, Align: typ.Layout.Align})
	})
	assert.Equal(t, verrors.KindLayoutMismatch, err.Kind)
	assert.True(t, tr.IsLive(p), "a rejected free leaves the block live")
}

func TestTrackingConcurrent(t *testing.T) {
	tr := NewTracking(nil)
	typ := sampleType()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				p := tr.Alloc(typ)
				tr.Free(p, typ.Layout)
			}
		}()
	}
	wg.Wait()

	st := tr.Stats()
	assert.Equal(t, uint64(1600), st.Allocs)
	assert.Equal(t, uint64(1600), st.Frees)
	assert.Zero(t, st.Live)
}
