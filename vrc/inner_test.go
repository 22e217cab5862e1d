package vrc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/vtable/errors"
	"github.com/wippyai/vtable/layout"
)

type counterVTable struct {
	VTable
}

type counted struct {
	n int
}

var countedVTable = counterVTable{VTable: VTableFor[counted](nil)}

func (counted) StaticVTable() *counterVTable { return &countedVTable }

func overflowPanic(t *testing.T, fn func()) *errors.Error {
	t.Helper()
	var out *errors.Error
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected panic")
			err, ok := r.(*errors.Error)
			require.True(t, ok, "panic value %v is not *errors.Error", r)
			out = err
		}()
		fn()
	}()
	return out
}

func TestStrongCountOverflow(t *testing.T) {
	h := New[counterVTable](counted{n: 1})

	h.inner.strong.Store(maxRefCount - 1)
	err := overflowPanic(t, func() { _ = h.Clone() })
	assert.Equal(t, errors.PhaseClone, err.Phase)
	assert.Equal(t, errors.KindOverflow, err.Kind)
	assert.Equal(t, []string{"strong"}, err.Path)

	h.inner.strong.Store(1)
	h.Release()
}

func TestWeakCountOverflow(t *testing.T) {
	h := New[counterVTable](counted{n: 1})

	h.inner.weak.Store(maxRefCount - 1)
	err := overflowPanic(t, func() { _ = h.Downgrade() })
	assert.Equal(t, errors.PhaseClone, err.Phase)
	assert.Equal(t, errors.KindOverflow, err.Kind)
	assert.Equal(t, []string{"weak"}, err.Path)

	h.inner.weak.Store(1)
	h.Release()
}

func TestUpgradeOverflow(t *testing.T) {
	h := New[counterVTable](counted{n: 1})
	w := h.Downgrade()

	h.inner.strong.Store(maxRefCount - 1)
	err := overflowPanic(t, func() { _, _ = w.Upgrade() })
	assert.Equal(t, errors.PhaseUpgrade, err.Phase)
	assert.Equal(t, errors.KindOverflow, err.Kind)
	assert.Equal(t, uint32(maxRefCount-1), h.inner.strong.Load(), "a failed upgrade does not increment")

	h.inner.strong.Store(1)
	h.Release()
	w.Release()
}

type trailingZero struct {
	a byte
	_ struct{}
}

func TestBlockLayoutMatchesCompiler(t *testing.T) {
	assert.Equal(t, unsafe.Sizeof(block[struct{}]{}), infoFor[struct{}]().typ.Layout.Size)
	assert.Equal(t, unsafe.Sizeof(block[[0]uint64]{}), infoFor[[0]uint64]().typ.Layout.Size)
	assert.Equal(t, unsafe.Sizeof(block[counted]{}), infoFor[counted]().typ.Layout.Size)
	assert.Equal(t, unsafe.Sizeof(block[trailingZero]{}), infoFor[trailingZero]().typ.Layout.Size)

	zero, _ := blockLayout(layout.Of[struct{}]())
	assert.Greater(t, zero.Size, layout.Of[header]().Size, "zero-size payloads get a padding byte")
}
