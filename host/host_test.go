package host

import (
	"context"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/vtable/resource"
	"github.com/wippyai/vtable/vrc"
)

type CounterVTable struct {
	vrc.VTable
	Get func(self unsafe.Pointer) int32
}

type counter struct {
	n     int32
	drops *atomic.Int32
}

func (c *counter) Drop() {
	if c.drops != nil {
		c.drops.Add(1)
	}
}

var counterVTable = CounterVTable{
	VTable: vrc.VTableFor[counter](nil),
	Get:    func(self unsafe.Pointer) int32 { return (*counter)(self).n },
}

func (counter) StaticVTable() *CounterVTable { return &counterVTable }

// guests calls host functions the way a wasm module would: one small guest per
// imported function, each re-exporting it as "run".
type guests struct {
	t      *testing.T
	ctx    context.Context
	rt     wazero.Runtime
	module string
	mods   map[string]api.Module
}

func setup(t *testing.T, opts ...Option) (*guests, *resource.Table[CounterVTable], api.Module) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	table := resource.NewTable[CounterVTable]()
	t.Cleanup(func() { table.Close() })

	mod, err := New(table, opts...).Instantiate(ctx, rt)
	require.NoError(t, err)
	return newGuests(t, ctx, rt, mod.Name()), table, mod
}

func newGuests(t *testing.T, ctx context.Context, rt wazero.Runtime, module string) *guests {
	return &guests{t: t, ctx: ctx, rt: rt, module: module, mods: map[string]api.Module{}}
}

func (g *guests) call(fn string, args ...uint64) uint32 {
	g.t.Helper()
	mod, ok := g.mods[fn]
	if !ok {
		var err error
		mod, err = g.rt.InstantiateWithConfig(g.ctx, guestModule(g.module, fn, len(args)),
			wazero.NewModuleConfig().WithName("guest/"+fn))
		require.NoError(g.t, err, "instantiate guest for %s", fn)
		g.mods[fn] = mod
	}
	res, err := mod.ExportedFunction("run").Call(g.ctx, args...)
	require.NoError(g.t, err, fn)
	require.Len(g.t, res, 1)
	return api.DecodeU32(res[0])
}

func export(t *testing.T, table *resource.Table[CounterVTable], n int32, drops *atomic.Int32) uint64 {
	t.Helper()
	h, err := table.Export(vrc.IntoDyn(vrc.New[CounterVTable](counter{n: n, drops: drops})))
	require.NoError(t, err)
	return uint64(h)
}

// guestModule assembles a module that imports fn (i32 x params) -> i32 from
// module and re-exports it as "run".
func guestModule(module, fn string, params int) []byte {
	name := func(s string) []byte { return append([]byte{byte(len(s))}, s...) }
	section := func(id byte, body ...byte) []byte { return append([]byte{id, byte(len(body))}, body...) }

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	typ := []byte{0x01, 0x60, byte(params)}
	for range params {
		typ = append(typ, 0x7f)
	}
	typ = append(typ, 0x01, 0x7f)
	out = append(out, section(1, typ...)...)

	imp := []byte{0x01}
	imp = append(imp, name(module)...)
	imp = append(imp, name(fn)...)
	imp = append(imp, 0x00, 0x00)
	out = append(out, section(2, imp...)...)

	out = append(out, section(3, 0x01, 0x00)...)

	exp := []byte{0x01}
	exp = append(exp, name("run")...)
	exp = append(exp, 0x00, 0x01)
	out = append(out, section(7, exp...)...)

	// local.get 0..params-1; call 0; end
	body := []byte{0x00}
	for i := range params {
		body = append(body, 0x20, byte(i))
	}
	body = append(body, 0x10, 0x00, 0x0b)
	code := append([]byte{0x01, byte(len(body))}, body...)
	out = append(out, section(10, code...)...)
	return out
}

func TestModuleName(t *testing.T) {
	_, _, mod := setup(t)
	assert.Equal(t, DefaultModuleName, mod.Name())

	_, _, custom := setup(t, WithModuleName("test:handles"))
	assert.Equal(t, "test:handles", custom.Name())
}

func TestDuplicateInstantiate(t *testing.T) {
	g, table, _ := setup(t)
	_, err := New(table).Instantiate(g.ctx, g.rt)
	assert.Error(t, err)
}

func TestHandleFunctions(t *testing.T) {
	g, table, _ := setup(t)
	drops := new(atomic.Int32)
	h := export(t, table, 4, drops)

	assert.Equal(t, uint32(1), g.call("strong-count", h))
	assert.Equal(t, uint32(1), g.call("alive", h))

	c := g.call("clone", h)
	require.NotZero(t, c)
	assert.Equal(t, uint32(2), g.call("strong-count", h))
	assert.Equal(t, uint32(1), g.call("ptr-eq", h, uint64(c)))

	other := export(t, table, 4, nil)
	assert.Zero(t, g.call("ptr-eq", h, other))

	w := g.call("downgrade", h)
	require.NotZero(t, w)
	assert.Equal(t, uint32(1), g.call("weak-count", h))
	assert.Equal(t, uint32(1), g.call("ptr-eq", uint64(w), h))

	s := g.call("upgrade", uint64(w))
	require.NotZero(t, s)
	assert.Equal(t, uint32(3), g.call("strong-count", h))

	for _, x := range []uint64{uint64(s), uint64(c), h} {
		assert.Equal(t, uint32(1), g.call("drop", x))
	}
	assert.Equal(t, int32(1), drops.Load())

	assert.Zero(t, g.call("alive", uint64(w)))
	assert.Zero(t, g.call("upgrade", uint64(w)))
	assert.Equal(t, uint32(1), g.call("drop", uint64(w)))

	assert.Equal(t, 1, table.Len())
}

func TestInvalidHandlesDoNotTrap(t *testing.T) {
	g, _, _ := setup(t)

	for _, name := range []string{"clone", "drop", "downgrade", "upgrade", "strong-count", "weak-count", "alive"} {
		assert.Zero(t, g.call(name, 77), name)
	}
	assert.Zero(t, g.call("ptr-eq", 1, 2))
}

func TestCustomFunc(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	table := resource.NewTable[CounterVTable]()
	defer table.Close()

	m := New(table)
	m.Func("get", func(_ context.Context, _ api.Module, stack []uint64) {
		h := resource.Handle(api.DecodeU32(stack[0]))
		ref, err := m.Table().Borrow(h)
		if err != nil {
			stack[0] = api.EncodeI32(-1)
			return
		}
		defer m.Table().ReturnBorrow(h)
		stack[0] = api.EncodeI32(ref.VTable().Get(ref.Pointer()))
	}, i32, i32)

	mod, err := m.Instantiate(ctx, rt)
	require.NoError(t, err)
	g := newGuests(t, ctx, rt, mod.Name())

	h := export(t, table, 42, nil)
	assert.Equal(t, uint32(42), g.call("get", h))
	assert.Equal(t, int32(-1), api.DecodeI32(uint64(g.call("get", 999))))
}

func TestGuestImportsHandles(t *testing.T) {
	g, table, _ := setup(t)
	h := export(t, table, 9, nil)

	c := g.call("clone", h)
	require.NotZero(t, c)
	assert.Equal(t, 2, table.Len())

	ref, ok := table.Get(resource.Handle(c))
	require.True(t, ok)
	assert.Equal(t, int32(9), ref.VTable().Get(ref.Pointer()))
}
