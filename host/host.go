package host

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/vtable/errors"
	"github.com/wippyai/vtable/resource"
)

// DefaultModuleName is the import module guests link against.
const DefaultModuleName = "vtable:vrc/handles"

var (
	i32  = []api.ValueType{api.ValueTypeI32}
	i32x = []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
)

type funcDef struct {
	name    string
	fn      api.GoModuleFunc
	params  []api.ValueType
	results []api.ValueType
}

// Option configures a Module.
type Option func(*options)

type options struct {
	name string
}

// WithModuleName overrides DefaultModuleName.
func WithModuleName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Module builds the host module for one table.
type Module[V any] struct {
	table *resource.Table[V]
	name  string
	funcs []funcDef
}

// New creates a builder with the handle functions already defined.
func New[V any](table *resource.Table[V], opts ...Option) *Module[V] {
	o := options{name: DefaultModuleName}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Module[V]{table: table, name: o.name}
	m.Func("clone", m.clone, i32, i32).
		Func("drop", m.drop, i32, i32).
		Func("downgrade", m.downgrade, i32, i32).
		Func("upgrade", m.upgrade, i32, i32).
		Func("strong-count", m.strongCount, i32, i32).
		Func("weak-count", m.weakCount, i32, i32).
		Func("ptr-eq", m.ptrEq, i32x, i32).
		Func("alive", m.alive, i32, i32)
	return m
}

// Name returns the module name guests import from.
func (m *Module[V]) Name() string {
	return m.name
}

// Table returns the table the functions operate on.
func (m *Module[V]) Table() *resource.Table[V] {
	return m.table
}

// Func adds a function to the module. A later definition with the same name
// replaces an earlier one.
func (m *Module[V]) Func(name string, fn api.GoModuleFunc, params, results []api.ValueType) *Module[V] {
	for i := range m.funcs {
		if m.funcs[i].name == name {
			m.funcs[i] = funcDef{name: name, fn: fn, params: params, results: results}
			return m
		}
	}
	m.funcs = append(m.funcs, funcDef{name: name, fn: fn, params: params, results: results})
	return m
}

// Instantiate registers the module in rt.
func (m *Module[V]) Instantiate(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	if rt.Module(m.name) != nil {
		return nil, errors.Registration(m.name, "", errors.InvalidInput(errors.PhaseHost, "module already instantiated"))
	}

	builder := rt.NewHostModuleBuilder(m.name)
	for _, f := range m.funcs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, f.results).
			WithName(f.name).
			Export(f.name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Registration(m.name, "", err)
	}
	Logger().Debug("host module instantiated",
		zap.String("module", m.name),
		zap.Int("funcs", len(m.funcs)),
	)
	return mod, nil
}

func handleArg(stack []uint64, i int) resource.Handle {
	return resource.Handle(api.DecodeU32(stack[i]))
}

func setI32(stack []uint64, v uint32) {
	stack[0] = api.EncodeU32(v)
}

func boolI32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func fail(fn string, h resource.Handle, err error) {
	Logger().Debug("host call failed",
		zap.String("func", fn),
		zap.Uint32("handle", uint32(h)),
		zap.Error(err),
	)
}

func (m *Module[V]) clone(_ context.Context, _ api.Module, stack []uint64) {
	h := handleArg(stack, 0)
	c, err := m.table.Clone(h)
	if err != nil {
		fail("clone", h, err)
	}
	setI32(stack, uint32(c))
}

func (m *Module[V]) drop(_ context.Context, _ api.Module, stack []uint64) {
	h := handleArg(stack, 0)
	err := m.table.Drop(h)
	if err != nil {
		fail("drop", h, err)
	}
	setI32(stack, boolI32(err == nil))
}

func (m *Module[V]) downgrade(_ context.Context, _ api.Module, stack []uint64) {
	h := handleArg(stack, 0)
	w, err := m.table.Downgrade(h)
	if err != nil {
		fail("downgrade", h, err)
	}
	setI32(stack, uint32(w))
}

func (m *Module[V]) upgrade(_ context.Context, _ api.Module, stack []uint64) {
	h := handleArg(stack, 0)
	s, err := m.table.Upgrade(h)
	if err != nil {
		fail("upgrade", h, err)
	}
	setI32(stack, uint32(s))
}

func (m *Module[V]) strongCount(_ context.Context, _ api.Module, stack []uint64) {
	h := handleArg(stack, 0)
	strong, _, err := m.table.Counts(h)
	if err != nil {
		fail("strong-count", h, err)
	}
	setI32(stack, uint32(strong))
}

func (m *Module[V]) weakCount(_ context.Context, _ api.Module, stack []uint64) {
	h := handleArg(stack, 0)
	_, weak, err := m.table.Counts(h)
	if err != nil {
		fail("weak-count", h, err)
	}
	setI32(stack, uint32(weak))
}

func (m *Module[V]) ptrEq(_ context.Context, _ api.Module, stack []uint64) {
	a, b := handleArg(stack, 0), handleArg(stack, 1)
	ba, okA := m.table.Block(a)
	bb, okB := m.table.Block(b)
	setI32(stack, boolI32(okA && okB && ba == bb))
}

func (m *Module[V]) alive(_ context.Context, _ api.Module, stack []uint64) {
	h := handleArg(stack, 0)
	strong, _, err := m.table.Counts(h)
	if err != nil {
		fail("alive", h, err)
	}
	setI32(stack, boolI32(err == nil && strong > 0))
}
