// Package host exposes a resource.Table to WebAssembly guests running on
// wazero.
//
// The host module (default name "vtable:vrc/handles") exports i32 functions
// that operate on table handles:
//
//	clone(h) -> h'          new entry of the same kind, 0 on failure
//	drop(h) -> ok           1 when the entry was removed and released
//	downgrade(h) -> w       weak entry for a strong one, 0 on failure
//	upgrade(w) -> h         strong entry, 0 once the object is gone
//	strong-count(h) -> n
//	weak-count(h) -> n
//	ptr-eq(a, b) -> ok      1 when both refer to the same object
//	alive(h) -> ok          1 while the object has strong handles
//
// Invalid handles never trap: they produce 0 and a debug log entry.
//
//	rt := wazero.NewRuntime(ctx)
//	mod, err := host.New(table).Instantiate(ctx, rt)
//
// Additional functions, for example ones calling through a capability table,
// can be added with Func before Instantiate.
package host
