// Package resource maps 32-bit handles to reference counted objects so they
// can be passed across an ABI boundary, for example to a WebAssembly guest.
//
// # Ownership
//
// Every entry owns exactly one unit of a strong or weak count:
//
//	own    - Export moves a handle into the table; Import moves it back out
//	borrow - Borrow pins an entry until ReturnBorrow
//	drop   - Drop removes the entry and releases its unit
//
// # Handle Table
//
//	table := resource.NewTable[ShapeVTable]()
//
//	h, err := table.Export(vrc.IntoDyn(vrc.New[ShapeVTable](square)))
//	w, err := table.Downgrade(h) // weak entry
//	s, err := table.Upgrade(w)   // 0 once the object is gone
//
//	ref, err := table.Borrow(h)
//	area := ref.VTable().Area(ref.Pointer())
//	table.ReturnBorrow(h)
//
//	table.Drop(h)
//
// Handle 0 is never issued. Freed handles are reused.
//
// # Observers
//
// Register observers to track handle lifecycle events:
//
//	table.Subscribe(observer)
//
// Observers receive EventCreated, EventDropped, EventBorrowed and
// EventBorrowReturned synchronously, outside the table lock.
//
// # Memory Management
//
// Entries are not garbage collected. The host must call Drop when the guest
// drops a handle, or Close to release everything at once when the guest
// instance goes away.
package resource
