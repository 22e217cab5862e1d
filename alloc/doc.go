// Package alloc provides the allocators behind capability tables.
//
// Every managed type's capability table names an Allocator. Control blocks are
// obtained with Alloc when a strong handle is created and returned with Free
// when the last weak reference (including the one held collectively by all
// strong handles) goes away:
//
//	tr := alloc.NewTracking(nil)
//	vt := vrc.VTableFor[Node](tr)
//	...
//	if n := tr.ReportLeaks(); n > 0 {
//	    // some handle was never released
//	}
//
// Heap is the default and leaves reclamation to the garbage collector.
// Tracking records live blocks in a B-tree ordered by address, validates that
// each block is freed once with its allocation layout, and publishes
// process-wide counters through VictoriaMetrics:
//
//	vrc_blocks_allocated_total
//	vrc_blocks_freed_total
//	vrc_bytes_allocated_total
//	vrc_blocks_live
package alloc
