// Package alloc provides the allocators that carve a backend's data region
// into user requests while staying position-independent: every reference
// stored in the region is an offset, so any attached process sees the same
// structures at a different virtual address.
//
// # Overview
//
// The package implements a buddy-style free-list allocator over a
// monotonically-growing bump heap. Small requests (up to 16 KiB) are served
// from a dedicated bump arena and five power-of-two size-class free lists;
// larger requests go to size-classed large-page lists and fall back to the
// heap. Free is O(1) and performs no coalescing: the design trades some
// fragmentation for constant-time free and simple list operations.
//
// # Allocator interfaces
//
// Two capabilities layer the API:
//
//   - OffsetAllocator is the low-level core: it deals purely in OffsetPtr
//     values relative to the allocator's region.
//   - The FullPtr API (Allocate, Free, ...) is a default implementation over
//     any OffsetAllocator, pairing each offset with the process-local bytes.
//
// # Usage example
//
//	b, err := backend.NewPosixShm(shm.AllocatorID{Backend: 0, Sub: 0}, 512<<20, "/t1")
//	if err != nil {
//	    return err
//	}
//	a, err := alloc.MakeBuddy(b)
//	if err != nil {
//	    return err
//	}
//
//	ctx := shm.NullContext()
//	p := a.Allocate(ctx, 4096)
//	if p.IsNull() {
//	    return alloc.ErrOutOfMemory
//	}
//	copy(p.Buf, payload)
//	err = a.Free(ctx, p)
//
// A second process recovers the same allocator from the mapped bytes alone:
//
//	b, _ := backend.AttachPosixShm("/t1")
//	a, _ := alloc.AttachBuddy(b)
//
// # Size classes
//
// Small classes are powers of two from 1 KiB to 16 KiB (five lists). Large
// lists are keyed by floor_log2 of the block's total size; blocks inside one
// list may carry different exact sizes, so every consumer reads the size
// field from the block header rather than inferring it from the class.
//
// # Failure behavior
//
// Allocation failure is a normal return: the typed API yields a null
// FullPtr, the offset API ErrOutOfMemory. A failed allocation never mutates
// allocator state — the heap cursor checks before it swings, and split
// remainders too small to hold a block header are never written.
//
// # Thread safety
//
// The heap cursor and the outstanding-byte counter are cross-process
// atomics. Free-list and arena mutation is serialized by one process-local
// lock per attached allocator; multi-process mutation additionally requires
// the callers' discipline, as with the original runtime.
package alloc
