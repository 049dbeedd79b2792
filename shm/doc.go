// Package shm provides the position-independent addressing model shared by
// every shmkit allocator and backend.
//
// # Overview
//
// A region of shared memory is mapped at a different virtual address in every
// attached process, so nothing stored inside a region may hold a raw pointer.
// Instead, references are offsets paired with an allocator identity:
//
//   - AllocatorID identifies a backend slot. The same region produces the
//     same AllocatorID in every process.
//   - OffsetPtr is a byte offset into an allocator's data region. Offset 0 is
//     a valid location, so null is encoded as all-ones, never as zero. The
//     top bit is reserved as a user-settable mark for lock-free algorithms.
//   - Pointer is the canonical cross-process reference: an (AllocatorID,
//     OffsetPtr) pair. Resolving one requires the per-process registry that
//     maps AllocatorID to the local mapping.
//   - FullPtr pairs a Pointer with the process-local bytes it refers to. The
//     byte half is only valid in the producing process; the Pointer half
//     survives serialization.
//
// # Registry
//
// The process-wide registry is populated by allocator init/attach and
// consulted when rehydrating a Pointer received from another process:
//
//	full, err := shm.PtrFromPointer(p, n)
//
// # Memory context
//
// MemContext is a lightweight per-thread token threaded through every
// allocation call. Allocators that do not shard by thread still accept and
// forward it.
package shm
