// Package backend reserves the contiguous mappable regions that shmkit
// allocators live inside.
//
// # Region layout
//
// Every variant lays its region out identically:
//
//	[ MemoryBackendHeader | padding to 4 KiB | data region ]
//
// The header is written once by the owning process and treated as read-only
// by everyone else. It is the sole source of truth that lets a second
// process discover the region's layout: attach maps only the header page
// first, reads the true data_size, unmaps, then remaps the full region.
//
// # Variants
//
//   - Malloc: private anonymous mapping. Attach is unsupported; this variant
//     exists for single-process use and tests.
//   - PosixShmMmap: a named POSIX shared-memory object, mapped contiguously.
//     A second process attaches by URL ("/name") and sees the same bytes.
//   - GpuShmMmap: a PosixShmMmap whose region is intended for host/device
//     unified access. The same virtual span is valid on both sides; no
//     staging copies are performed by this package. Registering the span
//     with a device runtime is the consumer's concern.
//
// # Embedding an allocator
//
// After init, the owner constructs an allocator inline at data[0] and
// records its offset in the header's data_id field (see shm/alloc.MakeBuddy).
// Attachers read data_id and rebind to the existing allocator object without
// reinitializing any on-region state.
package backend
