package alloc

import "github.com/warpio/shmkit/shm"

// OffsetAllocator is the low-level allocator capability: it deals purely in
// offsets relative to its region. The FullPtr API in typed.go is a default
// implementation over any OffsetAllocator.
type OffsetAllocator interface {
	// ID returns the allocator's process-stable identity.
	ID() shm.AllocatorID

	// Region returns this process's mapping of the allocator's data region.
	// Offsets are relative to its first byte.
	Region() []byte

	// AllocateOffset reserves size bytes and returns their offset, or
	// ErrOutOfMemory. A failed call leaves allocator state unchanged.
	AllocateOffset(ctx shm.MemContext, size uint64) (shm.OffsetPtr, error)

	// AlignedAllocateOffset reserves size bytes whose offset is a multiple
	// of align. align must be a power of two.
	AlignedAllocateOffset(ctx shm.MemContext, size, align uint64) (shm.OffsetPtr, error)

	// ReallocateOffset moves an allocation to newSize, copying the smaller
	// of the old and new data lengths. On failure the old allocation is
	// untouched and ErrOutOfMemory is returned.
	ReallocateOffset(ctx shm.MemContext, p shm.OffsetPtr, newSize uint64) (shm.OffsetPtr, error)

	// FreeOffset returns the allocation at p to the allocator. Fails with
	// ErrInvalidFree for null or foreign pointers; ownership beyond bounds
	// checking is not validated.
	FreeOffset(ctx shm.MemContext, p shm.OffsetPtr) error

	// ContainsOffset reports whether p lies inside the allocator's region.
	ContainsOffset(p shm.OffsetPtr) bool

	// AllocatedBytes returns the tracked bytes outstanding (headers
	// included). Zero when tracking is disabled.
	AllocatedBytes() uint64
}

// Allocator is the full capability set: the offset core plus the typed
// FullPtr surface consumed by container code.
type Allocator interface {
	OffsetAllocator

	// Allocate reserves size bytes. Null FullPtr on failure.
	Allocate(ctx shm.MemContext, size uint64) shm.FullPtr

	// AlignedAllocate reserves size bytes at the given alignment.
	AlignedAllocate(ctx shm.MemContext, size, align uint64) shm.FullPtr

	// Reallocate grows or shrinks p to newSize. If p is null this is an
	// Allocate. Null FullPtr on failure, with p left intact.
	Reallocate(ctx shm.MemContext, p shm.FullPtr, newSize uint64) shm.FullPtr

	// Free returns p to the allocator.
	Free(ctx shm.MemContext, p shm.FullPtr) error

	// ContainsPtr reports whether the raw slice lies inside the region.
	ContainsPtr(b []byte) bool
}
