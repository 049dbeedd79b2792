package alloc

import "errors"

var (
	// ErrOutOfMemory indicates no free list served the request and the heap
	// cursor would exceed its bound. The allocator remains usable; callers
	// may free memory and retry.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrInvalidFree indicates Free was handed a null pointer or a pointer
	// that does not belong to this allocator.
	ErrInvalidFree = errors.New("alloc: invalid free")

	// ErrRegionTooSmall indicates an allocator was placed where not even its
	// own header fits.
	ErrRegionTooSmall = errors.New("alloc: region too small for allocator")

	// ErrNoAllocator indicates AttachBuddy found no embedded allocator
	// recorded in the backend header.
	ErrNoAllocator = errors.New("alloc: backend has no embedded allocator")
)
