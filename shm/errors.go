package shm

import "errors"

var (
	// ErrPtrNotInAllocator indicates a raw byte slice handed to PtrFromBytes
	// lies outside the allocator's data region.
	ErrPtrNotInAllocator = errors.New("shm: pointer not in allocator region")

	// ErrUnknownAllocator indicates a Pointer referenced an AllocatorID that
	// has not been registered in this process.
	ErrUnknownAllocator = errors.New("shm: allocator not registered in this process")
)
