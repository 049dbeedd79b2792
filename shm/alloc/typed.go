package alloc

import "github.com/warpio/shmkit/shm"

// The FullPtr surface is a default implementation over any OffsetAllocator:
// each call drives the offset core and pairs the result with the
// process-local byte window. Buddy's typed methods delegate here.

// AllocateFull reserves size bytes from core. Null FullPtr on failure;
// out-of-memory is a normal return, not an error.
func AllocateFull(core OffsetAllocator, ctx shm.MemContext, size uint64) shm.FullPtr {
	off, err := core.AllocateOffset(ctx, size)
	if err != nil {
		return shm.NullFullPtr()
	}
	return fullAt(core, off, size)
}

// AlignedAllocateFull reserves size bytes at the given alignment. A zero
// alignment falls back to the default.
func AlignedAllocateFull(core OffsetAllocator, ctx shm.MemContext, size, align uint64) shm.FullPtr {
	off, err := core.AlignedAllocateOffset(ctx, size, align)
	if err != nil {
		return shm.NullFullPtr()
	}
	return fullAt(core, off, size)
}

// ReallocateFull resizes p, allocating fresh bytes when p is null. On
// failure p stays valid and a null FullPtr is returned.
func ReallocateFull(core OffsetAllocator, ctx shm.MemContext, p shm.FullPtr, newSize uint64) shm.FullPtr {
	if p.IsNull() {
		return AllocateFull(core, ctx, newSize)
	}
	off, err := core.ReallocateOffset(ctx, p.Shm.Off, newSize)
	if err != nil {
		return shm.NullFullPtr()
	}
	return fullAt(core, off, newSize)
}

// FreeFull returns p to core. Null pointers and pointers carrying a foreign
// AllocatorID fail with ErrInvalidFree.
func FreeFull(core OffsetAllocator, ctx shm.MemContext, p shm.FullPtr) error {
	if p.IsNull() {
		return ErrInvalidFree
	}
	if p.Shm.Alloc != core.ID() {
		return ErrInvalidFree
	}
	return core.FreeOffset(ctx, p.Shm.Off)
}

func fullAt(core OffsetAllocator, off shm.OffsetPtr, size uint64) shm.FullPtr {
	region := core.Region()
	start := uint64(off.Unmark())
	return shm.FullPtr{
		Buf: region[start : start+size : start+size],
		Shm: shm.Pointer{Alloc: core.ID(), Off: off},
	}
}

// ----- Buddy's typed surface -----

// Allocate reserves size bytes. Null FullPtr on failure.
func (a *Buddy) Allocate(ctx shm.MemContext, size uint64) shm.FullPtr {
	return AllocateFull(a, ctx, size)
}

// AlignedAllocate reserves size bytes at the given alignment.
func (a *Buddy) AlignedAllocate(ctx shm.MemContext, size, align uint64) shm.FullPtr {
	return AlignedAllocateFull(a, ctx, size, align)
}

// Reallocate resizes p, allocating when p is null.
func (a *Buddy) Reallocate(ctx shm.MemContext, p shm.FullPtr, newSize uint64) shm.FullPtr {
	return ReallocateFull(a, ctx, p, newSize)
}

// Free returns p to the allocator.
func (a *Buddy) Free(ctx shm.MemContext, p shm.FullPtr) error {
	return FreeFull(a, ctx, p)
}

// ContainsPtr reports whether the raw slice lies inside the region.
func (a *Buddy) ContainsPtr(b []byte) bool {
	_, err := shm.PtrFromBytes(a.id, a.region, b)
	return err == nil
}

// PtrFromBytes rebuilds a FullPtr for a raw slice previously produced by
// this allocator. Fails with shm.ErrPtrNotInAllocator for foreign slices.
func (a *Buddy) PtrFromBytes(b []byte) (shm.FullPtr, error) {
	return shm.PtrFromBytes(a.id, a.region, b)
}

// PtrFromOffset rebuilds a FullPtr for an offset into this allocator.
func (a *Buddy) PtrFromOffset(off shm.OffsetPtr) (shm.FullPtr, error) {
	return shm.PtrFromOffset(a.id, a.region, off)
}
