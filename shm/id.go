package shm

import "fmt"

// AllocatorID identifies an allocator across every process attached to its
// backend. Backend is the backend identifier (major half); Sub is the
// per-backend slot (minor half). The same region always yields the same
// AllocatorID, which is what makes Pointer values portable.
type AllocatorID struct {
	Backend int32
	Sub     int32
}

// NullAllocatorID returns the well-known (-1, -1) sentinel.
func NullAllocatorID() AllocatorID {
	return AllocatorID{Backend: -1, Sub: -1}
}

// IsNull reports whether id is the null sentinel.
func (id AllocatorID) IsNull() bool {
	return id == NullAllocatorID()
}

// ToUint64 packs the id into the 64-bit wire form stored in backend headers.
func (id AllocatorID) ToUint64() uint64 {
	return uint64(uint32(id.Backend))<<32 | uint64(uint32(id.Sub))
}

// IDFromUint64 unpacks an id from its 64-bit wire form.
func IDFromUint64(v uint64) AllocatorID {
	return AllocatorID{
		Backend: int32(uint32(v >> 32)),
		Sub:     int32(uint32(v)),
	}
}

func (id AllocatorID) String() string {
	return fmt.Sprintf("%d.%d", id.Backend, id.Sub)
}
