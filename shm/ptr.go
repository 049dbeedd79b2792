package shm

import (
	"fmt"
	"sync/atomic"
)

// OffsetPtr is an unsigned byte offset into an allocator's data region.
//
// Null is all-ones, not zero: offset 0 is the first byte of the region (where
// an embedded allocator object starts) and a perfectly valid location. The top bit is reserved as
// a user-settable mark for lock-free algorithms; arithmetic strips the mark,
// operates on the plain offset, and restores it.
type OffsetPtr uint64

// NullOffset is the only null encoding for OffsetPtr.
const NullOffset = OffsetPtr(^uint64(0))

const offsetMarkBit = OffsetPtr(1) << 63

// IsNull reports whether o is the null offset.
func (o OffsetPtr) IsNull() bool { return o == NullOffset }

// Mark returns o with the mark bit set.
func (o OffsetPtr) Mark() OffsetPtr { return o | offsetMarkBit }

// Unmark returns o with the mark bit cleared.
func (o OffsetPtr) Unmark() OffsetPtr { return o &^ offsetMarkBit }

// IsMarked reports whether the mark bit is set.
func (o OffsetPtr) IsMarked() bool { return o&offsetMarkBit != 0 }

// Add returns o advanced by n bytes, preserving the mark bit.
func (o OffsetPtr) Add(n uint64) OffsetPtr {
	if o.IsMarked() {
		return (o.Unmark() + OffsetPtr(n)).Mark()
	}
	return o + OffsetPtr(n)
}

// Sub returns o moved back by n bytes, preserving the mark bit.
func (o OffsetPtr) Sub(n uint64) OffsetPtr {
	if o.IsMarked() {
		return (o.Unmark() - OffsetPtr(n)).Mark()
	}
	return o - OffsetPtr(n)
}

// AtomicOffsetPtr is the atomic variant of OffsetPtr. It shares the 8-byte
// representation, so the two may alias the same on-region word.
type AtomicOffsetPtr struct {
	v atomic.Uint64
}

// Load returns the current offset.
func (a *AtomicOffsetPtr) Load() OffsetPtr { return OffsetPtr(a.v.Load()) }

// Store replaces the current offset.
func (a *AtomicOffsetPtr) Store(o OffsetPtr) { a.v.Store(uint64(o)) }

// CompareAndSwap performs a CAS on the offset word.
func (a *AtomicOffsetPtr) CompareAndSwap(old, new OffsetPtr) bool {
	return a.v.CompareAndSwap(uint64(old), uint64(new))
}

// SetNull stores the null offset.
func (a *AtomicOffsetPtr) SetNull() { a.Store(NullOffset) }

// IsNull reports whether the current offset is null.
func (a *AtomicOffsetPtr) IsNull() bool { return a.Load().IsNull() }

// Pointer is the canonical cross-process reference: which allocator, and
// where inside it. Resolving a Pointer requires the process-local registry.
type Pointer struct {
	Alloc AllocatorID
	Off   OffsetPtr
}

// NullPointer returns the null reference.
func NullPointer() Pointer {
	return Pointer{Alloc: NullAllocatorID(), Off: NullOffset}
}

// IsNull reports whether p refers to nothing.
func (p Pointer) IsNull() bool {
	return p.Alloc.IsNull() || p.Off.IsNull()
}

// Add returns p advanced by n bytes.
func (p Pointer) Add(n uint64) Pointer {
	return Pointer{Alloc: p.Alloc, Off: p.Off.Add(n)}
}

// Sub returns p moved back by n bytes.
func (p Pointer) Sub(n uint64) Pointer {
	return Pointer{Alloc: p.Alloc, Off: p.Off.Sub(n)}
}

// Mark returns p with the offset's mark bit set.
func (p Pointer) Mark() Pointer { return Pointer{Alloc: p.Alloc, Off: p.Off.Mark()} }

// Unmark returns p with the offset's mark bit cleared.
func (p Pointer) Unmark() Pointer { return Pointer{Alloc: p.Alloc, Off: p.Off.Unmark()} }

// IsMarked reports whether the offset's mark bit is set.
func (p Pointer) IsMarked() bool { return p.Off.IsMarked() }

// Resolve maps p onto a data region mapped in this process. It returns the
// bytes starting at the offset, or nil when p is null. The caller is
// responsible for passing the region that belongs to p's allocator; use
// ResolvePointer to go through the registry instead.
func (p Pointer) Resolve(region []byte) []byte {
	if p.IsNull() {
		return nil
	}
	off := uint64(p.Off.Unmark())
	if off >= uint64(len(region)) {
		return nil
	}
	return region[off:]
}

func (p Pointer) String() string {
	return fmt.Sprintf("%v::%d", p.Alloc, uint64(p.Off))
}
