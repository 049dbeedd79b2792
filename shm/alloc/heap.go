package alloc

import "github.com/warpio/shmkit/internal/format"

// heapStateSize is the on-region footprint of a Heap: cursor and bound.
const heapStateSize = 16

const (
	heapOffCursor = 0
	heapOffMax    = 8
)

// Heap is the bump-pointer primitive every allocator draws virgin bytes
// from. Its two words (current offset, maximum offset) live inside the
// region it manages, so every attached process shares one cursor.
//
// The cursor only ever grows. A failed allocation never moves it: the bound
// is checked before the compare-and-swap, so rollback is implicit.
type Heap struct {
	b      []byte
	atomic bool
}

// InitHeap writes fresh heap state into b and returns the view. atomic
// selects the shared variant; the single-thread variant uses plain loads
// and stores over the same representation.
func InitHeap(b []byte, initial, max uint64, atomic bool) Heap {
	h := Heap{b: b[:heapStateSize], atomic: atomic}
	format.PutU64(h.b, heapOffCursor, initial)
	format.PutU64(h.b, heapOffMax, max)
	return h
}

// ViewHeap wraps existing heap state without mutating it, as done when
// attaching to a live region.
func ViewHeap(b []byte, atomic bool) Heap {
	return Heap{b: b[:heapStateSize], atomic: atomic}
}

// Allocate reserves size bytes aligned to align and returns their offset.
// Concurrent callers race on the cursor via CAS; losers retry. When the
// aligned end would exceed the bound the call fails with ErrOutOfMemory
// without touching the cursor.
func (h Heap) Allocate(size, align uint64) (uint64, error) {
	if align == 0 {
		align = 8
	}
	max := format.ReadU64(h.b, heapOffMax)
	for {
		cur := h.load()
		aligned := format.AlignUp(cur, align)
		end := aligned + size
		if end > max || end < cur {
			return 0, ErrOutOfMemory
		}
		if h.cas(cur, end) {
			return aligned, nil
		}
	}
}

// Offset returns the current cursor.
func (h Heap) Offset() uint64 {
	return h.load()
}

// MaxSize returns the heap's bound.
func (h Heap) MaxSize() uint64 {
	return format.ReadU64(h.b, heapOffMax)
}

// Remaining returns the bytes left before the bound.
func (h Heap) Remaining() uint64 {
	cur := h.load()
	max := format.ReadU64(h.b, heapOffMax)
	if cur >= max {
		return 0
	}
	return max - cur
}

func (h Heap) load() uint64 {
	if h.atomic {
		return format.AtomicLoadU64(h.b, heapOffCursor)
	}
	return format.ReadU64(h.b, heapOffCursor)
}

func (h Heap) cas(old, new uint64) bool {
	if h.atomic {
		return format.AtomicCasU64(h.b, heapOffCursor, old, new)
	}
	format.PutU64(h.b, heapOffCursor, new)
	return true
}
