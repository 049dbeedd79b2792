package alloc

import (
	"fmt"
	"os"
	"sync"

	"github.com/warpio/shmkit/internal/format"
	"github.com/warpio/shmkit/shm"
	"github.com/warpio/shmkit/shm/backend"
)

// Debug flag - set to true to enable verbose logging (compile-time toggle).
const debugAlloc = false

// Runtime debug flag for allocation logging - controlled by SHM_LOG_ALLOC env var.
var logAlloc = os.Getenv("SHM_LOG_ALLOC") != ""

// Outstanding-byte tracking, on unless SHM_ALLOC_TRACK_SIZE=0.
var trackSize = os.Getenv("SHM_ALLOC_TRACK_SIZE") != "0"

const (
	// smallShift is log2 of the minimum allocation (1 KiB). Requests below
	// it are rounded up.
	smallShift = 10

	// smallMaxShift is log2 of the small/large threshold (16 KiB).
	smallMaxShift = 14

	// numSmallClasses is one power-of-two list per class in [1 KiB, 16 KiB].
	numSmallClasses = smallMaxShift - smallShift + 1

	// numLargeClasses bounds floor_log2(total) - smallMaxShift - 1 for any
	// 64-bit region size.
	numLargeClasses = 48

	minSmall = 1 << smallShift
	smallMax = 1 << smallMaxShift

	// arenaSize is the span carved for the small-object arena on refill.
	arenaSize = 1 << 20

	pageHdrSize = format.BuddyPageSize
)

// On-region allocator state layout (all fields u64, little-endian, relative
// to the state's own offset). The heap cursor and total_alloc are mutated
// with cross-process atomics; everything else is written at init and then
// only under the list lock.
const (
	buddyOffID        = 0
	buddyOffThis      = 8
	buddyOffDataStart = 16
	buddyOffHeap      = 24 // heapStateSize bytes
	buddyOffArenaCur  = 40
	buddyOffArenaEnd  = 48
	buddyOffTotal     = 56
	buddyOffSmall     = 64
	buddyOffLarge     = buddyOffSmall + 8*numSmallClasses
	buddyHdrEnd       = buddyOffLarge + 8*numLargeClasses
)

// BuddyStateSize is the on-region footprint of the allocator object. The
// first user-available byte sits this many bytes after the object's offset.
const BuddyStateSize = 512

// Buddy is the main allocator: a small-object arena plus size-classed free
// lists over a monotonically-growing bump heap, all of whose state lives
// inside the backend's data region so attaching processes can rebind to it
// without reinitializing anything.
type Buddy struct {
	id     shm.AllocatorID
	region []byte
	this   uint64
	heap   Heap

	// mu serializes free-list and arena mutation within this process.
	mu sync.Mutex

	// Sub-allocator bookkeeping; nil/null for backend-rooted allocators.
	parent    *Buddy
	parentOff shm.OffsetPtr
}

// NewBuddyAt constructs a fresh allocator whose state begins at thisOff
// within region and whose heap spans the bytes after the state. When the
// usable span past the state cannot even hold a block header, the
// initializer writes no free-list node and every allocation will return
// ErrOutOfMemory; memory past the region is never touched.
func NewBuddyAt(region []byte, thisOff uint64, id shm.AllocatorID) (*Buddy, error) {
	if thisOff+BuddyStateSize > uint64(len(region)) {
		return nil, ErrRegionTooSmall
	}
	a := &Buddy{id: id, region: region, this: thisOff}

	a.putU64(buddyOffID, id.ToUint64())
	a.putU64(buddyOffThis, thisOff)
	dataStart := thisOff + BuddyStateSize
	a.putU64(buddyOffDataStart, dataStart)

	heapMax := uint64(len(region))
	if heapMax-dataStart <= pageHdrSize {
		// Tiny-region guard: no byte past the state is usable.
		heapMax = dataStart
	}
	a.heap = InitHeap(a.stateBytes(buddyOffHeap, heapStateSize), dataStart, heapMax, true)

	a.putU64(buddyOffArenaCur, 0)
	a.putU64(buddyOffArenaEnd, 0)
	format.AtomicStoreU64(a.region, int(thisOff)+buddyOffTotal, 0)
	for i := 0; i < numSmallClasses; i++ {
		a.setListHead(a.smallSlot(i), format.NullU64)
	}
	for j := 0; j < numLargeClasses; j++ {
		a.setListHead(a.largeSlot(j), format.NullU64)
	}
	return a, nil
}

// attachBuddyAt rebinds to existing allocator state without mutating it.
func attachBuddyAt(region []byte, thisOff uint64) (*Buddy, error) {
	if thisOff+BuddyStateSize > uint64(len(region)) {
		return nil, ErrRegionTooSmall
	}
	a := &Buddy{region: region, this: thisOff}
	a.id = shm.IDFromUint64(a.u64(buddyOffID))
	a.heap = ViewHeap(a.stateBytes(buddyOffHeap, heapStateSize), true)
	return a, nil
}

// MakeBuddy places a fresh allocator at byte 0 of the backend's data region,
// records its offset in the backend header so attachers can find it, and
// registers the region in the process-wide registry. Owner path only.
func MakeBuddy(b backend.Backend) (*Buddy, error) {
	a, err := NewBuddyAt(b.Data(), 0, b.ID())
	if err != nil {
		return nil, err
	}
	b.SetDataID(0)
	shm.RegisterAllocator(a.id, a.region)
	return a, nil
}

// AttachBuddy locates the allocator embedded by the owner via the backend
// header's data_id and rebinds to it. Nothing on the region is mutated.
func AttachBuddy(b backend.Backend) (*Buddy, error) {
	dataID := b.DataID()
	if dataID < 0 {
		return nil, ErrNoAllocator
	}
	a, err := attachBuddyAt(b.Data(), uint64(dataID))
	if err != nil {
		return nil, err
	}
	shm.RegisterAllocator(a.id, a.region)
	return a, nil
}

// ID returns the allocator's process-stable identity.
func (a *Buddy) ID() shm.AllocatorID { return a.id }

// Region returns this process's mapping of the allocator's data region.
func (a *Buddy) Region() []byte { return a.region }

// DataStart returns the offset of the first byte that may be handed out.
func (a *Buddy) DataStart() uint64 { return a.u64(buddyOffDataStart) }

// AllocatedBytes returns the tracked bytes outstanding, headers included.
func (a *Buddy) AllocatedBytes() uint64 {
	return format.AtomicLoadU64(a.region, int(a.this)+buddyOffTotal)
}

// ContainsOffset reports whether p lies inside the allocator's region.
func (a *Buddy) ContainsOffset(p shm.OffsetPtr) bool {
	return !p.IsNull() && uint64(p.Unmark()) < uint64(len(a.region))
}

// AllocateOffset reserves size bytes with the default 8-byte alignment.
func (a *Buddy) AllocateOffset(ctx shm.MemContext, size uint64) (shm.OffsetPtr, error) {
	if size == 0 {
		size = 1
	}
	var user uint64
	var err error
	if size <= smallMax {
		user, err = a.allocateSmall(size)
	} else {
		user, err = a.allocateLarge(size)
	}
	if err != nil {
		return shm.NullOffset, err
	}
	a.addTrack(a.pageSize(user - pageHdrSize))
	return shm.OffsetPtr(user), nil
}

// AlignedAllocateOffset reserves size bytes whose offset is a multiple of
// align (a power of two). Alignments of 8 or less are satisfied by the
// normal path, whose offsets are always 8-aligned; larger ones are carved
// from the heap with the pre-pad kept inside the served span.
func (a *Buddy) AlignedAllocateOffset(ctx shm.MemContext, size, align uint64) (shm.OffsetPtr, error) {
	if align == 0 || 8%align == 0 {
		return a.AllocateOffset(ctx, size)
	}
	span := format.Align8(size) + pageHdrSize + align
	raw, err := a.heap.Allocate(span, 8)
	if err != nil {
		return shm.NullOffset, err
	}
	user := format.AlignUp(raw+pageHdrSize, align)
	start := user - pageHdrSize
	total := raw + span - start
	a.setPageNext(start, format.NullU64)
	a.setPageSize(start, total)
	a.addTrack(total)
	return shm.OffsetPtr(user), nil
}

// ReallocateOffset moves the allocation at p to newSize. The old bytes are
// copied up to the smaller of the two data lengths. On failure the old
// allocation is untouched.
func (a *Buddy) ReallocateOffset(ctx shm.MemContext, p shm.OffsetPtr, newSize uint64) (shm.OffsetPtr, error) {
	if p.IsNull() {
		return a.AllocateOffset(ctx, newSize)
	}
	newOff, err := a.AllocateOffset(ctx, newSize)
	if err != nil {
		return shm.NullOffset, err
	}
	oldUser := uint64(p.Unmark())
	oldData := a.pageSize(oldUser-pageHdrSize) - pageHdrSize
	n := oldData
	if newSize < n {
		n = newSize
	}
	copy(a.region[uint64(newOff):uint64(newOff)+n], a.region[oldUser:oldUser+n])
	if err := a.FreeOffset(ctx, p); err != nil {
		return shm.NullOffset, err
	}
	return newOff, nil
}

// FreeOffset returns the allocation at p to the appropriate free list.
// Freeing is O(1) and performs no coalescing. Ownership beyond bounds
// checking is not validated; the caller guarantees p came from this
// allocator.
func (a *Buddy) FreeOffset(ctx shm.MemContext, p shm.OffsetPtr) error {
	if p.IsNull() {
		return ErrInvalidFree
	}
	user := uint64(p.Unmark())
	if user < a.DataStart()+pageHdrSize || user >= uint64(len(a.region)) {
		return fmt.Errorf("%w: offset %d", ErrInvalidFree, user)
	}
	block := user - pageHdrSize
	total := a.pageSize(block)
	if total <= pageHdrSize || block+total > uint64(len(a.region)) {
		return fmt.Errorf("%w: corrupt block header at %d", ErrInvalidFree, block)
	}
	a.mu.Lock()
	a.freeBlockLocked(block, total)
	a.mu.Unlock()
	a.subTrack(total)
	return nil
}

// ----- small path -----

func (a *Buddy) allocateSmall(size uint64) (uint64, error) {
	round := format.NextPow2(size)
	if round < minSmall {
		round = minSmall
	}
	idx := format.CeilLog2(round) - smallShift
	total := round + pageHdrSize

	a.mu.Lock()
	defer a.mu.Unlock()

	// Exact class first, then every larger class: a bigger page beats a
	// spurious out-of-memory.
	if off, ok := a.popSmallAscending(idx, total); ok {
		return off + pageHdrSize, nil
	}
	if off, ok := a.arenaAllocLocked(total); ok {
		return off + pageHdrSize, nil
	}
	if !a.repopulateArenaLocked(total) {
		return 0, ErrOutOfMemory
	}
	// Repopulation may have pushed remainders onto the lists; the retry
	// searches ascending too, not just the exact class.
	if off, ok := a.popSmallAscending(idx, total); ok {
		return off + pageHdrSize, nil
	}
	if off, ok := a.arenaAllocLocked(total); ok {
		return off + pageHdrSize, nil
	}
	return 0, ErrOutOfMemory
}

func (a *Buddy) popSmallAscending(idx int, total uint64) (uint64, bool) {
	for j := idx; j < numSmallClasses; j++ {
		if off, ok := a.popPageFit(a.smallSlot(j), total); ok {
			return off, true
		}
	}
	return 0, false
}

// arenaAllocLocked bump-allocates a block of total bytes from the small
// arena and writes its header.
func (a *Buddy) arenaAllocLocked(total uint64) (uint64, bool) {
	cur := a.u64(buddyOffArenaCur)
	end := a.u64(buddyOffArenaEnd)
	if end-cur < total {
		return 0, false
	}
	a.putU64(buddyOffArenaCur, cur+total)
	a.setPageNext(cur, format.NullU64)
	a.setPageSize(cur, total)
	return cur, true
}

// repopulateArenaLocked replaces the small arena with a fresh span able to
// serve at least needTotal bytes: from the heap when it still has room,
// otherwise by consuming a freed large page. The tail of a consumed page
// beyond the arena span goes back to its free list rather than leaking.
func (a *Buddy) repopulateArenaLocked(needTotal uint64) bool {
	// The old arena stays in place until a replacement is found (setArena
	// recycles it), so a failed refill leaves the arena and lists unchanged.
	if off, err := a.heap.Allocate(arenaSize, 8); err == nil {
		a.setArena(off, off+arenaSize)
		return true
	}
	// Heap has less than a full arena left; take the rest if it covers the
	// request.
	start := format.AlignUp(a.heap.Offset(), 8)
	if max := a.heap.MaxSize(); start < max && max-start >= needTotal {
		if off, err := a.heap.Allocate(max-start, 8); err == nil {
			a.setArena(off, off+(max-start))
			return true
		}
	}
	// Heap exhausted: consume a freed large page.
	for j := 0; j < numLargeClasses; j++ {
		off, ok := a.popPageFit(a.largeSlot(j), needTotal)
		if !ok {
			continue
		}
		if debugAlloc || logAlloc {
			fmt.Printf("alloc: arena refill from large page at %d (%d bytes)\n", off, a.pageSize(off))
		}
		span := a.pageSize(off)
		if span > arenaSize {
			if rem := span - arenaSize; rem > pageHdrSize {
				a.freeBlockLocked(off+arenaSize, rem)
				span = arenaSize
			}
		}
		a.setArena(off, off+span)
		return true
	}
	return false
}

// setArena replaces the small arena. Whatever is left of the old arena is
// too small for the pending request but may still serve another class, so
// it is recycled onto a free list first.
func (a *Buddy) setArena(cur, end uint64) {
	oldCur := a.u64(buddyOffArenaCur)
	oldEnd := a.u64(buddyOffArenaEnd)
	if oldEnd-oldCur > pageHdrSize {
		a.freeBlockLocked(oldCur, oldEnd-oldCur)
	}
	a.putU64(buddyOffArenaCur, cur)
	a.putU64(buddyOffArenaEnd, end)
}

// ----- large path -----

func (a *Buddy) allocateLarge(size uint64) (uint64, error) {
	total := format.Align8(size) + pageHdrSize

	a.mu.Lock()
	defer a.mu.Unlock()

	// Search the request's class and every class above it. The class index
	// floors the size, so the exact class can hold both smaller and larger
	// blocks; popPageFit filters by the recorded size.
	idx := a.largeClass(total)
	for j := idx; j < numLargeClasses; j++ {
		off, ok := a.popPageFit(a.largeSlot(j), total)
		if !ok {
			continue
		}
		blockTotal := a.pageSize(off)
		if rem := blockTotal - total; rem > pageHdrSize {
			a.freeBlockLocked(off+total, rem)
			a.setPageSize(off, total)
		}
		// Remainders of a header or less stay absorbed in the block: a
		// zero-data node would corrupt the lists.
		return off + pageHdrSize, nil
	}

	off, err := a.heap.Allocate(total, 8)
	if err != nil {
		return 0, ErrOutOfMemory
	}
	a.setPageNext(off, format.NullU64)
	a.setPageSize(off, total)
	return off + pageHdrSize, nil
}

// ----- free -----

// freeBlockLocked writes the block's header and links it onto the class its
// recorded size selects. Blocks too small to carry any payload class are
// parked in the lowest small class; popPageFit skips them until a request
// they fit comes along.
func (a *Buddy) freeBlockLocked(off, total uint64) {
	a.setPageSize(off, total)
	data := total - pageHdrSize
	if data > smallMax {
		a.pushPage(a.largeSlot(a.largeClass(total)), off)
		return
	}
	a.pushPage(a.smallSlot(a.smallClassFloor(data)), off)
}

// ----- classification -----

func (a *Buddy) smallClassFloor(data uint64) int {
	c := format.FloorLog2(data) - smallShift
	if c < 0 {
		c = 0
	}
	if c >= numSmallClasses {
		c = numSmallClasses - 1
	}
	return c
}

func (a *Buddy) largeClass(total uint64) int {
	c := format.FloorLog2(total) - smallMaxShift - 1
	if c < 0 {
		c = 0
	}
	if c >= numLargeClasses {
		c = numLargeClasses - 1
	}
	return c
}

func (a *Buddy) smallSlot(i int) int {
	return int(a.this) + buddyOffSmall + 8*i
}

func (a *Buddy) largeSlot(j int) int {
	return int(a.this) + buddyOffLarge + 8*j
}

// ----- state access -----

func (a *Buddy) u64(off int) uint64 {
	return format.ReadU64(a.region, int(a.this)+off)
}

func (a *Buddy) putU64(off int, v uint64) {
	format.PutU64(a.region, int(a.this)+off, v)
}

func (a *Buddy) stateBytes(off, n int) []byte {
	start := int(a.this) + off
	return a.region[start : start+n]
}

func (a *Buddy) addTrack(n uint64) {
	if trackSize {
		format.AtomicAddU64(a.region, int(a.this)+buddyOffTotal, n)
	}
}

func (a *Buddy) subTrack(n uint64) {
	if trackSize {
		format.AtomicAddU64(a.region, int(a.this)+buddyOffTotal, ^(n - 1))
	}
}
