package alloc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/warpio/shmkit/shm"
	"github.com/warpio/shmkit/shm/backend"
)

// newTestBuddy stands up a buddy allocator over a process-local backend with
// a data region of at least size bytes.
func newTestBuddy(t *testing.T, size uint64) *Buddy {
	t.Helper()
	b, err := backend.NewMalloc(shm.AllocatorID{Backend: 0, Sub: 0}, size)
	if err != nil {
		t.Fatalf("NewMalloc: %v", err)
	}
	t.Cleanup(func() {
		shm.UnregisterAllocator(b.ID())
		_ = b.Destroy()
	})
	a, err := MakeBuddy(b)
	if err != nil {
		t.Fatalf("MakeBuddy: %v", err)
	}
	return a
}

func TestBuddyAllocFreeImmediate(t *testing.T) {
	cases := []struct {
		name  string
		count int
		size  uint64
	}{
		{"small-1KB", 10000, 1024},
		{"medium-64KB", 1000, 64 * 1024},
		{"large-1MB", 100, 1024 * 1024},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := newTestBuddy(t, 128<<20)
			ctx := shm.NullContext()
			for i := 0; i < c.count; i++ {
				p := a.Allocate(ctx, c.size)
				if p.IsNull() {
					t.Fatalf("iteration %d: allocation of %d bytes failed", i, c.size)
				}
				if uint64(len(p.Buf)) != c.size {
					t.Fatalf("window is %d bytes, want %d", len(p.Buf), c.size)
				}
				p.Buf[0] = byte(i)
				p.Buf[len(p.Buf)-1] = byte(i)
				if err := a.Free(ctx, p); err != nil {
					t.Fatalf("iteration %d: Free: %v", i, err)
				}
			}
			if got := a.AllocatedBytes(); got != 0 {
				t.Fatalf("outstanding bytes after drain = %d, want 0", got)
			}
		})
	}
}

func TestBuddyBatchAllocFree(t *testing.T) {
	a := newTestBuddy(t, 128<<20)
	ctx := shm.NullContext()
	for round := 0; round < 100; round++ {
		var ptrs []shm.FullPtr
		for i := 0; i < 100; i++ {
			p := a.Allocate(ctx, 4096)
			if p.IsNull() {
				t.Fatalf("round %d: allocation %d failed", round, i)
			}
			ptrs = append(ptrs, p)
		}
		for _, p := range ptrs {
			if err := a.Free(ctx, p); err != nil {
				t.Fatalf("round %d: Free: %v", round, err)
			}
		}
	}
	if got := a.AllocatedBytes(); got != 0 {
		t.Fatalf("outstanding bytes = %d, want 0", got)
	}
}

// A freed block must satisfy the next allocation of the same size: the exact
// total (header + data) returns to a free list, nothing leaks.
func TestBuddyFreeThenReuseSameBlock(t *testing.T) {
	a := newTestBuddy(t, 1<<20)
	ctx := shm.NullContext()

	p := a.Allocate(ctx, 2048)
	if p.IsNull() {
		t.Fatal("allocation failed")
	}
	first := p.Shm.Off
	if err := a.Free(ctx, p); err != nil {
		t.Fatal(err)
	}
	q := a.Allocate(ctx, 2048)
	if q.IsNull() {
		t.Fatal("re-allocation failed")
	}
	if q.Shm.Off != first {
		t.Fatalf("re-allocation at offset %d, want the freed block at %d", q.Shm.Off, first)
	}
}

func TestBuddyFreeNullPointer(t *testing.T) {
	a := newTestBuddy(t, 1<<20)
	if err := a.Free(shm.NullContext(), shm.NullFullPtr()); !errors.Is(err, ErrInvalidFree) {
		t.Fatalf("expected ErrInvalidFree, got %v", err)
	}
}

func TestBuddyFreeForeignAllocatorID(t *testing.T) {
	a := newTestBuddy(t, 1<<20)
	ctx := shm.NullContext()
	p := a.Allocate(ctx, 1024)
	if p.IsNull() {
		t.Fatal("allocation failed")
	}
	p.Shm.Alloc = shm.AllocatorID{Backend: 42, Sub: 42}
	if err := a.Free(ctx, p); !errors.Is(err, ErrInvalidFree) {
		t.Fatalf("expected ErrInvalidFree, got %v", err)
	}
}

func TestBuddyReallocatePreservesData(t *testing.T) {
	a := newTestBuddy(t, 16<<20)
	ctx := shm.NullContext()

	p := a.Allocate(ctx, 1024)
	if p.IsNull() {
		t.Fatal("allocation failed")
	}
	for i := range p.Buf {
		p.Buf[i] = byte(i)
	}
	want := append([]byte(nil), p.Buf...)

	q := a.Reallocate(ctx, p, 64*1024)
	if q.IsNull() {
		t.Fatal("reallocation failed")
	}
	if !bytes.Equal(q.Buf[:1024], want) {
		t.Fatal("reallocation lost data")
	}
	if err := a.Free(ctx, q); err != nil {
		t.Fatal(err)
	}
	if got := a.AllocatedBytes(); got != 0 {
		t.Fatalf("outstanding bytes = %d, want 0", got)
	}
}

func TestBuddyAlignedAllocate(t *testing.T) {
	a := newTestBuddy(t, 16<<20)
	ctx := shm.NullContext()
	for _, align := range []uint64{8, 64, 256, 4096} {
		p := a.AlignedAllocate(ctx, 1024, align)
		if p.IsNull() {
			t.Fatalf("aligned allocation (align %d) failed", align)
		}
		if uint64(p.Shm.Off)%align != 0 {
			t.Fatalf("offset %d not aligned to %d", p.Shm.Off, align)
		}
		if err := a.Free(ctx, p); err != nil {
			t.Fatalf("Free of aligned block: %v", err)
		}
	}
	if got := a.AllocatedBytes(); got != 0 {
		t.Fatalf("outstanding bytes = %d, want 0", got)
	}
}

// Placement at an arbitrary interior offset: everything before the state is
// ignored, everything after is managed.
func TestBuddyWeirdOffsetPlacement(t *testing.T) {
	b, err := backend.NewMalloc(shm.AllocatorID{Backend: 0, Sub: 0}, 8<<20)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy()

	const off = 256 * 1024
	a, err := NewBuddyAt(b.Data(), off, b.ID())
	if err != nil {
		t.Fatalf("NewBuddyAt: %v", err)
	}
	if a.DataStart() != off+BuddyStateSize {
		t.Fatalf("DataStart = %d, want %d", a.DataStart(), off+BuddyStateSize)
	}
	ctx := shm.NullContext()
	for i := 0; i < 100; i++ {
		p := a.Allocate(ctx, 4096)
		if p.IsNull() {
			t.Fatalf("allocation %d failed", i)
		}
		if uint64(p.Shm.Off) < a.DataStart() {
			t.Fatalf("allocation at %d precedes data start %d", p.Shm.Off, a.DataStart())
		}
		if err := a.Free(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBuddyAttachSeesOwnerState(t *testing.T) {
	b, err := backend.NewMalloc(shm.AllocatorID{Backend: 5, Sub: 0}, 4<<20)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		shm.UnregisterAllocator(b.ID())
		_ = b.Destroy()
	}()

	owner, err := MakeBuddy(b)
	if err != nil {
		t.Fatal(err)
	}
	ctx := shm.NullContext()
	p := owner.Allocate(ctx, 4096)
	if p.IsNull() {
		t.Fatal("owner allocation failed")
	}
	copy(p.Buf, []byte("written by owner"))

	att, err := AttachBuddy(b)
	if err != nil {
		t.Fatalf("AttachBuddy: %v", err)
	}
	if att.ID() != owner.ID() {
		t.Fatalf("attached id %v, owner id %v", att.ID(), owner.ID())
	}
	got := att.Region()[p.Shm.Off : uint64(p.Shm.Off)+16]
	if string(got) != "written by owner" {
		t.Fatalf("attacher read %q", got)
	}
	// The attacher allocates from the same shared heap.
	q := att.Allocate(ctx, 1024)
	if q.IsNull() {
		t.Fatal("attacher allocation failed")
	}
	if q.Shm.Off == p.Shm.Off {
		t.Fatal("attacher allocation collided with a live block")
	}
}

func TestBuddyAttachWithoutAllocator(t *testing.T) {
	b, err := backend.NewMalloc(shm.AllocatorID{Backend: 0, Sub: 0}, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy()
	if _, err := AttachBuddy(b); !errors.Is(err, ErrNoAllocator) {
		t.Fatalf("expected ErrNoAllocator, got %v", err)
	}
}

func TestBuddyOffsetZeroDistinctFromNull(t *testing.T) {
	a := newTestBuddy(t, 1<<20)
	ctx := shm.NullContext()
	p := a.Allocate(ctx, 1024)
	if p.IsNull() {
		t.Fatal("allocation failed")
	}
	if p.Shm.Off.IsNull() {
		t.Fatal("valid allocation produced the null offset")
	}
	fp, err := a.PtrFromOffset(p.Shm.Off)
	if err != nil {
		t.Fatalf("PtrFromOffset: %v", err)
	}
	if fp.Shm != p.Shm {
		t.Fatalf("offset round trip gave %v, want %v", fp.Shm, p.Shm)
	}
	// Offset 0 is where the allocator object itself starts: a valid
	// location, distinct from the null offset.
	zero, err := a.PtrFromOffset(0)
	if err != nil || zero.IsNull() {
		t.Fatalf("offset 0 treated as null: %v", err)
	}
}
