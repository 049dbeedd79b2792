package alloc

// End-to-end allocator scenarios: sustained round trips, fragmentation
// recovery, and cross-goroutine contention on one shared heap.

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/warpio/shmkit/shm"
)

// Round-trip of 10 000 x 1 KiB blocks, freed in reverse order, twice.
func TestRoundTripTenThousandSmallBlocks(t *testing.T) {
	a := newTestBuddy(t, 128<<20)
	ctx := shm.NullContext()

	for round := 0; round < 2; round++ {
		ptrs := make([]shm.FullPtr, 0, 10000)
		for i := 0; i < 10000; i++ {
			p := a.Allocate(ctx, 1024)
			if p.IsNull() {
				t.Fatalf("round %d: allocation %d failed", round, i)
			}
			ptrs = append(ptrs, p)
		}
		for i := len(ptrs) - 1; i >= 0; i-- {
			if err := a.Free(ctx, ptrs[i]); err != nil {
				t.Fatalf("round %d: Free %d: %v", round, i, err)
			}
		}
	}
	if got := a.AllocatedBytes(); got != 0 {
		t.Fatalf("outstanding bytes = %d, want 0", got)
	}
}

// 100 x 1 MiB, free all, then 1 000 x 128 B; every allocation succeeds on a
// 128 MiB backend. The freed large pages stay on their lists; the small
// requests are served from an arena carved from the heap's remaining space.
func TestLargeThenSmall(t *testing.T) {
	a := newTestBuddy(t, 128<<20)
	ctx := shm.NullContext()

	var large []shm.FullPtr
	for i := 0; i < 100; i++ {
		p := a.Allocate(ctx, 1<<20)
		if p.IsNull() {
			t.Fatalf("large allocation %d failed", i)
		}
		large = append(large, p)
	}
	for _, p := range large {
		if err := a.Free(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	var small []shm.FullPtr
	for i := 0; i < 1000; i++ {
		p := a.Allocate(ctx, 128)
		if p.IsNull() {
			t.Fatalf("small allocation %d failed", i)
		}
		small = append(small, p)
	}
	for _, p := range small {
		if err := a.Free(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if got := a.AllocatedBytes(); got != 0 {
		t.Fatalf("outstanding bytes = %d, want 0", got)
	}
}

// Drain an 8 MiB backend, fail a hopeless 64 MiB request, then recover:
// after one block is freed, a 1 KiB allocation succeeds.
func TestFailedHugeAllocationRecovery(t *testing.T) {
	a := newTestBuddy(t, 8<<20)
	ctx := shm.NullContext()

	drained := drain(t, a, 1<<20)
	if len(drained) == 0 {
		t.Fatal("backend too small to stage the test")
	}

	if p := a.Allocate(ctx, 64<<20); !p.IsNull() {
		t.Fatal("64 MiB allocation succeeded on an 8 MiB backend")
	}

	freed := drained[len(drained)-1]
	drained = drained[:len(drained)-1]
	if err := a.Free(ctx, freed); err != nil {
		t.Fatal(err)
	}
	if p := a.Allocate(ctx, 1024); p.IsNull() {
		t.Fatal("1 KiB allocation failed after freeing a 1 MiB block")
	}
	for _, q := range drained {
		if err := a.Free(ctx, q); err != nil {
			t.Fatal(err)
		}
	}
}

// Eight goroutines hammer one allocator with random sizes. Every window
// carries a goroutine-unique pattern that must survive until its free, so
// overlapping live blocks are caught, and the tracked total returns to zero
// after the join.
func TestConcurrentRandomAllocations(t *testing.T) {
	const (
		goroutines = 8
		iterations = 10000
		batch      = 64
	)
	a := newTestBuddy(t, 64<<20)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			ctx, release := shm.NewScopedContext()
			defer release()
			rng := rand.New(rand.NewSource(int64(g)))
			pattern := byte(0xA0 | g)

			live := make([]shm.FullPtr, 0, batch)
			flush := func() {
				for _, p := range live {
					for i := range p.Buf {
						if p.Buf[i] != pattern {
							t.Errorf("goroutine %d: block at %v corrupted", g, p.Shm)
							return
						}
					}
					if err := a.Free(ctx, p); err != nil {
						t.Errorf("goroutine %d: Free: %v", g, err)
						return
					}
				}
				live = live[:0]
			}

			for i := 0; i < iterations; i++ {
				size := uint64(1 + rng.Intn(16*1024))
				p := a.Allocate(ctx, size)
				if p.IsNull() {
					// Contention can momentarily exhaust the heap; give the
					// allocator its memory back and retry once.
					flush()
					p = a.Allocate(ctx, size)
					if p.IsNull() {
						t.Errorf("goroutine %d: allocation of %d bytes failed", g, size)
						return
					}
				}
				for j := range p.Buf {
					p.Buf[j] = pattern
				}
				live = append(live, p)
				if len(live) == batch {
					flush()
				}
			}
			flush()
		}(g)
	}
	wg.Wait()

	if got := a.AllocatedBytes(); got != 0 {
		t.Fatalf("outstanding bytes after join = %d, want 0", got)
	}
}
