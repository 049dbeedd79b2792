package shm

import "sync/atomic"

// MemContext is the per-thread token carried through every allocator call.
// It currently holds only a thread id, used to pick thread-local storage in
// thread-sharded allocators; allocators that ignore sharding still accept
// and forward it.
type MemContext struct {
	TID uint64
}

// NullTID marks a context with no thread binding.
const NullTID = ^uint64(0)

var nextTID atomic.Uint64

// NullContext returns a context with no thread binding.
func NullContext() MemContext {
	return MemContext{TID: NullTID}
}

// WithThread returns a context bound to the given thread id.
func WithThread(tid uint64) MemContext {
	return MemContext{TID: tid}
}

// NewScopedContext acquires a fresh thread id and returns the context plus a
// release func. The release must run on every exit path of the scope:
//
//	ctx, release := shm.NewScopedContext()
//	defer release()
func NewScopedContext() (MemContext, func()) {
	ctx := MemContext{TID: nextTID.Add(1)}
	release := func() {
		// Thread-sharded allocators reclaim per-thread state here. The
		// buddy allocator keeps no TLS, so release is a hook only.
	}
	return ctx, release
}
