package alloc

import "github.com/warpio/shmkit/shm"

// Sub-allocation: any allocator can serve as the backing region for another
// allocator. The parent reserves one contiguous span — child state plus the
// child's data — and the child runs entirely inside it, so freeing the child
// is a single Free of that span.

// NewSub carves a child allocator with dataSize usable bytes out of parent.
// The child's identity reuses the parent's backend id with the caller-chosen
// sub slot. The child is registered in the process-wide registry; its
// offsets are relative to its own span.
func NewSub(parent *Buddy, ctx shm.MemContext, subID int32, dataSize uint64) (*Buddy, error) {
	span := uint64(BuddyStateSize) + dataSize
	off, err := parent.AllocateOffset(ctx, span)
	if err != nil {
		return nil, err
	}
	start := uint64(off.Unmark())
	region := parent.Region()[start : start+span : start+span]
	id := shm.AllocatorID{Backend: parent.ID().Backend, Sub: subID}
	child, err := NewBuddyAt(region, 0, id)
	if err != nil {
		_ = parent.FreeOffset(ctx, off)
		return nil, err
	}
	child.parent = parent
	child.parentOff = off
	shm.RegisterAllocator(id, region)
	return child, nil
}

// FreeSub returns the child's span to parent. It is exactly a Free of the
// span's FullPtr guarded by the parent's containment check; the parent does
// not otherwise distinguish a sub-allocator span from a user block. The
// child must not be used afterwards.
func FreeSub(parent *Buddy, ctx shm.MemContext, child *Buddy) error {
	if child == nil || child.parent != parent {
		return ErrInvalidFree
	}
	if !parent.ContainsOffset(child.parentOff) {
		return ErrInvalidFree
	}
	shm.UnregisterAllocator(child.ID())
	off := child.parentOff
	child.parent = nil
	child.parentOff = shm.NullOffset
	return parent.FreeOffset(ctx, off)
}
