package alloc

import "github.com/warpio/shmkit/internal/format"

// BuddyPage is the 16-byte header at the start of every free or in-use
// block: a next-link offset and the block's total size, header included.
// The size field is authoritative; class indices are derived from it, never
// the other way around, because one large list can hold blocks of different
// exact sizes.
//
// No block smaller than this header can exist: remainders whose total length
// would be <= 16 bytes are absorbed into the block being carved, never
// written out as nodes.

// pageNext reads the next-link of the block at off.
func (a *Buddy) pageNext(off uint64) uint64 {
	return format.ReadU64(a.region, int(off)+format.PageOffNext)
}

// setPageNext writes the next-link of the block at off.
func (a *Buddy) setPageNext(off, next uint64) {
	format.PutU64(a.region, int(off)+format.PageOffNext, next)
}

// pageSize reads the total size of the block at off.
func (a *Buddy) pageSize(off uint64) uint64 {
	return format.ReadU64(a.region, int(off)+format.PageOffSize)
}

// setPageSize writes the total size of the block at off.
func (a *Buddy) setPageSize(off, total uint64) {
	format.PutU64(a.region, int(off)+format.PageOffSize, total)
}

// listHead reads the free-list head stored at the given region offset.
func (a *Buddy) listHead(slot int) uint64 {
	return format.ReadU64(a.region, slot)
}

// setListHead writes the free-list head stored at the given region offset.
func (a *Buddy) setListHead(slot int, off uint64) {
	format.PutU64(a.region, slot, off)
}

// pushPage links the block at off onto the list whose head lives at slot.
func (a *Buddy) pushPage(slot int, off uint64) {
	a.setPageNext(off, a.listHead(slot))
	a.setListHead(slot, off)
}

// popPageFit unlinks and returns the first block on the list at slot whose
// recorded total size is at least minTotal. Blocks below the threshold stay
// linked; a list keyed by floor-log2 may legitimately hold blocks smaller
// than a same-class request.
func (a *Buddy) popPageFit(slot int, minTotal uint64) (uint64, bool) {
	prev := uint64(format.NullU64)
	cur := a.listHead(slot)
	for cur != format.NullU64 {
		if a.pageSize(cur) >= minTotal {
			next := a.pageNext(cur)
			if prev == format.NullU64 {
				a.setListHead(slot, next)
			} else {
				a.setPageNext(prev, next)
			}
			a.setPageNext(cur, format.NullU64)
			return cur, true
		}
		prev = cur
		cur = a.pageNext(cur)
	}
	return 0, false
}

// countList returns the number of nodes on the list at slot. Test hook.
func (a *Buddy) countList(slot int) int {
	n := 0
	for cur := a.listHead(slot); cur != format.NullU64; cur = a.pageNext(cur) {
		n++
	}
	return n
}
