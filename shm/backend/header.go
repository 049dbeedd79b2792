package backend

import (
	"github.com/warpio/shmkit/internal/format"
	"github.com/warpio/shmkit/shm"
)

// Header is a view over the MemoryBackendHeader bytes at the start of a
// region. All accessors go through the little-endian codecs in
// internal/format so the on-region encoding is identical in every process.
//
// The owner writes every field exactly once during init; attachers only
// read, with the single exception of data_id, which the owner writes after
// embedding an allocator.
type Header struct {
	b []byte
}

// NewHeader wraps the header page of a mapping.
func NewHeader(b []byte) Header {
	return Header{b: b[:format.HeaderRegionSize]}
}

// BackendID returns the backend identity recorded by the owner.
func (h Header) BackendID() shm.AllocatorID {
	return shm.IDFromUint64(format.ReadU64(h.b, format.HdrOffBackendID))
}

// SetBackendID records the backend identity.
func (h Header) SetBackendID(id shm.AllocatorID) {
	format.PutU64(h.b, format.HdrOffBackendID, id.ToUint64())
}

// MdSize returns the number of header bytes in use.
func (h Header) MdSize() uint64 {
	return format.ReadU64(h.b, format.HdrOffMdSize)
}

// SetMdSize records the number of header bytes in use.
func (h Header) SetMdSize(n uint64) {
	format.PutU64(h.b, format.HdrOffMdSize, n)
}

// DataSize returns the byte length of the data region.
func (h Header) DataSize() uint64 {
	return format.ReadU64(h.b, format.HdrOffDataSize)
}

// SetDataSize records the byte length of the data region.
func (h Header) SetDataSize(n uint64) {
	format.PutU64(h.b, format.HdrOffDataSize, n)
}

// DataID returns the offset of the embedded allocator object within the data
// region, or -1 when no allocator has been embedded.
func (h Header) DataID() int64 {
	return format.ReadI64(h.b, format.HdrOffDataID)
}

// SetDataID records the offset of the embedded allocator object.
func (h Header) SetDataID(off int64) {
	format.PutI64(h.b, format.HdrOffDataID, off)
}

// Initialized reports whether an owner completed init on this region.
func (h Header) Initialized() bool {
	return format.ReadU32(h.b, format.HdrOffFlags)&format.HdrFlagInitialized != 0
}

// Owned reports whether the writing process owned the region.
func (h Header) Owned() bool {
	return format.ReadU32(h.b, format.HdrOffFlags)&format.HdrFlagOwned != 0
}

// SetFlags records the flag bits.
func (h Header) SetFlags(initialized, owned bool) {
	var v uint32
	if initialized {
		v |= format.HdrFlagInitialized
	}
	if owned {
		v |= format.HdrFlagOwned
	}
	format.PutU32(h.b, format.HdrOffFlags, v)
}
