package backend

import (
	"github.com/warpio/shmkit/internal/format"
	"github.com/warpio/shmkit/shm"
)

// Backend is the capability set every region variant provides. An allocator
// captures Data()/DataCapacity() once at init; nothing on the allocation hot
// path goes back through this interface.
type Backend interface {
	// ID returns the backend identity recorded in the header.
	ID() shm.AllocatorID

	// Data returns the user-usable subregion after the 4 KiB header page.
	Data() []byte

	// DataCapacity returns len(Data()) as recorded in the header.
	DataCapacity() uint64

	// DataID returns the offset of the embedded allocator object, -1 if none.
	DataID() int64

	// SetDataID records the offset of the embedded allocator object. Called
	// by the owner immediately after placing the allocator at that offset.
	SetDataID(off int64)

	// IsOwner reports whether this process initialized the region.
	IsOwner() bool

	// Detach releases this process's mapping without affecting other
	// attachers.
	Detach() error

	// Destroy removes the underlying resource. Implies Detach.
	Destroy() error
}

// region holds the state shared by every variant: the full mapping, the
// header view over its first page, and the data slice after the pad.
type region struct {
	mapping []byte
	hdr     Header
	data    []byte
	owned   bool
}

// initLayout writes a fresh header and carves the data slice out of a newly
// reserved mapping. size is the data region length (already clamped to the
// minimum); the mapping must hold format.HeaderRegionSize + size bytes.
func (r *region) initLayout(id shm.AllocatorID, size uint64) {
	r.hdr = NewHeader(r.mapping)
	r.hdr.SetBackendID(id)
	r.hdr.SetMdSize(format.HdrMdSize)
	r.hdr.SetDataSize(size)
	r.hdr.SetDataID(-1)
	r.hdr.SetFlags(true, true)
	r.data = r.mapping[format.HeaderRegionSize : format.HeaderRegionSize+size]
	r.owned = true
}

// attachLayout rebuilds the local views from a full mapping whose header was
// written by another process.
func (r *region) attachLayout() {
	r.hdr = NewHeader(r.mapping)
	size := r.hdr.DataSize()
	r.data = r.mapping[format.HeaderRegionSize : format.HeaderRegionSize+size]
	r.owned = false
}

func (r *region) ID() shm.AllocatorID  { return r.hdr.BackendID() }
func (r *region) Data() []byte         { return r.data }
func (r *region) DataCapacity() uint64 { return uint64(len(r.data)) }
func (r *region) DataID() int64        { return r.hdr.DataID() }
func (r *region) SetDataID(off int64)  { r.hdr.SetDataID(off) }
func (r *region) IsOwner() bool        { return r.owned }

// clampSize applies the 1 MiB minimum to a requested data size.
func clampSize(size uint64) uint64 {
	if size < format.MinBackendSize {
		return format.MinBackendSize
	}
	return size
}

// totalSize returns the full region length for a data size.
func totalSize(dataSize uint64) uint64 {
	return format.HeaderRegionSize + dataSize
}
