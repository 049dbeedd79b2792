//go:build unix

package backend

import "github.com/warpio/shmkit/shm"

// GpuShmMmap is a PosixShmMmap whose region is shared with a GPU through
// unified memory. The contract is that the mapped span is one virtual
// region valid for both host and device consumers; nothing is staged or
// copied by this package. A device runtime pins/registers the span (for
// example with host-register APIs) using the same Data() slice the host
// sees, so allocator offsets are meaningful on both sides.
type GpuShmMmap struct {
	PosixShmMmap
}

// NewGpuShm creates a GPU-visible shared region under url.
func NewGpuShm(id shm.AllocatorID, size uint64, url string) (*GpuShmMmap, error) {
	p, err := NewPosixShm(id, size, url)
	if err != nil {
		return nil, err
	}
	return &GpuShmMmap{PosixShmMmap: *p}, nil
}

// AttachGpuShm attaches to a GPU-visible shared region.
func AttachGpuShm(url string) (*GpuShmMmap, error) {
	p, err := AttachPosixShm(url)
	if err != nil {
		return nil, err
	}
	return &GpuShmMmap{PosixShmMmap: *p}, nil
}
