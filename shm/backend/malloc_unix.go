//go:build unix

package backend

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/warpio/shmkit/shm"
)

// Malloc is the process-local backend: a private anonymous mapping with the
// standard region layout. It cannot be attached from another process.
type Malloc struct {
	region
}

// NewMalloc reserves a process-local region of at least size data bytes.
func NewMalloc(id shm.AllocatorID, size uint64) (*Malloc, error) {
	size = clampSize(size)
	total := totalSize(size)
	mapping, err := unix.Mmap(-1, 0, int(total),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %v", ErrShmemCreateFailed, err)
	}
	m := &Malloc{}
	m.mapping = mapping
	m.initLayout(id, size)
	return m, nil
}

// AttachMalloc always fails: a private mapping has no name another process
// could open.
func AttachMalloc(url string) (*Malloc, error) {
	return nil, ErrShmemNotSupported
}

// Detach releases the mapping. The region's contents are gone afterwards.
func (m *Malloc) Detach() error {
	if m.mapping == nil {
		return nil
	}
	err := unix.Munmap(m.mapping)
	m.mapping = nil
	m.data = nil
	if errors.Is(err, unix.EINVAL) {
		// Double-unmap is a no-op for callers.
		return nil
	}
	return err
}

// Destroy is identical to Detach for a private mapping.
func (m *Malloc) Destroy() error {
	return m.Detach()
}
