//go:build unix

package backend

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/warpio/shmkit/internal/format"
	"github.com/warpio/shmkit/shm"
)

// shmDir is where POSIX shared-memory objects live on Linux; shm_open(3) is
// an open(2) of a name under this tmpfs.
const shmDir = "/dev/shm"

// PosixShmMmap is the multi-process backend: a named shared-memory object
// mapped contiguously. The owner creates and sizes the object; attachers
// open the same URL and recover the layout from the header page.
type PosixShmMmap struct {
	region
	url string
}

// shmPath maps a backend URL ("/name") to its object path.
func shmPath(url string) string {
	return path.Join(shmDir, strings.TrimPrefix(url, "/"))
}

// NewPosixShm creates and maps a shared-memory object of at least size data
// bytes under url. Any object previously registered under the same url is
// destroyed first, matching owner-initializes-fresh semantics.
func NewPosixShm(id shm.AllocatorID, size uint64, url string) (*PosixShmMmap, error) {
	size = clampSize(size)
	total := totalSize(size)

	p := shmPath(url)
	// Stale object from a crashed owner; remove so ftruncate starts zeroed.
	_ = unix.Unlink(p)

	fd, err := unix.Open(p, unix.O_CREAT|unix.O_RDWR|unix.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: shm_open %q: %v", ErrShmemCreateFailed, url, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(total)); err != nil {
		_ = unix.Unlink(p)
		return nil, fmt.Errorf("%w: ftruncate %q to %d: %v", ErrShmemCreateFailed, url, total, err)
	}

	mapping, err := unix.Mmap(fd, 0, int(total),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Unlink(p)
		return nil, fmt.Errorf("%w: mmap %q: %v", ErrShmemCreateFailed, url, err)
	}

	b := &PosixShmMmap{url: url}
	b.mapping = mapping
	b.initLayout(id, size)
	return b, nil
}

// AttachPosixShm maps an already-initialized object. Attachers do not know
// the region's total size a priori, so the header page is mapped alone
// first, the true data_size read from it, and the full region mapped on a
// second pass.
func AttachPosixShm(url string) (*PosixShmMmap, error) {
	fd, err := unix.Open(shmPath(url), unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: shm_open %q: %v", ErrShmemCreateFailed, url, err)
	}
	defer unix.Close(fd)

	hdrPage, err := unix.Mmap(fd, 0, format.HeaderRegionSize,
		unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap header %q: %v", ErrShmemCreateFailed, url, err)
	}
	hdr := NewHeader(hdrPage)
	if !hdr.Initialized() {
		_ = unix.Munmap(hdrPage)
		return nil, fmt.Errorf("%w: %q", ErrNotInitialized, url)
	}
	total := format.Align4K(hdr.MdSize()) + hdr.DataSize()
	if err := unix.Munmap(hdrPage); err != nil {
		return nil, fmt.Errorf("%w: munmap header %q: %v", ErrShmemCreateFailed, url, err)
	}

	mapping, err := unix.Mmap(fd, 0, int(total),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %q to %d: %v", ErrShmemCreateFailed, url, total, err)
	}

	b := &PosixShmMmap{url: url}
	b.mapping = mapping
	b.attachLayout()
	return b, nil
}

// URL returns the object name this backend was created or attached with.
func (b *PosixShmMmap) URL() string { return b.url }

// Sync flushes the mapped region to the backing object.
func (b *PosixShmMmap) Sync() error {
	if b.mapping == nil {
		return nil
	}
	return unix.Msync(b.mapping, unix.MS_SYNC)
}

// Detach unmaps this process's view. Other attachers are unaffected and the
// object itself survives.
func (b *PosixShmMmap) Detach() error {
	if b.mapping == nil {
		return nil
	}
	err := unix.Munmap(b.mapping)
	b.mapping = nil
	b.data = nil
	if errors.Is(err, unix.EINVAL) {
		return nil
	}
	return err
}

// Destroy detaches and unlinks the object name. Mappings held by other
// processes stay valid until they detach.
func (b *PosixShmMmap) Destroy() error {
	derr := b.Detach()
	uerr := unix.Unlink(shmPath(b.url))
	if errors.Is(uerr, unix.ENOENT) {
		uerr = nil
	}
	if derr != nil {
		return derr
	}
	return uerr
}
