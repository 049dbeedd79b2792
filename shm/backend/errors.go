package backend

import "errors"

var (
	// ErrShmemCreateFailed indicates the OS refused to create, extend, or map
	// the backing region.
	ErrShmemCreateFailed = errors.New("backend: shared memory create failed")

	// ErrShmemNotSupported indicates Attach was called on a variant that does
	// not support multi-process attach.
	ErrShmemNotSupported = errors.New("backend: attach not supported by this variant")

	// ErrNotInitialized indicates an attach found a region whose header was
	// never written by an owner.
	ErrNotInitialized = errors.New("backend: region header not initialized")
)
