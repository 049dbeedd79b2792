// Package format houses the low-level binary layout of shmkit regions:
// field offsets for the backend header and free-block headers, alignment
// masks, and little-endian codecs. The goal is to keep every byte offset
// that attaching processes depend on in one place, independent from the
// public API, so higher-level packages never hand-compute layout.
package format

const (
	// HeaderRegionSize is the number of bytes reserved at the start of every
	// backend region for the MemoryBackendHeader. The header itself is much
	// smaller; the region is padded to a full page so the data section starts
	// on a 4 KiB boundary and attachers can map the header page alone.
	HeaderRegionSize = 4096

	// Backend header field offsets (little-endian, packed, stable across
	// processes and releases):
	//   0x00  u64  backend id (major/minor packed)
	//   0x08  u64  md_size (bytes of header actually used)
	//   0x10  u64  data_size
	//   0x18  i64  data_id (offset of the embedded allocator; -1 if none)
	//   0x20  u32  flag bits
	HdrOffBackendID = 0
	HdrOffMdSize    = 8
	HdrOffDataSize  = 16
	HdrOffDataID    = 24
	HdrOffFlags     = 32

	// HdrMdSize is the number of header bytes in active use.
	HdrMdSize = 36

	// Header flag bits.
	HdrFlagInitialized = 1 << 0
	HdrFlagOwned       = 1 << 1

	// MinBackendSize is the smallest region a backend will reserve. Requests
	// below this are rounded up, matching the original runtime's contract.
	MinBackendSize = 1 << 20

	// BuddyPageSize is the size of the header at the start of every free or
	// in-use block:
	//   0x00  u64  next-link offset (NullU64 for end of list)
	//   0x08  u64  total block size including this header
	BuddyPageSize = 16
	PageOffNext   = 0
	PageOffSize   = 8

	// NullU64 encodes a null offset. Offset 0 is a valid location, so null
	// must be a value no allocation can produce.
	NullU64 = ^uint64(0)
)

const (
	align8Mask  = 8 - 1
	align4KMask = 4096 - 1
)
