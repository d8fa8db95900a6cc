// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package region

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// CommitChunk is the granule of backing-space commits: whenever a write
// would cross the commit watermark, at least this much is committed.
const CommitChunk uint32 = 1 << 20

// ErrRegionFull is returned by Ensure when a write would exceed the
// region's reserved maximum. The build treats it as fatal.
var ErrRegionFull = errors.New("region capacity exceeded")

// Region is a mapped section: a fixed-size shared file mapped into the
// process. The server holds the only writable mapping; any number of
// clients hold read-only ones.
type Region struct {
	path      string
	fd        int
	data      []byte
	size      uint32
	committed uint32
	writable  bool
}

// Create creates (replacing any previous incarnation) the section file
// at path, reserves maxBytes of address space over it, and maps it
// read-write. Physical backing is committed lazily through Ensure.
func Create(path string, maxBytes uint32) (*Region, error) {
	if maxBytes < CommitChunk {
		return nil, fmt.Errorf("region maximum %d is below the commit chunk %d", maxBytes, CommitChunk)
	}

	// A previous server instance may have left a section behind.
	// Readers of the old file keep their mapping; the new file is a
	// fresh inode.
	if err := unix.Unlink(path); err != nil && !errors.Is(err, unix.ENOENT) {
		return nil, fmt.Errorf("removing stale section %s: %w", path, err)
	}

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating section %s: %w", path, err)
	}

	// ftruncate sizes the file without allocating blocks: the address
	// range is reserved, not committed.
	if err := unix.Ftruncate(fd, int64(maxBytes)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("sizing section to %d bytes: %w", maxBytes, err)
	}

	data, err := unix.Mmap(fd, 0, int(maxBytes), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mapping section: %w", err)
	}

	return &Region{
		path:     path,
		fd:       fd,
		data:     data,
		size:     maxBytes,
		writable: true,
	}, nil
}

// Attach opens an existing section read-only. The mapping spans the
// whole file; the caller validates the header before trusting any of
// it.
func Attach(path string) (*Region, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening section %s: %w", path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stating section %s: %w", path, err)
	}
	if stat.Size <= 0 || stat.Size > int64(^uint32(0)) {
		unix.Close(fd)
		return nil, fmt.Errorf("section %s has unusable size %d", path, stat.Size)
	}

	data, err := unix.Mmap(fd, 0, int(stat.Size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mapping section %s read-only: %w", path, err)
	}

	return &Region{
		path: path,
		fd:   fd,
		data: data,
		size: uint32(stat.Size),
	}, nil
}

// Bytes returns the mapped range. Offsets from the section format
// index directly into this slice.
func (r *Region) Bytes() []byte {
	return r.data
}

// Size returns the reserved maximum in bytes.
func (r *Region) Size() uint32 {
	return r.size
}

// Path returns the section file path.
func (r *Region) Path() string {
	return r.path
}

// Writable reports whether this mapping was created by Create.
func (r *Region) Writable() bool {
	return r.writable
}

// Committed returns the current commit watermark.
func (r *Region) Committed() uint32 {
	return r.committed
}

// Ensure commits backing space covering [off, off+length). Advances
// the watermark in CommitChunk steps, so repeated calls over the same
// range are cheap no-ops. Returns ErrRegionFull if the range exceeds
// the reserved maximum; a commit failure (backing filesystem out of
// space) is fatal to the build and is returned as-is.
func (r *Region) Ensure(off, length uint32) error {
	if !r.writable {
		return fmt.Errorf("region %s is mapped read-only", r.path)
	}
	end := uint64(off) + uint64(length)
	if end > uint64(r.size) {
		return fmt.Errorf("%w: need %d bytes of %d reserved", ErrRegionFull, end, r.size)
	}
	if end <= uint64(r.committed) {
		return nil
	}

	target := alignCommit(uint32(end), r.size)
	if err := unix.Fallocate(r.fd, 0, int64(r.committed), int64(target-r.committed)); err != nil {
		return fmt.Errorf("committing section bytes [%d, %d): %w", r.committed, target, err)
	}
	r.committed = target
	return nil
}

// alignCommit rounds end up to the next CommitChunk boundary,
// clamped to the region size.
func alignCommit(end, size uint32) uint32 {
	target := (end + CommitChunk - 1) &^ (CommitChunk - 1)
	if target > size || target < end {
		target = size
	}
	return target
}

// Close unmaps the section and closes its descriptor. The file itself
// stays; see Remove.
func (r *Region) Close() error {
	var firstErr error
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			firstErr = fmt.Errorf("unmapping section: %w", err)
		}
		r.data = nil
	}
	if r.fd >= 0 {
		if err := unix.Close(r.fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing section fd: %w", err)
		}
		r.fd = -1
	}
	return firstErr
}

// Remove unlinks the section file. Existing mappings (including other
// processes') stay valid until released; new attaches fail.
func (r *Region) Remove() error {
	if err := unix.Unlink(r.path); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("unlinking section %s: %w", r.path, err)
	}
	return nil
}
