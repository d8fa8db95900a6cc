// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Header field offsets from the region base.
const (
	headerMagicOffset    = 0
	headerVersionOffset  = 4
	headerStatusOffset   = 8
	headerNumNodesOffset = 12
	headerNumDirsOffset  = 16
	headerBytesOffset    = 20
	headerRootOffset     = 24
	headerDirOffset      = 28
)

// word returns an atomic view of the aligned 32-bit field at off. The
// caller guarantees off is 4-aligned and in range; field offsets are
// compile-time constants, so a violation is a programming error.
func word(region []byte, off uint32) *atomic.Uint32 {
	return (*atomic.Uint32)(unsafe.Pointer(&region[off]))
}

// Header is a view of the region header at offset 0 of a mapped
// section. The status word is accessed atomically; the remaining fields
// are written only by the single builder thread before the status
// publishes them.
type Header struct {
	region []byte
}

// NewHeader wraps a mapped region. The region must be at least
// HeaderSize bytes.
func NewHeader(region []byte) (Header, error) {
	if err := CheckRange(region, 0, HeaderSize); err != nil {
		return Header{}, fmt.Errorf("region too small for header: %w", err)
	}
	return Header{region: region}, nil
}

// Init writes a fresh header: magic, version, zeroed counts, and
// StatusBooting. Called once by the builder before any record exists.
func (h Header) Init() {
	binary.LittleEndian.PutUint32(h.region[headerMagicOffset:], Magic)
	binary.LittleEndian.PutUint32(h.region[headerVersionOffset:], FormatVersion)
	binary.LittleEndian.PutUint32(h.region[headerNumNodesOffset:], 0)
	binary.LittleEndian.PutUint32(h.region[headerNumDirsOffset:], 0)
	binary.LittleEndian.PutUint32(h.region[headerBytesOffset:], 0)
	binary.LittleEndian.PutUint32(h.region[headerRootOffset:], 0)
	binary.LittleEndian.PutUint32(h.region[headerDirOffset:], 0)
	h.SetStatus(StatusBooting)
}

// Validate checks the magic and version words. It does not look at the
// status; use [Header.Status] and [Status.Readable] for that.
func (h Header) Validate() error {
	if m := binary.LittleEndian.Uint32(h.region[headerMagicOffset:]); m != Magic {
		return fmt.Errorf("bad section magic 0x%08x, want 0x%08x", m, Magic)
	}
	if v := binary.LittleEndian.Uint32(h.region[headerVersionOffset:]); v != FormatVersion {
		return fmt.Errorf("unsupported section version %d, want %d", v, FormatVersion)
	}
	return nil
}

// Status returns the status word with acquire semantics: a reader that
// observes StatusFinished also observes every write that preceded the
// publishing store.
func (h Header) Status() Status {
	return Status(word(h.region, headerStatusOffset).Load())
}

// SetStatus publishes a new status word with release semantics. The
// builder stores StatusFinished last, after all arena and index writes.
func (h Header) SetStatus(s Status) {
	word(h.region, headerStatusOffset).Store(uint32(s))
}

// NumNodes returns the count of records in the arena, including the
// synthetic root.
func (h Header) NumNodes() uint32 {
	return binary.LittleEndian.Uint32(h.region[headerNumNodesOffset:])
}

// SetNumNodes stores the record count.
func (h Header) SetNumNodes(v uint32) {
	binary.LittleEndian.PutUint32(h.region[headerNumNodesOffset:], v)
}

// NumDirs returns the count of directory groups.
func (h Header) NumDirs() uint32 {
	return binary.LittleEndian.Uint32(h.region[headerNumDirsOffset:])
}

// SetNumDirs stores the directory group count.
func (h Header) SetNumDirs(v uint32) {
	binary.LittleEndian.PutUint32(h.region[headerNumDirsOffset:], v)
}

// Bytes returns the arena extent: the first byte past the last record.
func (h Header) Bytes() uint32 {
	return binary.LittleEndian.Uint32(h.region[headerBytesOffset:])
}

// SetBytes stores the arena extent.
func (h Header) SetBytes(v uint32) {
	binary.LittleEndian.PutUint32(h.region[headerBytesOffset:], v)
}

// RootOffset returns the offset of the synthetic root record.
func (h Header) RootOffset() uint32 {
	return binary.LittleEndian.Uint32(h.region[headerRootOffset:])
}

// SetRootOffset stores the synthetic root offset.
func (h Header) SetRootOffset(v uint32) {
	binary.LittleEndian.PutUint32(h.region[headerRootOffset:], v)
}

// DirOffset returns the offset of the directory index header. Valid
// only once the status is readable.
func (h Header) DirOffset() uint32 {
	return binary.LittleEndian.Uint32(h.region[headerDirOffset:])
}

// SetDirOffset stores the directory index offset.
func (h Header) SetDirOffset(v uint32) {
	binary.LittleEndian.PutUint32(h.region[headerDirOffset:], v)
}

// Region returns the underlying mapped bytes.
func (h Header) Region() []byte {
	return h.region
}
