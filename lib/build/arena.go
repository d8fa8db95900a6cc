// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"fmt"

	"github.com/fastfilestats/ffstats/lib/layout"
	"github.com/fastfilestats/ffstats/lib/region"
)

// Arena is the bump allocator that lays records down after the header.
// Records are appended strictly in allocation order with no holes; the
// cursor is monotone until the indexer seals the arena. Offsets handed
// out are final — nothing relocates a record afterwards.
type Arena struct {
	region *region.Region
	cursor uint32
}

// NewArena creates an arena over a writable region, starting at the
// first byte past the header.
func NewArena(r *region.Region) *Arena {
	return &Arena{region: r, cursor: layout.HeaderSize}
}

// Cursor returns the offset one past the last sealed record.
func (a *Arena) Cursor() uint32 {
	return a.cursor
}

// Append materializes one record: the fixed fields, the encoded name,
// and the stride (the record's total length rounded up to the record
// alignment), then advances the cursor. Returns the record's offset.
//
// Backing pages are committed through the region as the cursor crosses
// the watermark; a commit failure or a cursor past the region cap is
// fatal to the build.
func (a *Arena) Append(fields layout.RecordFields, name string) (uint32, error) {
	off := a.cursor
	encoded := layout.EncodeName(name)
	total := layout.RecordHeaderSize + uint32(len(encoded))
	stride := layout.AlignUp(total, layout.RecordAlign)

	if err := a.region.Ensure(off, stride); err != nil {
		return 0, fmt.Errorf("allocating %d-byte record: %w", stride, err)
	}

	base := a.region.Bytes()
	layout.PutRecordFields(base, off, fields)
	copy(base[off+layout.RecordHeaderSize:off+total], encoded)
	for i := off + total; i < off+stride; i++ {
		base[i] = 0
	}
	layout.PutStride(base, off, stride)

	a.cursor = off + stride
	return off, nil
}
