// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"encoding/binary"
	"fmt"
)

// IndexHeaderSize is the size of the directory index header: the group
// count word plus the bucket-head table.
const IndexHeaderSize = 4 + 4*BucketCount

// Index is a view of the directory index header: a count word followed
// by BucketCount bucket-head offsets. Each head points at a bucket
// chain inside the region — a zero-terminated array of group-leader
// offsets.
type Index struct {
	region []byte
	off    uint32
}

// IndexAt returns a view of the index header at off, verifying it lies
// within the region.
func IndexAt(region []byte, off uint32) (Index, error) {
	if err := CheckRange(region, off, IndexHeaderSize); err != nil {
		return Index{}, fmt.Errorf("directory index at %d: %w", off, err)
	}
	return Index{region: region, off: off}, nil
}

// Count returns the number of directory groups the index covers.
func (ix Index) Count() uint32 {
	return binary.LittleEndian.Uint32(ix.region[ix.off:])
}

// BucketHead returns the offset of bucket i's chain.
func (ix Index) BucketHead(i uint32) uint32 {
	return binary.LittleEndian.Uint32(ix.region[ix.off+4+4*i:])
}

// Chain calls visit for each group-leader offset in bucket i's chain,
// in chain order, stopping early if visit returns false. A chain entry
// that falls outside the region terminates the walk with an error; a
// well-formed section never produces one.
func (ix Index) Chain(i uint32, visit func(leaderOffset uint32) bool) error {
	cursor := ix.BucketHead(i)
	for {
		if err := CheckRange(ix.region, cursor, 4); err != nil {
			return fmt.Errorf("bucket %d chain: %w", i, err)
		}
		entry := binary.LittleEndian.Uint32(ix.region[cursor:])
		if entry == 0 {
			return nil
		}
		if !visit(entry) {
			return nil
		}
		cursor += 4
	}
}
