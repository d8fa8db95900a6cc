// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/fastfilestats/ffstats/lib/layout"
	"github.com/fastfilestats/ffstats/lib/region"
)

// Dispersion bounds for the bucket sanity check. With a healthy hash
// over a typical tree, very few buckets should be grossly overfull,
// and on a large tree few should be nearly empty.
const (
	dispersionLongChain  = 67
	dispersionShortChain = 5
	dispersionBadBuckets = 10
)

// installIndex seals the arena and writes the navigational structures:
// the sentinel at the first 16-aligned offset past the arena, one
// zero-terminated chain per bucket, then the index header. The
// Finished status is stored last; everything above it is durable in
// the mapping before a reader can observe it.
func installIndex(r *region.Region, header layout.Header, buckets [][]uint32, logger *slog.Logger, paranoid bool) error {
	base := r.Bytes()
	cursor := layout.AlignUp(header.Bytes(), layout.IndexAlign)

	if err := r.Ensure(cursor, 4); err != nil {
		return fmt.Errorf("writing arena sentinel: %w", err)
	}
	binary.LittleEndian.PutUint32(base[cursor:], layout.Sentinel)
	cursor += 4

	heads := make([]uint32, layout.BucketCount)
	for i, chain := range buckets {
		heads[i] = cursor
		chainBytes := uint32(4 * (len(chain) + 1))
		if err := r.Ensure(cursor, chainBytes); err != nil {
			return fmt.Errorf("writing bucket %d chain: %w", i, err)
		}
		for _, leaderOffset := range chain {
			binary.LittleEndian.PutUint32(base[cursor:], leaderOffset)
			cursor += 4
		}
		binary.LittleEndian.PutUint32(base[cursor:], 0)
		cursor += 4
	}

	indexOffset := layout.AlignUp(cursor, layout.IndexAlign)
	if err := r.Ensure(indexOffset, layout.IndexHeaderSize); err != nil {
		return fmt.Errorf("writing directory index header: %w", err)
	}
	for i := cursor; i < indexOffset; i++ {
		base[i] = 0
	}
	binary.LittleEndian.PutUint32(base[indexOffset:], header.NumDirs())
	for i, head := range heads {
		binary.LittleEndian.PutUint32(base[indexOffset+4+uint32(4*i):], head)
	}
	header.SetDirOffset(indexOffset)

	checkDispersion(buckets, logger, paranoid)

	header.SetStatus(layout.StatusFinished)
	return nil
}

// checkDispersion flags pathological hash spread. This reflects
// expected dispersion for typical trees; a violation is a developer
// signal, not a user-visible error, so it logs — and aborts only under
// the paranoid flag.
func checkDispersion(buckets [][]uint32, logger *slog.Logger, paranoid bool) {
	long, short := 0, 0
	for _, chain := range buckets {
		if len(chain) > dispersionLongChain {
			long++
		}
		if len(chain) < dispersionShortChain {
			short++
		}
	}
	if long > dispersionBadBuckets || short > dispersionBadBuckets {
		logger.Debug("bucket dispersion outside expected band",
			"overfull", long, "underfull", short)
		if paranoid && long > dispersionBadBuckets {
			panic(fmt.Sprintf("hash dispersion failure: %d buckets over %d entries", long, dispersionLongChain))
		}
	}
}
