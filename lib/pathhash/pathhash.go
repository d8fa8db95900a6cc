// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package pathhash implements the directory hash of the section
// format: FNV-1a/32 run over a path's UTF-16LE bytes from the last
// byte to the first.
//
// The reversed scan is a property of the format, not an optimization
// detail: directory trees share long prefixes (`f:\src\...`), and
// hashing from the end lets diverging suffixes separate keys in the
// first few mixed bytes. Changing the scan direction changes every
// bucket assignment and breaks section compatibility.
package pathhash

import "github.com/fastfilestats/ffstats/lib/layout"

const (
	offsetBasis uint32 = 0x811c9dc5
	prime       uint32 = 0x01000193
)

// Sum returns the reversed FNV-1a/32 of buf.
func Sum(buf []byte) uint32 {
	h := offsetBasis
	for i := len(buf) - 1; i >= 0; i-- {
		h ^= uint32(buf[i])
		h *= prime
	}
	return h
}

// Path returns the reversed FNV-1a/32 of a published path's UTF-16LE
// bytes. Bucket placement and directory lookup agree on this value:
// both hash the full path of the directory whose group is being
// placed or sought (the parent path of the entries inside it).
func Path(path string) uint32 {
	return Sum(layout.PathBytes(path))
}

// Bucket maps a hash value to its bucket index.
func Bucket(h uint32) uint32 {
	return h % layout.BucketCount
}
