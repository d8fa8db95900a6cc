// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package layout defines the on-wire format of a FastFileStats section:
// the region header, the record arena, and the directory index. Every
// structure is addressed by a 32-bit byte offset from the region base so
// that any number of processes can map the same section at different
// virtual addresses and see the same graph.
//
// The section layout, from offset 0:
//
//	header (32 bytes)
//	record arena (8-aligned records, each a 44-byte fixed prefix plus a
//	    NUL-terminated UTF-16LE name, walked by per-record stride)
//	padding to the next 16-byte boundary
//	sentinel word 0xAA55AA55
//	bucket chains (one zero-terminated offset array per hash bucket)
//	padding to the next 16-byte boundary
//	directory index header (count + 1543 bucket-head offsets)
//
// All multi-byte fields are little-endian. Mutable fields (the header
// status word, record attributes, times and sizes) are read and written
// with aligned 32-bit atomic operations; the package therefore supports
// little-endian targets only, where the atomic byte order and the wire
// byte order coincide.
//
// [Header] and [Record] are views over a mapped byte slice. They hold no
// state beyond the slice and an offset, and every accessor that follows
// a stored offset is bounds-checked so that a corrupt section produces
// an error or a miss, never an out-of-range access.
package layout
