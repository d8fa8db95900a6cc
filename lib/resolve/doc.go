// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolve maps published paths to section records.
//
// Resolution is pure pointer arithmetic over the mapped section: hash
// the directory path, walk its bucket chain, and verify each candidate
// by climbing parent links and peeling matching components off the
// path tail. No syscalls, no allocation proportional to tree size.
//
// A [Resolver] is safe on a Finished section. On an Updating section
// results may race with in-place field edits but never fault — record
// boundaries do not move, and every stored offset is bounds-checked
// before it is dereferenced. Callers that need multi-field consistency
// must observe a Finished status immediately before and after reading
// a record.
//
// An optional ristretto cache memoizes hot path→offset resolutions.
// Record offsets are stable for the lifetime of a section, so a cached
// offset only needs its leaf name and liveness re-verified on hit.
package resolve
