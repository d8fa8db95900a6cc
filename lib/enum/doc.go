// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package enum defines the directory-enumeration capability the
// builder consumes, and its implementations.
//
// The builder walks the tree in the section's published path space
// (drive-qualified, backslash-separated). A [Tree] translates those
// paths to whatever the host filesystem understands and yields entries
// in the shape the section format stores: Win32-style attribute bits,
// FILETIME timestamps, 64-bit sizes. The first entry of every listing
// is the directory's own "." self-entry — the record that becomes the
// group-leader.
//
// [OSTree] enumerates a real directory subtree, mapping a POSIX root
// onto a configured published prefix. [Fake] is an in-memory tree for
// tests.
package enum
