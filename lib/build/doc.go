// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package build populates a section from a live directory tree.
//
// [Build] runs the full sequence: header init, breadth-first walk
// materializing one record per filesystem entry, then index
// installation. The status word tracks progress — Booting before the
// walk, InProgress during it, Updating once the arena is sealed, and
// Finished only after every index write, stored last with release
// semantics so a reader that observes Finished observes everything.
//
// A fatal error (region cap exceeded, commit failure) leaves the
// status at Error; readers refuse such a section and the server's only
// recourse is a rebuild. Per-directory enumeration failures are soft:
// the directory contributes no children and a pending-fix counter
// ticks up.
package build
