// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package track keeps a built section current as the watched tree
// changes underneath it.
//
// A [Notifier] delivers batches of change events in the section's
// published path space; [Inotify] implements it over the kernel's
// inotify facility, [Fake] feeds scripted batches in tests. The
// [Applier] is the single writer: per batch it publishes Updating,
// applies each event to the mapped records, and restores Finished.
// Readers in other processes see either a Finished section or an
// Updating one in which record boundaries are unchanged and every
// field is torn-free (aligned 32-bit stores).
//
// Only field refreshes and the in-place subset of removals and renames
// can be expressed without moving records; everything else (additions,
// renames that outgrow their slot) marks the section rebuild-wanted
// and counts a pending fix. Group contiguity is the constraint: a new
// record cannot be spliced into the middle of a sealed arena.
package track
