// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package region manages the shared memory range a FastFileStats
// section lives in.
//
// The server creates a named file (under /dev/shm by default), sizes it
// to the configured maximum with ftruncate, and maps it MAP_SHARED.
// That reserves the full address range without committing physical
// pages: the section's upper bound (hundreds of megabytes) far exceeds
// typical usage, and a full-size commit up front would waste the
// difference. Backing space is committed in one-megabyte chunks as the
// arena cursor crosses the commit watermark, via [Region.Ensure] — the
// hosted-runtime equivalent of committing pages from a fault handler.
// A failed commit (no space on the backing filesystem) surfaces as an
// error from Ensure and aborts the build.
//
// Clients attach with [Attach], which maps the same file read-only.
// Offsets into the mapping are the section format's 32-bit offsets;
// both sides do nothing but pointer arithmetic over them.
package region
