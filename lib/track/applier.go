// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package track

import (
	"context"
	"log/slog"

	"github.com/fastfilestats/ffstats/lib/enum"
	"github.com/fastfilestats/ffstats/lib/layout"
	"github.com/fastfilestats/ffstats/lib/resolve"
)

// Stats counts the applier's work.
type Stats struct {
	// Batches is the number of event batches processed.
	Batches uint64

	// Applied counts events that were fully reflected in the section.
	Applied uint64

	// PendingFixes counts events the section could not absorb in
	// place. A rebuild clears them.
	PendingFixes uint64

	// RebuildWanted is set once any event required more than an
	// in-place edit.
	RebuildWanted bool
}

// Applier mutates a built section in response to change events. It is
// the single writer; construct one per section and drive it from one
// goroutine.
type Applier struct {
	tree     enum.Tree
	resolver *resolve.Resolver
	header   layout.Header
	prefix   string
	logger   *slog.Logger

	stats Stats

	// A rename arrives as an old/new event pair; the record resolved
	// from the old half waits here for the new half.
	renameFrom    layout.Record
	renamePending bool
	renameDir     string
}

// NewApplier creates an applier over a resolver's section. prefix is
// the published root the event paths are relative to.
func NewApplier(resolver *resolve.Resolver, tree enum.Tree, prefix string, logger *slog.Logger) *Applier {
	return &Applier{
		tree:     tree,
		resolver: resolver,
		header:   resolver.Header(),
		prefix:   prefix,
		logger:   logger,
	}
}

// Run applies batches until the context is canceled or the channel
// closes.
func (a *Applier) Run(ctx context.Context, batches <-chan []Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			a.ApplyBatch(batch)
		}
	}
}

// ApplyBatch publishes Updating, applies each event, and restores
// Finished. A Frozen section is left untouched; its events become
// pending fixes so a later thaw knows the section drifted.
func (a *Applier) ApplyBatch(events []Event) {
	if len(events) == 0 {
		return
	}
	if a.header.Status() == layout.StatusFrozen {
		a.stats.PendingFixes += uint64(len(events))
		a.stats.RebuildWanted = true
		return
	}

	a.header.SetStatus(layout.StatusUpdating)
	for _, event := range events {
		a.apply(event)
	}
	a.header.SetStatus(layout.StatusFinished)
	a.stats.Batches++
}

// Stats returns a copy of the applier's counters.
func (a *Applier) Stats() Stats {
	return a.stats
}

// Reset clears the counters and any half-seen rename pair. Called
// after a rebuild, which reassigns every offset and absorbs all
// pending fixes.
func (a *Applier) Reset() {
	a.stats = Stats{}
	a.renamePending = false
	a.renameFrom = layout.Record{}
	a.renameDir = ""
}

func (a *Applier) full(relative string) string {
	if relative == "" {
		return a.prefix
	}
	return layout.Join(a.prefix, relative)
}

func (a *Applier) apply(event Event) {
	path := a.full(event.Path)

	switch event.Action {
	case Modified:
		a.applyModified(event, path)

	case Removed:
		record, ok := a.resolver.Any(path)
		if !ok {
			a.pendingFix(event, "record not found")
			return
		}
		wasDirectory := record.IsDirectory()
		record.SetAttributes(layout.AttrTombstone)
		a.stats.Applied++
		if wasDirectory {
			// The group and its descendants stay in the arena,
			// unreachable through the tombstoned chain. Space and
			// counts drift until a rebuild.
			a.stats.RebuildWanted = true
		}

	case RenamedOld:
		record, ok := a.resolver.Any(path)
		if !ok {
			a.pendingFix(event, "record not found")
			return
		}
		a.renameFrom = record
		a.renameDir, _, _ = layout.Split(path)
		a.renamePending = true

	case RenamedNew:
		a.applyRenamedNew(event, path)

	case Added:
		// Appending into a sealed group would break group contiguity;
		// additions always wait for a rebuild.
		a.pendingFix(event, "additions require a rebuild")

	default:
		a.pendingFix(event, "unknown action")
	}
}

func (a *Applier) applyModified(event Event, path string) {
	record, ok := a.resolver.Any(path)
	if !ok {
		a.pendingFix(event, "record not found")
		return
	}
	entry, err := a.tree.Stat(path)
	if err != nil {
		a.pendingFix(event, "stat failed")
		return
	}

	// Per-field refresh with aligned stores: a reader sees each field
	// either old or new, never torn.
	if record.Size() != entry.Size {
		record.SetSize(entry.Size)
	}
	if record.LastWriteTime() != entry.LastWriteTime {
		record.SetLastWriteTime(entry.LastWriteTime)
	}
	if record.LastAccessTime() != entry.LastAccessTime {
		record.SetLastAccessTime(entry.LastAccessTime)
	}
	if !record.IsSyntheticRoot() && record.Attributes() != entry.Attributes {
		record.SetAttributes(entry.Attributes)
	}
	a.stats.Applied++
}

func (a *Applier) applyRenamedNew(event Event, path string) {
	if !a.renamePending {
		a.pendingFix(event, "no pending renamed-old")
		return
	}
	a.renamePending = false

	newDir, newLeaf, ok := layout.Split(path)
	if !ok {
		a.pendingFix(event, "unsplittable rename target")
		return
	}
	if newDir != a.renameDir {
		// A move between directories changes the record's group;
		// that cannot be expressed in place.
		a.renameFrom.SetAttributes(layout.AttrTombstone)
		a.pendingFix(event, "rename crossed directories")
		return
	}
	if err := a.renameFrom.SetName(newLeaf); err != nil {
		// The new name outgrows the slot. Tombstone the record so the
		// stale name stops resolving; the entry reappears on rebuild.
		a.renameFrom.SetAttributes(layout.AttrTombstone)
		a.pendingFix(event, "new name does not fit")
		return
	}
	a.stats.Applied++
}

func (a *Applier) pendingFix(event Event, reason string) {
	a.stats.PendingFixes++
	a.stats.RebuildWanted = true
	a.logger.Debug("change deferred to rebuild",
		"action", event.Action.String(), "path", event.Path, "reason", reason)
}
