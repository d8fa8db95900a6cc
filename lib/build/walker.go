// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"fmt"
	"log/slog"

	"github.com/fastfilestats/ffstats/lib/enum"
	"github.com/fastfilestats/ffstats/lib/layout"
	"github.com/fastfilestats/ffstats/lib/pathhash"
)

// Stats counts what the walk encountered.
type Stats struct {
	// Nodes is the number of records appended, including the
	// synthetic root and every "." group-leader.
	Nodes uint32

	// Dirs is the number of directory groups materialized.
	Dirs uint32

	// ReparsePoints counts entries skipped for enumeration because
	// they carry the reparse-point attribute.
	ReparsePoints uint32

	// PendingFixes counts directories whose enumeration failed; each
	// contributed no children.
	PendingFixes uint32
}

// walker drives a breadth-first enumeration, appending records and
// collecting the bucket placement the indexer installs afterwards.
type walker struct {
	tree     enum.Tree
	arena    *Arena
	header   layout.Header
	logger   *slog.Logger
	paranoid bool

	buckets [][]uint32
	stats   Stats
}

// pendingDir is one queued directory: its published path and the
// offset of its record (the synthetic root for the first generation).
// The offset becomes the parent offset — the group id — of every
// record in the directory.
type pendingDir struct {
	path         string
	parentOffset uint32
}

// addDir is the directory filter: "." and ".." are never real
// children.
func addDir(name string) bool {
	return name != "." && name != ".."
}

// walk runs the BFS from rootPath. Generations swap: every directory
// at depth d is drained before any at depth d+1. Within a directory,
// record order is enumeration order.
func (w *walker) walk(rootPath string) error {
	w.header.SetStatus(layout.StatusInProgress)

	rootOffset, err := w.arena.Append(layout.RecordFields{
		Attributes: layout.AttrSyntheticRoot,
	}, rootPath)
	if err != nil {
		return fmt.Errorf("appending synthetic root: %w", err)
	}
	w.header.SetRootOffset(rootOffset)
	w.stats.Nodes++

	current := []pendingDir{{path: rootPath, parentOffset: rootOffset}}
	var next []pendingDir

	for len(current) > 0 {
		for _, dir := range current {
			if err := w.enumerate(dir, &next); err != nil {
				return err
			}
		}
		current, next = next, current[:0]
	}

	w.header.SetBytes(w.arena.Cursor())
	w.header.SetNumNodes(w.stats.Nodes)
	w.header.SetNumDirs(w.stats.Dirs)
	w.header.SetStatus(layout.StatusUpdating)
	return nil
}

// enumerate materializes one directory's group. Enumeration failures
// are soft: the directory contributes no children. Arena failures are
// fatal and propagate.
func (w *walker) enumerate(dir pendingDir, next *[]pendingDir) error {
	entries, err := w.tree.ReadDir(dir.path)
	if err != nil {
		w.stats.PendingFixes++
		w.logger.Debug("enumeration failed", "path", dir.path, "error", err)
		return nil
	}

	// The enumerator contract puts the "." self-entry first; it
	// becomes the group-leader the bucket chain points at.
	if len(entries) == 0 || entries[0].Name != "." {
		if w.paranoid {
			panic(fmt.Sprintf("enumerator yielded no self-entry for %q", dir.path))
		}
		w.stats.PendingFixes++
		w.logger.Debug("enumeration yielded no self-entry", "path", dir.path)
		return nil
	}

	leaderOffset, err := w.append(entries[0], dir.parentOffset)
	if err != nil {
		return err
	}
	w.stats.Dirs++

	bucket := pathhash.Bucket(pathhash.Path(dir.path))
	w.buckets[bucket] = append(w.buckets[bucket], leaderOffset)

	for _, entry := range entries[1:] {
		if !addDir(entry.Name) {
			continue
		}
		entryOffset, err := w.append(entry, dir.parentOffset)
		if err != nil {
			return err
		}
		if entry.Attributes&layout.AttrReparsePoint != 0 {
			w.stats.ReparsePoints++
			continue
		}
		if entry.Attributes&layout.AttrDirectory != 0 {
			*next = append(*next, pendingDir{
				path:         layout.Join(dir.path, entry.Name),
				parentOffset: entryOffset,
			})
		}
	}
	return nil
}

func (w *walker) append(entry enum.Entry, parentOffset uint32) (uint32, error) {
	off, err := w.arena.Append(layout.RecordFields{
		Attributes:     entry.Attributes,
		CreationTime:   entry.CreationTime,
		LastAccessTime: entry.LastAccessTime,
		LastWriteTime:  entry.LastWriteTime,
		Size:           entry.Size,
		ParentOffset:   parentOffset,
	}, entry.Name)
	if err != nil {
		return 0, fmt.Errorf("appending record for %q: %w", entry.Name, err)
	}
	w.stats.Nodes++
	return off, nil
}
