// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"fmt"
	"log/slog"

	"github.com/fastfilestats/ffstats/lib/enum"
	"github.com/fastfilestats/ffstats/lib/layout"
	"github.com/fastfilestats/ffstats/lib/region"
)

// Options tunes a build.
type Options struct {
	// Logger receives per-directory soft failures at debug level and
	// the build summary at info level. Required.
	Logger *slog.Logger

	// Paranoid turns developer-time invariant violations (missing
	// self-entries, hash dispersion failures) into panics instead of
	// counters. Off in production.
	Paranoid bool
}

// Build populates the region with a snapshot of the tree rooted at
// rootPath (a published path) and installs the index. On success the
// section status is Finished. On a fatal error the status is Error and
// the section must not be consumed; the only recovery is a rebuild.
func Build(r *region.Region, tree enum.Tree, rootPath string, opts Options) (Stats, error) {
	stats, err := buildOnce(r, tree, rootPath, opts)
	if err != nil {
		// Best effort: if the header was mapped, mark the wreck so a
		// reader that raced the build refuses it.
		if header, headerErr := layout.NewHeader(r.Bytes()); headerErr == nil && r.Committed() >= layout.HeaderSize {
			header.SetStatus(layout.StatusError)
		}
		return stats, err
	}

	opts.Logger.Info("section build complete",
		"root", rootPath,
		"nodes", stats.Nodes,
		"dirs", stats.Dirs,
		"reparse_points", stats.ReparsePoints,
		"pending_fixes", stats.PendingFixes,
		"bytes", r.Committed())
	return stats, nil
}

func buildOnce(r *region.Region, tree enum.Tree, rootPath string, opts Options) (Stats, error) {
	if !layout.IsQualified(rootPath) {
		return Stats{}, fmt.Errorf("root path %q is not drive-qualified", rootPath)
	}

	if err := r.Ensure(0, layout.HeaderSize); err != nil {
		return Stats{}, fmt.Errorf("committing header: %w", err)
	}
	header, err := layout.NewHeader(r.Bytes())
	if err != nil {
		return Stats{}, err
	}
	header.Init()

	w := &walker{
		tree:     tree,
		arena:    NewArena(r),
		header:   header,
		logger:   opts.Logger,
		paranoid: opts.Paranoid,
		buckets:  make([][]uint32, layout.BucketCount),
	}
	if err := w.walk(rootPath); err != nil {
		return w.stats, fmt.Errorf("walking %s: %w", rootPath, err)
	}

	if err := installIndex(r, header, w.buckets, opts.Logger, opts.Paranoid); err != nil {
		return w.stats, fmt.Errorf("installing index: %w", err)
	}
	return w.stats, nil
}
