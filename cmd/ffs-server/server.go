// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fastfilestats/ffstats/lib/build"
	"github.com/fastfilestats/ffstats/lib/clock"
	"github.com/fastfilestats/ffstats/lib/config"
	"github.com/fastfilestats/ffstats/lib/control"
	"github.com/fastfilestats/ffstats/lib/enum"
	"github.com/fastfilestats/ffstats/lib/layout"
	"github.com/fastfilestats/ffstats/lib/region"
	"github.com/fastfilestats/ffstats/lib/resolve"
	"github.com/fastfilestats/ffstats/lib/snapshot"
	"github.com/fastfilestats/ffstats/lib/track"
)

// controlCall carries one control request into the event loop and its
// response back out.
type controlCall struct {
	request control.Request
	reply   chan control.Response
}

// server owns every write to the section. Change batches, control
// requests and the stats ticker all funnel through one loop, so there
// is never a second writer to reason about.
type server struct {
	cfg        *config.Config
	logger     *slog.Logger
	clk        clock.Clock
	section    *region.Region
	tree       *enum.OSTree
	resolver   *resolve.Resolver
	applier    *track.Applier
	buildStats build.Stats
}

func (s *server) loop(ctx context.Context, batches <-chan []track.Event, calls <-chan controlCall) error {
	ticker := s.clk.NewTicker(s.cfg.StatsIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down")
			return nil

		case batch, ok := <-batches:
			if !ok {
				return fmt.Errorf("change notification stream ended")
			}
			s.applier.ApplyBatch(batch)

		case call := <-calls:
			call.reply <- s.handleControl(call.request)

		case <-ticker.C:
			s.logStats()
		}
	}
}

func (s *server) handleControl(request control.Request) control.Response {
	switch request.Action {
	case control.ActionStatus:
		return control.Response{OK: true, Status: s.statusInfo()}

	case control.ActionRebuild:
		return s.rebuild()

	case control.ActionFreeze:
		return s.freeze(request)

	case control.ActionThaw:
		header := s.resolver.Header()
		if header.Status() != layout.StatusFrozen {
			return control.Response{Error: fmt.Sprintf("section is %s, not frozen", header.Status())}
		}
		header.SetStatus(layout.StatusFinished)
		return control.Response{OK: true, Status: s.statusInfo()}
	}
	return control.Response{Error: fmt.Sprintf("unknown action %q", request.Action)}
}

// rebuild re-walks the tree into the section in place. Readers see
// the status leave Finished before the first record is overwritten,
// so nothing trusts the index mid-rebuild. Offsets are reassigned;
// the applier's counters start over.
func (s *server) rebuild() control.Response {
	stats, err := build.Build(s.section, s.tree, s.cfg.Prefix, build.Options{
		Logger:   s.logger,
		Paranoid: s.cfg.Paranoid,
	})
	if err != nil {
		s.logger.Error("rebuild failed", "error", err)
		return control.Response{Error: fmt.Sprintf("rebuild failed: %v", err)}
	}
	s.buildStats = stats
	s.applier.Reset()
	return control.Response{OK: true, Status: s.statusInfo()}
}

func (s *server) freeze(request control.Request) control.Response {
	header := s.resolver.Header()
	if status := header.Status(); status != layout.StatusFinished {
		return control.Response{Error: fmt.Sprintf("section is %s; only a finished section can freeze", status)}
	}

	destination := request.SnapshotPath
	if destination == "" {
		if err := os.MkdirAll(s.cfg.SnapshotDir, 0o755); err != nil {
			return control.Response{Error: fmt.Sprintf("creating snapshot directory: %v", err)}
		}
		destination = filepath.Join(s.cfg.SnapshotDir,
			fmt.Sprintf("%s-%d.ffsnap", region.SectionName(s.cfg.Prefix), s.clk.Now().Unix()))
	}

	header.SetStatus(layout.StatusFrozen)
	manifest, err := snapshot.Write(destination, header, s.cfg.Prefix,
		s.clk.Now().Unix(), snapshot.Compression(request.Compression))
	if err != nil {
		header.SetStatus(layout.StatusFinished)
		return control.Response{Error: fmt.Sprintf("snapshot failed: %v", err)}
	}

	s.logger.Info("section frozen",
		"snapshot", destination,
		"compression", manifest.Compression.String(),
		"image_bytes", manifest.ImageBytes)
	return control.Response{OK: true, Status: s.statusInfo(), SnapshotPath: destination}
}

func (s *server) statusInfo() *control.StatusInfo {
	header := s.resolver.Header()
	trackStats := s.applier.Stats()
	return &control.StatusInfo{
		SectionPath:   s.section.Path(),
		Prefix:        s.cfg.Prefix,
		Status:        header.Status().String(),
		NumNodes:      header.NumNodes(),
		NumDirs:       header.NumDirs(),
		ArenaBytes:    header.Bytes(),
		Committed:     s.section.Committed(),
		ReparsePoints: s.buildStats.ReparsePoints,
		PendingFixes:  uint64(s.buildStats.PendingFixes) + trackStats.PendingFixes,
		Batches:       trackStats.Batches,
		Applied:       trackStats.Applied,
		RebuildWanted: trackStats.RebuildWanted,
	}
}

func (s *server) logStats() {
	info := s.statusInfo()
	s.logger.Info("section stats",
		"status", info.Status,
		"nodes", info.NumNodes,
		"dirs", info.NumDirs,
		"arena_bytes", info.ArenaBytes,
		"committed", info.Committed,
		"pending_fixes", info.PendingFixes,
		"batches", info.Batches,
		"applied", info.Applied,
		"rebuild_wanted", info.RebuildWanted)
}
