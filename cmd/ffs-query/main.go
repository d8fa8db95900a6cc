// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

// ffs-query is the read-side proof of the section contract: it maps a
// section the way any client process would — read-only, validating the
// header, refusing the section unless its status is readable — and
// resolves paths with pure offset arithmetic. It also speaks the
// control protocol for --status and --rebuild.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/fastfilestats/ffstats/lib/control"
	"github.com/fastfilestats/ffstats/lib/layout"
	"github.com/fastfilestats/ffstats/lib/region"
	"github.com/fastfilestats/ffstats/lib/resolve"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		sectionPath   string
		sectionDir    string
		prefix        string
		controlSocket string
		showStatus    bool
		rebuild       bool
		cacheEntries  int64
	)
	pflag.StringVar(&sectionPath, "section", "", "section file path (overrides --section-dir/--prefix)")
	pflag.StringVar(&sectionDir, "section-dir", region.DefaultDir, "directory the section lives in")
	pflag.StringVar(&prefix, "prefix", "", `published prefix the section was built for, e.g. 'f:\src'`)
	pflag.StringVar(&controlSocket, "control-socket", "", "control socket path (default <section>.sock)")
	pflag.BoolVar(&showStatus, "status", false, "query the server's status counters")
	pflag.BoolVar(&rebuild, "rebuild", false, "ask the server for a full rebuild")
	pflag.Int64Var(&cacheEntries, "cache-entries", 0, "enable the path lookup cache with this many entries")
	pflag.Parse()

	if sectionPath == "" {
		if prefix == "" {
			return fmt.Errorf("either --section or --prefix is required")
		}
		sectionPath = region.SectionPath(sectionDir, prefix)
	}
	if controlSocket == "" {
		controlSocket = sectionPath + ".sock"
	}

	if showStatus || rebuild {
		return runControl(controlSocket, rebuild)
	}

	paths := pflag.Args()
	if len(paths) == 0 {
		return fmt.Errorf("no paths to resolve; pass published paths as arguments")
	}
	return resolvePaths(sectionPath, paths, cacheEntries)
}

func runControl(socketPath string, rebuild bool) error {
	action := control.ActionStatus
	if rebuild {
		action = control.ActionRebuild
	}
	response, err := control.Call(socketPath, control.Request{Action: action})
	if err != nil {
		return err
	}
	if !response.OK {
		return fmt.Errorf("server refused: %s", response.Error)
	}
	info := response.Status
	fmt.Printf("section    %s\n", info.SectionPath)
	fmt.Printf("prefix     %s\n", info.Prefix)
	fmt.Printf("status     %s\n", info.Status)
	fmt.Printf("nodes      %d\n", info.NumNodes)
	fmt.Printf("dirs       %d\n", info.NumDirs)
	fmt.Printf("arena      %d bytes (%d committed)\n", info.ArenaBytes, info.Committed)
	fmt.Printf("reparse    %d\n", info.ReparsePoints)
	fmt.Printf("pending    %d (rebuild wanted: %v)\n", info.PendingFixes, info.RebuildWanted)
	fmt.Printf("batches    %d applied %d\n", info.Batches, info.Applied)
	return nil
}

func resolvePaths(sectionPath string, paths []string, cacheEntries int64) error {
	section, err := region.Attach(sectionPath)
	if err != nil {
		return err
	}
	defer section.Close()

	resolver, err := resolve.New(section.Bytes(), resolve.Options{CacheEntries: cacheEntries})
	if err != nil {
		return err
	}

	missed := false
	for _, path := range paths {
		record, ok := resolver.Any(path)
		if !ok {
			fmt.Printf("%s: not present\n", path)
			missed = true
			continue
		}
		printRecord(path, record)
	}
	if missed {
		return fmt.Errorf("one or more paths were not present")
	}
	return nil
}

func printRecord(path string, record layout.Record) {
	kind := "file"
	switch {
	case record.IsSyntheticRoot():
		kind = "root"
	case record.IsReparsePoint():
		kind = "reparse"
	case record.IsDirectory():
		kind = "dir"
	}
	fmt.Printf("%s\n", path)
	fmt.Printf("  offset     %d\n", record.Offset())
	fmt.Printf("  kind       %s (attributes 0x%08x)\n", kind, record.Attributes())
	fmt.Printf("  size       %d\n", record.Size())
	fmt.Printf("  modified   %s\n", layout.FiletimeToTime(record.LastWriteTime()).Format(time.RFC3339))
}
