// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/fastfilestats/ffstats/lib/enum"
	"github.com/fastfilestats/ffstats/lib/layout"
	"github.com/fastfilestats/ffstats/lib/region"
)

const testPrefix = `t:\root`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRegion(t *testing.T, maxBytes uint32) *region.Region {
	t.Helper()
	r, err := region.Create(filepath.Join(t.TempDir(), "section"), maxBytes)
	if err != nil {
		t.Fatalf("creating region: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// treeOfThree is the canonical scenario: root holds a.txt and a
// directory D holding b.txt.
func treeOfThree() *enum.Fake {
	fake := enum.NewFake(testPrefix)
	fake.AddFile(layout.Join(testPrefix, "a.txt"), 4, 111)
	fake.AddDir(layout.Join(testPrefix, "D"))
	fake.AddFile(layout.Join(testPrefix, `D\b.txt`), 8, 222)
	return fake
}

// arenaRecords walks the arena by stride and returns every record.
func arenaRecords(t *testing.T, header layout.Header) []layout.Record {
	t.Helper()
	var records []layout.Record
	offset := layout.HeaderSize
	for offset < header.Bytes() {
		record, err := layout.RecordAt(header.Region(), offset)
		if err != nil {
			t.Fatalf("arena walk broke at offset %d: %v", offset, err)
		}
		records = append(records, record)
		offset += record.Stride()
	}
	if offset != header.Bytes() {
		t.Fatalf("arena walk overshot: cursor %d, bytes %d", offset, header.Bytes())
	}
	return records
}

func TestTreeOfThree(t *testing.T) {
	r := newRegion(t, 4*region.CommitChunk)
	stats, err := Build(r, treeOfThree(), testPrefix, Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	header, err := layout.NewHeader(r.Bytes())
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}
	if status := header.Status(); status != layout.StatusFinished {
		t.Fatalf("status = %s, want finished", status)
	}

	// Synthetic root + root "." + a.txt + D + D "." + b.txt.
	if header.NumNodes() != 6 || stats.Nodes != 6 {
		t.Errorf("nodes = %d (stats %d), want 6", header.NumNodes(), stats.Nodes)
	}
	if header.NumDirs() != 2 || stats.Dirs != 2 {
		t.Errorf("dirs = %d (stats %d), want 2", header.NumDirs(), stats.Dirs)
	}

	root, err := layout.RecordAt(r.Bytes(), header.RootOffset())
	if err != nil {
		t.Fatalf("root record: %v", err)
	}
	if !root.IsSyntheticRoot() || root.Name() != testPrefix || root.ParentOffset() != 0 {
		t.Errorf("synthetic root = %q attrs 0x%x parent %d",
			root.Name(), root.Attributes(), root.ParentOffset())
	}

	// Sentinel at the first 16-aligned offset past the arena.
	sentinelOffset := layout.AlignUp(header.Bytes(), layout.IndexAlign)
	sentinel := uint32(r.Bytes()[sentinelOffset]) |
		uint32(r.Bytes()[sentinelOffset+1])<<8 |
		uint32(r.Bytes()[sentinelOffset+2])<<16 |
		uint32(r.Bytes()[sentinelOffset+3])<<24
	if sentinel != layout.Sentinel {
		t.Errorf("sentinel word = 0x%08x, want 0x%08x", sentinel, layout.Sentinel)
	}

	index, err := layout.IndexAt(r.Bytes(), header.DirOffset())
	if err != nil {
		t.Fatalf("IndexAt: %v", err)
	}
	if index.Count() != 2 {
		t.Errorf("index count = %d, want 2", index.Count())
	}
	if header.DirOffset()%layout.IndexAlign != 0 {
		t.Errorf("index header offset %d not 16-aligned", header.DirOffset())
	}
}

// Arena order is BFS generation order, enumeration order within a
// directory: the exact record name sequence is deterministic.
func TestArenaOrdering(t *testing.T) {
	fake := enum.NewFake(testPrefix)
	fake.AddDir(layout.Join(testPrefix, "a"))
	fake.AddDir(layout.Join(testPrefix, "b"))
	fake.AddDir(layout.Join(testPrefix, `a\c`))

	r := newRegion(t, 4*region.CommitChunk)
	if _, err := Build(r, fake, testPrefix, Options{Logger: testLogger()}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	header, _ := layout.NewHeader(r.Bytes())

	var names []string
	for _, record := range arenaRecords(t, header) {
		names = append(names, record.Name())
	}
	want := []string{testPrefix, ".", "a", "b", ".", "c", ".", "."}
	if len(names) != len(want) {
		t.Fatalf("arena names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("arena names = %v, want %v", names, want)
		}
	}
}

// Every group starts with "." and shares one parent offset (the group
// id), and the group id names a record with the directory attribute
// (or the synthetic root).
func TestGroupInvariants(t *testing.T) {
	r := newRegion(t, 4*region.CommitChunk)
	if _, err := Build(r, treeOfThree(), testPrefix, Options{Logger: testLogger()}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	header, _ := layout.NewHeader(r.Bytes())
	records := arenaRecords(t, header)

	groupID := uint32(0)
	for i, record := range records {
		if record.IsSyntheticRoot() {
			continue
		}
		if record.ParentOffset() != groupID {
			// New group: must open with the "." leader.
			groupID = record.ParentOffset()
			if record.Name() != "." {
				t.Errorf("record %d opens group %d with name %q, want \".\"", i, groupID, record.Name())
			}
			parent, err := layout.RecordAt(r.Bytes(), groupID)
			if err != nil {
				t.Fatalf("group id %d: %v", groupID, err)
			}
			if !parent.IsDirectory() && !parent.IsSyntheticRoot() {
				t.Errorf("group id %d is not a directory record", groupID)
			}
			continue
		}
		if record.Name() == "." || record.Name() == ".." {
			t.Errorf("record %d inside a group is named %q", i, record.Name())
		}
	}
}

// With more directories than buckets, chains collide; each chain must
// still list every leader at most once, and the chains together cover
// every directory exactly once.
func TestBucketChains(t *testing.T) {
	fake := enum.NewFake(testPrefix)
	const dirCount = 1600
	for i := 0; i < dirCount; i++ {
		fake.AddDir(layout.Join(testPrefix, fmt.Sprintf("dir%04d", i)))
	}

	r := newRegion(t, 16*region.CommitChunk)
	if _, err := Build(r, fake, testPrefix, Options{Logger: testLogger()}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	header, _ := layout.NewHeader(r.Bytes())
	index, err := layout.IndexAt(r.Bytes(), header.DirOffset())
	if err != nil {
		t.Fatalf("IndexAt: %v", err)
	}

	seen := make(map[uint32]bool)
	longest := 0
	total := 0
	for bucket := uint32(0); bucket < layout.BucketCount; bucket++ {
		length := 0
		err := index.Chain(bucket, func(leaderOffset uint32) bool {
			if seen[leaderOffset] {
				t.Errorf("leader offset %d listed twice", leaderOffset)
			}
			seen[leaderOffset] = true
			if err := layout.CheckRange(r.Bytes(), leaderOffset, layout.RecordHeaderSize); err != nil {
				t.Errorf("chain entry outside the arena: %v", err)
			}
			length++
			total++
			return true
		})
		if err != nil {
			t.Fatalf("chain %d: %v", bucket, err)
		}
		if length > longest {
			longest = length
		}
	}
	if total != int(header.NumDirs()) {
		t.Errorf("chains list %d leaders, header says %d dirs", total, header.NumDirs())
	}
	// 1601 directories in 1543 buckets: some chain has at least two.
	if longest < 2 {
		t.Errorf("expected a colliding chain, longest is %d", longest)
	}
}

func TestReparsePointsAreNotEnumerated(t *testing.T) {
	fake := enum.NewFake(testPrefix)
	fake.AddReparse(layout.Join(testPrefix, "L"))

	r := newRegion(t, 4*region.CommitChunk)
	stats, err := Build(r, fake, testPrefix, Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if stats.ReparsePoints != 1 {
		t.Errorf("reparse count = %d, want 1", stats.ReparsePoints)
	}

	header, _ := layout.NewHeader(r.Bytes())
	// Only the root forms a group; L is a record but not a directory
	// group.
	if header.NumDirs() != 1 {
		t.Errorf("dirs = %d, want 1", header.NumDirs())
	}
	found := false
	for _, record := range arenaRecords(t, header) {
		if record.Name() == "L" {
			found = true
			if !record.IsReparsePoint() {
				t.Error("L lost its reparse attribute")
			}
		}
	}
	if !found {
		t.Error("reparse entry L has no record")
	}
}

func TestEnumerationFailureIsSoft(t *testing.T) {
	fake := treeOfThree()
	fake.Drop(layout.Join(testPrefix, "D"))

	r := newRegion(t, 4*region.CommitChunk)
	stats, err := Build(r, fake, testPrefix, Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if stats.PendingFixes != 1 {
		t.Errorf("pending fixes = %d, want 1", stats.PendingFixes)
	}

	header, _ := layout.NewHeader(r.Bytes())
	if header.Status() != layout.StatusFinished {
		t.Errorf("status = %s, want finished", header.Status())
	}
	// D's own group never materialized: root group only.
	if header.NumDirs() != 1 {
		t.Errorf("dirs = %d, want 1", header.NumDirs())
	}
}

func TestRegionCapExceeded(t *testing.T) {
	fake := enum.NewFake(testPrefix)
	// Enough records to overflow a one-chunk region: each record is
	// at least 64 bytes with these names.
	for i := 0; i < 20000; i++ {
		fake.AddFile(layout.Join(testPrefix, fmt.Sprintf("file-%05d.dat", i)), 1, 1)
	}

	r := newRegion(t, region.CommitChunk)
	_, err := Build(r, fake, testPrefix, Options{Logger: testLogger()})
	if !errors.Is(err, region.ErrRegionFull) {
		t.Fatalf("Build = %v, want ErrRegionFull", err)
	}

	header, headerErr := layout.NewHeader(r.Bytes())
	if headerErr != nil {
		t.Fatalf("NewHeader: %v", headerErr)
	}
	if status := header.Status(); status == layout.StatusFinished {
		t.Error("overflowed build published Finished")
	} else if status != layout.StatusError {
		t.Errorf("status = %s, want error", status)
	}
}

func TestBuildRejectsUnqualifiedRoot(t *testing.T) {
	r := newRegion(t, 4*region.CommitChunk)
	if _, err := Build(r, enum.NewFake("relative"), "relative", Options{Logger: testLogger()}); err == nil {
		t.Error("unqualified root accepted")
	}
}
