// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/fastfilestats/ffstats/lib/build"
	"github.com/fastfilestats/ffstats/lib/enum"
	"github.com/fastfilestats/ffstats/lib/layout"
	"github.com/fastfilestats/ffstats/lib/region"
)

const testPrefix = `t:\root`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildSection builds a section from the fake tree and returns a
// resolver over it.
func buildSection(t *testing.T, fake *enum.Fake, opts Options) *Resolver {
	t.Helper()
	r, err := region.Create(filepath.Join(t.TempDir(), "section"), 16*region.CommitChunk)
	if err != nil {
		t.Fatalf("creating region: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	if _, err := build.Build(r, fake, testPrefix, build.Options{Logger: testLogger()}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	resolver, err := New(r.Bytes(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return resolver
}

func standardTree() *enum.Fake {
	fake := enum.NewFake(testPrefix)
	fake.AddFile(layout.Join(testPrefix, "a.txt"), 4, 111)
	fake.AddDir(layout.Join(testPrefix, "D"))
	fake.AddFile(layout.Join(testPrefix, `D\b.txt`), 8, 222)
	fake.AddDir(layout.Join(testPrefix, `D\inner`))
	fake.AddFile(layout.Join(testPrefix, `D\inner\c.txt`), 16, 333)
	return fake
}

func TestResolveFile(t *testing.T) {
	resolver := buildSection(t, standardTree(), Options{})

	record, ok := resolver.Any(layout.Join(testPrefix, "a.txt"))
	if !ok {
		t.Fatal("a.txt did not resolve")
	}
	if record.Name() != "a.txt" || record.Size() != 4 {
		t.Errorf("resolved %q size %d, want a.txt size 4", record.Name(), record.Size())
	}

	deep, ok := resolver.Any(layout.Join(testPrefix, `D\inner\c.txt`))
	if !ok {
		t.Fatal("nested c.txt did not resolve")
	}
	if deep.Size() != 16 {
		t.Errorf("c.txt size = %d, want 16", deep.Size())
	}
}

func TestResolveDirectory(t *testing.T) {
	resolver := buildSection(t, standardTree(), Options{})

	leader, ok := resolver.Directory(layout.Join(testPrefix, "D"))
	if !ok {
		t.Fatal("directory D did not resolve")
	}
	if leader.Name() != "." {
		t.Errorf("group-leader name = %q, want \".\"", leader.Name())
	}

	// Trailing separator resolves through Any to the same leader.
	viaAny, ok := resolver.Any(layout.Join(testPrefix, "D") + `\`)
	if !ok || viaAny.Offset() != leader.Offset() {
		t.Errorf("Any with trailing separator = (%d, %v), want leader %d",
			viaAny.Offset(), ok, leader.Offset())
	}

	// The root itself resolves both ways.
	if _, ok := resolver.Directory(testPrefix); !ok {
		t.Error("root directory did not resolve")
	}
	if _, ok := resolver.Any(testPrefix + `\`); !ok {
		t.Error("root with trailing separator did not resolve")
	}
}

func TestResolveMisses(t *testing.T) {
	resolver := buildSection(t, standardTree(), Options{})

	misses := []string{
		`foo\bar`, // no drive qualifier
		`x:`,      // too short
		``,        // empty
		layout.Join(testPrefix, "absent.txt"),
		layout.Join(testPrefix, `absent\deeper.txt`),
		`q:\other\a.txt`, // wrong tree entirely
	}
	for _, path := range misses {
		if _, ok := resolver.Any(path); ok {
			t.Errorf("Any(%q) resolved, want miss", path)
		}
	}
}

// Round trip: every record the arena holds reconstructs to a path that
// resolves back to the same offset.
func TestRoundTrip(t *testing.T) {
	resolver := buildSection(t, standardTree(), Options{})
	header := resolver.Header()

	offset := layout.HeaderSize
	for offset < header.Bytes() {
		record, err := layout.RecordAt(header.Region(), offset)
		if err != nil {
			t.Fatalf("arena walk: %v", err)
		}
		offset += record.Stride()

		if record.IsSyntheticRoot() {
			continue
		}
		path, err := resolver.FullPath(record)
		if err != nil {
			t.Fatalf("FullPath of record %d: %v", record.Offset(), err)
		}

		resolved, ok := resolver.Any(path)
		if !ok {
			t.Errorf("reconstructed path %q did not resolve", path)
			continue
		}
		// A "." leader and its directory's entry record both
		// legitimately answer for the directory path.
		if resolved.Offset() != record.Offset() {
			if record.Name() != "." && resolved.Name() != "." {
				t.Errorf("path %q resolved to offset %d, reconstructed from %d",
					path, resolved.Offset(), record.Offset())
			}
		}
	}
}

func TestReparseInteriorIsAbsent(t *testing.T) {
	fake := standardTree()
	fake.AddReparse(layout.Join(testPrefix, "L"))
	resolver := buildSection(t, fake, Options{})

	record, ok := resolver.Any(layout.Join(testPrefix, "L"))
	if !ok || !record.IsReparsePoint() {
		t.Error("reparse entry L should resolve as a record")
	}
	if _, ok := resolver.Any(layout.Join(testPrefix, `L\inside`)); ok {
		t.Error("path through a reparse point resolved")
	}
}

// Directories forced into shared buckets must all still resolve.
func TestCollidingDirectoriesResolve(t *testing.T) {
	fake := enum.NewFake(testPrefix)
	const dirCount = 1600
	for i := 0; i < dirCount; i++ {
		fake.AddDir(layout.Join(testPrefix, fmt.Sprintf("dir%04d", i)))
	}
	resolver := buildSection(t, fake, Options{})

	for i := 0; i < dirCount; i++ {
		path := layout.Join(testPrefix, fmt.Sprintf("dir%04d", i))
		if _, ok := resolver.Directory(path); !ok {
			t.Fatalf("directory %q did not resolve", path)
		}
	}
}

func TestTombstoneSkipped(t *testing.T) {
	resolver := buildSection(t, standardTree(), Options{})

	record, ok := resolver.Any(layout.Join(testPrefix, "a.txt"))
	if !ok {
		t.Fatal("a.txt did not resolve")
	}
	record.SetAttributes(layout.AttrTombstone)

	if _, ok := resolver.Any(layout.Join(testPrefix, "a.txt")); ok {
		t.Error("tombstoned record still resolves")
	}
	// Neighbors in the same group are unaffected.
	if _, ok := resolver.Any(layout.Join(testPrefix, "D")); !ok {
		t.Error("sibling directory lost after tombstone")
	}
}

func TestRefusesUnreadableSection(t *testing.T) {
	resolver := buildSection(t, standardTree(), Options{})
	header := resolver.Header()

	header.SetStatus(layout.StatusInProgress)
	if _, ok := resolver.Any(layout.Join(testPrefix, "a.txt")); ok {
		t.Error("lookup succeeded on an in-progress section")
	}
	header.SetStatus(layout.StatusFinished)
	if _, ok := resolver.Any(layout.Join(testPrefix, "a.txt")); !ok {
		t.Error("lookup failed after status restored")
	}

	// New refuses a non-readable section outright.
	header.SetStatus(layout.StatusError)
	if _, err := New(header.Region(), Options{}); err == nil {
		t.Error("New accepted an errored section")
	}
	header.SetStatus(layout.StatusFinished)
}

func TestLookupCache(t *testing.T) {
	resolver := buildSection(t, standardTree(), Options{CacheEntries: 128})
	path := layout.Join(testPrefix, `D\b.txt`)

	first, ok := resolver.Any(path)
	if !ok {
		t.Fatal("b.txt did not resolve")
	}
	resolver.CacheWait()

	cached, ok := resolver.cacheGet(path)
	if !ok || cached.Offset() != first.Offset() {
		t.Fatalf("cacheGet = (%d, %v), want offset %d", cached.Offset(), ok, first.Offset())
	}

	// A tombstone invalidates the cached entry on the next hit.
	first.SetAttributes(layout.AttrTombstone)
	if _, ok := resolver.cacheGet(path); ok {
		t.Error("cache served a tombstoned record")
	}
}
