// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/fastfilestats/ffstats/lib/layout"
	"github.com/fastfilestats/ffstats/lib/pathhash"
)

// Resolver resolves published paths against one mapped section.
type Resolver struct {
	region []byte
	header layout.Header
	cache  *lookupCache
}

// Options tunes a resolver.
type Options struct {
	// CacheEntries enables the path→offset cache with roughly this
	// many entries. Zero disables caching.
	CacheEntries int64
}

// New wraps a mapped section. The header must carry our magic and
// version; the status must be readable (Finished, Updating or Frozen).
func New(region []byte, opts Options) (*Resolver, error) {
	header, err := layout.NewHeader(region)
	if err != nil {
		return nil, err
	}
	if err := header.Validate(); err != nil {
		return nil, err
	}
	if status := header.Status(); !status.Readable() {
		return nil, fmt.Errorf("section status is %s; refusing to read", status)
	}

	r := &Resolver{region: region, header: header}
	if opts.CacheEntries > 0 {
		cache, err := newLookupCache(opts.CacheEntries)
		if err != nil {
			return nil, fmt.Errorf("creating lookup cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Directory resolves an absolute published path with no trailing
// separator to the directory's group-leader record.
func (r *Resolver) Directory(path string) (layout.Record, bool) {
	defer r.faultGuard()()
	if !r.usable() || !layout.IsQualified(path) {
		return layout.Record{}, false
	}
	return r.directory(path)
}

// Any resolves a published path to its record: a directory (with or
// without trailing separator) or a file. Misses are absence, never an
// error.
func (r *Resolver) Any(path string) (layout.Record, bool) {
	defer r.faultGuard()()
	if !r.usable() || !layout.IsQualified(path) {
		return layout.Record{}, false
	}

	if layout.HasTrailingSeparator(path) {
		return r.directory(path[:len(path)-1])
	}

	if record, ok := r.cacheGet(path); ok {
		return record, true
	}

	dir, leaf, ok := layout.Split(path)
	if !ok {
		return layout.Record{}, false
	}

	// If the directory part degenerates to the bare drive qualifier,
	// the path can only name the enumeration root itself; there is no
	// containing group to scan.
	if !layout.IsQualified(dir) {
		return r.directory(path)
	}

	leader, ok := r.directory(dir)
	if !ok {
		return layout.Record{}, false
	}
	record, ok := r.scanGroup(leader, leaf)
	if ok {
		r.cachePut(path, record.Offset())
	}
	return record, ok
}

// directory implements the bucket-chain lookup.
func (r *Resolver) directory(path string) (layout.Record, bool) {
	index, err := layout.IndexAt(r.region, r.header.DirOffset())
	if err != nil {
		return layout.Record{}, false
	}

	bucket := pathhash.Bucket(pathhash.Path(path))
	var found layout.Record
	ok := false
	_ = index.Chain(bucket, func(leaderOffset uint32) bool {
		leader, err := layout.RecordAt(r.region, leaderOffset)
		if err != nil {
			return true
		}
		parent, err := layout.RecordAt(r.region, leader.ParentOffset())
		if err != nil {
			return true
		}
		if r.matchesChain(parent, path) {
			found, ok = leader, true
			return false
		}
		return true
	})
	return found, ok
}

// matchesChain verifies a candidate by walking parent links toward the
// synthetic root, peeling one matching component off the path tail per
// step.
func (r *Resolver) matchesChain(record layout.Record, path string) bool {
	for {
		if record.IsTombstone() {
			return false
		}
		component := record.Name()

		if record.ParentOffset() == 0 {
			// Synthetic root: its name is the full root path, and the
			// chain is exhausted exactly when the remaining path is it.
			return path == component
		}

		// Every interior chain record stands for a directory. A file
		// record here means the section is structurally broken.
		if !record.IsDirectory() {
			panic(fmt.Sprintf("corrupt section: record at %d on a directory chain has attributes 0x%08x",
				record.Offset(), record.Attributes()))
		}

		if !strings.HasSuffix(path, component) {
			return false
		}
		rest := path[:len(path)-len(component)]
		if len(rest) == 0 || rest[len(rest)-1] != byte(layout.Separator) {
			return false
		}
		path = rest[:len(rest)-1]

		parent, err := layout.RecordAt(r.region, record.ParentOffset())
		if err != nil {
			return false
		}
		record = parent
	}
}

// scanGroup walks the group that starts just past the leader, matching
// the leaf name. The group ends at the arena extent or at the first
// record whose parent offset differs from the group id.
func (r *Resolver) scanGroup(leader layout.Record, leaf string) (layout.Record, bool) {
	groupID := leader.ParentOffset()
	arenaEnd := r.header.Bytes()

	record := leader
	for {
		next, err := record.Next()
		if err != nil || next.Offset() >= arenaEnd {
			return layout.Record{}, false
		}
		record = next
		if record.ParentOffset() != groupID {
			return layout.Record{}, false
		}
		if record.IsTombstone() {
			continue
		}
		if record.Name() == leaf {
			return record, true
		}
	}
}

// FullPath reconstructs a record's absolute published path by walking
// parent links to the synthetic root. Group-leader "." records
// reconstruct to their directory's path.
func (r *Resolver) FullPath(record layout.Record) (string, error) {
	defer r.faultGuard()()
	var parts []string
	for {
		if record.ParentOffset() == 0 {
			parts = append(parts, record.Name())
			break
		}
		if name := record.Name(); name != "." {
			parts = append(parts, name)
		}
		parent, err := layout.RecordAt(r.region, record.ParentOffset())
		if err != nil {
			return "", fmt.Errorf("broken parent chain at record %d: %w", record.Offset(), err)
		}
		record = parent
	}

	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString(parts[i])
		if i > 0 {
			b.WriteByte(byte(layout.Separator))
		}
	}
	return b.String(), nil
}

// Header returns the section header view.
func (r *Resolver) Header() layout.Header {
	return r.header
}

// usable re-checks the status word on every lookup. A section that has
// regressed to a non-readable state (an in-place rebuild started, or
// the build failed) yields misses, and the cache is dropped because a
// rebuild reassigns offsets.
func (r *Resolver) usable() bool {
	if r.header.Status().Readable() {
		return true
	}
	r.cacheClear()
	return false
}

// faultGuard converts page faults into misses. The mapping is backed
// by a file another process owns; if that file is truncated under us,
// a read faults with SIGBUS. The runtime turns it into a panic under
// SetPanicOnFault; only runtime faults are swallowed — any other panic
// (the corruption abort above) propagates.
func (r *Resolver) faultGuard() func() {
	old := debug.SetPanicOnFault(true)
	return func() {
		debug.SetPanicOnFault(old)
		if rec := recover(); rec != nil {
			if _, isFault := rec.(runtime.Error); !isFault {
				panic(rec)
			}
		}
	}
}
