// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"github.com/dgraph-io/ristretto/v2"

	"github.com/fastfilestats/ffstats/lib/layout"
)

// lookupCache memoizes path→offset resolutions. Offsets are stable
// for the lifetime of a section, so hits only need cheap
// re-verification (leaf name still matches, record not tombstoned)
// rather than a full chain walk.
type lookupCache struct {
	entries *ristretto.Cache[string, uint32]
}

func newLookupCache(entries int64) (*lookupCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, uint32]{
		NumCounters: entries * 10,
		MaxCost:     entries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &lookupCache{entries: cache}, nil
}

// cacheGet returns a verified cached resolution for path.
func (r *Resolver) cacheGet(path string) (layout.Record, bool) {
	if r.cache == nil {
		return layout.Record{}, false
	}
	offset, ok := r.cache.entries.Get(path)
	if !ok {
		return layout.Record{}, false
	}
	record, err := layout.RecordAt(r.region, offset)
	if err != nil || record.IsTombstone() {
		r.cache.entries.Del(path)
		return layout.Record{}, false
	}
	_, leaf, ok := layout.Split(path)
	if !ok || record.Name() != leaf {
		// Renamed in place since we cached it.
		r.cache.entries.Del(path)
		return layout.Record{}, false
	}
	return record, true
}

func (r *Resolver) cachePut(path string, offset uint32) {
	if r.cache == nil {
		return
	}
	r.cache.entries.Set(path, offset, 1)
}

func (r *Resolver) cacheClear() {
	if r.cache != nil {
		r.cache.entries.Clear()
	}
}

// CacheWait drains the cache's internal set buffer. Tests call this so
// a Set is visible to the next Get.
func (r *Resolver) CacheWait() {
	if r.cache != nil {
		r.cache.entries.Wait()
	}
}
