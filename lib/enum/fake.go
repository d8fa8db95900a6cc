// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package enum

import (
	"fmt"

	"github.com/fastfilestats/ffstats/lib/layout"
)

// Fake is an in-memory Tree for tests. Directories and files are added
// by published path; listing order is insertion order.
type Fake struct {
	root string
	dirs map[string]*fakeDir
}

type fakeDir struct {
	self     Entry
	children []Entry
}

// NewFake creates a fake tree rooted at the given published path.
func NewFake(root string) *Fake {
	f := &Fake{
		root: root,
		dirs: make(map[string]*fakeDir),
	}
	f.dirs[root] = &fakeDir{self: Entry{Name: ".", Attributes: layout.AttrDirectory}}
	return f
}

// AddDir adds a directory at the published path. The parent directory
// must already exist.
func (f *Fake) AddDir(published string) {
	f.addChild(published, Entry{Attributes: layout.AttrDirectory})
	f.dirs[published] = &fakeDir{self: Entry{Name: ".", Attributes: layout.AttrDirectory}}
}

// AddFile adds a regular file with the given size and last-write time.
func (f *Fake) AddFile(published string, size, lastWrite uint64) {
	f.addChild(published, Entry{
		Attributes:    layout.AttrArchive,
		Size:          size,
		LastWriteTime: lastWrite,
	})
}

// AddReparse adds a reparse-point entry (a symlink, in POSIX terms).
// No directory listing is registered for it: enumerating inside a
// reparse point fails, as it would on the real walker which never
// descends into one.
func (f *Fake) AddReparse(published string) {
	f.addChild(published, Entry{Attributes: layout.AttrReparsePoint | layout.AttrDirectory})
}

// Update mutates the child entry at the published path, simulating an
// on-disk change the applier will re-stat.
func (f *Fake) Update(published string, mutate func(*Entry)) {
	parent, leaf, ok := layout.Split(published)
	if !ok {
		panic(fmt.Sprintf("fake: update of unsplittable path %q", published))
	}
	dir, ok := f.dirs[parent]
	if !ok {
		panic(fmt.Sprintf("fake: update in unknown directory %q", parent))
	}
	for i := range dir.children {
		if dir.children[i].Name == leaf {
			mutate(&dir.children[i])
			return
		}
	}
	panic(fmt.Sprintf("fake: update of unknown entry %q", published))
}

// Drop removes the directory listing for a published path while
// leaving its entry in the parent, simulating a directory that
// vanishes (or loses permission) between discovery and enumeration.
func (f *Fake) Drop(published string) {
	delete(f.dirs, published)
}

// ReadDir implements Tree.
func (f *Fake) ReadDir(published string) ([]Entry, error) {
	dir, ok := f.dirs[published]
	if !ok {
		return nil, fmt.Errorf("no such directory %q", published)
	}
	entries := make([]Entry, 0, len(dir.children)+1)
	entries = append(entries, dir.self)
	entries = append(entries, dir.children...)
	return entries, nil
}

// Stat implements Tree.
func (f *Fake) Stat(published string) (Entry, error) {
	if published == f.root {
		entry := f.dirs[f.root].self
		return entry, nil
	}
	parent, leaf, ok := layout.Split(published)
	if !ok {
		return Entry{}, fmt.Errorf("unsplittable path %q", published)
	}
	dir, ok := f.dirs[parent]
	if !ok {
		return Entry{}, fmt.Errorf("no such directory %q", parent)
	}
	for _, child := range dir.children {
		if child.Name == leaf {
			return child, nil
		}
	}
	return Entry{}, fmt.Errorf("no such entry %q", published)
}

func (f *Fake) addChild(published string, entry Entry) {
	parent, leaf, ok := layout.Split(published)
	if !ok {
		panic(fmt.Sprintf("fake: unsplittable path %q", published))
	}
	dir, ok := f.dirs[parent]
	if !ok {
		panic(fmt.Sprintf("fake: parent directory %q not added", parent))
	}
	entry.Name = leaf
	dir.children = append(dir.children, entry)
}
