// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package enum

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fastfilestats/ffstats/lib/layout"
)

// OSTree enumerates a real directory subtree. Published paths under
// Prefix map onto the POSIX tree under Root; the listing order is
// whatever the OS directory read yields.
type OSTree struct {
	// Root is the POSIX directory being walked.
	Root string

	// Prefix is the published path the section advertises for Root,
	// e.g. `f:\src`. No trailing separator.
	Prefix string
}

// OSPath translates a published path to its POSIX equivalent. Fails if
// the path does not lie under the tree's prefix.
func (t *OSTree) OSPath(published string) (string, error) {
	if published == t.Prefix {
		return t.Root, nil
	}
	inner, ok := strings.CutPrefix(published, t.Prefix+string(layout.Separator))
	if !ok {
		return "", fmt.Errorf("path %q is outside the published prefix %q", published, t.Prefix)
	}
	return filepath.Join(t.Root, strings.ReplaceAll(inner, string(layout.Separator), "/")), nil
}

// ReadDir implements Tree. The "." self-entry is synthesized from the
// directory's own metadata before the children.
func (t *OSTree) ReadDir(published string) ([]Entry, error) {
	osPath, err := t.OSPath(published)
	if err != nil {
		return nil, err
	}

	self, err := os.Lstat(osPath)
	if err != nil {
		return nil, fmt.Errorf("stating %s: %w", osPath, err)
	}
	children, err := os.ReadDir(osPath)
	if err != nil {
		return nil, fmt.Errorf("enumerating %s: %w", osPath, err)
	}

	entries := make([]Entry, 0, len(children)+1)
	entries = append(entries, entryFromInfo(".", self))
	for _, child := range children {
		info, err := child.Info()
		if err != nil {
			// The entry vanished between the directory read and the
			// stat. Enumerate what remains.
			continue
		}
		entries = append(entries, entryFromInfo(child.Name(), info))
	}
	return entries, nil
}

// Stat implements Tree.
func (t *OSTree) Stat(published string) (Entry, error) {
	osPath, err := t.OSPath(published)
	if err != nil {
		return Entry{}, err
	}
	info, err := os.Lstat(osPath)
	if err != nil {
		return Entry{}, fmt.Errorf("stating %s: %w", osPath, err)
	}
	name := "."
	if _, leaf, ok := layout.Split(published); ok && published != t.Prefix {
		name = leaf
	}
	return entryFromInfo(name, info), nil
}

// entryFromInfo maps POSIX stat results onto the format's Win32-style
// fields: symlinks become reparse points, directories carry the
// directory bit, regular files the archive bit, leading-dot names the
// hidden bit, and a mode with no owner write permission the read-only
// bit.
func entryFromInfo(name string, info fs.FileInfo) Entry {
	var attributes uint32
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		attributes |= layout.AttrReparsePoint
	case info.IsDir():
		attributes |= layout.AttrDirectory
	default:
		attributes |= layout.AttrArchive
	}
	if strings.HasPrefix(name, ".") && name != "." {
		attributes |= layout.AttrHidden
	}
	if info.Mode().Perm()&0o200 == 0 {
		attributes |= layout.AttrReadOnly
	}

	entry := Entry{
		Name:          name,
		Attributes:    attributes,
		LastWriteTime: layout.TimeToFiletime(info.ModTime()),
	}
	if !info.IsDir() {
		entry.Size = uint64(info.Size())
	}

	// POSIX has no creation time; the inode change time is the
	// closest the format can be fed.
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		entry.LastAccessTime = layout.TimeToFiletime(time.Unix(stat.Atim.Sec, stat.Atim.Nsec))
		entry.CreationTime = layout.TimeToFiletime(time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec))
	} else {
		entry.LastAccessTime = entry.LastWriteTime
		entry.CreationTime = entry.LastWriteTime
	}
	return entry
}
