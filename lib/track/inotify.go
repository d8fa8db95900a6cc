// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package track

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/fastfilestats/ffstats/lib/layout"
)

// watchMask selects the event classes the applier can act on.
// IN_CLOSE_WRITE rather than IN_MODIFY: one event per completed write
// session instead of one per write call.
const watchMask = unix.IN_CREATE | unix.IN_DELETE | unix.IN_CLOSE_WRITE |
	unix.IN_ATTRIB | unix.IN_MOVED_FROM | unix.IN_MOVED_TO

// Inotify watches a directory subtree and delivers change batches.
// inotify watches are per-directory, so the notifier registers one
// watch per directory up front and adds watches for directories that
// appear later.
type Inotify struct {
	fd      int
	root    string
	logger  *slog.Logger
	batches chan []Event

	stopOnce sync.Once
	stop     chan struct{}

	// watchedDirs maps a watch descriptor to the directory's path
	// relative to the root, in published form ("" for the root).
	// Touched only by the read loop after startup.
	watchedDirs map[int32]string
}

// NewInotify starts watching the POSIX directory tree rooted at root.
// Event paths are published-relative.
func NewInotify(root string, logger *slog.Logger) (*Inotify, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}

	n := &Inotify{
		fd:          fd,
		root:        root,
		logger:      logger,
		batches:     make(chan []Event, 16),
		stop:        make(chan struct{}),
		watchedDirs: make(map[int32]string),
	}

	if err := n.watchTree(root, ""); err != nil {
		unix.Close(fd)
		return nil, err
	}

	go n.readLoop()
	return n, nil
}

// Batches implements Notifier.
func (n *Inotify) Batches() <-chan []Event {
	return n.batches
}

// Close stops the read loop and releases the inotify descriptor. Safe
// to call more than once.
func (n *Inotify) Close() error {
	n.stopOnce.Do(func() { close(n.stop) })
	return nil
}

// watchTree adds watches for dir and every subdirectory beneath it.
// Symlinks are not followed, mirroring the walker's reparse-point
// skip. Unreadable subdirectories are skipped; the applier will count
// pending fixes for whatever happens inside them.
func (n *Inotify) watchTree(dir, relative string) error {
	wd, err := unix.InotifyAddWatch(n.fd, dir, watchMask)
	if err != nil {
		return fmt.Errorf("inotify_add_watch on %s: %w", dir, err)
	}
	n.watchedDirs[int32(wd)] = relative

	children, err := os.ReadDir(dir)
	if err != nil {
		n.logger.Debug("watch registration skipped unreadable directory", "path", dir, "error", err)
		return nil
	}
	for _, child := range children {
		if !child.IsDir() || child.Type()&os.ModeSymlink != 0 {
			continue
		}
		childRelative := child.Name()
		if relative != "" {
			childRelative = layout.Join(relative, child.Name())
		}
		if err := n.watchTree(filepath.Join(dir, child.Name()), childRelative); err != nil {
			n.logger.Debug("watch registration failed", "path", dir, "error", err)
		}
	}
	return nil
}

// readLoop polls the inotify fd, translates raw events into batches,
// and maintains the watch set as directories come and go. Closes the
// batches channel and the fd on exit.
//
// poll(2) with a 100ms timeout keeps the goroutine responsive to the
// stop signal without a tight loop.
func (n *Inotify) readLoop() {
	defer func() {
		unix.Close(n.fd)
		close(n.batches)
	}()

	buffer := make([]byte, 64*1024)
	for {
		select {
		case <-n.stop:
			return
		default:
		}

		pollDescriptors := []unix.PollFd{{Fd: int32(n.fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			n.logger.Error("inotify poll failed", "error", err)
			return
		}
		if count == 0 {
			continue
		}

		bytesRead, err := unix.Read(n.fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			n.logger.Error("inotify read failed", "error", err)
			return
		}

		if batch := n.parseEvents(buffer[:bytesRead]); len(batch) > 0 {
			select {
			case n.batches <- batch:
			case <-n.stop:
				return
			}
		}
	}
}

// parseEvents walks a buffer of raw inotify events.
//
// Inotify event layout (from inotify(7)):
//
//	struct inotify_event {
//	    int32_t  wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16, padded to alignment
//	};
func (n *Inotify) parseEvents(buffer []byte) []Event {
	var batch []Event
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		wd := int32(binary.NativeEndian.Uint32(buffer[offset:]))
		mask := binary.NativeEndian.Uint32(buffer[offset+4:])
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12:]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}

		var name string
		if nameLength > 0 {
			// The name is null-padded to an alignment boundary.
			name = nullTerminatedString(buffer[offset+unix.SizeofInotifyEvent : offset+eventSize])
		}
		offset += eventSize

		if mask&unix.IN_IGNORED != 0 {
			delete(n.watchedDirs, wd)
			continue
		}
		directory, known := n.watchedDirs[wd]
		if !known || name == "" {
			continue
		}

		relative := name
		if directory != "" {
			relative = layout.Join(directory, name)
		}

		action, ok := actionForMask(mask)
		if !ok {
			continue
		}
		batch = append(batch, Event{Action: action, Path: relative})

		// A directory that appears under a watched one needs its own
		// watch before anything inside it can be seen.
		if mask&unix.IN_ISDIR != 0 && (mask&unix.IN_CREATE != 0 || mask&unix.IN_MOVED_TO != 0) {
			osPath := filepath.Join(n.root, strings.ReplaceAll(relative, string(layout.Separator), "/"))
			if err := n.watchTree(osPath, relative); err != nil {
				n.logger.Debug("watching new directory failed", "path", osPath, "error", err)
			}
		}
	}
	return batch
}

func actionForMask(mask uint32) (Action, bool) {
	switch {
	case mask&unix.IN_CREATE != 0:
		return Added, true
	case mask&unix.IN_DELETE != 0:
		return Removed, true
	case mask&unix.IN_MOVED_FROM != 0:
		return RenamedOld, true
	case mask&unix.IN_MOVED_TO != 0:
		return RenamedNew, true
	case mask&unix.IN_CLOSE_WRITE != 0, mask&unix.IN_ATTRIB != 0:
		return Modified, true
	}
	return 0, false
}

// nullTerminatedString extracts a string from a null-padded byte
// slice, stopping at the first null byte.
func nullTerminatedString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
