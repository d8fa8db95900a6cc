// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fastfilestats/ffstats/lib/build"
	"github.com/fastfilestats/ffstats/lib/enum"
	"github.com/fastfilestats/ffstats/lib/layout"
	"github.com/fastfilestats/ffstats/lib/region"
)

const testPrefix = `t:\root`

func builtHeader(t *testing.T) layout.Header {
	t.Helper()
	r, err := region.Create(filepath.Join(t.TempDir(), "section"), 4*region.CommitChunk)
	if err != nil {
		t.Fatalf("creating region: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	fake := enum.NewFake(testPrefix)
	fake.AddFile(layout.Join(testPrefix, "a.txt"), 4, 111)
	fake.AddDir(layout.Join(testPrefix, "D"))
	fake.AddFile(layout.Join(testPrefix, `D\b.txt`), 8, 222)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := build.Build(r, fake, testPrefix, build.Options{Logger: logger}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	header, err := layout.NewHeader(r.Bytes())
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}
	return header
}

func TestWriteReadRoundTrip(t *testing.T) {
	header := builtHeader(t)
	imageEnd := header.DirOffset() + layout.IndexHeaderSize
	original := make([]byte, imageEnd)
	copy(original, header.Region()[:imageEnd])

	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "snap.ffsnap")
			manifest, err := Write(path, header, testPrefix, 1754400000, compression)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if manifest.NumNodes != header.NumNodes() || manifest.NumDirs != header.NumDirs() {
				t.Errorf("manifest counts = %d/%d, header %d/%d",
					manifest.NumNodes, manifest.NumDirs, header.NumNodes(), header.NumDirs())
			}
			if manifest.ImageBytes != imageEnd {
				t.Errorf("manifest image bytes = %d, want %d", manifest.ImageBytes, imageEnd)
			}

			loaded, image, err := Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if loaded.Prefix != testPrefix || loaded.CreatedUnix != 1754400000 {
				t.Errorf("manifest = %+v", loaded)
			}
			if loaded.Compression != compression {
				t.Errorf("compression tag = %s, want %s", loaded.Compression, compression)
			}
			if !bytes.Equal(image, original) {
				t.Error("decompressed image differs from the section image")
			}
		})
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	header := builtHeader(t)
	path := filepath.Join(t.TempDir(), "snap.ffsnap")
	if _, err := Write(path, header, testPrefix, 1, CompressionNone); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	// Flip a byte near the end: inside the stored image, past the
	// manifest.
	data[len(data)-5] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("rewriting snapshot: %v", err)
	}

	if _, _, err := Read(path); err == nil {
		t.Error("corrupted snapshot read back without error")
	}
}

func TestReadRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-snapshot")
	if err := os.WriteFile(path, []byte("plain text, nothing more"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	if _, _, err := Read(path); err == nil {
		t.Error("foreign file accepted as a snapshot")
	}
}

func TestNoPartialFileLeftBehind(t *testing.T) {
	header := builtHeader(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.ffsnap")
	if _, err := Write(path, header, testPrefix, 1, CompressionLZ4); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "snap.ffsnap" {
		t.Errorf("directory holds %d entries; staging file left behind?", len(entries))
	}
}
