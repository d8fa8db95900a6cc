// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot writes and reads frozen section images.
//
// A live section is process-lifetime only; freezing is the one
// administrative escape hatch. A snapshot file carries a CBOR manifest
// (counts, published prefix, compression tag, BLAKE3 digest of the
// uncompressed image) followed by the compressed image: everything
// from the header through the directory index. Snapshots are for
// offline inspection and diffing — they are never re-mapped as live
// sections.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/fastfilestats/ffstats/lib/codec"
	"github.com/fastfilestats/ffstats/lib/layout"
)

// fileMagic opens every snapshot file, version byte last.
var fileMagic = [8]byte{'F', 'F', 'S', 'S', 'N', 'A', 'P', 1}

// Compression identifies the algorithm applied to the image. Stored
// in the manifest; protocol constants.
type Compression uint8

const (
	// CompressionNone stores the image raw.
	CompressionNone Compression = 0
	// CompressionLZ4 is the fast option for binary section data.
	CompressionLZ4 Compression = 1
	// CompressionZstd trades CPU for ratio; useful when snapshots are
	// shipped off the machine.
	CompressionZstd Compression = 2
)

// String returns the human-readable name of a compression tag.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// Manifest describes a snapshot. Serialized as CBOR between the file
// magic and the image.
type Manifest struct {
	// Prefix is the published root the section covered.
	Prefix string `cbor:"prefix"`

	// CreatedUnix is the freeze time, seconds since the Unix epoch.
	CreatedUnix int64 `cbor:"created_unix"`

	// NumNodes and NumDirs mirror the section header counts.
	NumNodes uint32 `cbor:"num_nodes"`
	NumDirs  uint32 `cbor:"num_dirs"`

	// ImageBytes is the uncompressed image length.
	ImageBytes uint32 `cbor:"image_bytes"`

	// Compression is the algorithm applied to the stored image.
	Compression Compression `cbor:"compression"`

	// Digest is the BLAKE3-256 digest of the uncompressed image.
	Digest []byte `cbor:"digest"`
}

// Write freezes the section behind header into a snapshot file at
// path. The caller has already published StatusFrozen (or otherwise
// stopped the writer); Write only reads the mapping.
func Write(path string, header layout.Header, prefix string, createdUnix int64, compression Compression) (Manifest, error) {
	imageEnd := header.DirOffset() + layout.IndexHeaderSize
	region := header.Region()
	if err := layout.CheckRange(region, 0, imageEnd); err != nil {
		return Manifest{}, fmt.Errorf("section image extent: %w", err)
	}
	image := region[:imageEnd]

	digest := blake3.Sum256(image)
	manifest := Manifest{
		Prefix:      prefix,
		CreatedUnix: createdUnix,
		NumNodes:    header.NumNodes(),
		NumDirs:     header.NumDirs(),
		ImageBytes:  imageEnd,
		Compression: compression,
		Digest:      digest[:],
	}

	compressed, err := compress(image, compression)
	if err != nil {
		return Manifest{}, err
	}
	manifestBytes, err := codec.Marshal(manifest)
	if err != nil {
		return Manifest{}, fmt.Errorf("encoding snapshot manifest: %w", err)
	}

	// Stage and rename so a half-written snapshot never wears the
	// final name.
	staging := path + ".partial"
	file, err := os.Create(staging)
	if err != nil {
		return Manifest{}, fmt.Errorf("creating snapshot file: %w", err)
	}
	err = writeAll(file, manifestBytes, compressed)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(staging)
		return Manifest{}, fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(staging, path); err != nil {
		os.Remove(staging)
		return Manifest{}, fmt.Errorf("publishing snapshot: %w", err)
	}
	return manifest, nil
}

func writeAll(file *os.File, manifestBytes, compressed []byte) error {
	if _, err := file.Write(fileMagic[:]); err != nil {
		return err
	}
	var lengthWord [4]byte
	binary.LittleEndian.PutUint32(lengthWord[:], uint32(len(manifestBytes)))
	if _, err := file.Write(lengthWord[:]); err != nil {
		return err
	}
	if _, err := file.Write(manifestBytes); err != nil {
		return err
	}
	_, err := file.Write(compressed)
	return err
}

// Read loads a snapshot: manifest plus the verified, decompressed
// image.
func Read(path string) (Manifest, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if len(data) < len(fileMagic)+4 || !bytes.Equal(data[:len(fileMagic)], fileMagic[:]) {
		return Manifest{}, nil, fmt.Errorf("%s is not a snapshot file", path)
	}
	manifestLength := binary.LittleEndian.Uint32(data[len(fileMagic):])
	manifestStart := uint32(len(fileMagic) + 4)
	if uint64(manifestStart)+uint64(manifestLength) > uint64(len(data)) {
		return Manifest{}, nil, fmt.Errorf("snapshot manifest length %d exceeds file size", manifestLength)
	}

	var manifest Manifest
	if err := codec.Unmarshal(data[manifestStart:manifestStart+manifestLength], &manifest); err != nil {
		return Manifest{}, nil, fmt.Errorf("decoding snapshot manifest: %w", err)
	}

	image, err := decompress(data[manifestStart+manifestLength:], manifest.Compression, manifest.ImageBytes)
	if err != nil {
		return Manifest{}, nil, err
	}
	digest := blake3.Sum256(image)
	if !bytes.Equal(digest[:], manifest.Digest) {
		return Manifest{}, nil, fmt.Errorf("snapshot image digest mismatch")
	}
	return manifest, image, nil
}

func compress(image []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return image, nil
	case CompressionLZ4:
		var buffer bytes.Buffer
		writer := lz4.NewWriter(&buffer)
		if _, err := writer.Write(image); err != nil {
			return nil, fmt.Errorf("lz4 compression: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compression: %w", err)
		}
		return buffer.Bytes(), nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		defer encoder.Close()
		return encoder.EncodeAll(image, nil), nil
	}
	return nil, fmt.Errorf("unknown compression tag %d", compression)
}

func decompress(stored []byte, compression Compression, imageBytes uint32) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return stored, nil
	case CompressionLZ4:
		reader := lz4.NewReader(bytes.NewReader(stored))
		image := make([]byte, 0, imageBytes)
		buffer := bytes.NewBuffer(image)
		if _, err := io.Copy(buffer, reader); err != nil {
			return nil, fmt.Errorf("lz4 decompression: %w", err)
		}
		return buffer.Bytes(), nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer decoder.Close()
		image, err := decoder.DecodeAll(stored, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompression: %w", err)
		}
		return image, nil
	}
	return nil, fmt.Errorf("unknown compression tag %d", compression)
}
