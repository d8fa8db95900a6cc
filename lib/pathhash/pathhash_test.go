// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package pathhash

import (
	"math/rand"
	"testing"

	"github.com/fastfilestats/ffstats/lib/layout"
)

// referenceSum is an independent implementation: reverse the buffer
// first, then run textbook forward FNV-1a/32 over it. The production
// code must agree on every input.
func referenceSum(buf []byte) uint32 {
	reversed := make([]byte, len(buf))
	for i, b := range buf {
		reversed[len(buf)-1-i] = b
	}
	h := uint32(0x811c9dc5)
	for _, b := range reversed {
		h ^= uint32(b)
		h *= 0x01000193
	}
	return h
}

func TestSumMatchesReference(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0x61, 0x00}, // "a" in UTF-16LE
		layout.PathBytes(`f:\src`),
		layout.PathBytes(`f:\src\very\deep\path\with\many\components`),
		layout.PathBytes(`c:\日本語\パス`),
	}
	for _, buf := range cases {
		if got, want := Sum(buf), referenceSum(buf); got != want {
			t.Errorf("Sum(%x) = 0x%08x, reference 0x%08x", buf, got, want)
		}
	}

	random := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		buf := make([]byte, random.Intn(128))
		random.Read(buf)
		if got, want := Sum(buf), referenceSum(buf); got != want {
			t.Fatalf("random buffer %x: Sum = 0x%08x, reference 0x%08x", buf, got, want)
		}
	}
}

func TestEmptyBufferIsOffsetBasis(t *testing.T) {
	if got := Sum(nil); got != 0x811c9dc5 {
		t.Errorf("Sum(nil) = 0x%08x, want the FNV offset basis", got)
	}
}

func TestPathHashesUTF16Bytes(t *testing.T) {
	path := `f:\src\lib`
	if got, want := Path(path), Sum(layout.PathBytes(path)); got != want {
		t.Errorf("Path = 0x%08x, Sum over PathBytes = 0x%08x", got, want)
	}
}

// Sibling paths share everything but the tail; the reversed scan must
// separate them (this is the reason the format hashes back-to-front).
func TestSiblingPathsDiverge(t *testing.T) {
	a := Path(`f:\src\lib\alpha`)
	b := Path(`f:\src\lib\omega`)
	if a == b {
		t.Error("sibling paths hash identically")
	}
}

func TestBucketRange(t *testing.T) {
	random := rand.New(rand.NewSource(2))
	for i := 0; i < 1000; i++ {
		if bucket := Bucket(random.Uint32()); bucket >= layout.BucketCount {
			t.Fatalf("bucket %d out of range", bucket)
		}
	}
	if Bucket(layout.BucketCount) != 0 {
		t.Errorf("Bucket(BucketCount) = %d, want 0", Bucket(layout.BucketCount))
	}
}
