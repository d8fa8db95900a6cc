// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"time"
	"unicode/utf16"
)

// EncodeName encodes a name as NUL-terminated UTF-16LE bytes, the form
// stored at the tail of every record.
func EncodeName(name string) []byte {
	units := utf16.Encode([]rune(name))
	encoded := make([]byte, (len(units)+1)*2)
	for i, u := range units {
		encoded[2*i] = byte(u)
		encoded[2*i+1] = byte(u >> 8)
	}
	return encoded
}

// DecodeName decodes UTF-16LE bytes up to the first NUL code unit (or
// the end of the slice, for a name that fills its slot exactly).
func DecodeName(encoded []byte) string {
	units := make([]uint16, 0, len(encoded)/2)
	for i := 0; i+1 < len(encoded); i += 2 {
		u := uint16(encoded[i]) | uint16(encoded[i+1])<<8
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// PathBytes returns a path's raw UTF-16LE bytes without a terminator:
// the buffer the directory hash runs over. Its length is the number of
// UTF-16 code units times two.
func PathBytes(path string) []byte {
	units := utf16.Encode([]rune(path))
	b := make([]byte, len(units)*2)
	for i, u := range units {
		b[2*i] = byte(u)
		b[2*i+1] = byte(u >> 8)
	}
	return b
}

// filetimeEpochDelta is the number of 100 ns ticks between the FILETIME
// epoch (1601-01-01) and the Unix epoch (1970-01-01).
const filetimeEpochDelta = 116444736000000000

// TimeToFiletime converts a time to FILETIME form: 100 ns ticks since
// 1601-01-01 UTC. The zero time maps to zero.
func TimeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100 + filetimeEpochDelta)
}

// FiletimeToTime converts a FILETIME value back to a time. Zero maps
// to the zero time.
func FiletimeToTime(v uint64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, (int64(v)-filetimeEpochDelta)*100).UTC()
}
