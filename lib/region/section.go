// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package region

import (
	"path/filepath"
	"strings"

	"github.com/fastfilestats/ffstats/lib/layout"
)

// DefaultDir is where section files live unless configured otherwise.
const DefaultDir = "/dev/shm"

// SectionName derives the section name from a published prefix. The
// convention encodes the watched root: `f:\src` becomes `ffs_(f)!src`,
// `f:\src\lib` becomes `ffs_(f)!src!lib`. Clients that know the root
// they care about can derive the name without any discovery step.
func SectionName(prefix string) string {
	var b strings.Builder
	b.WriteString("ffs_")
	if layout.IsQualified(prefix) {
		b.WriteByte('(')
		b.WriteByte(lowerASCII(prefix[0]))
		b.WriteByte(')')
		prefix = prefix[2:]
	}
	for _, component := range strings.Split(prefix, string(layout.Separator)) {
		if component == "" {
			continue
		}
		b.WriteByte('!')
		b.WriteString(component)
	}
	return b.String()
}

// SectionPath joins a section directory and a published prefix into
// the full section file path.
func SectionPath(dir, prefix string) string {
	return filepath.Join(dir, SectionName(prefix))
}

func lowerASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
