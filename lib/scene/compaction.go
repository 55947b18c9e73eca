// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Compactor implements context compaction (spec.md §4.9): an
// append-only log of successfully executed code fragments is rewritten
// on read into a deduplicated, superseded program text. Grounded on
// original_source/rio/context_file.py's per-statement classification
// (import / assign / side_effect), collapsed from an AST-level analysis
// to a line-level regexp classification: yaegi fragments are frequently
// bare top-level statements ("x := 1") rather than syntactically
// complete Go files, so go/parser's file-oriented API does not apply
// directly to fragment text the way Python's module-level ast.parse
// does to a fragment. The looser classification still satisfies
// spec.md's three concrete rules (import dedup, assignment supersede,
// destroyed-widget elision) and, on any internal error, falls back to
// raw concatenation per §4.9/§9(a).
type Compactor struct {
	mu       sync.Mutex
	entries  []string
	stillBound func(name string) bool
}

// NewCompactor creates a compactor. stillBound reports whether a name
// is currently bound in the namespace/vars registry; nil treats every
// name as still bound (disables widget-destroy elision).
func NewCompactor(stillBound func(name string) bool) *Compactor {
	if stillBound == nil {
		stillBound = func(string) bool { return true }
	}
	return &Compactor{stillBound: stillBound}
}

// Append records one successfully executed fragment.
func (c *Compactor) Append(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, code)
}

// Reset clears the log — used by state restore.
func (c *Compactor) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

var (
	importLineRE = regexp.MustCompile(`^import\s+"([^"]+)"\s*$`)
	assignLineRE = regexp.MustCompile(`^(\w+)\s*:?=\s*\S`)
)

// Compact renders the current compacted program text.
func (c *Compactor) Compact() string {
	c.mu.Lock()
	entries := make([]string, len(c.entries))
	copy(entries, c.entries)
	c.mu.Unlock()

	compacted, err := compact(entries, c.stillBound)
	if err != nil {
		return strings.Join(entries, "\n")
	}
	return compacted
}

type codeLine struct {
	text   string
	defines string // non-empty if this line is a simple assignment
}

func compact(entries []string, stillBound func(string) bool) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scene: compaction panic: %v", r)
		}
	}()

	var imports []string
	seenImport := make(map[string]bool)

	var body []codeLine
	lastAssignIndex := make(map[string]int)

	for _, entry := range entries {
		inBlock := false
		for _, raw := range strings.Split(entry, "\n") {
			line := strings.TrimRight(raw, " \t")
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}

			switch {
			case trimmed == "import (":
				inBlock = true
				continue
			case inBlock && trimmed == ")":
				inBlock = false
				continue
			case inBlock:
				pkg := strings.Trim(trimmed, `"`)
				if pkg != "" && !seenImport[pkg] {
					seenImport[pkg] = true
					imports = append(imports, pkg)
				}
				continue
			}

			if m := importLineRE.FindStringSubmatch(trimmed); m != nil {
				if !seenImport[m[1]] {
					seenImport[m[1]] = true
					imports = append(imports, m[1])
				}
				continue
			}

			cl := codeLine{text: line}
			if m := assignLineRE.FindStringSubmatch(trimmed); m != nil {
				cl.defines = m[1]
				if prev, ok := lastAssignIndex[cl.defines]; ok {
					body[prev] = codeLine{} // supersede: blank the earlier one
				}
				lastAssignIndex[cl.defines] = len(body)
			}
			body = append(body, cl)
		}
	}

	var b strings.Builder
	for _, pkg := range imports {
		fmt.Fprintf(&b, "import %q\n", pkg)
	}
	if len(imports) > 0 {
		b.WriteByte('\n')
	}
	for _, cl := range body {
		if cl.text == "" {
			continue
		}
		if cl.defines != "" && !stillBound(cl.defines) {
			continue
		}
		b.WriteString(cl.text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
