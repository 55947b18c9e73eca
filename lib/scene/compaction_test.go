// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import "testing"

func TestCompactionDedupsImportsPreservingFirstOccurrence(t *testing.T) {
	c := NewCompactor(nil)
	c.Append("import \"strings\"\nx := 1\n")
	c.Append("import \"strings\"\nimport \"fmt\"\ny := 2\n")

	out := c.Compact()
	if got := countOccurrences(out, "import \"strings\"\n"); got != 1 {
		t.Fatalf("strings import appears %d times, want 1: %q", got, out)
	}
	if got := countOccurrences(out, "import \"fmt\"\n"); got != 1 {
		t.Fatalf("fmt import appears %d times, want 1: %q", got, out)
	}
}

func TestCompactionSupersedesLatestAssignment(t *testing.T) {
	c := NewCompactor(nil)
	c.Append("shadow := 1\n")
	c.Append("shadow := 2\n")

	out := c.Compact()
	if countOccurrences(out, "shadow := 1") != 0 {
		t.Fatalf("stale assignment survived compaction: %q", out)
	}
	if countOccurrences(out, "shadow := 2") != 1 {
		t.Fatalf("latest assignment missing from compaction: %q", out)
	}
}

func TestCompactionElidesDestroyedWidgetBinding(t *testing.T) {
	stillBound := func(name string) bool { return name != "popup" }
	c := NewCompactor(stillBound)
	c.Append("popup := newPopup()\n")

	out := c.Compact()
	if countOccurrences(out, "popup") != 0 {
		t.Fatalf("destroyed widget's statement was not elided: %q", out)
	}
}

func TestCompactionKeepsUnrelatedBindingsAcrossFragments(t *testing.T) {
	stillBound := func(name string) bool { return true }
	c := NewCompactor(stillBound)
	c.Append("web_view := newView()\n")
	c.Append("shadow := newShadow()\n")

	out := c.Compact()
	if countOccurrences(out, "web_view") != 1 {
		t.Fatalf("unrelated earlier binding was dropped: %q", out)
	}
	if countOccurrences(out, "shadow") != 1 {
		t.Fatalf("later binding missing: %q", out)
	}
}

func countOccurrences(haystack, needle string) int {
	count := 0
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			count++
			i += len(needle) - 1
		}
	}
	return count
}
