// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import "testing"

func TestStripANSIRemovesCSIAndOSC(t *testing.T) {
	input := "\x1b[31mred\x1b[0m text\x1b]0;title\x07 more\r\n"
	got := string(stripANSI([]byte(input)))
	want := "red text more\n"
	if got != want {
		t.Fatalf("stripANSI(%q) = %q, want %q", input, got, want)
	}
}

func TestStripANSIRemovesStrayEscape(t *testing.T) {
	got := string(stripANSI([]byte("a\x1bb")))
	if got != "ab" {
		t.Fatalf("stripANSI stray escape = %q, want %q", got, "ab")
	}
}

func TestStripANSIPassesPlainTextThrough(t *testing.T) {
	got := string(stripANSI([]byte("hello world\n")))
	if got != "hello world\n" {
		t.Fatalf("stripANSI plain text = %q", got)
	}
}
