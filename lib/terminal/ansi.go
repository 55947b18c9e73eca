// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import "regexp"

// ansiPatterns strip the escape sequences a shell's raw PTY output
// carries that a plain-text capture file has no use for: OSC strings
// (title-setting, hyperlinks), CSI sequences (cursor movement, color),
// stray two-byte escapes, and lone ESC bytes. Carriage returns are
// dropped separately since terminals emit them constantly for
// line-redraw and they add nothing to a scrollback capture.
var ansiPatterns = []*regexp.Regexp{
	regexp.MustCompile("\x1b\\][^\x07\x1b]*(?:\x07|\x1b\\\\)"), // OSC ... BEL or ST
	regexp.MustCompile("\x1b\\[[0-9;?]*[a-zA-Z]"),              // CSI ... final byte
	regexp.MustCompile("\x1b[@-Z\\\\-_]"),                      // two-byte escape
	regexp.MustCompile("\x1b"),                                 // stray ESC
}

// stripANSI removes escape sequences and carriage returns from raw PTY
// output, run in the capture callback before bytes reach a terminal's
// stdout buffer (spec.md §4.10).
func stripANSI(data []byte) []byte {
	s := string(data)
	for _, re := range ansiPatterns {
		s = re.ReplaceAllString(s, "")
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\r' {
			out = append(out, s[i])
		}
	}
	return out
}
