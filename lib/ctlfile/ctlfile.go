// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

// Package ctlfile implements the line-oriented control-file
// abstraction (spec.md §4.3): a single write is `<verb> [SP <arg>]\n`,
// dispatched to a registered handler; a read returns a `<key> <value>`
// status block, one line per entry, computed fresh on every read (the
// "buffered, no wait" protocol from spec.md §4.8 — ctl files never
// block).
package ctlfile

import (
	"context"
	"fmt"
	"strings"

	"rio9p/lib/ninep"
)

// StatusLine is one `key value` line of a ctl read.
type StatusLine struct {
	Key   string
	Value string
}

// VerbFunc handles one ctl verb. arg is the remainder of the line
// after the verb, with surrounding whitespace trimmed (empty string if
// no argument was given). A returned error reaches the caller
// unchanged, so each verb picks its own error class: ninep.ErrUsage
// for malformed arguments, ninep.ErrNotFound and the like otherwise.
type VerbFunc func(ctx context.Context, arg string) error

// StatusFunc computes the current status block. Called fresh on every
// read; implementations should be cheap (no I/O beyond memory).
type StatusFunc func(ctx context.Context) []StatusLine

// File is a ctl file: a verb dispatch table on write, a status block
// on read.
type File struct {
	name   string
	verbs  map[string]VerbFunc
	status StatusFunc
}

// New creates a ctl file. verbs maps the first whitespace-delimited
// token of a write to its handler. status, if nil, makes reads return
// an empty block.
func New(name string, verbs map[string]VerbFunc, status StatusFunc) *File {
	if status == nil {
		status = func(context.Context) []StatusLine { return nil }
	}
	return &File{name: name, verbs: verbs, status: status}
}

func (f *File) Name() string { return f.name }

func (f *File) Open(context.Context, *ninep.Fid, ninep.OpenMode) error { return nil }

func (f *File) Read(ctx context.Context, fid *ninep.Fid, offset int64, count int) ([]byte, error) {
	var buf strings.Builder
	for _, line := range f.status(ctx) {
		fmt.Fprintf(&buf, "%s %s\n", line.Key, line.Value)
	}
	content := buf.String()
	if offset >= int64(len(content)) {
		return nil, nil
	}
	end := offset + int64(count)
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return []byte(content[offset:end]), nil
}

// Write parses a single command line and dispatches it. A write may
// contain a trailing newline, which is stripped; embedded newlines
// (multiple commands in one write) are rejected as usage errors — the
// grammar is one command per write.
func (f *File) Write(ctx context.Context, fid *ninep.Fid, offset int64, data []byte) (int, error) {
	line := strings.TrimRight(string(data), "\n")
	if strings.Contains(line, "\n") {
		return 0, fmt.Errorf("ctl: multiple lines in one write: %w", ninep.ErrUsage)
	}

	verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	if verb == "" {
		return 0, fmt.Errorf("ctl: empty command: %w", ninep.ErrUsage)
	}
	handler, ok := f.verbs[verb]
	if !ok {
		return 0, fmt.Errorf("ctl: unknown verb %q: %w", verb, ninep.ErrUsage)
	}
	if err := handler(ctx, strings.TrimSpace(arg)); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (f *File) Clunk(context.Context, *ninep.Fid) error { return nil }

func (f *File) SizeHint() int64 { return 0 }

var _ ninep.File = (*File)(nil)
