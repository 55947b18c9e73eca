// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

// Package sceneparser implements the streaming code-fragment
// accumulator behind scene/parse (spec.md §4.4). Writes across
// arbitrary chunk boundaries accumulate into a per-fid buffer, keyed
// by fid ID since concurrent writes on different fids of the same file
// are not ordered with each other (spec.md §4.1). On clunk, the
// accumulated buffer is drained and, if non-empty, handed to the
// executor in its own goroutine so releasing the fid never blocks on
// execution.
package sceneparser

import (
	"context"
	"sync"

	"rio9p/lib/ninep"
)

// ExecFunc runs one submitted code fragment. Implementations must
// serialize their own access to shared state (the execution namespace,
// the version store) — sceneparser only guarantees fragments from
// different fids are dispatched independently, not that they run one
// at a time.
type ExecFunc func(code string)

// File is the scene/parse synthetic file.
type File struct {
	exec ExecFunc

	mu      sync.Mutex
	buffers map[uint64][]byte
}

// New creates a parse file that hands completed fragments to exec.
func New(exec ExecFunc) *File {
	return &File{exec: exec, buffers: make(map[uint64][]byte)}
}

func (f *File) Name() string { return "parse" }

func (f *File) Open(_ context.Context, fid *ninep.Fid, _ ninep.OpenMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buffers[fid.ID] = nil
	return nil
}

// Read reports whether this fid's buffer is empty ("ready") or has
// unconsumed writes pending clunk ("buffering...").
func (f *File) Read(_ context.Context, fid *ninep.Fid, offset int64, count int) ([]byte, error) {
	f.mu.Lock()
	empty := len(f.buffers[fid.ID]) == 0
	f.mu.Unlock()

	status := "buffering...\n"
	if empty {
		status = "ready\n"
	}
	if offset >= int64(len(status)) {
		return nil, nil
	}
	end := offset + int64(count)
	if end > int64(len(status)) {
		end = int64(len(status))
	}
	return []byte(status[offset:end]), nil
}

func (f *File) Write(_ context.Context, fid *ninep.Fid, _ int64, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buffers[fid.ID] = append(f.buffers[fid.ID], data...)
	return len(data), nil
}

// Clunk drains the fid's buffer and, if it is non-empty, schedules its
// contents for execution on a new goroutine.
func (f *File) Clunk(_ context.Context, fid *ninep.Fid) error {
	f.mu.Lock()
	code := f.buffers[fid.ID]
	delete(f.buffers, fid.ID)
	f.mu.Unlock()

	if len(code) > 0 && f.exec != nil {
		go f.exec(string(code))
	}
	return nil
}

func (f *File) SizeHint() int64 { return 0 }

var _ ninep.File = (*File)(nil)
