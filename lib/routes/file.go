// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package routes

import (
	"context"
	"fmt"
	"strings"

	"rio9p/lib/ninep"
)

// File is the `routes` synthetic file: reads render the current
// attachment table, writes create (`src -> dst`) or remove (`-src`)
// entries (spec.md §4.12).
type File struct {
	manager *Manager
}

// NewFile wraps manager as a ninep.File.
func NewFile(manager *Manager) *File {
	return &File{manager: manager}
}

func (f *File) Name() string { return "routes" }

func (f *File) Open(context.Context, *ninep.Fid, ninep.OpenMode) error { return nil }

func (f *File) Read(_ context.Context, _ *ninep.Fid, offset int64, count int) ([]byte, error) {
	content := f.render()
	if offset >= int64(len(content)) {
		return nil, nil
	}
	end := offset + int64(count)
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return []byte(content[offset:end]), nil
}

func (f *File) render() string {
	statuses := f.manager.ListRoutes()
	if len(statuses) == 0 {
		return "(no routes)\n"
	}
	var b strings.Builder
	for _, s := range statuses {
		state := "stopped"
		if s.Running {
			state = "running"
		}
		fmt.Fprintf(&b, "%s -> %s %s\n", s.Source, s.Destination, state)
	}
	return b.String()
}

// Write parses one line: "src -> dst" creates a route, "-src" removes
// it. Malformed lines fail with ninep.ErrUsage.
func (f *File) Write(_ context.Context, _ *ninep.Fid, _ int64, data []byte) (int, error) {
	line := strings.TrimRight(string(data), "\n")
	if strings.Contains(line, "\n") {
		return 0, fmt.Errorf("routes: multiple lines in one write: %w", ninep.ErrUsage)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, fmt.Errorf("routes: empty command: %w", ninep.ErrUsage)
	}

	if strings.HasPrefix(line, "-") {
		source := strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if source == "" {
			return 0, fmt.Errorf("routes: malformed remove command %q: %w", line, ninep.ErrUsage)
		}
		f.manager.RemoveRoute(source)
		return len(data), nil
	}

	source, destination, ok := strings.Cut(line, "->")
	if !ok {
		return 0, fmt.Errorf("routes: malformed line %q: %w", line, ninep.ErrUsage)
	}
	source = strings.TrimSpace(source)
	destination = strings.TrimSpace(destination)
	if source == "" || destination == "" {
		return 0, fmt.Errorf("routes: malformed line %q: %w", line, ninep.ErrUsage)
	}

	f.manager.AddRoute(source, destination)
	return len(data), nil
}

func (f *File) Clunk(context.Context, *ninep.Fid) error { return nil }

func (f *File) SizeHint() int64 { return 0 }

var _ ninep.File = (*File)(nil)
