// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package ninep

import (
	"context"
	"fmt"
	"log/slog"
)

// Server dispatches walk/open/read/write/clunk calls against a rooted
// synthetic tree. One Server corresponds to one client connection's
// fid namespace; multiple connections to the same tree each get their
// own Server sharing the same root.
//
// Per spec.md §4.1 / §5: each call is expected to be issued from its
// own goroutine by the caller (the 9P codec, or a test). Server never
// holds a lock across a File method invocation, so a File.Read that
// blocks (streaming outputs, terminal stdout, CONTEXT) never delays a
// Write or Read dispatched concurrently against a different fid — or
// even the same file opened through a different fid.
type Server struct {
	root   Dir
	fids   *table
	logger *slog.Logger
}

// NewServer creates a Server rooted at root. The root fid (ID 0) is
// pre-populated so callers can Walk from it immediately.
func NewServer(root Dir, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{root: root, fids: newTable(), logger: logger}
	s.fids.mu.Lock()
	s.fids.fids[0] = &Fid{ID: 0, Node: root}
	s.fids.mu.Unlock()
	return s
}

// RootFid returns the pre-attached root fid ID (always 0).
func (s *Server) RootFid() uint64 { return 0 }

// Walk resolves components starting from fid and returns a freshly
// allocated fid bound to the resulting node. An empty components list
// clones fid onto a new ID (the usual 9P "walk to self" idiom).
func (s *Server) Walk(ctx context.Context, fid uint64, components []string) (uint64, error) {
	base, ok := s.fids.get(fid)
	if !ok {
		return 0, fmt.Errorf("walk: fid %d: %w", fid, ErrNotFound)
	}

	current := base.Node
	for _, name := range components {
		dir, ok := current.(Dir)
		if !ok {
			return 0, fmt.Errorf("walk: %q is not a directory: %w", current.Name(), ErrNotFound)
		}
		child, ok := dir.Child(name)
		if !ok {
			return 0, fmt.Errorf("walk: no such child %q: %w", name, ErrNotFound)
		}
		current = child
	}

	newFid := s.fids.create(current)
	return newFid.ID, nil
}

// Open validates mode against the target file and lets it initialize
// per-fid scratch state. Opening a directory always succeeds (used for
// listing) and ignores mode.
func (s *Server) Open(ctx context.Context, fid uint64, mode OpenMode) error {
	f, ok := s.fids.get(fid)
	if !ok {
		return fmt.Errorf("open: fid %d: %w", fid, ErrNotFound)
	}
	file, ok := f.Node.(File)
	if !ok {
		return nil // directories have no open-time behavior
	}
	return file.Open(ctx, f, mode)
}

// Read dispatches to the target file's Read. Directories are read as
// their ordered child-name listing, one name per line.
func (s *Server) Read(ctx context.Context, fid uint64, offset int64, count int) ([]byte, error) {
	f, ok := s.fids.get(fid)
	if !ok {
		return nil, fmt.Errorf("read: fid %d: %w", fid, ErrNotFound)
	}

	if dir, ok := f.Node.(Dir); ok {
		return readDirListing(dir, offset, count), nil
	}

	file, ok := f.Node.(File)
	if !ok {
		return nil, fmt.Errorf("read: %q: %w", f.Node.Name(), ErrIO)
	}
	return file.Read(ctx, f, offset, count)
}

// Write dispatches to the target file's Write. Writes issued
// concurrently against the same fid are serialized by the caller (the
// codec delivers them in call order); Server does not itself
// serialize across fids, matching §5's ordering rules.
func (s *Server) Write(ctx context.Context, fid uint64, offset int64, data []byte) (int, error) {
	f, ok := s.fids.get(fid)
	if !ok {
		return 0, fmt.Errorf("write: fid %d: %w", fid, ErrNotFound)
	}
	file, ok := f.Node.(File)
	if !ok {
		return 0, fmt.Errorf("write: %q is a directory: %w", f.Node.Name(), ErrPermission)
	}
	return file.Write(ctx, f, offset, data)
}

// Clunk destroys fid, notifying the target file so it can free scratch
// state (cancel a blocked read, drop a cached JSON blob, ...).
func (s *Server) Clunk(ctx context.Context, fid uint64) error {
	f, ok := s.fids.remove(fid)
	if !ok {
		return fmt.Errorf("clunk: fid %d: %w", fid, ErrNotFound)
	}
	if file, ok := f.Node.(File); ok {
		return file.Clunk(ctx, f)
	}
	return nil
}

// Stat reports whether fid names a directory and, for files, its
// advisory size. External bridges (a wire codec's Tstat, a FUSE
// Getattr) use this instead of guessing from Read's shape.
type Stat struct {
	IsDir bool
	Size  int64
}

func (s *Server) Stat(ctx context.Context, fid uint64) (Stat, error) {
	f, ok := s.fids.get(fid)
	if !ok {
		return Stat{}, fmt.Errorf("stat: fid %d: %w", fid, ErrNotFound)
	}
	if _, ok := f.Node.(Dir); ok {
		return Stat{IsDir: true}, nil
	}
	file, ok := f.Node.(File)
	if !ok {
		return Stat{}, fmt.Errorf("stat: %q: %w", f.Node.Name(), ErrIO)
	}
	return Stat{Size: file.SizeHint()}, nil
}

func readDirListing(dir Dir, offset int64, count int) []byte {
	var buf []byte
	for _, child := range dir.Children() {
		buf = append(buf, child.Name()...)
		buf = append(buf, '\n')
	}
	if offset >= int64(len(buf)) {
		return nil
	}
	end := int(offset) + count
	if end > len(buf) {
		end = len(buf)
	}
	return buf[offset:end]
}
