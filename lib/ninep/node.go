// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

// Package ninep implements the synthetic-file tree primitives that the
// rest of this module builds on: named nodes, a fid table, and a
// dispatcher that routes walk/open/read/write/clunk calls to file
// objects. The concrete 9P wire codec and any FUSE bridge are external
// collaborators — this package only implements the contract they are
// assumed to deliver.
package ninep

import "context"

// OpenMode mirrors the small set of access intents the synthetic tree
// cares about. The wire protocol's full flag set (append, truncate,
// exclusive, ...) is the codec's concern, not this layer's.
type OpenMode int

const (
	OpenRead OpenMode = iota
	OpenWrite
	OpenReadWrite
)

// Node is a member of the synthetic tree. Identity is the node's
// pointer identity, not its name — two directories both named "ctl"
// in different parts of the tree are distinct nodes.
type Node interface {
	Name() string
}

// Dir is a directory node. Children are kept in insertion order;
// Children() must return them in that order so directory listings are
// deterministic.
type Dir interface {
	Node
	Children() []Node
	Child(name string) (Node, bool)
}

// File is a leaf node exposing the read/write/clunk operations a fid
// opened on it can perform. Implementations own any per-fid scratch
// state via the Fid.Scratch field, and must free it in Clunk.
type File interface {
	Node

	// Open validates that mode is supported and prepares any per-fid
	// scratch state on fid.Scratch. Returning an error here maps to a
	// protocol-level failure (bad mode), not a file-content error.
	Open(ctx context.Context, fid *Fid, mode OpenMode) error

	// Read returns up to count bytes starting at offset. A read past
	// end of content returns an empty, non-error result (EOF). count
	// is advisory; returning fewer bytes than requested is allowed.
	Read(ctx context.Context, fid *Fid, offset int64, count int) ([]byte, error)

	// Write applies data at offset and returns the number of bytes
	// consumed. Streaming files ignore offset except to detect the
	// rearm condition (offset == 0 after prior content was consumed).
	Write(ctx context.Context, fid *Fid, offset int64, data []byte) (int, error)

	// Clunk releases any scratch state associated with fid. Called
	// exactly once when the fid is destroyed.
	Clunk(ctx context.Context, fid *Fid) error

	// SizeHint returns an advisory size for stat-like callers. Files
	// with unbounded or dynamic content may return 0.
	SizeHint() int64
}

// StaticDir is a Dir with a fixed, explicitly managed child list kept
// in insertion order.
type StaticDir struct {
	name     string
	children []Node
	index    map[string]int
}

// NewStaticDir creates an empty StaticDir with the given name.
func NewStaticDir(name string) *StaticDir {
	return &StaticDir{name: name, index: make(map[string]int)}
}

func (d *StaticDir) Name() string { return d.name }

// AddChild appends a child, preserving insertion order. Replacing an
// existing name is not supported — callers build the tree once at
// startup.
func (d *StaticDir) AddChild(child Node) {
	d.index[child.Name()] = len(d.children)
	d.children = append(d.children, child)
}

// RemoveChild removes a child by name, if present, preserving the
// relative order of the remaining children. Used by directories whose
// membership changes at runtime (terms/<id>).
func (d *StaticDir) RemoveChild(name string) {
	i, ok := d.index[name]
	if !ok {
		return
	}
	d.children = append(d.children[:i], d.children[i+1:]...)
	delete(d.index, name)
	for name, idx := range d.index {
		if idx > i {
			d.index[name] = idx - 1
		}
	}
}

func (d *StaticDir) Children() []Node {
	out := make([]Node, len(d.children))
	copy(out, d.children)
	return out
}

func (d *StaticDir) Child(name string) (Node, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.children[i], true
}

var (
	_ Dir = (*StaticDir)(nil)
)
