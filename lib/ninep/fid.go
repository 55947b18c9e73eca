// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package ninep

import "sync"

// Fid is a client-side handle opened by a walk/attach. Position is
// deliberately not authoritative: callers always pass an explicit
// offset on Read/Write, matching the 9P convention that a fid's cursor
// is advisory bookkeeping the client keeps, not something the server
// enforces.
type Fid struct {
	ID   uint64
	Node Node

	// Scratch is per-fid state owned by the File that Node resolves
	// to (a per-fid streaming buffer, a cached JSON blob, ...). Files
	// key their own scratch by convention; the fid table never
	// inspects it.
	Scratch any
}

// table tracks live fids for one connection. It is intentionally
// minimal: fids are created by Walk and destroyed by Clunk, and the
// table's own mutex is only ever held across a map lookup or
// insertion, never across a File method call, so a blocked read on
// one fid can never stall progress on another.
type table struct {
	mu     sync.Mutex
	fids   map[uint64]*Fid
	nextID uint64
}

func newTable() *table {
	return &table{fids: make(map[uint64]*Fid)}
}

func (t *table) create(node Node) *Fid {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	fid := &Fid{ID: t.nextID, Node: node}
	t.fids[fid.ID] = fid
	return fid
}

func (t *table) get(id uint64) (*Fid, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fid, ok := t.fids[id]
	return fid, ok
}

func (t *table) remove(id uint64) (*Fid, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fid, ok := t.fids[id]
	if ok {
		delete(t.fids, id)
	}
	return fid, ok
}
