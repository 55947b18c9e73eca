// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"sync"
	"time"

	"rio9p/lib/clock"
)

// Snapshot is an immutable record of scene state plus the code that
// produced it (spec.md §3's "Version snapshot").
type Snapshot struct {
	Version    uint64
	Timestamp  time.Time
	Label      string
	Code       string
	SceneState []byte // opaque serialized form; produced by Manager.ToJSON
	ItemCount  int
}

// VersionStore is the undo/redo history described in spec.md §3 and
// §4.6. history holds the currently active timeline, oldest first;
// redoStack holds entries undone off the end of history, most recently
// undone last. Grounded on original_source/rio/scene.py's
// VersionManager, adapted from its index-into-a-single-slice model to
// the explicit two-stack model spec.md's data model names, so that
// GotoVersion's "clears redo_stack" behavior (§3) is a real discard
// rather than an artifact of index bookkeeping.
type VersionStore struct {
	mu          sync.Mutex
	clock       clock.Clock
	history     []Snapshot
	redoStack   []Snapshot
	nextVersion uint64
}

// NewVersionStore creates an empty version store. c defaults to
// clock.Real() if nil.
func NewVersionStore(c clock.Clock) *VersionStore {
	if c == nil {
		c = clock.Real()
	}
	return &VersionStore{clock: c, nextVersion: 1}
}

// TakeSnapshot records a new version, truncating any redo history —
// spec.md §3's "taking a snapshot when redo_stack is non-empty
// truncates it".
func (s *VersionStore) TakeSnapshot(label, code string, sceneState []byte, itemCount int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Version:    s.nextVersion,
		Timestamp:  s.clock.Now(),
		Label:      label,
		Code:       code,
		SceneState: sceneState,
		ItemCount:  itemCount,
	}
	s.nextVersion++
	s.history = append(s.history, snap)
	s.redoStack = nil
	return snap
}

// CurrentVersion returns the version currently active, or 0 if no
// snapshot has ever been taken.
func (s *VersionStore) CurrentVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *VersionStore) currentLocked() uint64 {
	if len(s.history) == 0 {
		return 0
	}
	return s.history[len(s.history)-1].Version
}

// CanUndo reports whether the current version has a predecessor.
func (s *VersionStore) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history) > 1
}

// CanRedo reports whether an undone version is available to restore.
func (s *VersionStore) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redoStack) > 0
}

// Undo moves one step back in history, per spec.md §4.6. Fails (ok
// false) if current_version is the oldest snapshot.
func (s *VersionStore) Undo() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) <= 1 {
		return Snapshot{}, false
	}
	popped := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.redoStack = append(s.redoStack, popped)
	return s.history[len(s.history)-1], true
}

// Redo reverses the last Undo. Fails if redoStack is empty.
func (s *VersionStore) Redo() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.redoStack) == 0 {
		return Snapshot{}, false
	}
	restored := s.redoStack[len(s.redoStack)-1]
	s.redoStack = s.redoStack[:len(s.redoStack)-1]
	s.history = append(s.history, restored)
	return restored, true
}

// GotoVersion jumps arbitrarily to a known version, discarding redo
// history per spec.md §3. Searches both the active history and the
// redo stack (a version that was undone is still reachable by number).
func (s *VersionStore) GotoVersion(v uint64) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, snap := range s.history {
		if snap.Version == v {
			s.history = s.history[:i+1]
			s.redoStack = nil
			return snap, true
		}
	}
	for _, snap := range s.redoStack {
		if snap.Version == v {
			s.history = append(s.history, snap)
			s.redoStack = nil
			return snap, true
		}
	}
	return Snapshot{}, false
}

// AllSnapshots returns every known snapshot (active history plus
// undone-but-not-lost redo entries), sorted by version — the listing
// source for scene/version reads.
func (s *VersionStore) AllSnapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]Snapshot, 0, len(s.history)+len(s.redoStack))
	all = append(all, s.history...)
	all = append(all, s.redoStack...)
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j-1].Version > all[j].Version; j-- {
			all[j-1], all[j] = all[j], all[j-1]
		}
	}
	return all
}

// Reset discards all history — used by state restore (§4.7) before
// replaying a loaded session's version log.
func (s *VersionStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.redoStack = nil
	s.nextVersion = 1
}
