// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package root

import (
	"sync"

	"rio9p/lib/scene"
)

// MemoryDisplay is the default scene.StateSource: it just remembers the
// last settings applied to it. A real GUI collaborator can supply its
// own StateSource that forwards Settings/ApplySettings to the actual
// rendering surface (SPEC_FULL.md §0 keeps rendering out of scope).
type MemoryDisplay struct {
	mu         sync.Mutex
	width      int
	height     int
	background string
}

// NewMemoryDisplay returns a StateSource seeded with the given values.
func NewMemoryDisplay(width, height int, background string) *MemoryDisplay {
	return &MemoryDisplay{width: width, height: height, background: background}
}

func (d *MemoryDisplay) Settings() (width, height int, background string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	background = d.background
	if background == "" {
		background = scene.DefaultBackground
	}
	return d.width, d.height, background
}

func (d *MemoryDisplay) ApplySettings(width, height int, background string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height, d.background = width, height, background
}
