// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

// Package scene implements the scene manager and version store (C6),
// the scene file surface (C7), and context compaction (C9) from
// spec.md §4.6-4.9. Grounded on original_source/rio/scene.py's
// registered-vs-infrastructure item split and its VersionManager's
// linear undo/redo-stack behavior, adapted to the explicit
// history/redo-stack model spec.md §3 describes.
package scene

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Manager tracks items registered by executed code (spec.md's
// register_item) and the primitive-only variable bindings exposed
// through vars. Only items entered via RegisterItem are versioned;
// this mirrors original_source/rio/scene.py's "parsed vs
// infrastructure" split, collapsed here to a single registry since
// this port has no separate infrastructure-item concept to protect
// from undo.
type Manager struct {
	mu    sync.Mutex
	items map[string]any
	order []string

	vars     map[string]any
	varOrder []string
}

// NewManager creates an empty scene manager.
func NewManager() *Manager {
	return &Manager{
		items: make(map[string]any),
		vars:  make(map[string]any),
	}
}

// RegisterItem records an item created by executed code. Re-registering
// an existing name updates its value without changing its position in
// ListParsedItems' order.
func (m *Manager) RegisterItem(name string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[name]; !exists {
		m.order = append(m.order, name)
	}
	m.items[name] = value
}

// ListParsedItems returns registered item names in registration order.
func (m *Manager) ListParsedItems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Item returns a registered item's value and whether it exists.
func (m *Manager) Item(name string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[name]
	return v, ok
}

// Clear discards all registered items. Callers wanting undo protection
// must take a snapshot first (this is bare state discard, matching the
// ctl `clear` verb's documented "discard all scene items" — snapshotting
// is the caller's responsibility, per spec.md §4.3's `clear` verb which
// snapshots first at the ctl-handler level, not inside Clear itself).
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]any)
	m.order = nil
	m.vars = make(map[string]any)
	m.varOrder = nil
}

// SetVar records a primitive namespace binding for the `vars` file.
// Executed code reaches this through a host binding (host.SetVar) since
// yaegi does not expose a stable API for enumerating interpreter-global
// bindings by reflection; see DESIGN.md.
func (m *Manager) SetVar(name string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.vars[name]; !exists {
		m.varOrder = append(m.varOrder, name)
	}
	m.vars[name] = value
}

// UnsetVar removes a binding, used when a widget-holding variable is
// destroyed so context compaction (§4.9) can detect it is no longer
// bound.
func (m *Manager) UnsetVar(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vars, name)
	for i, n := range m.varOrder {
		if n == name {
			m.varOrder = append(m.varOrder[:i], m.varOrder[i+1:]...)
			break
		}
	}
}

// HasVar reports whether name is currently bound — used by context
// compaction to decide whether a widget-creating statement is elided.
func (m *Manager) HasVar(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.vars[name]
	return ok
}

// VarsJSON renders the primitive namespace snapshot per spec.md §4.7:
// only primitives and containers of primitives serialize verbatim;
// anything else renders as "<TypeName object>"; names starting with
// "_" are omitted.
func (m *Manager) VarsJSON() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]any, len(m.varOrder))
	for _, name := range m.varOrder {
		if strings.HasPrefix(name, "_") {
			continue
		}
		out[name] = renderVar(m.vars[name])
	}
	return json.Marshal(out)
}

func renderVar(v any) any {
	switch val := v.(type) {
	case nil, bool, string, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val
	case []any:
		rendered := make([]any, len(val))
		for i, e := range val {
			rendered[i] = renderVar(e)
		}
		return rendered
	case map[string]any:
		rendered := make(map[string]any, len(val))
		for k, e := range val {
			rendered[k] = renderVar(e)
		}
		return rendered
	default:
		return fmt.Sprintf("<%T object>", v)
	}
}

// ToJSON exports registered items as an ordered array of
// {"name": ..., "value": ...} objects — the payload for ctl `export`.
func (m *Manager) ToJSON() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type entry struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	}
	entries := make([]entry, 0, len(m.order))
	for _, name := range m.order {
		entries = append(entries, entry{Name: name, Value: m.items[name]})
	}
	return json.Marshal(entries)
}

// FromJSON replaces the registry with the given export payload — the
// implementation of ctl `import <json>`.
func (m *Manager) FromJSON(data []byte) error {
	var entries []struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("scene: decoding import payload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]any, len(entries))
	m.order = make([]string, 0, len(entries))
	for _, e := range entries {
		m.items[e.Name] = e.Value
		m.order = append(m.order, e.Name)
	}
	return nil
}

// ItemCount reports the number of registered items, used to stamp
// Snapshot.ItemCount.
func (m *Manager) ItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// SortedVarNames returns bound variable names in ascending order.
func (m *Manager) SortedVarNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.varOrder))
	copy(names, m.varOrder)
	sort.Strings(names)
	return names
}
