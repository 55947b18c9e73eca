// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"rio9p/lib/clock"
	"rio9p/lib/ninep"
	"rio9p/lib/rtmux"
	"rio9p/lib/sandbox"
)

// Manager owns the terms/ directory: it creates and destroys Terminal
// records and keeps the synthetic tree's child list in sync (spec.md
// §3: "terminal records are owned by the terminals directory").
type Manager struct {
	server    *rtmux.Server
	validator *sandbox.Validator
	agentIn   AgentInputWriter
	display   DisplayWriter
	clock     clock.Clock
	log       *slog.Logger

	mu    sync.Mutex
	dir   *ninep.StaticDir
	terms map[string]*Terminal
	refs  map[string]*ref
}

// NewManager creates a terminal manager backed by server for new
// sessions. validator may be nil, meaning every command is permitted;
// NewManager then logs a warning about that fallback (spec.md §4.11).
func NewManager(server *rtmux.Server, validator *sandbox.Validator, agentIn AgentInputWriter, display DisplayWriter, c clock.Clock, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if validator == nil {
		log.Warn("shell sandbox validator is absent; falling back to permissive mode")
	}
	return &Manager{
		server:    server,
		validator: validator,
		agentIn:   agentIn,
		display:   display,
		clock:     c,
		log:       log,
		dir:       ninep.NewStaticDir("terms"),
		terms:     make(map[string]*Terminal),
		refs:      make(map[string]*ref),
	}
}

// Dir returns the terms/ directory node.
func (m *Manager) Dir() ninep.Dir { return m.dir }

// Create starts a new terminal, mounts its subdirectory under terms/,
// and returns its ID.
func (m *Manager) Create(ctx context.Context) (string, error) {
	t, err := New(ctx, m.server, m.validator, m.agentIn, m.display, m.clock, m.log)
	if err != nil {
		return "", err
	}

	sub := buildTerminalDir(t)

	m.mu.Lock()
	m.terms[t.ID] = t
	m.refs[t.ID] = t.self
	m.dir.AddChild(sub)
	m.mu.Unlock()

	return t.ID, nil
}

// Destroy tears down a terminal and removes it from the tree.
func (m *Manager) Destroy(termID string) error {
	m.mu.Lock()
	t, ok := m.terms[termID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("terminal: %q not found: %w", termID, ninep.ErrNotFound)
	}
	delete(m.terms, termID)
	delete(m.refs, termID)
	m.dir.RemoveChild(termID)
	m.mu.Unlock()

	t.Destroy()
	return nil
}

// Terminal returns the live terminal for termID, if any.
func (m *Manager) Terminal(termID string) (*Terminal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terms[termID]
	return t, ok
}

// buildTerminalDir assembles terms/<id>/{ctl,stdin,stdout,input,output,interrupt}.
func buildTerminalDir(t *Terminal) ninep.Dir {
	dir := ninep.NewStaticDir(t.ID)
	dir.AddChild(newCtlFile(t.self))
	dir.AddChild(newStdinFile(t.self))
	dir.AddChild(newStdoutFile(t.self))
	dir.AddChild(newInputFile(t.self))
	dir.AddChild(newOutputFile(t.self))
	dir.AddChild(newInterruptFile(t.self))
	return dir
}
