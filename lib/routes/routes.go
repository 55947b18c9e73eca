// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

// Package routes implements the routes manager and its `routes` file
// (spec.md §4.12): persistent tail-style pipes that repeatedly drain
// one file to EOF and append the bytes to another, driving themselves
// forever off the rearm protocol (streamio's offset-zero rearm) rather
// than busy-polling.
package routes

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"rio9p/lib/ninep"
)

// EventKind distinguishes route lifecycle notifications.
type EventKind int

const (
	EventAdded EventKind = iota
	EventRemoved
)

// Event is published to subscribers when a route is added or removed
// (spec.md §4.12: "listeners may subscribe to route add/remove events").
type Event struct {
	Kind        EventKind
	Source      string
	Destination string
}

// Status is one entry of ListRoutes.
type Status struct {
	Source      string
	Destination string
	Running     bool
}

type route struct {
	source      string
	destination string
	cancel      context.CancelFunc
	done        chan struct{}

	mu      sync.Mutex
	running bool
}

// Manager owns every active attachment. Keyed by source path: creating
// a second route for the same source stops the first (spec.md §4.12).
type Manager struct {
	server    *ninep.Server
	mountRoot string
	log       *slog.Logger

	mu     sync.Mutex
	routes map[string]*route

	subMu sync.Mutex
	subs  map[chan Event]struct{}
}

// NewManager creates a routes manager that resolves paths against
// server, expanding relative paths under mountRoot.
func NewManager(server *ninep.Server, mountRoot string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if mountRoot == "" {
		mountRoot = "/"
	}
	return &Manager{
		server:    server,
		mountRoot: mountRoot,
		log:       log,
		routes:    make(map[string]*route),
		subs:      make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel of route lifecycle events and an
// unsubscribe function. The channel is buffered; slow subscribers drop
// events rather than block AddRoute/RemoveRoute.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()

	unsubscribe := func() {
		m.subMu.Lock()
		delete(m.subs, ch)
		m.subMu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}

func (m *Manager) publish(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// resolvePath expands a relative path under the configured mount root
// and splits it into walk components.
func (m *Manager) resolvePath(p string) []string {
	if !strings.HasPrefix(p, "/") {
		p = path.Join(m.mountRoot, p)
	}
	p = path.Clean(p)
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// AddRoute creates a background task draining source into destination
// forever. A pre-existing route for the same source is stopped first.
func (m *Manager) AddRoute(source, destination string) {
	m.mu.Lock()
	if existing, ok := m.routes[source]; ok {
		m.stopLocked(existing)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &route{
		source:      source,
		destination: destination,
		cancel:      cancel,
		done:        make(chan struct{}),
		running:     true,
	}
	m.routes[source] = r
	m.mu.Unlock()

	go m.run(ctx, r)
	m.publish(Event{Kind: EventAdded, Source: source, Destination: destination})
}

// RemoveRoute cancels and forgets the route for source, if any.
func (m *Manager) RemoveRoute(source string) bool {
	m.mu.Lock()
	r, ok := m.routes[source]
	if ok {
		delete(m.routes, source)
		m.stopLocked(r)
	}
	m.mu.Unlock()

	if ok {
		m.publish(Event{Kind: EventRemoved, Source: source, Destination: r.destination})
	}
	return ok
}

func (m *Manager) stopLocked(r *route) {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	r.cancel()
}

// StopAll cancels every route task.
func (m *Manager) StopAll() {
	m.mu.Lock()
	routes := make([]*route, 0, len(m.routes))
	for source, r := range m.routes {
		routes = append(routes, r)
		delete(m.routes, source)
	}
	m.mu.Unlock()

	for _, r := range routes {
		m.stopLocked(r)
	}
}

// ListRoutes returns a snapshot of every active attachment.
func (m *Manager) ListRoutes() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, 0, len(m.routes))
	for _, r := range m.routes {
		r.mu.Lock()
		running := r.running
		r.mu.Unlock()
		out = append(out, Status{Source: r.source, Destination: r.destination, Running: running})
	}
	return out
}

// run loops: open source, read blocking to EOF, close, open
// destination, write, close. EOF resets the source's blocking-read
// state via the rearm protocol, so this drives the pipe forever
// without busy-polling (spec.md §4.12).
func (m *Manager) run(ctx context.Context, r *route) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, err := m.drainToEOF(ctx, r.source)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn("route: reading source failed", "source", r.source, "error", err)
			continue
		}
		if len(data) == 0 {
			continue
		}

		if err := m.writeAll(ctx, r.destination, data); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn("route: writing destination failed", "destination", r.destination, "error", err)
		}
	}
}

func (m *Manager) drainToEOF(ctx context.Context, sourcePath string) ([]byte, error) {
	fid, err := m.server.Walk(ctx, m.server.RootFid(), m.resolvePath(sourcePath))
	if err != nil {
		return nil, fmt.Errorf("routes: walking %q: %w", sourcePath, err)
	}
	defer m.server.Clunk(ctx, fid)

	if err := m.server.Open(ctx, fid, ninep.OpenRead); err != nil {
		return nil, fmt.Errorf("routes: opening %q: %w", sourcePath, err)
	}

	var out []byte
	var offset int64
	for {
		chunk, err := m.server.Read(ctx, fid, offset, 64*1024)
		if err != nil {
			return nil, fmt.Errorf("routes: reading %q: %w", sourcePath, err)
		}
		if len(chunk) == 0 {
			return out, nil
		}
		out = append(out, chunk...)
		offset += int64(len(chunk))
	}
}

func (m *Manager) writeAll(ctx context.Context, destPath string, data []byte) error {
	fid, err := m.server.Walk(ctx, m.server.RootFid(), m.resolvePath(destPath))
	if err != nil {
		return fmt.Errorf("routes: walking %q: %w", destPath, err)
	}
	defer m.server.Clunk(ctx, fid)

	if err := m.server.Open(ctx, fid, ninep.OpenWrite); err != nil {
		return fmt.Errorf("routes: opening %q: %w", destPath, err)
	}
	if _, err := m.server.Write(ctx, fid, 0, data); err != nil {
		return fmt.Errorf("routes: writing %q: %w", destPath, err)
	}
	return nil
}
