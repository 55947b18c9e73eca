// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"rio9p/lib/ninep"
	"rio9p/lib/streamio"
)

// bufferFile adapts a streamio.Buffer to ninep.File, read-only. Used
// for scene/stdout and scene/STDERR.
type bufferFile struct {
	name string
	buf  *streamio.Buffer
}

func newBufferFile(name string, buf *streamio.Buffer) *bufferFile {
	return &bufferFile{name: name, buf: buf}
}

func (f *bufferFile) Name() string { return f.name }

func (f *bufferFile) Open(context.Context, *ninep.Fid, ninep.OpenMode) error { return nil }

func (f *bufferFile) Read(ctx context.Context, _ *ninep.Fid, offset int64, count int) ([]byte, error) {
	return f.buf.Read(ctx, offset, count)
}

func (f *bufferFile) Write(context.Context, *ninep.Fid, int64, []byte) (int, error) {
	return 0, fmt.Errorf("scene: %s is read-only: %w", f.name, ninep.ErrPermission)
}

func (f *bufferFile) Clunk(context.Context, *ninep.Fid) error { return nil }

func (f *bufferFile) SizeHint() int64 { return 0 }

var _ ninep.File = (*bufferFile)(nil)

// pagedFile is the "buffered, no wait" shape shared by vars, version,
// and screen: content is computed fresh (or from a per-fid cache) and
// served as an ordinary byte-addressed read, never blocking.
type pagedFile struct {
	name    string
	content func(ctx context.Context, fid *ninep.Fid) ([]byte, error)
	write   func(ctx context.Context, fid *ninep.Fid, data []byte) (int, error)
	clunk   func(ctx context.Context, fid *ninep.Fid) error
}

func (f *pagedFile) Name() string { return f.name }

func (f *pagedFile) Open(context.Context, *ninep.Fid, ninep.OpenMode) error { return nil }

func (f *pagedFile) Read(ctx context.Context, fid *ninep.Fid, offset int64, count int) ([]byte, error) {
	content, err := f.content(ctx, fid)
	if err != nil {
		return nil, err
	}
	if offset >= int64(len(content)) {
		return nil, nil
	}
	end := offset + int64(count)
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return content[offset:end], nil
}

func (f *pagedFile) Write(ctx context.Context, fid *ninep.Fid, offset int64, data []byte) (int, error) {
	if f.write == nil {
		return 0, fmt.Errorf("scene: %s is read-only: %w", f.name, ninep.ErrPermission)
	}
	return f.write(ctx, fid, data)
}

func (f *pagedFile) Clunk(ctx context.Context, fid *ninep.Fid) error {
	if f.clunk != nil {
		return f.clunk(ctx, fid)
	}
	return nil
}

func (f *pagedFile) SizeHint() int64 { return 0 }

var _ ninep.File = (*pagedFile)(nil)

// newVarsFile is scene/vars: a read-only JSON snapshot of the
// primitive namespace (spec.md §4.7).
func newVarsFile(m *Manager) ninep.File {
	return &pagedFile{
		name: "vars",
		content: func(context.Context, *ninep.Fid) ([]byte, error) {
			return m.VarsJSON()
		},
	}
}

// newScreenFile is scene/screen: a PNG capture of the current
// rendered scene, lazily captured and cached per fid. render, if nil,
// yields a minimal 1x1 placeholder — actual pixel rendering is outside
// this module's scope (spec.md treats GUI rendering as an external
// collaborator).
func newScreenFile(render func() ([]byte, error)) ninep.File {
	var mu sync.Mutex
	cache := make(map[uint64][]byte)

	return &pagedFile{
		name: "screen",
		content: func(_ context.Context, fid *ninep.Fid) ([]byte, error) {
			mu.Lock()
			defer mu.Unlock()
			if cached, ok := cache[fid.ID]; ok {
				return cached, nil
			}
			var png []byte
			var err error
			if render != nil {
				png, err = render()
			} else {
				png = placeholderPNG()
			}
			if err != nil {
				return nil, err
			}
			cache[fid.ID] = png
			return png, nil
		},
		clunk: func(_ context.Context, fid *ninep.Fid) error {
			mu.Lock()
			delete(cache, fid.ID)
			mu.Unlock()
			return nil
		},
	}
}

// placeholderPNG is the smallest valid PNG: a 1x1 transparent pixel.
func placeholderPNG() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
		0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
		0x42, 0x60, 0x82,
	}
}

// newVersionFile is scene/version: one line per snapshot plus a
// footer, and a write side accepting undo/redo/<version number>
// (spec.md §4.7, §4.6).
func newVersionFile(v *VersionStore) ninep.File {
	return &pagedFile{
		name: "version",
		content: func(context.Context, *ninep.Fid) ([]byte, error) {
			return renderVersionListing(v), nil
		},
		write: func(_ context.Context, _ *ninep.Fid, data []byte) (int, error) {
			cmd := strings.TrimSpace(string(data))
			switch cmd {
			case "undo":
				if _, ok := v.Undo(); !ok {
					return 0, fmt.Errorf("scene: nothing to undo: %w", ninep.ErrNotFound)
				}
			case "redo":
				if _, ok := v.Redo(); !ok {
					return 0, fmt.Errorf("scene: nothing to redo: %w", ninep.ErrNotFound)
				}
			default:
				n, err := strconv.ParseUint(cmd, 10, 64)
				if err != nil {
					return 0, fmt.Errorf("scene: malformed version command %q: %w", cmd, ninep.ErrUsage)
				}
				if _, ok := v.GotoVersion(n); !ok {
					return 0, fmt.Errorf("scene: version %d not found: %w", n, ninep.ErrNotFound)
				}
			}
			return len(data), nil
		},
	}
}

func renderVersionListing(v *VersionStore) []byte {
	current := v.CurrentVersion()
	var b strings.Builder
	for _, snap := range v.AllSnapshots() {
		marker := ""
		if snap.Version == current {
			marker = " *"
		}
		fmt.Fprintf(&b, "%d\t%d items\t%s%s\n", snap.Version, snap.ItemCount, snap.Label, marker)
	}
	fmt.Fprintf(&b, "current %d\n", current)
	fmt.Fprintf(&b, "can_undo %t\n", v.CanUndo())
	fmt.Fprintf(&b, "can_redo %t\n", v.CanRedo())
	return []byte(b.String())
}

// contextFile is the root-level CONTEXT file: always-blocking, but rather than
// delivering a fixed batch it recomputes the compacted view fresh on
// every read once at least one fragment has ever been appended. A
// streamio.Buffer's batch/rearm model doesn't fit — CONTEXT has no
// natural "next batch" boundary, only a monotonically growing log — so
// this file implements the always-blocking gate directly: closed once
// on the first successful append, never rearmed.
type contextFile struct {
	compactor *Compactor

	mu    sync.Mutex
	ready chan struct{}
	open  bool
}

func newContextFile(c *Compactor) *contextFile {
	return &contextFile{compactor: c, ready: make(chan struct{})}
}

// NotifyAppended must be called after Compactor.Append to open the
// gate for waiting readers.
func (f *contextFile) NotifyAppended() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		f.open = true
		close(f.ready)
	}
}

func (f *contextFile) Name() string { return "CONTEXT" }

func (f *contextFile) Open(context.Context, *ninep.Fid, ninep.OpenMode) error { return nil }

func (f *contextFile) Read(ctx context.Context, _ *ninep.Fid, offset int64, count int) ([]byte, error) {
	f.mu.Lock()
	readyChan := f.ready
	f.mu.Unlock()

	select {
	case <-readyChan:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	content := []byte(f.compactor.Compact())
	if offset >= int64(len(content)) {
		return nil, nil
	}
	end := offset + int64(count)
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return content[offset:end], nil
}

func (f *contextFile) Write(context.Context, *ninep.Fid, int64, []byte) (int, error) {
	return 0, fmt.Errorf("scene: CONTEXT is read-only: %w", ninep.ErrPermission)
}

func (f *contextFile) Clunk(context.Context, *ninep.Fid) error { return nil }

func (f *contextFile) SizeHint() int64 { return 0 }

var _ ninep.File = (*contextFile)(nil)

// stateEnvelope is the JSON v1 shape from spec.md §6.
type stateEnvelope struct {
	RioState    int              `json:"rio_state"`
	Timestamp   float64          `json:"timestamp"`
	Scene       json.RawMessage  `json:"scene"`
	Settings    stateSettings    `json:"settings"`
	Versions    []stateVersion   `json:"versions"`
	Vars        map[string]any   `json:"vars"`
	CodeHistory []stateCodeEntry `json:"code_history"`
}

type stateSettings struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
}

type stateVersion struct {
	Version   uint64  `json:"version"`
	Label     string  `json:"label"`
	ItemCount int     `json:"item_count"`
	Timestamp float64 `json:"timestamp"`
}

type stateCodeEntry struct {
	Version int    `json:"version"`
	Code    string `json:"code"`
}

// DefaultBackground is the background color reported before `ctl
// background` has ever been set, matching
// original_source/rio/scene.py's Scene.background_color default.
const DefaultBackground = "#FAFAFA"

// StateSource supplies the pieces of a stateEnvelope that live outside
// the scene package (display settings), and receives the settings half
// of a restore.
type StateSource interface {
	Settings() (width, height int, background string)
	ApplySettings(width, height int, background string)
}

// newStateFile is scene/state (spec.md §4.7): cached-per-fid read of
// the full session envelope; accumulate-then-restore on write+clunk.
func newStateFile(m *Manager, v *VersionStore, exec *Execution, display StateSource) ninep.File {
	var mu sync.Mutex
	readCache := make(map[uint64][]byte)
	writeBufs := make(map[uint64][]byte)

	return &pagedFile{
		name: "state",
		content: func(_ context.Context, fid *ninep.Fid) ([]byte, error) {
			mu.Lock()
			defer mu.Unlock()
			if cached, ok := readCache[fid.ID]; ok {
				return cached, nil
			}
			data, err := buildStateEnvelope(m, v, display)
			if err != nil {
				return nil, err
			}
			readCache[fid.ID] = data
			return data, nil
		},
		write: func(_ context.Context, fid *ninep.Fid, data []byte) (int, error) {
			mu.Lock()
			writeBufs[fid.ID] = append(writeBufs[fid.ID], data...)
			mu.Unlock()
			return len(data), nil
		},
		clunk: func(_ context.Context, fid *ninep.Fid) error {
			mu.Lock()
			delete(readCache, fid.ID)
			payload := writeBufs[fid.ID]
			delete(writeBufs, fid.ID)
			mu.Unlock()

			if len(payload) == 0 {
				return nil
			}
			return restoreState(payload, m, v, exec, display)
		},
	}
}

func buildStateEnvelope(m *Manager, v *VersionStore, display StateSource) ([]byte, error) {
	sceneJSON, err := m.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("scene: building state envelope: %w", err)
	}

	width, height, background := 0, 0, DefaultBackground
	if display != nil {
		width, height, background = display.Settings()
	}

	var versions []stateVersion
	var history []stateCodeEntry
	for _, snap := range v.AllSnapshots() {
		versions = append(versions, stateVersion{
			Version:   snap.Version,
			Label:     snap.Label,
			ItemCount: snap.ItemCount,
			Timestamp: float64(snap.Timestamp.UnixNano()) / 1e9,
		})
		history = append(history, stateCodeEntry{Version: int(snap.Version), Code: snap.Code})
	}

	varsJSON, err := m.VarsJSON()
	if err != nil {
		return nil, fmt.Errorf("scene: building state envelope: %w", err)
	}
	var vars map[string]any
	if err := json.Unmarshal(varsJSON, &vars); err != nil {
		vars = map[string]any{}
	}

	env := stateEnvelope{
		RioState:  1,
		Timestamp: float64(timeNowUnix()),
		Scene:     json.RawMessage(sceneJSON),
		Settings: stateSettings{
			Width:      width,
			Height:     height,
			Background: background,
		},
		Versions:    versions,
		Vars:        vars,
		CodeHistory: history,
	}
	return json.Marshal(env)
}

func timeNowUnix() float64 {
	return float64(nowFunc().UnixNano()) / 1e9
}

// nowFunc is a package-level seam so tests can pin the state
// envelope's timestamp; production code leaves it as time.Now.
var nowFunc = defaultNow

func defaultNow() time.Time { return time.Now() }

// restoreState implements spec.md §4.7's restore sequence: clear
// scene, apply settings, replay every version's code (re-executing
// against the live namespace), restore leftover primitive vars, then
// snapshot as "restored session". Malformed payloads abort the
// restore and leave the scene unchanged (spec.md §7's *corrupt-state*
// class).
func restoreState(payload []byte, m *Manager, v *VersionStore, exec *Execution, display StateSource) error {
	var env stateEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("scene: state restore: malformed JSON: %w", ninep.ErrCorruptState)
	}
	if env.RioState != 1 {
		return fmt.Errorf("scene: state restore: unknown rio_state %d: %w", env.RioState, ninep.ErrCorruptState)
	}

	m.Clear()
	v.Reset()
	if exec.Compactor != nil {
		exec.Compactor.Reset()
	}
	if display != nil {
		display.ApplySettings(env.Settings.Width, env.Settings.Height, env.Settings.Background)
	}

	for _, entry := range env.CodeHistory {
		if strings.TrimSpace(entry.Code) == "" {
			continue
		}
		result := exec.Exec.Eval(entry.Code)
		if result.Success {
			exec.Compactor.Append(entry.Code)
		}
	}

	for name, value := range env.Vars {
		if !m.HasVar(name) {
			m.SetVar(name, value)
		}
	}

	sceneJSON, err := m.ToJSON()
	if err != nil {
		sceneJSON = []byte("{}")
	}
	v.TakeSnapshot("restored session", "", sceneJSON, m.ItemCount())
	return nil
}
