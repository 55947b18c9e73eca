// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rio9p/lib/clock"
	"rio9p/lib/ctlfile"
	"rio9p/lib/execlang"
	"rio9p/lib/ninep"
	"rio9p/lib/sceneparser"
	"rio9p/lib/streamio"
)

// Scene wires C5 (execution context), C6 (manager + version store),
// C7 (file surface), and C9 (compaction) together into the scene/
// subtree, per spec.md §4.4-§4.9 and SPEC_FULL.md §7's module layout.
type Scene struct {
	Manager   *Manager
	Versions  *VersionStore
	Compactor *Compactor
	Exec      *execlang.Context
	execution *Execution

	stdout  *streamio.Buffer
	stderr  *streamio.Buffer
	context *contextFile

	display StateSource
}

// New builds a scene with a fresh execution context, seeded with host
// bindings for RegisterItem/SetVar/UnsetVar so submitted code can
// reach the manager without any reflection-based namespace scanning
// (see manager.go's SetVar doc comment).
func New(c clock.Clock, display StateSource) (*Scene, error) {
	m := NewManager()

	s := &Scene{
		Manager:  m,
		Versions: NewVersionStore(c),
		stdout:   streamio.New(false),
		stderr:   streamio.New(true),
		display:  display,
	}
	s.Compactor = NewCompactor(m.HasVar)
	s.context = newContextFile(s.Compactor)

	bindings := []execlang.HostBinding{
		{Name: "RegisterItem", Value: m.RegisterItem},
		{Name: "SetVar", Value: m.SetVar},
		{Name: "UnsetVar", Value: m.UnsetVar},
	}
	exec, err := execlang.New(bindings, m.ListParsedItems)
	if err != nil {
		return nil, fmt.Errorf("scene: creating execution context: %w", err)
	}
	s.Exec = exec

	s.execution = &Execution{
		Manager:   m,
		Versions:  s.Versions,
		Compactor: s.Compactor,
		Exec:      exec,
		Stdout:    s.stdout,
		Stderr:    s.stderr,
	}
	return s, nil
}

// runAndNotify executes one fragment then opens the CONTEXT gate only
// if the fragment succeeded and was appended to the compaction log
// (spec.md §4.4 step 5); a failed fragment (step 6) must leave readers
// blocked.
func (s *Scene) runAndNotify(code string) {
	if s.execution.Run(code) {
		s.context.NotifyAppended()
	}
}

// BuildTree assembles the scene/ directory: ctl, parse, stdout,
// STDERR, vars, state, version. CONTEXT lives at the tree root per
// spec.md §6's layout, not under scene/, so it is exposed separately
// via Context().
func (s *Scene) BuildTree() ninep.Dir {
	parseFile := sceneparser.New(s.runAndNotify)

	dir := ninep.NewStaticDir("scene")
	dir.AddChild(s.buildCtl())
	dir.AddChild(parseFile)
	dir.AddChild(newBufferFile("stdout", s.stdout))
	dir.AddChild(newBufferFile("STDERR", s.stderr))
	dir.AddChild(newVarsFile(s.Manager))
	dir.AddChild(newStateFile(s.Manager, s.Versions, s.execution, s.display))
	dir.AddChild(newVersionFile(s.Versions))
	return dir
}

// Context returns the top-level CONTEXT file (spec.md §6's tree
// layout places it at the root, shared across the whole server, not
// nested under scene/).
func (s *Scene) Context() ninep.File { return s.context }

// Screen returns the top-level screen file (spec.md §6's tree layout
// places it at the root, alongside CONTEXT and ctl). render supplies
// the actual pixel capture; nil yields the placeholder PNG (GUI
// rendering is an external collaborator, per SPEC_FULL.md §0).
func (s *Scene) Screen(render func() ([]byte, error)) ninep.File {
	return newScreenFile(render)
}

// Refresh redraws the scene from its registered items. Actual pixel
// redraw is an external-collaborator concern (rendering); the manager
// side has nothing to recompute, so this is a no-op reserved for a
// future rendering hook.
func (s *Scene) Refresh() error { return nil }

// ClearScene discards all scene items, snapshotting the pre-clear
// state first so it remains reachable via undo.
func (s *Scene) ClearScene() error {
	if _, err := s.snapshotBeforeClear(); err != nil {
		return err
	}
	s.Manager.Clear()
	return nil
}

// Export posts the scene's JSON serialization to stdout, per the
// `export` ctl verb (spec.md §4.3): both the scene ctl and the root
// ctl expose it, since both operate on the same underlying manager.
func (s *Scene) Export() error {
	data, err := s.Manager.ToJSON()
	if err != nil {
		return err
	}
	s.stdout.Rearm()
	s.stdout.Post(data)
	s.stdout.Post([]byte("\n"))
	s.stdout.MarkReady()
	return nil
}

// Import replaces the scene with the given JSON payload.
func (s *Scene) Import(payload string) error {
	if strings.TrimSpace(payload) == "" {
		return fmt.Errorf("scene: import requires a JSON payload: %w", ninep.ErrUsage)
	}
	return s.Manager.FromJSON([]byte(payload))
}

// SaveState persists the current session envelope to disk for crash
// recovery (spec.md §4.6's save_state). An empty path defaults to
// $HOME/.rio9p_state.json, following original_source/rio/scene.py's
// save_state default of a dotfile under the home directory.
func (s *Scene) SaveState(filePath string) error {
	filePath, err := defaultStatePath(filePath)
	if err != nil {
		return fmt.Errorf("scene: save_state: %w", err)
	}
	data, err := buildStateEnvelope(s.Manager, s.Versions, s.display)
	if err != nil {
		return fmt.Errorf("scene: save_state: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("scene: save_state: %w", err)
	}
	return nil
}

// LoadState restores a session envelope previously written by
// SaveState, replaying its code history against the live namespace.
func (s *Scene) LoadState(filePath string) error {
	filePath, err := defaultStatePath(filePath)
	if err != nil {
		return fmt.Errorf("scene: load_state: %w", err)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("scene: load_state: %w", err)
	}
	return restoreState(data, s.Manager, s.Versions, s.execution, s.display)
}

func defaultStatePath(filePath string) (string, error) {
	if filePath != "" {
		return filePath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".rio9p_state.json"), nil
}

func (s *Scene) buildCtl() ninep.File {
	verbs := map[string]ctlfile.VerbFunc{
		"clear": func(context.Context, string) error {
			return s.ClearScene()
		},
		"refresh": func(context.Context, string) error {
			return s.Refresh()
		},
		"export": func(context.Context, string) error {
			return s.Export()
		},
		"import": func(_ context.Context, arg string) error {
			return s.Import(arg)
		},
		"undo": func(context.Context, string) error {
			if _, ok := s.Versions.Undo(); !ok {
				return fmt.Errorf("scene: nothing to undo: %w", ninep.ErrNotFound)
			}
			return nil
		},
		"redo": func(context.Context, string) error {
			if _, ok := s.Versions.Redo(); !ok {
				return fmt.Errorf("scene: nothing to redo: %w", ninep.ErrNotFound)
			}
			return nil
		},
		"goto": func(_ context.Context, arg string) error {
			v, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 64)
			if err != nil {
				return fmt.Errorf("scene: goto requires a version number: %w", ninep.ErrUsage)
			}
			if _, ok := s.Versions.GotoVersion(v); !ok {
				return fmt.Errorf("scene: version %d not found: %w", v, ninep.ErrNotFound)
			}
			return nil
		},
		"snapshot": func(_ context.Context, arg string) error {
			data, err := s.Manager.ToJSON()
			if err != nil {
				return err
			}
			s.Versions.TakeSnapshot(arg, "", data, s.Manager.ItemCount())
			return nil
		},
	}

	status := func(context.Context) []ctlfile.StatusLine {
		return []ctlfile.StatusLine{
			{Key: "current_version", Value: strconv.FormatUint(s.Versions.CurrentVersion(), 10)},
			{Key: "item_count", Value: strconv.Itoa(s.Manager.ItemCount())},
		}
	}

	return ctlfile.New("ctl", verbs, status)
}

// snapshotBeforeClear implements ctl clear's documented "discard all
// scene items (snapshot first)" behavior from spec.md §4.3.
func (s *Scene) snapshotBeforeClear() (Snapshot, error) {
	data, err := s.Manager.ToJSON()
	if err != nil {
		return Snapshot{}, err
	}
	return s.Versions.TakeSnapshot("pre-clear", "", data, s.Manager.ItemCount()), nil
}
