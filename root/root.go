// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

// Package root assembles the whole synthetic tree (C13): the top-level
// ctl, screen, CONTEXT, and routes files, the scene/ subtree, and the
// terms/ directory of live terminals, matching spec.md §6's layout.
package root

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"rio9p/lib/clock"
	"rio9p/lib/ctlfile"
	"rio9p/lib/ninep"
	"rio9p/lib/rtmux"
	"rio9p/lib/routes"
	"rio9p/lib/sandbox"
	"rio9p/lib/scene"
	"rio9p/lib/terminal"
)

// Config selects the pieces root.Build wires together. Zero values are
// valid: a nil Clock defaults to clock.Real(), a nil Logger discards,
// an empty SandboxRoot yields a permissive validator-less sandbox.
type Config struct {
	Clock        clock.Clock
	Logger       *slog.Logger
	TmuxSocket   string
	TmuxConfig   string
	SandboxRoot  string // mount-root prefix commands may write under; "" disables the sandbox
	MountRoot    string // prefix used to expand relative routes paths
	Display      scene.StateSource
	AgentInput   terminal.AgentInputWriter
	TermDisplay  terminal.DisplayWriter
	ScreenRender func() ([]byte, error)
}

// Tree is the fully assembled server plus the managers that back its
// dynamic parts (terms/ and routes), so cmd/rio9pd can drive terminal
// creation and route bookkeeping directly instead of only through
// file writes.
type Tree struct {
	Server    *ninep.Server
	Scene     *scene.Scene
	Terminals *terminal.Manager
	Routes    *routes.Manager
}

// Build constructs the root directory and its Server per spec.md §6:
//
//	/
//	├── ctl
//	├── screen
//	├── CONTEXT
//	├── routes
//	├── terms/<term_id>/{ctl, stdin, stdout, input, output, interrupt}
//	└── scene/{ctl, parse, stdout, STDERR, vars, state, version}
func Build(cfg Config) (*Tree, error) {
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	display := cfg.Display
	if display == nil {
		display = NewMemoryDisplay(0, 0, scene.DefaultBackground)
	}
	sc, err := scene.New(c, display)
	if err != nil {
		return nil, fmt.Errorf("root: building scene: %w", err)
	}

	var validator *sandbox.Validator
	if cfg.SandboxRoot != "" {
		validator = sandbox.New(cfg.SandboxRoot)
	}

	agentIn := cfg.AgentInput
	if agentIn == nil {
		agentIn = DiscardAgentInput
	}
	termDisplay := cfg.TermDisplay
	if termDisplay == nil {
		termDisplay = DiscardDisplay
	}

	tmuxServer := rtmux.NewServer(cfg.TmuxSocket, cfg.TmuxConfig)
	terms := terminal.NewManager(tmuxServer, validator, agentIn, termDisplay, c, log)

	root := ninep.NewStaticDir("")
	root.AddChild(buildRootCtl(sc, display, terms, log))
	root.AddChild(sc.Screen(cfg.ScreenRender))
	root.AddChild(sc.Context())
	root.AddChild(sc.BuildTree())
	root.AddChild(terms.Dir())

	server := ninep.NewServer(root, log)

	routeMgr := routes.NewManager(server, cfg.MountRoot, log)
	root.AddChild(routes.NewFile(routeMgr))

	return &Tree{Server: server, Scene: sc, Terminals: terms, Routes: routeMgr}, nil
}

// buildRootCtl implements the root ctl's documented verb table
// (spec.md §4.3): refresh/clear/export/import operate on the scene
// manager, size/background operate on the display's StateSource,
// save/load persist a session envelope, and new_terminal/
// destroy_terminal — the one gap spec.md §4.3's table leaves
// undocumented — manage terms/<id> lifecycle, since nothing else in
// the tree creates or destroys those directories.
func buildRootCtl(sc *scene.Scene, display scene.StateSource, terms *terminal.Manager, log *slog.Logger) ninep.File {
	verbs := map[string]ctlfile.VerbFunc{
		"refresh": func(context.Context, string) error {
			return sc.Refresh()
		},
		"clear": func(context.Context, string) error {
			return sc.ClearScene()
		},
		"export": func(context.Context, string) error {
			return sc.Export()
		},
		"import": func(_ context.Context, arg string) error {
			return sc.Import(arg)
		},
		"size": func(_ context.Context, arg string) error {
			fields := strings.Fields(arg)
			if len(fields) != 2 {
				return fmt.Errorf("root: size requires W H: %w", ninep.ErrUsage)
			}
			w, err := strconv.Atoi(fields[0])
			if err != nil {
				return fmt.Errorf("root: size width %q: %w", fields[0], ninep.ErrUsage)
			}
			h, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("root: size height %q: %w", fields[1], ninep.ErrUsage)
			}
			_, _, background := display.Settings()
			display.ApplySettings(w, h, background)
			return nil
		},
		"background": func(_ context.Context, arg string) error {
			arg = strings.TrimSpace(arg)
			width, height, _ := display.Settings()
			if arg == "" {
				return nil // no arg = read current, surfaced via the status block
			}
			display.ApplySettings(width, height, arg)
			return nil
		},
		"save": func(_ context.Context, arg string) error {
			return sc.SaveState(arg)
		},
		"load": func(_ context.Context, arg string) error {
			return sc.LoadState(arg)
		},
		"new_terminal": func(ctx context.Context, _ string) error {
			id, err := terms.Create(ctx)
			if err != nil {
				return err
			}
			log.Info("terminal created via root ctl", "term_id", id)
			return nil
		},
		"destroy_terminal": func(_ context.Context, arg string) error {
			if arg == "" {
				return fmt.Errorf("root: destroy_terminal requires a term_id: %w", ninep.ErrUsage)
			}
			return terms.Destroy(arg)
		},
	}

	status := func(context.Context) []ctlfile.StatusLine {
		width, height, background := display.Settings()
		count := len(terms.Dir().Children())
		return []ctlfile.StatusLine{
			{Key: "width", Value: strconv.Itoa(width)},
			{Key: "height", Value: strconv.Itoa(height)},
			{Key: "background", Value: background},
			{Key: "terminal_count", Value: strconv.Itoa(count)},
		}
	}

	return ctlfile.New("ctl", verbs, status)
}
