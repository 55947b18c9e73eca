// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

// Package terminal reifies PTY-backed shells as files (spec.md §4.10):
// each live terminal is a tmux session on a private socket, exposed as
// a terms/<term_id>/ directory with ctl, stdin, stdout, input, output,
// and interrupt files. Grounded on observe/control.go's control-mode
// notification scanner (adapted to watch %output instead of layout
// events) and lib/tmux/server.go's Server (adapted into lib/rtmux).
package terminal

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"rio9p/lib/clock"
	"rio9p/lib/rtmux"
	"rio9p/lib/sandbox"
	"rio9p/lib/streamio"
)

// AgentInputWriter forwards bytes to a connected agent's input file at
// /<llmfs_mount>/agents/<name>/input. The LLM filesystem mount is an
// external collaborator outside this module's scope (SPEC_FULL.md §0);
// production wiring supplies a real implementation, tests supply a
// fake, and a nil writer makes the terminal's input file a no-op.
type AgentInputWriter interface {
	WriteInput(ctx context.Context, agentName string, data []byte) error
}

// DisplayWriter forwards output bytes to a terminal's on-screen
// display. Rendering is an external collaborator (SPEC_FULL.md §0); a
// nil writer makes output-forwarding a no-op while the mirrored
// blocking-read buffer still works.
type DisplayWriter interface {
	WriteDisplay(ctx context.Context, data []byte) error
}

// ref is the weak-reference indirection between a terminal's files and
// its record (spec.md §3: "files hold weak references and fail
// gracefully ... if the referent is gone"). The terms/ directory holds
// the strong *Terminal; every file closure captures *ref instead, so
// destroying a terminal (clearing the ref) makes every still-open fid
// on its files observe the "no longer exists" failure instead of
// operating on a half-torn-down record.
type ref struct {
	mu   sync.RWMutex
	term *Terminal
}

func (r *ref) resolve() (*Terminal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.term, r.term != nil
}

func (r *ref) clear() {
	r.mu.Lock()
	r.term = nil
	r.mu.Unlock()
}

// Terminal is one live PTY-backed shell.
type Terminal struct {
	ID          string
	sessionName string

	server    *rtmux.Server
	validator *sandbox.Validator
	agentIn   AgentInputWriter
	display   DisplayWriter
	log       *slog.Logger

	self *ref

	Stdout *streamio.Buffer // always-blocking, ANSI-stripped PTY output
	Output *streamio.Buffer // always-blocking, mirrors output-file writes

	observer *rtmux.OutputObserver

	mu             sync.Mutex
	connectedAgent string
	knownAgents    map[string]bool
}

var agentRegisterRE = regexp.MustCompile(`echo\s+['"]new\s+(\S+)['"]`)

// New starts a fresh tmux session and begins capturing its output.
func New(ctx context.Context, server *rtmux.Server, validator *sandbox.Validator, agentIn AgentInputWriter, display DisplayWriter, c clock.Clock, log *slog.Logger) (*Terminal, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if c == nil {
		c = clock.Real()
	}

	id := uuid.NewString()
	session := "rio9p-term-" + id

	if err := server.NewSession(session); err != nil {
		return nil, fmt.Errorf("terminal: starting session: %w", err)
	}

	t := &Terminal{
		ID:          id,
		sessionName: session,
		server:      server,
		validator:   validator,
		agentIn:     agentIn,
		display:     display,
		log:         log,
		self:        &ref{},
		Stdout:      streamio.New(true),
		Output:      streamio.New(true),
		knownAgents: make(map[string]bool),
	}
	t.self.term = t

	observer, err := rtmux.NewOutputObserver(ctx, server, session, t.onOutput, rtmux.WithClock(c))
	if err != nil {
		_ = server.KillSession(session)
		return nil, fmt.Errorf("terminal: starting output observer: %w", err)
	}
	t.observer = observer

	log.Info("terminal started", "term_id", id, "session", session)
	return t, nil
}

func (t *Terminal) onOutput(raw []byte) {
	stripped := stripANSI(raw)
	if len(stripped) == 0 {
		return
	}
	t.Stdout.Post(stripped)
	t.Stdout.MarkReady()
}

// ShellPID returns the PID of the shell running in the terminal's pane.
func (t *Terminal) ShellPID() (int, error) {
	return t.server.PanePID(t.sessionName)
}

// Interrupt sends SIGINT to the shell's process group.
func (t *Terminal) Interrupt() error {
	return t.server.SignalPane(t.sessionName, syscall.SIGINT)
}

// Destroy sends SIGTERM to the PTY's process group, stops output
// capture, tears down the tmux session, and clears the weak reference
// so any file still holding it observes "no longer exists".
func (t *Terminal) Destroy() {
	_ = t.server.SignalPane(t.sessionName, syscall.SIGTERM)
	t.observer.Close()
	_ = t.server.KillSession(t.sessionName)
	t.self.clear()
	t.log.Info("terminal destroyed", "term_id", t.ID)
}

// Submit implements stdin's gated-execution write: validate, arm
// capture, forward to the PTY, and parse out any agent-registration
// text. Rejections are injected into Stdout rather than returned as an
// error — the caller's write always succeeds (spec.md §4.10).
func (t *Terminal) Submit(ctx context.Context, payload string) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return
	}

	if t.validator != nil {
		if ok, reason := t.validator.Check(payload); !ok {
			t.feedError(fmt.Sprintf("SANDBOX BLOCKED: %s", reason))
			return
		}
	}

	t.Stdout.Rearm()
	if err := t.server.SendKeys(t.sessionName, payload, true); err != nil {
		t.feedError(fmt.Sprintf("io error: %v", err))
		return
	}

	if m := agentRegisterRE.FindStringSubmatch(payload); m != nil {
		t.mu.Lock()
		t.connectedAgent = m[1]
		t.knownAgents[m[1]] = true
		t.mu.Unlock()
	}
}

// feedError injects a rejection line into Stdout without going through
// the normal capture-armed path (spec.md §4.10's feed_error).
func (t *Terminal) feedError(line string) {
	t.Stdout.Post([]byte(line + "\n"))
	t.Stdout.MarkReady()
}

// ConnectedAgent returns the name of the most recently registered
// agent, or "" if none has connected.
func (t *Terminal) ConnectedAgent() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectedAgent
}

// ForwardInput implements the input file: no-op if no agent is
// connected or no writer was configured.
func (t *Terminal) ForwardInput(ctx context.Context, data []byte) error {
	agent := t.ConnectedAgent()
	if agent == "" || t.agentIn == nil {
		return nil
	}
	return t.agentIn.WriteInput(ctx, agent, data)
}

// PublishOutput implements the output file's write side: forward to
// the display and mirror into Output for readers tapping the buffer.
func (t *Terminal) PublishOutput(ctx context.Context, data []byte) error {
	if t.display != nil {
		if err := t.display.WriteDisplay(ctx, data); err != nil {
			return fmt.Errorf("terminal: forwarding to display: %w", err)
		}
	}
	t.Output.Post(data)
	t.Output.MarkReady()
	return nil
}

// RunCtl forwards a ctl command other than "font" straight to the PTY.
func (t *Terminal) RunCtl(command string) error {
	return t.server.SendKeys(t.sessionName, command, true)
}
