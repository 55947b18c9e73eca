// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package rtmux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// newTestServer returns a Server handle on a socket private to this
// test, mirroring observe/testutil_test.go's fixture setup. The tmux
// server itself starts on the first NewSession.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	socket := filepath.Join(dir, "tmux.sock")
	s := NewServer(socket, "/dev/null")
	t.Cleanup(func() {
		_, _ = s.Run("kill-server")
	})
	return s
}

func TestNewSessionAndHasSession(t *testing.T) {
	s := newTestServer(t)
	session := fmt.Sprintf("test-%d", os.Getpid())

	if err := s.NewSession(session, "cat"); err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	output, err := s.Run("list-sessions")
	if err != nil {
		t.Fatalf("list-sessions: %v", err)
	}
	if output == "" {
		t.Fatal("expected at least one session listed")
	}
}

func TestPanePIDReturnsPositivePID(t *testing.T) {
	s := newTestServer(t)
	session := fmt.Sprintf("pid-%d", os.Getpid())
	if err := s.NewSession(session, "cat"); err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	pid, err := s.PanePID(session)
	if err != nil {
		t.Fatalf("PanePID: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("PanePID = %d, want positive", pid)
	}
}

func TestSendKeysAndCapture(t *testing.T) {
	s := newTestServer(t)
	session := fmt.Sprintf("keys-%d", os.Getpid())
	if err := s.NewSession(session, "cat"); err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if err := s.SendKeys(session, "hello-rtmux", true); err != nil {
		t.Fatalf("SendKeys: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		out, err := s.Run("capture-pane", "-p", "-t", session)
		if err == nil && strings.Contains(out, "hello-rtmux") {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("timed out waiting for echoed input to appear in the pane")
}

func TestKillSessionOnMissingSessionIsNotAnError(t *testing.T) {
	s := newTestServer(t)
	if err := s.KillSession("does-not-exist"); err != nil {
		t.Fatalf("KillSession on missing session: %v", err)
	}
}

func TestCommandContextIsWiredToSocket(t *testing.T) {
	s := newTestServer(t)
	cmd := s.CommandContext(context.Background(), "list-sessions")
	found := false
	for _, arg := range cmd.Args {
		if arg == s.SocketPath() {
			found = true
		}
	}
	if !found {
		t.Fatalf("CommandContext args %v do not include socket path %q", cmd.Args, s.SocketPath())
	}
}
