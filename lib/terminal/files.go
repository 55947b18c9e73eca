// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"context"
	"fmt"

	"rio9p/lib/ctlfile"
	"rio9p/lib/ninep"
)

// resolveOrErr is the common "weak-upgrade failure" guard every
// terminal file performs before touching the record (spec.md §3).
func resolveOrErr(r *ref) (*Terminal, error) {
	t, ok := r.resolve()
	if !ok {
		return nil, fmt.Errorf("terminal: no longer exists: %w", ninep.ErrIO)
	}
	return t, nil
}

func newCtlFile(r *ref) ninep.File {
	verbs := map[string]ctlfile.VerbFunc{
		"font": func(context.Context, string) error {
			// Font is a display concern handled by the rendering
			// collaborator (out of scope); acknowledging it as a
			// known verb here keeps it from falling through to PTY
			// forwarding, per spec.md §4.10.
			return nil
		},
	}

	status := func(context.Context) []ctlfile.StatusLine {
		t, ok := r.resolve()
		if !ok {
			return []ctlfile.StatusLine{{Key: "status", Value: "no longer exists"}}
		}
		agent := t.ConnectedAgent()
		if agent == "" {
			agent = "(none)"
		}
		return []ctlfile.StatusLine{
			{Key: "term_id", Value: t.ID},
			{Key: "connected_agent", Value: agent},
		}
	}

	f := ctlfile.New("ctl", verbs, status)
	return &forwardingCtl{File: f, ref: r}
}

// forwardingCtl wraps ctlfile.File so any verb not in its table
// forwards to the PTY instead of failing with usage, per spec.md
// §4.10's "commands other than font are forwarded to the PTY".
type forwardingCtl struct {
	*ctlfile.File
	ref *ref
}

func (f *forwardingCtl) Write(ctx context.Context, fid *ninep.Fid, offset int64, data []byte) (int, error) {
	n, err := f.File.Write(ctx, fid, offset, data)
	if err == nil {
		return n, nil
	}
	t, rerr := resolveOrErr(f.ref)
	if rerr != nil {
		return 0, rerr
	}
	if werr := t.RunCtl(trimNewline(data)); werr != nil {
		return 0, fmt.Errorf("terminal: forwarding ctl command: %w: %w", ninep.ErrIO, werr)
	}
	return len(data), nil
}

func trimNewline(data []byte) string {
	s := string(data)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// stdinFile is terms/<id>/stdin: write-only gated execution.
type stdinFile struct {
	ref *ref
}

func newStdinFile(r *ref) ninep.File { return &stdinFile{ref: r} }

func (f *stdinFile) Name() string { return "stdin" }

func (f *stdinFile) Open(context.Context, *ninep.Fid, ninep.OpenMode) error { return nil }

func (f *stdinFile) Read(context.Context, *ninep.Fid, int64, int) ([]byte, error) {
	return nil, fmt.Errorf("terminal: stdin is write-only: %w", ninep.ErrPermission)
}

func (f *stdinFile) Write(_ context.Context, _ *ninep.Fid, _ int64, data []byte) (int, error) {
	t, err := resolveOrErr(f.ref)
	if err != nil {
		return 0, err
	}
	// The caller's write always succeeds; rejection is only observable
	// by reading stdout (spec.md §4.10).
	t.Submit(context.Background(), string(data))
	return len(data), nil
}

func (f *stdinFile) Clunk(context.Context, *ninep.Fid) error { return nil }

func (f *stdinFile) SizeHint() int64 { return 0 }

// inputFile is terms/<id>/input: write-only forwarder to the connected
// agent, a no-op if none is connected.
type inputFile struct {
	ref *ref
}

func newInputFile(r *ref) ninep.File { return &inputFile{ref: r} }

func (f *inputFile) Name() string { return "input" }

func (f *inputFile) Open(context.Context, *ninep.Fid, ninep.OpenMode) error { return nil }

func (f *inputFile) Read(context.Context, *ninep.Fid, int64, int) ([]byte, error) {
	return nil, fmt.Errorf("terminal: input is write-only: %w", ninep.ErrPermission)
}

func (f *inputFile) Write(ctx context.Context, _ *ninep.Fid, _ int64, data []byte) (int, error) {
	t, err := resolveOrErr(f.ref)
	if err != nil {
		return 0, err
	}
	if err := t.ForwardInput(ctx, data); err != nil {
		return 0, fmt.Errorf("terminal: forwarding input: %w", err)
	}
	return len(data), nil
}

func (f *inputFile) Clunk(context.Context, *ninep.Fid) error { return nil }

func (f *inputFile) SizeHint() int64 { return 0 }

// outputFile is terms/<id>/output: bidirectional, forwarding writes to
// the display while mirroring them into an always-blocking read buffer.
type outputFile struct {
	ref *ref
}

func newOutputFile(r *ref) ninep.File { return &outputFile{ref: r} }

func (f *outputFile) Name() string { return "output" }

func (f *outputFile) Open(context.Context, *ninep.Fid, ninep.OpenMode) error { return nil }

func (f *outputFile) Read(ctx context.Context, _ *ninep.Fid, offset int64, count int) ([]byte, error) {
	t, err := resolveOrErr(f.ref)
	if err != nil {
		return nil, err
	}
	return t.Output.Read(ctx, offset, count)
}

func (f *outputFile) Write(ctx context.Context, _ *ninep.Fid, _ int64, data []byte) (int, error) {
	t, err := resolveOrErr(f.ref)
	if err != nil {
		return 0, err
	}
	if err := t.PublishOutput(ctx, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (f *outputFile) Clunk(context.Context, *ninep.Fid) error { return nil }

func (f *outputFile) SizeHint() int64 { return 0 }

// interruptFile is terms/<id>/interrupt: write-only SIGINT trigger.
type interruptFile struct {
	ref *ref
}

func newInterruptFile(r *ref) ninep.File { return &interruptFile{ref: r} }

func (f *interruptFile) Name() string { return "interrupt" }

func (f *interruptFile) Open(context.Context, *ninep.Fid, ninep.OpenMode) error { return nil }

func (f *interruptFile) Read(context.Context, *ninep.Fid, int64, int) ([]byte, error) {
	return nil, fmt.Errorf("terminal: interrupt is write-only: %w", ninep.ErrPermission)
}

func (f *interruptFile) Write(_ context.Context, _ *ninep.Fid, _ int64, data []byte) (int, error) {
	t, err := resolveOrErr(f.ref)
	if err != nil {
		return 0, err
	}
	if err := t.Interrupt(); err != nil {
		return 0, fmt.Errorf("terminal: sending interrupt: %w: %w", ninep.ErrIO, err)
	}
	return len(data), nil
}

func (f *interruptFile) Clunk(context.Context, *ninep.Fid) error { return nil }

func (f *interruptFile) SizeHint() int64 { return 0 }

// stdoutFile is terms/<id>/stdout: read-only, always-blocking tap of
// the terminal's ANSI-stripped capture buffer.
type stdoutFile struct {
	ref *ref
}

func newStdoutFile(r *ref) ninep.File { return &stdoutFile{ref: r} }

func (f *stdoutFile) Name() string { return "stdout" }

func (f *stdoutFile) Open(context.Context, *ninep.Fid, ninep.OpenMode) error { return nil }

func (f *stdoutFile) Read(ctx context.Context, _ *ninep.Fid, offset int64, count int) ([]byte, error) {
	t, err := resolveOrErr(f.ref)
	if err != nil {
		return nil, err
	}
	return t.Stdout.Read(ctx, offset, count)
}

func (f *stdoutFile) Write(context.Context, *ninep.Fid, int64, []byte) (int, error) {
	return 0, fmt.Errorf("terminal: stdout is read-only: %w", ninep.ErrPermission)
}

func (f *stdoutFile) Clunk(context.Context, *ninep.Fid) error { return nil }

func (f *stdoutFile) SizeHint() int64 { return 0 }

var (
	_ ninep.File = (*stdinFile)(nil)
	_ ninep.File = (*inputFile)(nil)
	_ ninep.File = (*outputFile)(nil)
	_ ninep.File = (*interruptFile)(nil)
	_ ninep.File = (*stdoutFile)(nil)
	_ ninep.File = (*forwardingCtl)(nil)
)
