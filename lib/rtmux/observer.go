// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package rtmux

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"rio9p/lib/clock"
)

// DefaultDebounceInterval matches observe/control.go's own default: long
// enough to coalesce a burst of terminal output into one notification,
// short enough that a stdout reader doesn't feel the terminal has stalled.
const DefaultDebounceInterval = 200 * time.Millisecond

// OutputObserver watches a tmux session's output via a control-mode
// (tmux -C) subprocess and invokes onOutput, debounced, whenever new
// bytes have been captured. Grounded on observe/control.go's
// ControlClient, which does the identical thing for layout-change
// notifications; adapted here to watch "%output" lines instead and to
// deliver raw captured bytes rather than typed layout events.
type OutputObserver struct {
	server      *Server
	sessionName string
	debounce    time.Duration
	clock       clock.Clock
	onOutput    func([]byte)

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	timer *clock.Timer
	gen   uint64
	buf   strings.Builder
}

// ObserverOption configures an OutputObserver.
type ObserverOption func(*OutputObserver)

// WithDebounceInterval overrides DefaultDebounceInterval.
func WithDebounceInterval(d time.Duration) ObserverOption {
	return func(o *OutputObserver) { o.debounce = d }
}

// WithClock injects a fake clock for deterministic tests.
func WithClock(c clock.Clock) ObserverOption {
	return func(o *OutputObserver) { o.clock = c }
}

// NewOutputObserver starts a control-mode subprocess attached to
// sessionName and begins scanning its notification stream. Call Close
// to stop it.
func NewOutputObserver(ctx context.Context, server *Server, sessionName string, onOutput func([]byte), opts ...ObserverOption) (*OutputObserver, error) {
	o := &OutputObserver{
		server:      server,
		sessionName: sessionName,
		debounce:    DefaultDebounceInterval,
		clock:       clock.Real(),
		onOutput:    onOutput,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	cmd := o.server.CommandContext(runCtx, "-C", "attach-session", "-t", sessionName)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("rtmux: control-mode stdout pipe: %w", err)
	}
	// A control-mode client exits when its stdin reaches EOF, so keep a
	// pipe open for as long as the subprocess runs.
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("rtmux: control-mode stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("rtmux: starting control-mode attach: %w", err)
	}

	go o.readNotifications(stdout)
	go func() {
		_ = cmd.Wait()
		_ = stdin.Close()
		close(o.done)
	}()

	return o, nil
}

// Close stops the observer and its control-mode subprocess.
func (o *OutputObserver) Close() {
	o.cancel()
	<-o.done
}

// isOutputNotification reports whether line is a "%output %<pane> ..."
// control-mode notification. The pane ID is not checked: output from
// any pane of the attached session is accepted.
func isOutputNotification(line string) bool {
	return strings.HasPrefix(line, "%output ")
}

// parseOutputPayload extracts and unescapes the payload bytes from a
// "%output %<pane> <payload>" control-mode line. tmux octal-escapes
// bytes outside printable ASCII using \ooo sequences.
func parseOutputPayload(line string) []byte {
	rest := strings.TrimPrefix(line, "%output ")
	if idx := strings.IndexByte(rest, ' '); idx >= 0 {
		rest = rest[idx+1:]
	} else {
		return nil
	}
	return unescapeOctal(rest)
}

func unescapeOctal(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctalDigit(s[i+1]) && isOctalDigit(s[i+2]) && isOctalDigit(s[i+3]) {
			v := (int(s[i+1]-'0') << 6) | (int(s[i+2]-'0') << 3) | int(s[i+3]-'0')
			out = append(out, byte(v))
			i += 3
			continue
		}
		out = append(out, s[i])
	}
	return out
}

func isOctalDigit(b byte) bool { return b >= '0' && b <= '7' }

// readNotifications scans the control-mode subprocess's stdout,
// accumulating %output payloads and firing onOutput on a debounce
// timer. Mirrors observe/control.go's readNotifications loop: a
// generation counter guards against a stale timer fire racing a fresh
// notification.
func (o *OutputObserver) readNotifications(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !isOutputNotification(line) {
			continue
		}
		payload := parseOutputPayload(line)
		if len(payload) == 0 {
			continue
		}

		o.mu.Lock()
		o.buf.Write(payload)
		o.gen++
		myGen := o.gen
		if o.timer != nil {
			o.timer.Stop()
		}
		o.timer = o.clock.AfterFunc(o.debounce, func() { o.fire(myGen) })
		o.mu.Unlock()
	}
}

func (o *OutputObserver) fire(gen uint64) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	captured := o.buf.String()
	o.buf.Reset()
	o.mu.Unlock()

	if captured != "" && o.onOutput != nil {
		o.onOutput([]byte(captured))
	}
}
