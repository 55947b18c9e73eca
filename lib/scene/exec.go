// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package scene

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"rio9p/lib/execlang"
	"rio9p/lib/streamio"
)

// Execution wires the scene manager, version store, compactor, and
// execution context together into the seven-step sequence spec.md
// §4.4 requires when scene/parse is clunked. It is the ExecFunc handed
// to sceneparser.New.
type Execution struct {
	Manager   *Manager
	Versions  *VersionStore
	Compactor *Compactor
	Exec      *execlang.Context
	Stdout    *streamio.Buffer // state-aware
	Stderr    *streamio.Buffer // always-blocking

	mu sync.Mutex // serializes Run, which sceneparser may call concurrently
}

// Run performs one execution of a submitted code fragment, per
// spec.md §4.4's numbered steps. It never panics or returns an error
// to the caller — sceneparser.Clunk runs this on its own goroutine and
// has nothing to report to; all outcomes are observable only via
// Stdout/Stderr and the version store, per spec.md §7's policy that
// runtime failures surface as readable artifacts, never protocol
// errors. The returned bool reports whether the fragment reached the
// append step (step 5), so callers only treat CONTEXT as having grown
// on the success path — a failed fragment (step 6) must not open it.
func (e *Execution) Run(code string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Stdout.Rearm()
	e.Stderr.Rearm()

	var outBuf, errBuf bytes.Buffer
	e.Exec.SetOutput(&outBuf, &errBuf)

	result := e.Exec.Eval(code)

	e.Exec.SetOutput(nil, nil)

	e.Stdout.Post(outBuf.Bytes())
	e.Stderr.Post(errBuf.Bytes())

	if !result.Success {
		e.Stderr.Post([]byte(result.Error + "\n"))
		e.Stderr.MarkReady()
		e.Stdout.MarkReady()
		return false
	}

	if result.Result != "" {
		e.Stdout.Post([]byte(fmt.Sprintf("→ %s\n", result.Result)))
	}
	for _, name := range result.WidgetsCreated {
		e.Stdout.Post([]byte(fmt.Sprintf("widget created: %s\n", name)))
	}
	for _, name := range result.ItemsRegistered {
		e.Stdout.Post([]byte(fmt.Sprintf("item registered: %s\n", name)))
	}

	e.Compactor.Append(code)

	sceneJSON, jsonErr := e.Manager.ToJSON()
	if jsonErr != nil {
		sceneJSON = []byte("{}")
	}
	snap := e.Versions.TakeSnapshot(firstLine(code), code, sceneJSON, e.Manager.ItemCount())
	e.Stdout.Post([]byte(fmt.Sprintf("✓ Version %d\n", snap.Version)))

	e.Stderr.MarkReady()
	e.Stdout.MarkReady()
	return true
}

// firstLine extracts a version label from a code fragment, per
// original_source/rio/scene.py's take_snapshot label handling: the
// first non-blank line, capped at 72 characters.
func firstLine(code string) string {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if r := []rune(trimmed); len(r) > 72 {
			trimmed = string(r[:72])
		}
		return trimmed
	}
	return ""
}
