// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

// Package execlang implements the execution context (spec.md §4.5): a
// single mutable namespace, seeded with host object references, that
// submitted code fragments run against with bindings preserved across
// calls. Grounded on theRebelliousNerd-codenerd's
// internal/autopoiesis/yaegi_executor.go, which already embeds
// traefik/yaegi as a sandboxed Go interpreter restricted to a stdlib
// import allowlist — the same interpreter instance is kept alive for
// the whole scene's lifetime here, rather than recreated per call, so
// that top-level bindings from one fragment are visible to the next.
package execlang

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// redirectWriter forwards to whatever writer is currently installed,
// defaulting to io.Discard. yaegi's interp.Options wires Stdout/Stderr
// once at construction; execution needs a fresh capture sink per
// submission (spec.md §4.4 step 2), so the sink is swapped behind this
// indirection rather than recreating the interpreter.
type redirectWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (r *redirectWriter) set(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w == nil {
		w = io.Discard
	}
	r.w = w
}

func (r *redirectWriter) Write(p []byte) (int, error) {
	r.mu.Lock()
	w := r.w
	r.mu.Unlock()
	if w == nil {
		w = io.Discard
	}
	return w.Write(p)
}

// Result is the outcome of one execution, matching spec.md §4.5's
// struct: success flag, optional error, optional pretty-printed
// result, and the items the fragment registered. Eval fills
// ItemsRegistered only; WidgetsCreated is always left empty.
type Result struct {
	Success         bool
	Error           string
	Result          string
	WidgetsCreated  []string
	ItemsRegistered []string
}

// HostBinding exports a single Go value into the interpreter's
// namespace under "host.<Name>" so submitted code can reach the
// scene manager, the display, or any other long-lived host object.
type HostBinding struct {
	Name  string
	Value any
}

// DefaultAllowedImports is the stdlib import allowlist. Filesystem,
// process, and network access are excluded — submitted code is agent-
// authored scene glue, not a general-purpose sandbox escape surface.
var DefaultAllowedImports = map[string]bool{
	"strings":         true,
	"strconv":         true,
	"fmt":             true,
	"math":            true,
	"regexp":          true,
	"encoding/json":   true,
	"encoding/base64": true,
	"time":            true,
	"sort":            true,
	"bytes":           true,
}

// Context is the long-lived namespace a scene's fragments execute
// against. Eval holds an internal mutex, so concurrent Eval calls run
// one at a time. SetOutput is not covered by that mutex: a caller that
// installs capture sinks around an Eval (scene.Execution.Run)
// serializes its own SetOutput/Eval/SetOutput sequence.
type Context struct {
	mu              sync.Mutex
	interp          *interp.Interpreter
	allowedImports  map[string]bool
	widgetsCreated  map[string]bool // allocated by New; Eval does not read or update it
	trackedRegistry func() []string // returns currently registered item names, for ItemsRegistered diffing
	stdout          *redirectWriter
	stderr          *redirectWriter
}

// SetOutput installs the capture sinks used by the next Eval call.
// Passing nil for either resets that stream to io.Discard.
func (c *Context) SetOutput(stdout, stderr io.Writer) {
	c.stdout.set(stdout)
	c.stderr.set(stderr)
}

// New creates an execution context seeded with the given host
// bindings. registrySnapshot, if non-nil, is called before and after
// each Eval to compute ItemsRegistered by diffing the registry's
// contents.
func New(bindings []HostBinding, registrySnapshot func() []string) (*Context, error) {
	stdout := &redirectWriter{w: io.Discard}
	stderr := &redirectWriter{w: io.Discard}
	i := interp.New(interp.Options{Stdout: stdout, Stderr: stderr})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("execlang: loading stdlib symbols: %w", err)
	}

	if len(bindings) > 0 {
		exports := make(map[string]reflect.Value, len(bindings))
		for _, b := range bindings {
			exports[b.Name] = reflect.ValueOf(b.Value)
		}
		if err := i.Use(interp.Exports{"host/host": exports}); err != nil {
			return nil, fmt.Errorf("execlang: exporting host bindings: %w", err)
		}
		if _, err := i.Eval(`import "host/host"`); err != nil {
			return nil, fmt.Errorf("execlang: importing host bindings: %w", err)
		}
	}

	return &Context{
		interp:         i,
		allowedImports: DefaultAllowedImports,
		widgetsCreated: make(map[string]bool),
		stdout:         stdout,
		stderr:         stderr,
		trackedRegistry: func() []string {
			if registrySnapshot != nil {
				return registrySnapshot()
			}
			return nil
		},
	}, nil
}

// Eval runs one code fragment. Failure in one submission never poisons
// the namespace for the next — a panic or evaluation error is
// converted into Result.Error rather than propagated, so the
// interpreter's top-level bindings from prior successful fragments
// remain usable.
func (c *Context) Eval(code string) (result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := validateImports(code, c.allowedImports); err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	before := c.trackedRegistry()

	defer func() {
		if r := recover(); r != nil {
			result = Result{Success: false, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	value, err := c.interp.Eval(code)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	after := c.trackedRegistry()
	created := diff(before, after)

	result = Result{Success: true, ItemsRegistered: created}
	if value.IsValid() && value.Kind() != reflect.Invalid && !isNilInterfaceOrFunc(value) {
		result.Result = fmt.Sprintf("%v", value.Interface())
	}
	return result
}

func isNilInterfaceOrFunc(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func diff(before, after []string) []string {
	seen := make(map[string]bool, len(before))
	for _, name := range before {
		seen[name] = true
	}
	var out []string
	for _, name := range after {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}

// validateImports rejects any import not in allowed. Ported from
// yaegi_executor.go's line-scanning approach — good enough for the
// fenced import block shape yaegi expects, not a full parser.
func validateImports(code string, allowed map[string]bool) error {
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && trimmed == ")":
			inBlock = false
		case inBlock:
			pkg := strings.Trim(strings.TrimSpace(trimmed), `"`)
			if pkg != "" && !allowed[pkg] {
				return fmt.Errorf("import %q is not permitted", pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			pkg := strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`)
			if !allowed[pkg] {
				return fmt.Errorf("import %q is not permitted", pkg)
			}
		}
	}
	return nil
}
