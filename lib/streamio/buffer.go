// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

// Package streamio implements the three blocking-read protocols shared
// by the streaming output files in the tree (scene/stdout, scene/STDERR,
// terminal stdout/output; CONTEXT has its own gate): state-aware (idle reads return
// empty), always-blocking (idle reads block), and the rearm-on-offset-
// zero handshake that lets an unattended "while true; do cat X; done"
// loop drive a file without busy-polling.
//
// The "buffered, no wait" mode (vars, version, state, screen) needs no
// support from this package — those files simply compute their content
// synchronously on every Read.
package streamio

import (
	"context"
	"sync"
)

// Buffer is a single-producer, multi-consumer streaming output. One
// producer calls Post repeatedly to accumulate a batch, then MarkReady
// once to release it to readers. Any number of readers may block on
// the same batch; all unblock together when it becomes ready.
type Buffer struct {
	mu             sync.Mutex
	chunks         [][]byte
	content        []byte // cached concatenation, valid once ready
	ready          chan struct{}
	active         bool // Post has been called since the last rearm
	consumed       bool // the current batch has been fully delivered
	alwaysBlocking bool // false: state-aware (IDLE reads return empty)
}

// New creates a Buffer. alwaysBlocking selects the always-blocking
// protocol (STDERR, terminal stdout/output); false selects
// the state-aware protocol (scene/stdout).
func New(alwaysBlocking bool) *Buffer {
	return &Buffer{ready: make(chan struct{}), alwaysBlocking: alwaysBlocking}
}

// Post appends data to the current batch without signaling readiness.
// A zero-length post is a no-op.
func (b *Buffer) Post(data []byte) {
	if len(data) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, data)
	b.active = true
}

// MarkReady signals that the current batch is complete. It is a no-op
// if no data has been posted since the last rearm — otherwise a
// spurious wake would return an empty read and a polling reader would
// spin.
func (b *Buffer) MarkReady() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.chunks) == 0 {
		return
	}
	b.content = joinChunks(b.chunks)
	closeIfOpen(b.ready)
}

// Rearm forcibly resets the buffer to the idle/waiting state,
// regardless of whether the previous batch was fully delivered. Used
// by producers that explicitly arm a buffer for a new batch (terminal
// stdin's start_capture) rather than relying on a reader's offset-zero
// read to trigger the rearm.
func (b *Buffer) Rearm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rearmLocked()
}

func (b *Buffer) rearmLocked() {
	b.chunks = nil
	b.content = nil
	b.consumed = false
	b.active = false
	b.ready = make(chan struct{})
}

// Read implements the shared protocol. A read at offset 0 after the
// previous batch was fully delivered rearms the buffer first. An idle
// state-aware buffer (no Post since the last rearm) returns an empty
// result immediately; an idle always-blocking buffer blocks until the
// first MarkReady. Once ready, content is delivered like a normal
// byte-addressed file, with EOF once offset reaches the end.
func (b *Buffer) Read(ctx context.Context, offset int64, count int) ([]byte, error) {
	b.mu.Lock()
	if offset == 0 && b.consumed {
		b.rearmLocked()
	}

	if !b.active && !b.alwaysBlocking {
		b.mu.Unlock()
		return nil, nil
	}

	readyChan := b.ready
	b.mu.Unlock()

	select {
	case <-readyChan:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if offset >= int64(len(b.content)) {
		b.consumed = true
		return nil, nil
	}
	end := offset + int64(count)
	if end > int64(len(b.content)) {
		end = int64(len(b.content))
	}
	data := b.content[offset:end]
	if end >= int64(len(b.content)) {
		b.consumed = true
	}
	return data, nil
}

func joinChunks(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func closeIfOpen(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}
