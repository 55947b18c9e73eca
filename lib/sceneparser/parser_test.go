// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package sceneparser

import (
	"context"
	"sync"
	"testing"
	"time"

	"rio9p/lib/ninep"
)

func TestReadReflectsPerFidBufferState(t *testing.T) {
	f := New(nil)
	fidA := &ninep.Fid{ID: 1}
	fidB := &ninep.Fid{ID: 2}

	if err := f.Open(context.Background(), fidA, ninep.OpenReadWrite); err != nil {
		t.Fatalf("open a: %v", err)
	}
	if err := f.Open(context.Background(), fidB, ninep.OpenReadWrite); err != nil {
		t.Fatalf("open b: %v", err)
	}

	data, _ := f.Read(context.Background(), fidA, 0, 64)
	if string(data) != "ready\n" {
		t.Fatalf("fresh fid a: got %q, want ready", data)
	}

	if _, err := f.Write(context.Background(), fidA, 0, []byte("x := 1\n")); err != nil {
		t.Fatalf("write a: %v", err)
	}

	dataA, _ := f.Read(context.Background(), fidA, 0, 64)
	if string(dataA) != "buffering...\n" {
		t.Fatalf("fid a after write: got %q, want buffering...", dataA)
	}

	dataB, _ := f.Read(context.Background(), fidB, 0, 64)
	if string(dataB) != "ready\n" {
		t.Fatalf("fid b unaffected by fid a's write: got %q, want ready", dataB)
	}
}

func TestWriteAccumulatesAcrossChunks(t *testing.T) {
	var got string
	var wg sync.WaitGroup
	wg.Add(1)
	f := New(func(code string) {
		got = code
		wg.Done()
	})
	fid := &ninep.Fid{ID: 1}
	_ = f.Open(context.Background(), fid, ninep.OpenReadWrite)

	chunks := []string{"func widget() {\n", "  return 1\n", "}\n"}
	for _, c := range chunks {
		if _, err := f.Write(context.Background(), fid, 0, []byte(c)); err != nil {
			t.Fatalf("write chunk: %v", err)
		}
	}

	if err := f.Clunk(context.Background(), fid); err != nil {
		t.Fatalf("clunk: %v", err)
	}

	select {
	case <-waitDone(&wg):
	case <-time.After(2 * time.Second):
		t.Fatal("exec was not called within timeout")
	}

	want := "func widget() {\n  return 1\n}\n"
	if got != want {
		t.Fatalf("exec code = %q, want %q", got, want)
	}
}

func TestClunkOnEmptyBufferDoesNotExecute(t *testing.T) {
	called := false
	f := New(func(string) { called = true })
	fid := &ninep.Fid{ID: 1}
	_ = f.Open(context.Background(), fid, ninep.OpenReadWrite)

	if err := f.Clunk(context.Background(), fid); err != nil {
		t.Fatalf("clunk: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if called {
		t.Fatal("exec was called on an empty buffer")
	}
}

func TestClunkRemovesFidBufferEntry(t *testing.T) {
	f := New(func(string) {})
	fid := &ninep.Fid{ID: 7}
	_ = f.Open(context.Background(), fid, ninep.OpenReadWrite)
	_, _ = f.Write(context.Background(), fid, 0, []byte("y := 2\n"))
	_ = f.Clunk(context.Background(), fid)

	f.mu.Lock()
	_, exists := f.buffers[fid.ID]
	f.mu.Unlock()
	if exists {
		t.Fatal("buffer entry survived clunk")
	}
}

func waitDone(wg *sync.WaitGroup) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}
