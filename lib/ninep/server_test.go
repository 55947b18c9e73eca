// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package ninep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// blockingFile blocks Read until unblock is closed, letting tests
// verify that a stuck reader does not stall other fids.
type blockingFile struct {
	name    string
	unblock chan struct{}
}

func (f *blockingFile) Name() string { return f.name }
func (f *blockingFile) Open(context.Context, *Fid, OpenMode) error { return nil }
func (f *blockingFile) Read(ctx context.Context, fid *Fid, offset int64, count int) ([]byte, error) {
	select {
	case <-f.unblock:
		return []byte("done"), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
func (f *blockingFile) Write(context.Context, *Fid, int64, []byte) (int, error) { return 0, ErrPermission }
func (f *blockingFile) Clunk(context.Context, *Fid) error                       { return nil }
func (f *blockingFile) SizeHint() int64                                         { return 0 }

// echoFile records writes and serves them back on read.
type echoFile struct {
	name string
	mu   sync.Mutex
	buf  []byte
}

func (f *echoFile) Name() string { return f.name }
func (f *echoFile) Open(context.Context, *Fid, OpenMode) error { return nil }
func (f *echoFile) Read(ctx context.Context, fid *Fid, offset int64, count int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= int64(len(f.buf)) {
		return nil, nil
	}
	end := offset + int64(count)
	if end > int64(len(f.buf)) {
		end = int64(len(f.buf))
	}
	return f.buf[offset:end], nil
}
func (f *echoFile) Write(ctx context.Context, fid *Fid, offset int64, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf = append(f.buf, data...)
	return len(data), nil
}
func (f *echoFile) Clunk(context.Context, *Fid) error { return nil }
func (f *echoFile) SizeHint() int64                   { return 0 }

func buildTree() *StaticDir {
	root := NewStaticDir("")
	root.AddChild(&echoFile{name: "ctl"})
	root.AddChild(&blockingFile{name: "slow", unblock: make(chan struct{})})
	sub := NewStaticDir("scene")
	sub.AddChild(&echoFile{name: "vars"})
	root.AddChild(sub)
	return root
}

func TestWalkOpenReadWriteClunk(t *testing.T) {
	server := NewServer(buildTree(), nil)
	ctx := context.Background()

	fid, err := server.Walk(ctx, server.RootFid(), []string{"ctl"})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if err := server.Open(ctx, fid, OpenReadWrite); err != nil {
		t.Fatalf("open: %v", err)
	}
	n, err := server.Write(ctx, fid, 0, []byte("refresh\n"))
	if err != nil || n != len("refresh\n") {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	data, err := server.Read(ctx, fid, 0, 4096)
	if err != nil || string(data) != "refresh\n" {
		t.Fatalf("read: %q, %v", data, err)
	}
	if err := server.Clunk(ctx, fid); err != nil {
		t.Fatalf("clunk: %v", err)
	}
	if _, err := server.Read(ctx, fid, 0, 4096); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found after clunk, got %v", err)
	}
}

func TestWalkMultiComponent(t *testing.T) {
	server := NewServer(buildTree(), nil)
	ctx := context.Background()
	fid, err := server.Walk(ctx, server.RootFid(), []string{"scene", "vars"})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	server.Open(ctx, fid, OpenRead)
	if data, err := server.Read(ctx, fid, 0, 100); err != nil || len(data) != 0 {
		t.Fatalf("expected empty read on fresh file, got %q, %v", data, err)
	}
}

func TestStatDistinguishesDirsAndFiles(t *testing.T) {
	server := NewServer(buildTree(), nil)
	ctx := context.Background()

	dirFid, _ := server.Walk(ctx, server.RootFid(), []string{"scene"})
	stat, err := server.Stat(ctx, dirFid)
	if err != nil || !stat.IsDir {
		t.Fatalf("Stat(scene) = %+v, %v; want IsDir", stat, err)
	}

	fileFid, _ := server.Walk(ctx, server.RootFid(), []string{"ctl"})
	stat, err = server.Stat(ctx, fileFid)
	if err != nil || stat.IsDir {
		t.Fatalf("Stat(ctl) = %+v, %v; want a file", stat, err)
	}
}

func TestWalkMissingChildFails(t *testing.T) {
	server := NewServer(buildTree(), nil)
	ctx := context.Background()
	if _, err := server.Walk(ctx, server.RootFid(), []string{"nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestBlockedReadDoesNotDelayOtherFid(t *testing.T) {
	tree := buildTree()
	server := NewServer(tree, nil)
	ctx := context.Background()

	slowFid, _ := server.Walk(ctx, server.RootFid(), []string{"slow"})
	ctlFid, _ := server.Walk(ctx, server.RootFid(), []string{"ctl"})
	server.Open(ctx, slowFid, OpenRead)
	server.Open(ctx, ctlFid, OpenReadWrite)

	blockedDone := make(chan struct{})
	go func() {
		server.Read(ctx, slowFid, 0, 10)
		close(blockedDone)
	}()

	select {
	case <-blockedDone:
		t.Fatal("blocking read returned before being unblocked")
	case <-time.After(30 * time.Millisecond):
	}

	// A write on a different fid must proceed immediately.
	writeDone := make(chan struct{})
	go func() {
		server.Write(ctx, ctlFid, 0, []byte("x"))
		close(writeDone)
	}()
	select {
	case <-writeDone:
	case <-time.After(time.Second):
		t.Fatal("write on unrelated fid was stalled by the blocked read")
	}

	// Clean up the blocked reader.
	slow := tree.children[1].(*blockingFile)
	close(slow.unblock)
	<-blockedDone
}
