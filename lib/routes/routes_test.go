// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package routes

import (
	"context"
	"testing"
	"time"

	"rio9p/lib/ninep"
	"rio9p/lib/streamio"
)

// memFile is a minimal in-memory ninep.File used to exercise route
// draining without a full scene/terminal tree.
type memFile struct {
	name string
	buf  *streamio.Buffer
}

func newMemFile(name string, alwaysBlocking bool) *memFile {
	return &memFile{name: name, buf: streamio.New(alwaysBlocking)}
}

func (f *memFile) Name() string { return f.name }

func (f *memFile) Open(context.Context, *ninep.Fid, ninep.OpenMode) error { return nil }

func (f *memFile) Read(ctx context.Context, _ *ninep.Fid, offset int64, count int) ([]byte, error) {
	return f.buf.Read(ctx, offset, count)
}

func (f *memFile) Write(_ context.Context, _ *ninep.Fid, _ int64, data []byte) (int, error) {
	f.buf.Post(data)
	f.buf.MarkReady()
	return len(data), nil
}

func (f *memFile) Clunk(context.Context, *ninep.Fid) error { return nil }

func (f *memFile) SizeHint() int64 { return 0 }

func buildTestTree(source, dest *memFile) *ninep.Server {
	root := ninep.NewStaticDir("")
	root.AddChild(source)
	root.AddChild(dest)
	return ninep.NewServer(root, nil)
}

func TestAddRouteDrainsSourceIntoDestination(t *testing.T) {
	source := newMemFile("src", true)
	dest := newMemFile("dst", true)
	server := buildTestTree(source, dest)

	m := NewManager(server, "/", nil)
	m.AddRoute("/src", "/dst")
	defer m.StopAll()

	source.buf.Post([]byte("hello route"))
	source.buf.MarkReady()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, err := dest.buf.Read(ctx, 0, 4096)
	if err != nil {
		t.Fatalf("reading destination: %v", err)
	}
	if string(data) != "hello route" {
		t.Fatalf("destination content = %q, want %q", data, "hello route")
	}
}

func TestAddRouteReplacesExistingRouteForSameSource(t *testing.T) {
	source := newMemFile("src", true)
	dest1 := newMemFile("dst1", true)
	dest2 := newMemFile("dst2", true)

	root := ninep.NewStaticDir("")
	root.AddChild(source)
	root.AddChild(dest1)
	root.AddChild(dest2)
	server := ninep.NewServer(root, nil)

	m := NewManager(server, "/", nil)
	m.AddRoute("/src", "/dst1")
	m.AddRoute("/src", "/dst2")
	defer m.StopAll()

	statuses := m.ListRoutes()
	if len(statuses) != 1 {
		t.Fatalf("expected exactly one route for /src, got %d", len(statuses))
	}
	if statuses[0].Destination != "/dst2" {
		t.Fatalf("destination = %q, want /dst2", statuses[0].Destination)
	}
}

func TestRemoveRouteStopsDraining(t *testing.T) {
	source := newMemFile("src", true)
	dest := newMemFile("dst", true)
	server := buildTestTree(source, dest)

	m := NewManager(server, "/", nil)
	m.AddRoute("/src", "/dst")

	if !m.RemoveRoute("/src") {
		t.Fatal("RemoveRoute reported no route removed")
	}
	if len(m.ListRoutes()) != 0 {
		t.Fatal("route still listed after removal")
	}
}

func TestRoutesFileRendersNoRoutesWhenEmpty(t *testing.T) {
	source := newMemFile("src", true)
	dest := newMemFile("dst", true)
	server := buildTestTree(source, dest)
	m := NewManager(server, "/", nil)
	f := NewFile(m)

	data, err := f.Read(context.Background(), nil, 0, 4096)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "(no routes)\n" {
		t.Fatalf("Read = %q, want %q", data, "(no routes)\n")
	}
}

func TestRoutesFileWriteCreatesAndRemoves(t *testing.T) {
	source := newMemFile("src", true)
	dest := newMemFile("dst", true)
	server := buildTestTree(source, dest)
	m := NewManager(server, "/", nil)
	f := NewFile(m)
	defer m.StopAll()

	if _, err := f.Write(context.Background(), nil, 0, []byte("/src -> /dst\n")); err != nil {
		t.Fatalf("Write add: %v", err)
	}
	if len(m.ListRoutes()) != 1 {
		t.Fatal("expected one route after add")
	}

	if _, err := f.Write(context.Background(), nil, 0, []byte("-/src\n")); err != nil {
		t.Fatalf("Write remove: %v", err)
	}
	if len(m.ListRoutes()) != 0 {
		t.Fatal("expected no routes after remove")
	}
}

func TestRoutesFileWriteRejectsMalformedLine(t *testing.T) {
	source := newMemFile("src", true)
	dest := newMemFile("dst", true)
	server := buildTestTree(source, dest)
	m := NewManager(server, "/", nil)
	f := NewFile(m)

	if _, err := f.Write(context.Background(), nil, 0, []byte("garbage\n")); err == nil {
		t.Fatal("expected a usage error for a malformed line")
	}
}
