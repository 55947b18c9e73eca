// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package fusebridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"

	"rio9p/lib/ninep"
)

// testFile is a fixed-content read-only file used to exercise the
// mount without pulling in any real scene/terminal machinery.
type testFile struct {
	name string
	data []byte
}

func (f *testFile) Name() string { return f.name }

func (f *testFile) Open(context.Context, *ninep.Fid, ninep.OpenMode) error { return nil }

func (f *testFile) Read(_ context.Context, _ *ninep.Fid, offset int64, count int) ([]byte, error) {
	if offset >= int64(len(f.data)) {
		return nil, nil
	}
	end := offset + int64(count)
	if end > int64(len(f.data)) {
		end = int64(len(f.data))
	}
	return f.data[offset:end], nil
}

func (f *testFile) Write(context.Context, *ninep.Fid, int64, []byte) (int, error) {
	return 0, ninep.ErrPermission
}

func (f *testFile) Clunk(context.Context, *ninep.Fid) error { return nil }

func (f *testFile) SizeHint() int64 { return int64(len(f.data)) }

func buildTestTree() *ninep.Server {
	root := ninep.NewStaticDir("")
	root.AddChild(&testFile{name: "greeting", data: []byte("hello\n")})
	sub := ninep.NewStaticDir("sub")
	sub.AddChild(&testFile{name: "nested", data: []byte("inner\n")})
	root.AddChild(sub)
	return ninep.NewServer(root, nil)
}

func mountTest(t *testing.T) string {
	t.Helper()
	server := buildTestTree()
	mountDir := t.TempDir()

	opts := &fs.Options{}
	zero := time.Duration(0)
	opts.EntryTimeout = &zero
	opts.AttrTimeout = &zero
	opts.NegativeTimeout = &zero

	srv, err := fs.Mount(mountDir, Root(server, nil), opts)
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	t.Cleanup(func() { srv.Unmount() })
	return mountDir
}

func TestMountedTreeListsRootEntries(t *testing.T) {
	mountDir := mountTest(t)
	entries, err := os.ReadDir(mountDir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	if !names["greeting"] || !names["sub"] {
		t.Fatalf("root listing = %v, want greeting and sub", names)
	}
}

func TestMountedTreeReadsFileContent(t *testing.T) {
	mountDir := mountTest(t)
	data, err := os.ReadFile(filepath.Join(mountDir, "greeting"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("content = %q, want %q", data, "hello\n")
	}
}

func TestMountedTreeReadsNestedFile(t *testing.T) {
	mountDir := mountTest(t)
	data, err := os.ReadFile(filepath.Join(mountDir, "sub", "nested"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "inner\n" {
		t.Fatalf("content = %q, want %q", data, "inner\n")
	}
}
