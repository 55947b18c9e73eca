// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package root

import (
	"context"
	"strings"
	"testing"

	"rio9p/lib/ninep"
)

func readFile(t *testing.T, server *ninep.Server, path ...string) string {
	t.Helper()
	ctx := context.Background()
	fid, err := server.Walk(ctx, server.RootFid(), path)
	if err != nil {
		t.Fatalf("walk %v: %v", path, err)
	}
	defer server.Clunk(ctx, fid)
	if err := server.Open(ctx, fid, ninep.OpenRead); err != nil {
		t.Fatalf("open %v: %v", path, err)
	}
	data, err := server.Read(ctx, fid, 0, 64*1024)
	if err != nil {
		t.Fatalf("read %v: %v", path, err)
	}
	return string(data)
}

func TestBuildAssemblesExpectedRootEntries(t *testing.T) {
	tree, err := Build(Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer tree.Routes.StopAll()

	listing := readFile(t, tree.Server)
	for _, name := range []string{"ctl", "screen", "CONTEXT", "routes", "terms", "scene"} {
		if !strings.Contains(listing, name+"\n") {
			t.Errorf("root listing %q missing %q", listing, name)
		}
	}
}

func TestBuildSceneSubtreeIsReachable(t *testing.T) {
	tree, err := Build(Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer tree.Routes.StopAll()

	listing := readFile(t, tree.Server, "scene")
	for _, name := range []string{"ctl", "parse", "stdout", "STDERR", "vars", "state", "version"} {
		if !strings.Contains(listing, name+"\n") {
			t.Errorf("scene listing %q missing %q", listing, name)
		}
	}
}

func TestBuildRootCtlReportsTerminalCount(t *testing.T) {
	tree, err := Build(Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer tree.Routes.StopAll()

	ctx := context.Background()
	fid, err := tree.Server.Walk(ctx, tree.Server.RootFid(), []string{"ctl"})
	if err != nil {
		t.Fatalf("walk ctl: %v", err)
	}
	defer tree.Server.Clunk(ctx, fid)
	if err := tree.Server.Open(ctx, fid, ninep.OpenReadWrite); err != nil {
		t.Fatalf("open ctl: %v", err)
	}
	data, err := tree.Server.Read(ctx, fid, 0, 4096)
	if err != nil {
		t.Fatalf("read ctl: %v", err)
	}
	if !strings.Contains(string(data), "terminal_count 0") {
		t.Fatalf("ctl status = %q, want terminal_count 0", data)
	}
}

func writeCtl(t *testing.T, server *ninep.Server, path []string, line string) error {
	t.Helper()
	ctx := context.Background()
	fid, err := server.Walk(ctx, server.RootFid(), path)
	if err != nil {
		t.Fatalf("walk %v: %v", path, err)
	}
	defer server.Clunk(ctx, fid)
	if err := server.Open(ctx, fid, ninep.OpenReadWrite); err != nil {
		t.Fatalf("open %v: %v", path, err)
	}
	_, err = server.Write(ctx, fid, 0, []byte(line))
	return err
}

func TestBuildRootCtlDefaultsBackgroundBeforeAnySet(t *testing.T) {
	tree, err := Build(Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer tree.Routes.StopAll()

	status := readFile(t, tree.Server, "ctl")
	if !strings.Contains(status, "background #FAFAFA") {
		t.Fatalf("ctl status = %q, want default background #FAFAFA", status)
	}
}

func TestBuildRootCtlAppliesSizeAndBackground(t *testing.T) {
	tree, err := Build(Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer tree.Routes.StopAll()

	if err := writeCtl(t, tree.Server, []string{"ctl"}, "size 80 24\n"); err != nil {
		t.Fatalf("size: %v", err)
	}
	if err := writeCtl(t, tree.Server, []string{"ctl"}, "background #112233\n"); err != nil {
		t.Fatalf("background: %v", err)
	}

	status := readFile(t, tree.Server, "ctl")
	for _, want := range []string{"width 80", "height 24", "background #112233"} {
		if !strings.Contains(status, want) {
			t.Errorf("ctl status = %q, want to contain %q", status, want)
		}
	}
}

func TestBuildRootCtlExportPostsSceneJSON(t *testing.T) {
	tree, err := Build(Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer tree.Routes.StopAll()

	if err := writeCtl(t, tree.Server, []string{"ctl"}, "export\n"); err != nil {
		t.Fatalf("export: %v", err)
	}
	out := readFile(t, tree.Server, "scene", "stdout")
	if strings.TrimSpace(out) == "" {
		t.Fatal("expected scene/stdout to contain exported JSON after root ctl export")
	}
}

func TestBuildRootCtlRejectsMalformedSize(t *testing.T) {
	tree, err := Build(Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer tree.Routes.StopAll()

	if err := writeCtl(t, tree.Server, []string{"ctl"}, "size not-a-number\n"); err == nil {
		t.Fatal("expected an error for a malformed size command")
	}
}

func TestBuildRootCtlRejectsDestroyOfUnknownTerminal(t *testing.T) {
	tree, err := Build(Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer tree.Routes.StopAll()

	ctx := context.Background()
	fid, err := tree.Server.Walk(ctx, tree.Server.RootFid(), []string{"ctl"})
	if err != nil {
		t.Fatalf("walk ctl: %v", err)
	}
	defer tree.Server.Clunk(ctx, fid)
	if err := tree.Server.Open(ctx, fid, ninep.OpenReadWrite); err != nil {
		t.Fatalf("open ctl: %v", err)
	}
	if _, err := tree.Server.Write(ctx, fid, 0, []byte("destroy_terminal missing\n")); err == nil {
		t.Fatal("expected an error destroying an unknown terminal")
	}
}
