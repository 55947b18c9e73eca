// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package ctlfile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"rio9p/lib/ninep"
)

func TestWriteDispatchesVerb(t *testing.T) {
	var got string
	f := New("ctl", map[string]VerbFunc{
		"background": func(_ context.Context, arg string) error {
			got = arg
			return nil
		},
	}, nil)

	n, err := f.Write(context.Background(), nil, 0, []byte("background #112233\n"))
	if err != nil || n != len("background #112233\n") {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	if got != "#112233" {
		t.Fatalf("arg = %q", got)
	}
}

func TestUnknownVerbIsUsageError(t *testing.T) {
	f := New("ctl", map[string]VerbFunc{}, nil)
	_, err := f.Write(context.Background(), nil, 0, []byte("bogus\n"))
	if !errors.Is(err, ninep.ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestReadReturnsStatusBlock(t *testing.T) {
	f := New("ctl", nil, func(context.Context) []StatusLine {
		return []StatusLine{{"width", "800"}, {"height", "600"}}
	})
	data, err := f.Read(context.Background(), nil, 0, 4096)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "width 800\n") || !strings.Contains(string(data), "height 600\n") {
		t.Fatalf("unexpected status: %q", data)
	}
}
