// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"context"
	"testing"
)

func TestManagerCreateAddsChildToDir(t *testing.T) {
	server := newTestServer(t)
	m := NewManager(server, nil, nil, nil, nil, nil)

	id, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Destroy(id)

	if _, ok := m.Dir().Child(id); !ok {
		t.Fatalf("terms/ has no child named %q", id)
	}
	if _, ok := m.Terminal(id); !ok {
		t.Fatal("Terminal lookup failed after Create")
	}
}

func TestManagerDestroyRemovesChildFromDir(t *testing.T) {
	server := newTestServer(t)
	m := NewManager(server, nil, nil, nil, nil, nil)

	id, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.Destroy(id); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if _, ok := m.Dir().Child(id); ok {
		t.Fatal("terms/ still lists the destroyed terminal")
	}
	if _, ok := m.Terminal(id); ok {
		t.Fatal("Terminal lookup succeeded after Destroy")
	}
}

func TestManagerDestroyUnknownIDFails(t *testing.T) {
	server := newTestServer(t)
	m := NewManager(server, nil, nil, nil, nil, nil)

	if err := m.Destroy("does-not-exist"); err == nil {
		t.Fatal("Destroy on unknown ID should fail")
	}
}
