// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

// Package fusebridge mounts a ninep.Server's synthetic tree onto a real
// kernel mountpoint via go-fuse, so tools that expect an ordinary
// filesystem (a shell, an editor, an unmodified agent harness) can
// operate on the same fid-dispatched tree that a native 9P client
// would. Grounded on hdp-shelley-fuse/fuse/filesystem.go's Inode-based
// FS, generalized to drive every operation through Server.Walk/Open/
// Read/Write/Clunk/Stat instead of a bespoke per-node type per file.
package fusebridge

import (
	"context"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"rio9p/lib/ninep"
)

// entryTimeout controls how long the kernel caches a name→inode
// mapping. The synthetic tree's directory membership can change at
// runtime (terms/<id> comes and goes), so this stays short rather than
// matching hdp-shelley-fuse's longer per-node tiers.
const entryTimeout = 500 * time.Millisecond

// node is the single Inode type backing every path in the mounted
// tree. Its identity is its path (components from the root), resolved
// against the Server fresh on each operation — there is no cached
// Dir/File value, since the underlying node can be destroyed and
// recreated (Manager.Destroy/Create) between FUSE calls.
type node struct {
	fs.Inode
	server *ninep.Server
	path   []string
	log    *slog.Logger
}

var (
	_ fs.NodeLookuper  = (*node)(nil)
	_ fs.NodeReaddirer = (*node)(nil)
	_ fs.NodeGetattrer = (*node)(nil)
	_ fs.NodeOpener    = (*node)(nil)
)

func (n *node) child(name string) *node {
	path := make([]string, len(n.path)+1)
	copy(path, n.path)
	path[len(n.path)] = name
	return &node{server: n.server, path: path, log: n.log}
}

func (n *node) walk(ctx context.Context) (uint64, error) {
	return n.server.Walk(ctx, n.server.RootFid(), n.path)
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.child(name)
	fid, err := child.walk(ctx)
	if err != nil {
		return nil, syscall.ENOENT
	}
	defer n.server.Clunk(ctx, fid)

	stat, err := n.server.Stat(ctx, fid)
	if err != nil {
		return nil, syscall.EIO
	}

	out.SetEntryTimeout(entryTimeout)
	mode := uint32(fuse.S_IFREG)
	if stat.IsDir {
		mode = fuse.S_IFDIR
	}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: mode}), 0
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	fid, err := n.walk(ctx)
	if err != nil {
		return nil, syscall.ENOENT
	}
	defer n.server.Clunk(ctx, fid)

	if err := n.server.Open(ctx, fid, ninep.OpenRead); err != nil {
		return nil, syscall.EIO
	}

	var entries []fuse.DirEntry
	var offset int64
	for {
		chunk, err := n.server.Read(ctx, fid, offset, 64*1024)
		if err != nil {
			return nil, syscall.EIO
		}
		if len(chunk) == 0 {
			break
		}
		offset += int64(len(chunk))
		entries = append(entries, parseDirListing(chunk)...)
	}
	return fs.NewListDirStream(entries), 0
}

// parseDirListing splits Server.Read's newline-per-name directory
// output back into fuse.DirEntry values. The kernel does not need
// accurate per-entry mode bits for correctness — only Lookup's mode
// matters for open() to behave — so every entry is reported as a
// regular file; directories still resolve correctly through Lookup.
func parseDirListing(chunk []byte) []fuse.DirEntry {
	var entries []fuse.DirEntry
	start := 0
	for i, b := range chunk {
		if b == '\n' {
			if i > start {
				entries = append(entries, fuse.DirEntry{Name: string(chunk[start:i]), Mode: fuse.S_IFREG})
			}
			start = i + 1
		}
	}
	return entries
}

func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fid, err := n.walk(ctx)
	if err != nil {
		return syscall.ENOENT
	}
	defer n.server.Clunk(ctx, fid)

	stat, err := n.server.Stat(ctx, fid)
	if err != nil {
		return syscall.EIO
	}
	if stat.IsDir {
		out.Mode = fuse.S_IFDIR | 0755
	} else {
		out.Mode = fuse.S_IFREG | 0644
		out.Size = uint64(stat.Size)
	}
	out.SetTimeout(entryTimeout)
	return 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	fid, err := n.walk(ctx)
	if err != nil {
		return nil, 0, syscall.ENOENT
	}
	if err := n.server.Open(ctx, fid, modeFromFlags(flags)); err != nil {
		n.server.Clunk(ctx, fid)
		return nil, 0, syscall.EIO
	}
	return &handle{server: n.server, fid: fid}, fuse.FOPEN_DIRECT_IO, 0
}

func modeFromFlags(flags uint32) ninep.OpenMode {
	switch flags & 0x3 {
	case 0: // O_RDONLY
		return ninep.OpenRead
	case 1: // O_WRONLY
		return ninep.OpenWrite
	default:
		return ninep.OpenReadWrite
	}
}

// handle is the per-open fid, so concurrent opens of the same path get
// independent streaming state (each one is its own Server fid).
type handle struct {
	server *ninep.Server
	mu     sync.Mutex
	fid    uint64
}

var (
	_ fs.FileReader  = (*handle)(nil)
	_ fs.FileWriter  = (*handle)(nil)
	_ fs.FileFlusher = (*handle)(nil)
)

func (h *handle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := h.server.Read(ctx, h.fid, off, len(dest))
	if err != nil {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(data), 0
}

func (h *handle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := h.server.Write(ctx, h.fid, off, data)
	if err != nil {
		return 0, syscall.EIO
	}
	return uint32(n), 0
}

func (h *handle) Flush(ctx context.Context) syscall.Errno {
	return 0
}

func (h *handle) Release(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.server.Clunk(ctx, h.fid)
	return 0
}

var _ fs.FileReleaser = (*handle)(nil)

// Root builds the go-fuse root inode for server. Pass the result to
// fs.Mount alongside fs.Options.
func Root(server *ninep.Server, log *slog.Logger) fs.InodeEmbedder {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &node{server: server, log: log}
}
