// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

// rio9pd assembles the synthetic tree (root.Build) and mounts it on the
// host filesystem via FUSE at --mountpoint, which is required. It is
// the composition root: nothing
// downstream of it decides how the tree is wired, only how it is
// exposed to a client.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/hanwen/go-fuse/v2/fs"

	"rio9p/lib/fusebridge"
	"rio9p/root"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rio9pd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		mountpoint  string
		tmuxSocket  string
		tmuxConfig  string
		sandboxRoot string
		mountRoot   string
		logJSON     bool
		debug       bool
	)

	flagSet := pflag.NewFlagSet("rio9pd", pflag.ContinueOnError)
	flagSet.StringVar(&mountpoint, "mountpoint", "", "host directory to FUSE-mount the synthetic tree onto (required)")
	flagSet.StringVar(&tmuxSocket, "tmux-socket", "/run/rio9p/tmux.sock", "tmux server socket path for terminal sessions")
	flagSet.StringVar(&tmuxConfig, "tmux-config", "", "tmux config file for terminal sessions (empty for tmux defaults)")
	flagSet.StringVar(&sandboxRoot, "sandbox-root", "", "writable-path root enforced on terminal stdin commands (empty disables the sandbox)")
	flagSet.StringVar(&mountRoot, "route-mount-root", "/", "prefix used to expand relative route paths")
	flagSet.BoolVar(&logJSON, "log-json", false, "emit structured JSON logs instead of text")
	flagSet.BoolVar(&debug, "debug", false, "enable verbose (debug-level) logging")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if mountpoint == "" {
		printHelp(flagSet)
		return fmt.Errorf("rio9pd: --mountpoint is required")
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if logJSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	log := slog.New(handler)

	tree, err := root.Build(root.Config{
		Logger:      log,
		TmuxSocket:  tmuxSocket,
		TmuxConfig:  tmuxConfig,
		SandboxRoot: sandboxRoot,
		MountRoot:   mountRoot,
	})
	if err != nil {
		return fmt.Errorf("rio9pd: building tree: %w", err)
	}
	defer tree.Routes.StopAll()

	opts := &fs.Options{}
	opts.Debug = debug
	zero := time.Duration(0)
	opts.EntryTimeout = &zero
	opts.AttrTimeout = &zero
	opts.NegativeTimeout = &zero

	fuseServer, err := fs.Mount(mountpoint, fusebridge.Root(tree.Server, log), opts)
	if err != nil {
		return fmt.Errorf("rio9pd: mounting at %s: %w", mountpoint, err)
	}
	log.Info("mounted", "mountpoint", mountpoint, "tmux_socket", tmuxSocket)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		log.Info("shutting down")
		tree.Routes.StopAll()
		fuseServer.Unmount()
	}()

	fuseServer.Wait()
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `rio9pd — mounts the synthetic 9P filesystem core on a host directory.

Usage:
  rio9pd --mountpoint <dir> [flags]

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
