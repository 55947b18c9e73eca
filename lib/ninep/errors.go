// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package ninep

import "errors"

// Error taxonomy for the synthetic tree, per the protocol-level error
// classes: recoverable errors become visible file content instead of
// protocol failures; these sentinels are reserved for genuinely
// invalid requests (bad path, missing verb, wrong mode).
var (
	// ErrPermission is returned for a write to a read-only file or a
	// read of a write-only file.
	ErrPermission = errors.New("permission")

	// ErrUsage is returned for a malformed ctl command, malformed
	// routes line, or unknown version command.
	ErrUsage = errors.New("usage")

	// ErrNotFound is returned when walking to a missing child or
	// goto-ing an unknown version.
	ErrNotFound = errors.New("not-found")

	// ErrIO is returned for PTY write failures and for file objects
	// whose weak backing reference no longer resolves.
	ErrIO = errors.New("io")

	// ErrCorruptState is returned when a state restore payload is
	// malformed or carries an unrecognized envelope version.
	ErrCorruptState = errors.New("corrupt-state")
)
