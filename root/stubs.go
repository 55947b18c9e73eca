// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package root

import "context"

// discardAgentInput and discardDisplay satisfy terminal.AgentInputWriter
// and terminal.DisplayWriter when no LLM filesystem mount or rendering
// surface is wired up. Both collaborators live outside this module's
// scope (SPEC_FULL.md §0); a daemon that wants them supplies its own.
type discardAgentInput struct{}

func (discardAgentInput) WriteInput(context.Context, string, []byte) error { return nil }

type discardDisplay struct{}

func (discardDisplay) WriteDisplay(context.Context, []byte) error { return nil }

// DiscardAgentInput and DiscardDisplay are the zero-collaborator
// defaults used when Config leaves AgentInput/TermDisplay nil.
var (
	DiscardAgentInput discardAgentInput
	DiscardDisplay    discardDisplay
)
