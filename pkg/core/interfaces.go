// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package core defines the domain types shared by every Sabia component:
// capabilities, questions, answers and the health model.
package core

import "context"

// Capability is a named retrieval or utility function the orchestrator may
// consult. Invoke must be safe for concurrent use; it receives the raw input
// chosen by the orchestrator and returns free-form text.
type Capability interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, input string) (string, error)
}

// Orchestrator turns a question into an answer. It never fails: every error
// path is folded into a degraded Answer.
type Orchestrator interface {
	Answer(ctx context.Context, q Question) Answer
}

// CapabilityFunc adapts a plain function into a Capability.
type CapabilityFunc struct {
	CapName        string
	CapDescription string
	Fn             func(ctx context.Context, input string) (string, error)
}

// Name implements Capability.
func (c CapabilityFunc) Name() string { return c.CapName }

// Description implements Capability.
func (c CapabilityFunc) Description() string { return c.CapDescription }

// Invoke implements Capability.
func (c CapabilityFunc) Invoke(ctx context.Context, input string) (string, error) {
	return c.Fn(ctx, input)
}
