// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator implements the two answering policies: a fixed
// retrieval pipeline and a bounded Thought/Action/Observation reasoner.
// Both fold every failure into a degraded core.Answer; neither returns an
// error.
package orchestrator

import (
	"context"

	"github.com/jllopis/sabia/pkg/core"
)

// Capabilities is the part of the capability registry the orchestrators use.
type Capabilities interface {
	Names() []string
	Describe() string
	Lookup(name string) (core.Capability, error)
	Invoke(ctx context.Context, name, input string) (core.ContextFragment, error)
}

// Policy names used in metrics and spans.
const (
	PolicyPipeline = "pipeline"
	PolicyReasoner = "reasoner"
)
