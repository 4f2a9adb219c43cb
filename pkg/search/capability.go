// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/llm"
)

// Name is the registry name of the web search capability.
const Name = "web_search"

// Capability exposes a Searcher to the orchestrators.
type Capability struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewCapability wraps searcher.
func NewCapability(searcher Searcher, logger *slog.Logger) *Capability {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capability{searcher: searcher, logger: logger}
}

func (c *Capability) Name() string { return Name }

func (c *Capability) Description() string {
	return "Searches the web for current events, facts and anything that may have changed recently. Input is a search query."
}

// Provider returns the underlying provider name.
func (c *Capability) Provider() string { return c.searcher.Name() }

// Invoke runs the query and returns formatted snippets. Provider errors are
// classified so quota, credential and transport faults stay distinguishable.
func (c *Capability) Invoke(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", errors.New(errors.CodeInvalidInput, "empty search query", nil)
	}

	results, err := c.searcher.Search(ctx, query)
	if err != nil {
		se := llm.ClassifyError(err, "search", errors.CodeToolFailure).
			WithContext("provider", c.searcher.Name())
		c.logger.WarnContext(ctx, "search failed",
			slog.String("provider", c.searcher.Name()),
			slog.String("code", string(se.Code)),
			slog.String("error", err.Error()),
		)
		return "", se
	}

	c.logger.DebugContext(ctx, "search completed",
		slog.String("provider", c.searcher.Name()),
		slog.Int("results", len(results)),
	)
	return Format(results), nil
}

// Check implements core.HealthChecker. A searcher without its own check is
// healthy once built.
func (c *Capability) Check(ctx context.Context) core.HealthResult {
	if hc, ok := c.searcher.(core.HealthChecker); ok {
		return hc.Check(ctx)
	}
	return core.HealthResult{Status: core.HealthHealthy, Message: c.searcher.Name()}
}

var (
	_ core.Capability    = (*Capability)(nil)
	_ core.HealthChecker = (*Capability)(nil)
)
