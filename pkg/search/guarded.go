// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/llm"
	"github.com/jllopis/sabia/pkg/resilience"
)

// Guarded fails fast while the provider keeps failing.
type Guarded struct {
	next    Searcher
	breaker *resilience.CircuitBreaker
}

// NewGuarded wraps next with a circuit breaker. Only upstream faults trip
// it: quota, transport and server errors.
func NewGuarded(next Searcher, cfg resilience.CircuitBreakerConfig) *Guarded {
	if cfg.Name == "" {
		cfg.Name = "search:" + next.Name()
	}
	cfg.ShouldTrip = tripsBreaker
	return &Guarded{next: next, breaker: resilience.NewCircuitBreaker(cfg)}
}

func (g *Guarded) Name() string { return g.next.Name() }

// State exposes the breaker state for readiness reporting.
func (g *Guarded) State() resilience.CircuitBreakerState { return g.breaker.State() }

// Check implements core.HealthChecker through the breaker.
func (g *Guarded) Check(ctx context.Context) core.HealthResult { return g.breaker.Check(ctx) }

// Search implements Searcher.
func (g *Guarded) Search(ctx context.Context, query string) ([]Result, error) {
	var results []Result
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		results, err = g.next.Search(ctx, query)
		return err
	})
	return results, err
}

func tripsBreaker(err error) bool {
	switch llm.ClassifyError(err, "search", errors.CodeToolFailure).Code {
	case errors.CodeRateLimit, errors.CodeNetwork, errors.CodeProviderUnavailable, errors.CodeTimeout:
		return true
	default:
		return false
	}
}
