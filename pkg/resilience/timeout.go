// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience provides timeout, retry and circuit breaker patterns for Sabia.
package resilience

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jllopis/sabia/pkg/errors"
)

// TimeoutConfig controls timeout behavior.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the operation.
	// Zero disables the boundary.
	Duration time.Duration
}

// WithTimeout executes fn with a timeout boundary. fn receives the bounded
// context and should honour it.
// Returns errors.CodeTimeout if the deadline is exceeded.
func WithTimeout(ctx context.Context, config TimeoutConfig, fn func(ctx context.Context) error) error {
	_, err := WithTimeoutResult(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// WithTimeoutResult executes fn with a timeout boundary, returning both result and error.
// When the deadline fires first the zero value is returned.
func WithTimeoutResult[T any](ctx context.Context, config TimeoutConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if config.Duration <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		if stderrors.Is(ctx.Err(), context.Canceled) {
			return zero, errors.New(errors.CodeInternal, "operation canceled", ctx.Err())
		}
		return zero, errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("timeout", config.Duration.String()).
			WithRecoverable(true)
	case res := <-done:
		return res.value, res.err
	}
}
