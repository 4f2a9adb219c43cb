// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jllopis/sabia/pkg/errors"
)

// RetryConfig controls retries with exponential backoff.
type RetryConfig struct {
	// MaxAttempts counts the first call; values below 1 mean 1.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Multiplier grows the delay between attempts. Zero means 2.
	Multiplier float64
	// Jitter spreads each delay by ±Jitter (0.1 is ±10%).
	Jitter float64

	// IsRecoverable decides whether err is worth another attempt.
	// Nil uses Recoverable.
	IsRecoverable func(error) bool
	// OnRetry, when set, is called before sleeping for the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig makes three attempts starting at 200ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		Jitter:        0.1,
		IsRecoverable: Recoverable,
	}
}

// WithMaxAttempts returns a copy with MaxAttempts set.
func (rc RetryConfig) WithMaxAttempts(n int) RetryConfig {
	rc.MaxAttempts = n
	return rc
}

// WithInitialDelay returns a copy with InitialDelay set.
func (rc RetryConfig) WithInitialDelay(d time.Duration) RetryConfig {
	rc.InitialDelay = d
	return rc
}

// WithIsRecoverable returns a copy with IsRecoverable set.
func (rc RetryConfig) WithIsRecoverable(fn func(error) bool) RetryConfig {
	rc.IsRecoverable = fn
	return rc
}

// WithOnRetry returns a copy with OnRetry set.
func (rc RetryConfig) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) RetryConfig {
	rc.OnRetry = fn
	return rc
}

// Do calls fn until it succeeds, fails with an unrecoverable error or runs
// out of attempts. The last error is returned. A context that ends while
// waiting yields TIMEOUT.
func (rc RetryConfig) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(rc.MaxAttempts, 1)
	recoverable := rc.IsRecoverable
	if recoverable == nil {
		recoverable = Recoverable
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= attempts || !recoverable(err) {
			return err
		}

		delay := rc.backoff(attempt)
		if rc.OnRetry != nil {
			rc.OnRetry(attempt, err, delay)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.New(errors.CodeTimeout, "context done during retry", ctx.Err()).
				WithContext("attempt", attempt).
				WithContext("max_attempts", attempts)
		case <-timer.C:
		}
	}
}

// Retry is Do for functions that return a value.
func Retry[T any](ctx context.Context, rc RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := rc.Do(ctx, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	return result, err
}

// backoff is the delay after the given failed attempt (1-based).
func (rc RetryConfig) backoff(attempt int) time.Duration {
	mult := rc.Multiplier
	if mult == 0 {
		mult = 2.0
	}
	delay := float64(rc.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if rc.MaxDelay > 0 {
		delay = math.Min(delay, float64(rc.MaxDelay))
	}
	if rc.Jitter > 0 {
		delay += delay * rc.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(delay, 0))
}

// Recoverable is the default retry predicate. Provider throttling, transport
// failures and timeouts are retried; rejected credentials, bad input and
// missing resources are not. Other Sabia errors follow their Recoverable
// flag, and foreign errors are retried unless the context was canceled.
func Recoverable(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return false
	}
	var se *errors.SabiaError
	if !stderrors.As(err, &se) {
		return true
	}
	switch errors.RootCode(err) {
	case errors.CodeRateLimit, errors.CodeNetwork, errors.CodeProviderUnavailable, errors.CodeTimeout:
		return true
	case errors.CodeUnauthorized, errors.CodeInvalidInput, errors.CodeNotFound:
		return false
	}
	return se.Recoverable
}
