// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
)

// CircuitBreakerState is the position of a circuit breaker.
type CircuitBreakerState string

const (
	// StateClosed lets every call through.
	StateClosed CircuitBreakerState = "closed"
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen CircuitBreakerState = "open"
	// StateHalfOpen lets probe calls through after the cooldown.
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit. Default 5.
	FailureThreshold int
	// SuccessThreshold half-open successes close it again. Default 1.
	SuccessThreshold int
	// Timeout is the cooldown before a half-open probe. Default 30s.
	Timeout time.Duration
	// Name identifies the breaker in errors, logs and health checks.
	Name string

	// ShouldTrip decides whether an error counts as a failure.
	// Nil counts every error.
	ShouldTrip func(error) bool
	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(name string, from, to CircuitBreakerState)
}

// CircuitBreaker fails fast while an upstream keeps failing.
// The lock is never held while the protected call runs.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu        sync.Mutex
	state     CircuitBreakerState
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Name == "" {
		config.Name = "circuit_breaker"
	}
	return &CircuitBreaker{config: config, state: StateClosed, now: time.Now}
}

// Call runs fn unless the circuit is open, in which case it returns
// PROVIDER_UNAVAILABLE without calling fn.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allow() {
		return errors.New(errors.CodeProviderUnavailable, "circuit breaker open", nil).
			WithContext("breaker", cb.config.Name).
			WithRecoverable(true)
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	from := cb.state
	if from == StateOpen && cb.now().Sub(cb.openedAt) > cb.config.Timeout {
		cb.moveTo(StateHalfOpen)
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return to != StateOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	from := cb.state
	if err != nil && (cb.config.ShouldTrip == nil || cb.config.ShouldTrip(err)) {
		cb.failures++
		if from == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			cb.moveTo(StateOpen)
			cb.openedAt = cb.now()
		}
	} else {
		switch from {
		case StateHalfOpen:
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.moveTo(StateClosed)
			}
		case StateClosed:
			cb.failures = 0
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// moveTo changes state and clears the counters. Callers hold mu.
func (cb *CircuitBreaker) moveTo(s CircuitBreakerState) {
	cb.state = s
	cb.failures = 0
	cb.successes = 0
}

func (cb *CircuitBreaker) notify(from, to CircuitBreakerState) {
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the configured breaker name.
func (cb *CircuitBreaker) Name() string { return cb.config.Name }

// Check implements core.HealthChecker. A tripped breaker degrades readiness
// without failing it: answers are still served, only without this upstream.
func (cb *CircuitBreaker) Check(context.Context) core.HealthResult {
	switch state := cb.State(); state {
	case StateClosed:
		return core.HealthResult{Component: cb.config.Name, Status: core.HealthHealthy, Message: string(state)}
	default:
		return core.HealthResult{
			Component: cb.config.Name,
			Status:    core.HealthDegraded,
			Message:   fmt.Sprintf("circuit %s", state),
		}
	}
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.moveTo(StateClosed)
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}
