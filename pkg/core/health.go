// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	// HealthHealthy indicates the component is fully operational.
	HealthHealthy HealthStatus = "HEALTHY"

	// HealthDegraded indicates the component works with reduced capacity,
	// e.g. a provider running without credentials.
	HealthDegraded HealthStatus = "DEGRADED"

	// HealthUnhealthy indicates the component is not operational.
	HealthUnhealthy HealthStatus = "UNHEALTHY"
)

// HealthResult represents the result of a health check.
type HealthResult struct {
	Status    HealthStatus `json:"status"`
	Component string       `json:"component"`
	Message   string       `json:"message,omitempty"`
	LastCheck time.Time    `json:"last_check"`
	Error     error        `json:"-"`
}

// HealthChecker checks the health of a component.
type HealthChecker interface {
	// Check returns the current health status of the component.
	// The context can be used to implement timeouts.
	Check(ctx context.Context) HealthResult
}

// HealthCheckProvider provides health check results for multiple components.
type HealthCheckProvider interface {
	RegisterChecker(name string, checker HealthChecker)
	CheckAll(ctx context.Context) ([]HealthResult, HealthStatus)
	Check(ctx context.Context, name string) (HealthResult, error)
}

// Worst folds statuses into the overall status: any unhealthy component makes
// the whole unhealthy, otherwise any degraded one makes it degraded.
func Worst(statuses ...HealthStatus) HealthStatus {
	overall := HealthHealthy
	for _, s := range statuses {
		switch s {
		case HealthUnhealthy:
			return HealthUnhealthy
		case HealthDegraded:
			overall = HealthDegraded
		}
	}
	return overall
}
