// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"testing"
	"time"
)

func TestWorst(t *testing.T) {
	tests := []struct {
		name     string
		statuses []HealthStatus
		want     HealthStatus
	}{
		{"empty", nil, HealthHealthy},
		{"all healthy", []HealthStatus{HealthHealthy, HealthHealthy}, HealthHealthy},
		{"one degraded", []HealthStatus{HealthHealthy, HealthDegraded}, HealthDegraded},
		{"unhealthy wins", []HealthStatus{HealthDegraded, HealthUnhealthy, HealthHealthy}, HealthUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Worst(tt.statuses...); got != tt.want {
				t.Errorf("Worst() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFunctionHealthChecker(t *testing.T) {
	checker := NewFunctionHealthChecker(func(ctx context.Context) HealthResult {
		return HealthResult{Status: HealthHealthy, Message: "ok"}
	})

	result := checker.Check(context.Background())
	if result.Status != HealthHealthy {
		t.Errorf("expected Healthy")
	}
	if result.LastCheck.IsZero() {
		t.Errorf("expected LastCheck to be set by wrapper")
	}
}

func TestCheckAllSortedAndOverall(t *testing.T) {
	provider := NewDefaultHealthCheckProvider(-1)
	provider.RegisterChecker("web_search", NewSimpleHealthChecker(HealthUnhealthy, "no provider"))
	provider.RegisterChecker("current_time", NewSimpleHealthChecker(HealthHealthy, "ok"))
	provider.RegisterChecker("llm", NewSimpleHealthChecker(HealthDegraded, "no credential"))

	results, overall := provider.CheckAll(context.Background())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []string{"current_time", "llm", "web_search"}
	for i, name := range want {
		if results[i].Component != name {
			t.Errorf("result %d component = %q, want %q", i, results[i].Component, name)
		}
	}
	if overall != HealthUnhealthy {
		t.Errorf("expected Unhealthy overall, got %v", overall)
	}
}

func TestCheckCachesResults(t *testing.T) {
	provider := NewDefaultHealthCheckProvider(time.Minute)
	calls := 0
	provider.RegisterChecker("llm", NewFunctionHealthChecker(func(ctx context.Context) HealthResult {
		calls++
		return HealthResult{Status: HealthHealthy}
	}))

	for i := 0; i < 3; i++ {
		if _, err := provider.Check(context.Background(), "llm"); err != nil {
			t.Fatalf("Check failed: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("expected cached result after first call, got %d calls", calls)
	}

	base := time.Now()
	provider.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := provider.Check(context.Background(), "llm"); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected refresh after TTL, got %d calls", calls)
	}
}

func TestCheckSpecificNotFound(t *testing.T) {
	provider := NewDefaultHealthCheckProvider(10 * time.Second)

	if _, err := provider.Check(context.Background(), "nonexistent"); err == nil {
		t.Errorf("expected error for nonexistent checker")
	}
}

func TestCheckWithContext(t *testing.T) {
	provider := NewDefaultHealthCheckProvider(-1)
	provider.RegisterChecker("slow_service", NewFunctionHealthChecker(func(ctx context.Context) HealthResult {
		select {
		case <-ctx.Done():
			return HealthResult{Status: HealthUnhealthy, Message: "context timeout"}
		case <-time.After(100 * time.Millisecond):
			return HealthResult{Status: HealthHealthy, Message: "ok"}
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, _ := provider.Check(ctx, "slow_service")
	if result.Status != HealthUnhealthy {
		t.Errorf("expected Unhealthy due to timeout")
	}
}
