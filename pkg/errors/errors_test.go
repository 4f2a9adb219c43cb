// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("network timeout")
	se := New(CodeTimeout, "search timed out", cause)

	if se.Code != CodeTimeout {
		t.Errorf("expected CodeTimeout, got %v", se.Code)
	}
	if se.Message != "search timed out" {
		t.Errorf("expected message 'search timed out', got %q", se.Message)
	}
	if !errors.Is(se, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
	if se.StatusCode != 408 {
		t.Errorf("expected status 408, got %d", se.StatusCode)
	}
}

func TestWithContextAndAttributes(t *testing.T) {
	se := New(CodeToolFailure, "capability failed", nil).
		WithContext("capability", "web_search").
		WithAttribute("sabia.capability.name", "web_search").
		WithRecoverable(true)

	if se.Context["capability"] != "web_search" {
		t.Errorf("expected context capability to be 'web_search'")
	}
	if se.Attributes["sabia.capability.name"] != "web_search" {
		t.Errorf("expected attribute to be set")
	}
	if se.RecoverableString() != "true" {
		t.Errorf("expected recoverable string 'true', got %q", se.RecoverableString())
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name string
		err  *SabiaError
		want string
	}{
		{"without cause", New(CodeNotFound, "capability not found", nil), "[NOT_FOUND] capability not found"},
		{"with cause", New(CodeLLMError, "completion failed", errors.New("quota")), "[LLM_ERROR] completion failed: quota"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetail(t *testing.T) {
	inner := New(CodeRateLimit, "quota exceeded", errors.New("429 too many requests"))
	outer := New(CodeToolFailure, "capability failed", inner)

	if got := outer.Detail(); got != "429 too many requests" {
		t.Errorf("Detail() = %q, want innermost cause", got)
	}
	if got := New(CodeParse, "missing action", nil).Detail(); got != "missing action" {
		t.Errorf("Detail() without cause = %q", got)
	}
}

func TestAsSabiaError(t *testing.T) {
	if AsSabiaError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}

	se := New(CodeParse, "bad output", nil)
	wrapped := fmt.Errorf("loop: %w", se)
	if got := AsSabiaError(wrapped); got != se {
		t.Errorf("expected wrapped SabiaError to be found")
	}

	plain := errors.New("boom")
	got := AsSabiaError(plain)
	if got.Code != CodeInternal || !errors.Is(got, plain) {
		t.Errorf("expected foreign error wrapped as internal, got %v", got)
	}
}

func TestCodeOfAndIs(t *testing.T) {
	inner := New(CodeRateLimit, "quota", nil)
	outer := New(CodeToolFailure, "capability failed", inner)

	if CodeOf(outer) != CodeToolFailure {
		t.Errorf("CodeOf() = %v, want %v", CodeOf(outer), CodeToolFailure)
	}
	if CodeOf(errors.New("x")) != CodeInternal {
		t.Errorf("expected foreign error to map to internal")
	}
	if CodeOf(nil) != "" {
		t.Errorf("expected empty code for nil")
	}
	if !Is(outer, CodeRateLimit) {
		t.Errorf("expected Is to find nested code")
	}
	if Is(outer, CodeTimeout) {
		t.Errorf("unexpected match for absent code")
	}
}

func TestRootCode(t *testing.T) {
	inner := New(CodeRateLimit, "quota", errors.New("429"))
	outer := New(CodeToolFailure, "capability failed", fmt.Errorf("search: %w", inner))

	if got := RootCode(outer); got != CodeRateLimit {
		t.Errorf("RootCode() = %v, want %v", got, CodeRateLimit)
	}
	if got := RootCode(New(CodeParse, "x", nil)); got != CodeParse {
		t.Errorf("RootCode() single = %v", got)
	}
	if got := RootCode(errors.New("x")); got != CodeInternal {
		t.Errorf("RootCode() foreign = %v", got)
	}
	if RootCode(nil) != "" {
		t.Errorf("expected empty code for nil")
	}
}

func TestMarshalJSON(t *testing.T) {
	se := New(CodeToolFailure, "capability failed", errors.New("dial tcp: refused")).
		WithContext("capability", "web_search").
		WithRecoverable(true)

	data, err := json.Marshal(se)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["code"] != "TOOL_FAILURE" {
		t.Errorf("expected code TOOL_FAILURE, got %v", decoded["code"])
	}
	if decoded["error"] != "dial tcp: refused" {
		t.Errorf("expected cause in payload, got %v", decoded["error"])
	}
	if decoded["recoverable"] != true {
		t.Errorf("expected recoverable true")
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeNotFound, 404},
		{CodeUnauthorized, 401},
		{CodeParse, 400},
		{CodeMaxIterations, 408},
		{CodeRateLimit, 429},
		{CodeProviderUnavailable, 503},
		{CodeNetwork, 502},
		{CodeLLMError, 500},
	}
	for _, tt := range tests {
		if got := New(tt.code, "x", nil).StatusCode; got != tt.want {
			t.Errorf("status for %s = %d, want %d", tt.code, got, tt.want)
		}
	}
}
