// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"slices"
	"strings"
	"testing"

	"github.com/jllopis/sabia/pkg/llm"
)

// RequestAssertions checks a captured provider request.
type RequestAssertions struct {
	t   *testing.T
	req *llm.ChatRequest
}

// AssertRequest starts assertions on req.
func AssertRequest(t *testing.T, req *llm.ChatRequest) *RequestAssertions {
	t.Helper()
	if req == nil {
		t.Error("request is nil")
		req = &llm.ChatRequest{}
	}
	return &RequestAssertions{t: t, req: req}
}

// HasModel asserts the model name.
func (r *RequestAssertions) HasModel(model string) *RequestAssertions {
	r.t.Helper()
	if r.req.Model != model {
		r.t.Errorf("expected model %q, got %q", model, r.req.Model)
	}
	return r
}

// HasTemperature asserts the creativity scalar.
func (r *RequestAssertions) HasTemperature(temp float64) *RequestAssertions {
	r.t.Helper()
	if r.req.Temperature != temp {
		r.t.Errorf("expected temperature %v, got %v", temp, r.req.Temperature)
	}
	return r
}

// HasStop asserts that seq is among the stop sequences.
func (r *RequestAssertions) HasStop(seq string) *RequestAssertions {
	r.t.Helper()
	if !slices.Contains(r.req.Stop, seq) {
		r.t.Errorf("stop sequence %q not in %q", seq, r.req.Stop)
	}
	return r
}

// HasNoStop asserts that no stop sequence was sent.
func (r *RequestAssertions) HasNoStop() *RequestAssertions {
	r.t.Helper()
	if len(r.req.Stop) > 0 {
		r.t.Errorf("expected no stop sequences, got %q", r.req.Stop)
	}
	return r
}

// PromptContains asserts a user message containing each of parts.
func (r *RequestAssertions) PromptContains(parts ...string) *RequestAssertions {
	r.t.Helper()
	for _, part := range parts {
		found := false
		for _, msg := range r.req.Messages {
			if msg.Role == llm.RoleUser && strings.Contains(msg.Content, part) {
				found = true
				break
			}
		}
		if !found {
			r.t.Errorf("no user message containing %q", part)
		}
	}
	return r
}

// PromptOmits asserts that no user message contains any of parts.
func (r *RequestAssertions) PromptOmits(parts ...string) *RequestAssertions {
	r.t.Helper()
	for _, part := range parts {
		for _, msg := range r.req.Messages {
			if msg.Role == llm.RoleUser && strings.Contains(msg.Content, part) {
				r.t.Errorf("user message unexpectedly contains %q", part)
			}
		}
	}
	return r
}
