// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned by ScriptedMockProvider once every
// scripted reply has been consumed.
var ErrScriptExhausted = errors.New("scripted mock: no more responses available")

// mockUsage is the fixed token accounting reported by the test providers.
var mockUsage = Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}

// MockProvider answers every request with Response, Err or ChatFunc.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Chat implements Provider.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	switch {
	case m.ChatFunc != nil:
		return m.ChatFunc(ctx, req)
	case m.Err != nil:
		return nil, m.Err
	}
	return &ChatResponse{Content: m.Response, Usage: mockUsage}, nil
}

// FailingMockProvider fails every request, like a provider that is down.
type FailingMockProvider struct {
	Err error
}

// Chat implements Provider.
func (f *FailingMockProvider) Chat(context.Context, ChatRequest) (*ChatResponse, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return nil, errors.New("mock provider unavailable")
}

// ScriptedMockProvider replays Responses in order, one per call, which
// drives the reasoning loop turn by turn.
type ScriptedMockProvider struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	// Prompts holds the last message of every request.
	Prompts   []string
	CallCount int
}

// NewScriptedMockProvider returns a provider that replays responses.
func NewScriptedMockProvider(responses ...string) *ScriptedMockProvider {
	return &ScriptedMockProvider{Responses: responses}
}

// Chat implements Provider.
func (s *ScriptedMockProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount++
	if n := len(req.Messages); n > 0 {
		s.Prompts = append(s.Prompts, req.Messages[n-1].Content)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Responses) == 0 {
		return nil, ErrScriptExhausted
	}
	next := s.Responses[0]
	s.Responses = s.Responses[1:]
	return &ChatResponse{Content: next, Usage: mockUsage}, nil
}

// AddResponse appends a reply to the script.
func (s *ScriptedMockProvider) AddResponse(response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, response)
}

// Calls returns the number of requests served so far.
func (s *ScriptedMockProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCount
}
