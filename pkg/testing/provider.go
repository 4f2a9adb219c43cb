// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jllopis/sabia/pkg/llm"
)

// ScenarioProvider is a scripted llm.Provider that records every request.
type ScenarioProvider struct {
	mu           sync.Mutex
	responses    []ScriptedResponse
	currentIndex int
	requests     []llm.ChatRequest
	defaultError error
	onChat       func(req llm.ChatRequest) (*llm.ChatResponse, error)
}

// ScriptedResponse defines one reply of the scenario provider.
type ScriptedResponse struct {
	Content string
	Error   error
	Usage   llm.Usage
	// Condition skips this reply unless it returns true for the request.
	Condition func(req llm.ChatRequest) bool
}

// NewScenarioProvider creates an empty scenario provider.
func NewScenarioProvider() *ScenarioProvider {
	return &ScenarioProvider{}
}

// AddResponse queues a text reply.
func (p *ScenarioProvider) AddResponse(content string) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{Content: content})
}

// AddStep queues a Thought/Action/Action Input reply for the reasoner.
func (p *ScenarioProvider) AddStep(thought, action, input string) *ScenarioProvider {
	return p.AddResponse(fmt.Sprintf("Thought: %s\nAction: %s\nAction Input: %s", thought, action, input))
}

// AddFinal queues a Thought/Final Answer reply for the reasoner.
func (p *ScenarioProvider) AddFinal(thought, answer string) *ScenarioProvider {
	return p.AddResponse(fmt.Sprintf("Thought: %s\nFinal Answer: %s", thought, answer))
}

// AddErrorResponse queues a failure.
func (p *ScenarioProvider) AddErrorResponse(err error) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{Error: err})
}

// AddScriptedResponse queues a fully configured reply.
func (p *ScenarioProvider) AddScriptedResponse(resp ScriptedResponse) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, resp)
	return p
}

// WithDefaultError sets the error returned once the script is exhausted.
func (p *ScenarioProvider) WithDefaultError(err error) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultError = err
	return p
}

// WithChatFunc replaces the script with fn.
func (p *ScenarioProvider) WithChatFunc(fn func(req llm.ChatRequest) (*llm.ChatResponse, error)) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChat = fn
	return p
}

// Chat implements llm.Provider.
func (p *ScenarioProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.onChat != nil {
		return p.onChat(req)
	}

	for p.currentIndex < len(p.responses) {
		resp := p.responses[p.currentIndex]
		p.currentIndex++
		if resp.Condition != nil && !resp.Condition(req) {
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return &llm.ChatResponse{Content: resp.Content, Usage: resp.Usage}, nil
	}

	if p.defaultError != nil {
		return nil, p.defaultError
	}
	return nil, fmt.Errorf("no more scripted responses (call %d)", len(p.requests))
}

// Requests returns all captured requests.
func (p *ScenarioProvider) Requests() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.ChatRequest(nil), p.requests...)
}

// Prompts returns the user prompt of every captured request.
func (p *ScenarioProvider) Prompts() []string {
	reqs := p.Requests()
	out := make([]string, 0, len(reqs))
	for _, req := range reqs {
		var parts []string
		for _, m := range req.Messages {
			if m.Role == llm.RoleUser {
				parts = append(parts, m.Content)
			}
		}
		out = append(out, strings.Join(parts, "\n"))
	}
	return out
}

// LastRequest returns the most recent request, or nil.
func (p *ScenarioProvider) LastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	req := p.requests[len(p.requests)-1]
	return &req
}

// CallCount returns the number of Chat calls.
func (p *ScenarioProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Reset rewinds the script and clears captured requests.
func (p *ScenarioProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentIndex = 0
	p.requests = nil
}
