// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package anthropic provides an Anthropic Claude API provider for Sabia.
package anthropic

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jllopis/sabia/pkg/llm"
)

const DefaultModel = "claude-3-5-haiku-latest"

// Provider implements llm.Provider for Anthropic Claude API.
type Provider struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	baseURL   string
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithMaxTokens sets the maximum tokens for responses.
func WithMaxTokens(tokens int64) Option {
	return func(p *Provider) {
		p.maxTokens = tokens
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// New creates a new Anthropic provider with an explicit API key.
// An empty key yields a provider whose calls fail with llm.ErrMissingCredential.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		model:     DefaultModel,
		maxTokens: 1024,
	}
	for _, opt := range opts {
		opt(p)
	}
	if apiKey == "" {
		return p
	}

	// Answers are synthesized exactly once per request.
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.baseURL))
	}
	client := anthropic.NewClient(clientOpts...)
	p.client = &client
	return p
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if p.client == nil {
		return nil, llm.ErrMissingCredential
	}
	model := req.Model
	if model == "" {
		model = p.model
	}

	var systemPrompt string
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			systemPrompt = msg.Content
		case llm.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   p.maxTokens,
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if stderrors.As(err, &apiErr) {
			return nil, fmt.Errorf("anthropic message failed: %w", &llm.StatusError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Message: apiErr.Error()})
		}
		return nil, fmt.Errorf("anthropic message failed: %w", err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}

	return &llm.ChatResponse{
		Content: b.String(),
		Usage: llm.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}, nil
}

var _ llm.Provider = (*Provider)(nil)
