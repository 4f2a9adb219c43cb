// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai provides an OpenAI API provider for Sabia. Any endpoint
// speaking the OpenAI chat protocol can be used through WithBaseURL.
package openai

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"

	"github.com/jllopis/sabia/pkg/llm"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel          = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// Provider implements llm.Provider for OpenAI API.
type Provider struct {
	client  *openai.Client
	model   string
	baseURL string
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

// WithBaseURL sets a custom base URL (for Azure OpenAI or proxies).
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// New creates a new OpenAI provider with an explicit API key.
// An empty key yields a provider whose calls fail with llm.ErrMissingCredential.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{model: DefaultModel}
	for _, opt := range opts {
		opt(p)
	}
	if apiKey == "" {
		return p
	}
	cfg := openai.DefaultConfig(apiKey)
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	p.client = openai.NewClientWithConfig(cfg)
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

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    convertMessages(req.Messages),
		Temperature: temperature(req.Temperature),
		Stop:        req.Stop,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, stderrors.New("openai: empty response")
	}

	return &llm.ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// temperature maps 0 to the smallest positive float32 so the value is not
// dropped by the omitempty request field and replaced by the API default.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func convertMessages(messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case llm.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case llm.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}

// wrapError surfaces the HTTP status of API failures as llm.StatusError.
func wrapError(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return fmt.Errorf("openai request failed: %w", &llm.StatusError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message})
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return fmt.Errorf("openai request failed: %w", &llm.StatusError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()})
	}
	return fmt.Errorf("openai request failed: %w", err)
}

var _ llm.Provider = (*Provider)(nil)
