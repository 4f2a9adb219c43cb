// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package gemini provides a Google Gemini API provider for Sabia.
package gemini

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/jllopis/sabia/pkg/llm"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// DefaultModel is the hosted model the service was tuned against.
	DefaultModel = "gemini-1.5-flash-latest"
	// DefaultEmbeddingModel is used by Embedder when none is configured.
	DefaultEmbeddingModel = "text-embedding-004"
)

// Provider implements llm.Provider for Google Gemini API.
type Provider struct {
	client *genai.Client
	model  string
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

// New creates a new Gemini provider with an explicit API key.
// An empty key yields a provider whose calls fail with llm.ErrMissingCredential.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	p := &Provider{model: DefaultModel}
	for _, opt := range opts {
		opt(p)
	}
	if apiKey == "" {
		return p, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if p.client == nil {
		return nil, llm.ErrMissingCredential
	}
	name := req.Model
	if name == "" {
		name = p.model
	}

	model := p.client.GenerativeModel(name)
	model.SetTemperature(float32(req.Temperature))
	if len(req.Stop) > 0 {
		model.StopSequences = req.Stop
	}

	history, system, last := convertMessages(req.Messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := model.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return nil, wrapError(err)
	}

	return convertResponse(resp)
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// convertMessages splits messages into chat history, system instruction and
// the final user turn.
func convertMessages(messages []llm.Message) ([]*genai.Content, string, string) {
	var system string
	history := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			system = msg.Content
		case llm.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}

	var last string
	if n := len(history); n > 0 && history[n-1].Role == "user" {
		last = string(history[n-1].Parts[0].(genai.Text))
		history = history[:n-1]
	}
	return history, system, last
}

func convertResponse(resp *genai.GenerateContentResponse) (*llm.ChatResponse, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, stderrors.New("gemini: empty response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	out := &llm.ChatResponse{Content: b.String()}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// wrapError surfaces the HTTP status of API failures as llm.StatusError.
func wrapError(err error) error {
	var gerr *googleapi.Error
	if stderrors.As(err, &gerr) {
		return fmt.Errorf("gemini generate content failed: %w", &llm.StatusError{Provider: "gemini", StatusCode: gerr.Code, Message: gerr.Message})
	}
	var coded interface{ HTTPCode() int }
	if stderrors.As(err, &coded) && coded.HTTPCode() > 0 {
		return fmt.Errorf("gemini generate content failed: %w", &llm.StatusError{Provider: "gemini", StatusCode: coded.HTTPCode(), Message: err.Error()})
	}
	return fmt.Errorf("gemini generate content failed: %w", err)
}

var _ llm.Provider = (*Provider)(nil)
