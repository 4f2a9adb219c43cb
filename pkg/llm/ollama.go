// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaURL is where a local Ollama server listens.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaProvider talks to an Ollama server's native API. It serves chat
// completions and, through Embed, the embeddings of the knowledge index.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama returns a provider for baseURL. An empty URL means the local
// default.
func NewOllama(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Model returns the default model.
func (p *OllamaProvider) Model() string { return p.model }

type ollamaOptions struct {
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	EvalCount       int     `json:"eval_count"`
	PromptEvalCount int     `json:"prompt_eval_count"`
}

// Chat implements Provider with a single non-streaming /api/chat call.
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	in := ollamaRequest{
		Model:    cmp.Or(req.Model, p.model),
		Messages: req.Messages,
		Options:  ollamaOptions{Temperature: req.Temperature, Stop: req.Stop},
	}
	var out ollamaResponse
	if err := p.post(ctx, "/api/chat", in, &out); err != nil {
		return nil, err
	}
	return &ChatResponse{
		Content: out.Message.Content,
		Usage: Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one vector per text from /api/embed.
func (p *OllamaProvider) Embed(ctx context.Context, model string, texts ...string) ([][]float32, error) {
	model = cmp.Or(model, p.model)
	var out ollamaEmbedResponse
	if err := p.post(ctx, "/api/embed", ollamaEmbedRequest{Model: model, Input: texts}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts with model %s", len(out.Embeddings), len(texts), model)
	}
	return out.Embeddings, nil
}

// post sends in as JSON and decodes the reply into out. Non-200 replies
// become StatusError so ClassifyError can tell quota from outage.
func (p *OllamaProvider) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Provider: "ollama", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ollama %s response: %w", path, err)
	}
	return nil
}

var _ Provider = (*OllamaProvider)(nil)
