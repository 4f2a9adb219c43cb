// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"context"

	"github.com/jllopis/sabia/pkg/llm"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "nomic-embed-text"

// Embedder implements knowledge.Embedder on top of llm.OllamaProvider.
type Embedder struct {
	client *llm.OllamaProvider
	model  string
}

// NewEmbedder returns an embedder for the server at baseURL.
func NewEmbedder(baseURL, model string) *Embedder {
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{client: llm.NewOllama(baseURL, model), model: model}
}

// Model names the embedding space for the embedding cache.
func (e *Embedder) Model() string { return "ollama/" + e.model }

// Embed converts text into a vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
