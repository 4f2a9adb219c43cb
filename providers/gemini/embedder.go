// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package gemini

import (
	"context"
	stderrors "errors"

	"github.com/google/generative-ai-go/genai"
	"github.com/jllopis/sabia/pkg/llm"
)

// Embedder converts text to vectors with a Gemini embedding model.
type Embedder struct {
	provider *Provider
	model    string
}

// NewEmbedder creates an embedder sharing the provider's client.
func NewEmbedder(p *Provider, model string) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{provider: p, model: model}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed converts a text string into a vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.provider == nil || e.provider.client == nil {
		return nil, llm.ErrMissingCredential
	}
	res, err := e.provider.client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, wrapError(err)
	}
	if res.Embedding == nil {
		return nil, stderrors.New("gemini: empty embedding")
	}
	return res.Embedding.Values, nil
}
