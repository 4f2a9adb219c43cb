// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package openai

import (
	"context"
	stderrors "errors"

	"github.com/jllopis/sabia/pkg/llm"
	openai "github.com/sashabaranov/go-openai"
)

// Embedder converts text to vectors with the OpenAI embeddings endpoint.
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
	resp, err := e.provider.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Data) == 0 {
		return nil, stderrors.New("openai: empty embedding")
	}
	return resp.Data[0].Embedding, nil
}
