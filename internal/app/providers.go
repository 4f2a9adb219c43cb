// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"io"

	"github.com/jllopis/sabia/pkg/config"
	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/knowledge"
	kollama "github.com/jllopis/sabia/pkg/knowledge/ollama"
	"github.com/jllopis/sabia/pkg/knowledge/qdrant"
	"github.com/jllopis/sabia/pkg/llm"
	"github.com/jllopis/sabia/providers/anthropic"
	"github.com/jllopis/sabia/providers/gemini"
	"github.com/jllopis/sabia/providers/openai"
)

// DefaultOllamaModel is used when llm.model is empty for the ollama provider.
const DefaultOllamaModel = "llama3.1"

// NewProvider builds the text-generation provider named in cfg. A missing
// credential does not fail: the provider is built and its calls fail with
// UNAUTHORIZED, which degrades answers.
func NewProvider(ctx context.Context, cfg *config.Config) (llm.Provider, io.Closer, error) {
	c := cfg.LLM
	switch c.Provider {
	case "gemini":
		p, err := gemini.New(ctx, c.APIKey, gemini.WithModel(c.Model))
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	case "openai":
		opts := []openai.Option{openai.WithModel(c.Model)}
		if c.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.BaseURL))
		}
		return openai.New(c.APIKey, opts...), nil, nil
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithModel(c.Model)}
		if c.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(c.BaseURL))
		}
		return anthropic.New(c.APIKey, opts...), nil, nil
	case "ollama":
		model := c.Model
		if model == "" {
			model = DefaultOllamaModel
		}
		return llm.NewOllama(c.BaseURL, model), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", c.Provider)
	}
}

// providerHealth reports DEGRADED when a hosted provider has no credential.
func providerHealth(cfg *config.Config) core.HealthChecker {
	return core.NewFunctionHealthChecker(func(context.Context) core.HealthResult {
		if cfg.LLM.Provider != "ollama" && cfg.LLM.APIKey == "" {
			return core.HealthResult{
				Status:  core.HealthDegraded,
				Message: fmt.Sprintf("no credential for %s; answers will be degraded", cfg.LLM.Provider),
			}
		}
		return core.HealthResult{Status: core.HealthHealthy, Message: cfg.LLM.Provider}
	})
}

// NewVectorStore builds the store named by knowledge.store.
func NewVectorStore(cfg config.KnowledgeConfig) (knowledge.VectorStore, io.Closer, error) {
	switch cfg.Store {
	case "", "chromem":
		s, err := knowledge.NewChromemStore(cfg.PersistPath)
		return s, nil, err
	case "qdrant":
		s, err := qdrant.New(cfg.QdrantAddr)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector store %q", cfg.Store)
	}
}

// NewEmbedder builds the embedder named by knowledge.embedder, wrapped in
// the SQLite cache when knowledge.cache_path is set.
func NewEmbedder(ctx context.Context, cfg *config.Config) (knowledge.Embedder, []io.Closer, error) {
	kc := cfg.Knowledge
	var (
		e       knowledge.Embedder
		closers []io.Closer
	)
	switch kc.Embedder {
	case "", "hash":
		e = knowledge.NewHashEmbedder(0)
	case "ollama":
		e = kollama.NewEmbedder(kc.EmbedderBaseURL, kc.EmbedderModel)
	case "openai":
		e = openai.NewEmbedder(openai.New(cfg.CredentialFor("openai")), kc.EmbedderModel)
	case "gemini":
		p, err := gemini.New(ctx, cfg.CredentialFor("gemini"))
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, p)
		e = gemini.NewEmbedder(p, kc.EmbedderModel)
	default:
		return nil, nil, fmt.Errorf("unknown embedder %q", kc.Embedder)
	}

	if kc.CachePath == "" {
		return e, closers, nil
	}
	db, err := knowledge.OpenEmbeddingCache(kc.CachePath)
	if err != nil {
		return nil, closers, err
	}
	closers = append(closers, db)
	cached, err := knowledge.NewCachedEmbedder(e, knowledge.ModelOf(e, kc.Embedder), db)
	if err != nil {
		return nil, closers, err
	}
	return cached, closers, nil
}
