// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jllopis/sabia/pkg/config"
	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/llm"
)

const (
	// Name is the registry name of the knowledge capability.
	Name = "local_knowledge"
	// NoInformation is returned when nothing in the corpus matches.
	NoInformation = "no information found"
)

// Capability answers from the local index.
type Capability struct {
	index *Index
	topK  int
}

// NewCapability wraps index.
func NewCapability(index *Index, topK int) *Capability {
	return &Capability{index: index, topK: topK}
}

func (c *Capability) Name() string { return Name }

func (c *Capability) Description() string {
	return "Looks up information in the local document collection. Use it for questions about the organization's own data. Input is a question or keywords."
}

// Invoke returns the matching chunks separated by blank lines.
func (c *Capability) Invoke(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return NoInformation, nil
	}
	chunks, err := c.index.Query(ctx, query, c.topK)
	if err != nil {
		return "", llm.ClassifyError(err, "knowledge", errors.CodeToolFailure)
	}
	if len(chunks) == 0 {
		return NoInformation, nil
	}
	return strings.Join(chunks, "\n\n"), nil
}

var _ core.Capability = (*Capability)(nil)

// Factory reads the corpus, builds the index and returns the capability.
// A missing or unreadable corpus fails construction, so the registry omits
// the capability with a warning.
func Factory(cfg config.KnowledgeConfig, store VectorStore, embedder Embedder, logger *slog.Logger) func(context.Context) (core.Capability, error) {
	return func(ctx context.Context) (core.Capability, error) {
		if !cfg.Enabled {
			return nil, fmt.Errorf("knowledge disabled")
		}
		ix, _, err := BuildFromFile(ctx, cfg, store, embedder, logger)
		if err != nil {
			return nil, err
		}
		return NewCapability(ix, cfg.TopK), nil
	}
}

// BuildFromFile builds an index over the configured corpus file.
func BuildFromFile(ctx context.Context, cfg config.KnowledgeConfig, store VectorStore, embedder Embedder, logger *slog.Logger) (*Index, Stats, error) {
	data, err := os.ReadFile(cfg.CorpusPath)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read corpus: %w", err)
	}
	ix := NewIndex(store, embedder, cfg.Collection,
		WithSplitter(NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)),
		WithScoreThreshold(cfg.ScoreThreshold),
		WithLogger(logger),
	)
	stats, err := ix.Build(ctx, filepath.Base(cfg.CorpusPath), string(data))
	if err != nil {
		return nil, stats, err
	}
	return ix, stats, nil
}
