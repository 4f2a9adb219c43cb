// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jllopis/sabia/pkg/resilience"
)

const upsertBatch = 64

// Index is a retrieval index over one collection.
type Index struct {
	store          VectorStore
	embedder       Embedder
	splitter       *Splitter
	collection     string
	scoreThreshold float32
	retry          resilience.RetryConfig
	logger         *slog.Logger
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithSplitter sets the chunking strategy.
func WithSplitter(s *Splitter) IndexOption {
	return func(ix *Index) { ix.splitter = s }
}

// WithScoreThreshold sets the minimum cosine similarity for a match.
func WithScoreThreshold(t float32) IndexOption {
	return func(ix *Index) { ix.scoreThreshold = t }
}

// WithRetry sets the retry policy for embedding calls.
func WithRetry(rc resilience.RetryConfig) IndexOption {
	return func(ix *Index) { ix.retry = rc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) IndexOption {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// NewIndex creates an empty index.
func NewIndex(store VectorStore, embedder Embedder, collection string, opts ...IndexOption) *Index {
	ix := &Index{
		store:          store,
		embedder:       embedder,
		splitter:       NewSplitter(200, 40),
		collection:     collection,
		scoreThreshold: 0.3,
		retry:          resilience.DefaultRetryConfig(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Stats describes a build.
type Stats struct {
	Source     string
	Chunks     int
	Skipped    int
	Dimensions int
	Duration   time.Duration
}

// Build chunks corpus, embeds every chunk and upserts it. Point IDs derive
// from the chunk content, so rebuilding an unchanged corpus is idempotent.
func (ix *Index) Build(ctx context.Context, source, corpus string) (Stats, error) {
	start := time.Now()
	stats := Stats{Source: source}

	chunks := ix.splitter.Split(corpus)
	if len(chunks) == 0 {
		return stats, fmt.Errorf("corpus %s has no text", source)
	}

	retry := ix.retry
	if retry.OnRetry == nil {
		retry = retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			ix.logger.WarnContext(ctx, "embedding failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
		})
	}

	points := make([]Point, 0, len(chunks))
	for _, c := range chunks {
		vec, err := resilience.Retry(ctx, retry, func(ctx context.Context) ([]float32, error) {
			return ix.embedder.Embed(ctx, c.Text)
		})
		if err != nil {
			return stats, fmt.Errorf("embed chunk %d: %w", c.Seq, err)
		}
		if isZero(vec) {
			stats.Skipped++
			continue
		}
		if stats.Dimensions == 0 {
			stats.Dimensions = len(vec)
			if err := ix.store.CreateCollection(ctx, ix.collection, uint64(len(vec))); err != nil {
				return stats, fmt.Errorf("create collection %s: %w", ix.collection, err)
			}
		}
		points = append(points, Point{
			ID:     uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+c.Text)).String(),
			Vector: vec,
			Text:   c.Text,
			Source: source,
			Seq:    c.Seq,
		})
	}

	for i := 0; i < len(points); i += upsertBatch {
		end := min(i+upsertBatch, len(points))
		if err := ix.store.Upsert(ctx, ix.collection, points[i:end]); err != nil {
			return stats, err
		}
	}

	stats.Chunks = len(points)
	stats.Duration = time.Since(start)
	ix.logger.InfoContext(ctx, "knowledge index built",
		slog.String("source", source),
		slog.String("collection", ix.collection),
		slog.Int("chunks", stats.Chunks),
		slog.Int("dimensions", stats.Dimensions),
		slog.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// Query returns the text of up to topK chunks clearing the score threshold,
// best first. No match yields an empty slice and no error.
func (ix *Index) Query(ctx context.Context, text string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = 3
	}
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := ix.store.Search(ctx, ix.collection, vec, topK, ix.scoreThreshold)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Point.Text != "" {
			out = append(out, r.Point.Text)
		}
	}
	return out, nil
}
