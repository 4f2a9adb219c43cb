// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package knowledge implements the local_knowledge capability: a small
// retrieval index built from a plain-text corpus at startup.
//
// The corpus is split into overlapping word windows, every window is embedded
// and stored in a VectorStore, and queries return the windows whose cosine
// similarity clears a score threshold.
package knowledge

import "context"

// VectorStore defines the interface for a vector database.
type VectorStore interface {
	// Upsert adds or updates points in the vector store.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns up to limit points whose score is at least scoreThreshold,
	// best first.
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error)
	// CreateCollection creates the collection if it does not exist yet.
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
}

// Point is one embedded chunk.
type Point struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
	Text   string    `json:"text"`
	Source string    `json:"source"`
	Seq    int       `json:"seq"`
}

// SearchResult is a scored match.
type SearchResult struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Point Point   `json:"point"`
}

// Embedder converts text to vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ModelNamer is implemented by embedders that can name their model. The
// embedding cache keys entries by it.
type ModelNamer interface {
	Model() string
}

// ModelOf returns the embedder's model name, or fallback.
func ModelOf(e Embedder, fallback string) string {
	if m, ok := e.(ModelNamer); ok && m.Model() != "" {
		return m.Model()
	}
	return fallback
}
