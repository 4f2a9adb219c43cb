// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package knowledge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/philippgille/chromem-go"
)

// ChromemStore keeps vectors in process with chromem-go, optionally
// persisted to a directory.
type ChromemStore struct {
	db *chromem.DB
}

// NewChromemStore creates an in-memory store, or a persistent one when
// path is not empty.
func NewChromemStore(path string) (*ChromemStore, error) {
	if path == "" {
		return &ChromemStore{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &ChromemStore{db: db}, nil
}

// Vectors are always computed by the index; chromem must never embed.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("chromem: documents must carry embeddings")
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	return s.db.GetOrCreateCollection(name, nil, noEmbedding)
}

func (s *ChromemStore) CreateCollection(_ context.Context, name string, _ uint64) error {
	_, err := s.collection(name)
	return err
}

func (s *ChromemStore) Upsert(ctx context.Context, collection string, points []Point) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		doc := chromem.Document{
			ID:        p.ID,
			Content:   p.Text,
			Embedding: p.Vector,
			Metadata: map[string]string{
				"source": p.Source,
				"seq":    strconv.Itoa(p.Seq),
			},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	// chromem rejects nResults larger than the collection.
	n := min(limit, col.Count())
	if n <= 0 || isZero(vector) {
		return nil, nil
	}
	res, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, 0, len(res))
	for _, r := range res {
		if r.Similarity < scoreThreshold {
			continue
		}
		seq, _ := strconv.Atoi(r.Metadata["seq"])
		out = append(out, SearchResult{
			ID:    r.ID,
			Score: r.Similarity,
			Point: Point{ID: r.ID, Text: r.Content, Source: r.Metadata["source"], Seq: seq},
		})
	}
	return out, nil
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

var _ VectorStore = (*ChromemStore)(nil)
