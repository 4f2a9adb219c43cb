// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package knowledge

import (
	"context"
	"database/sql"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const embeddingTable = "sabia_embeddings"

// CachedEmbedder persists embeddings in SQLite so rebuilding the index on
// every start does not re-embed an unchanged corpus.
type CachedEmbedder struct {
	next  Embedder
	model string
	db    *sql.DB
}

// OpenEmbeddingCache opens (or creates) the SQLite cache at path.
func OpenEmbeddingCache(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewCachedEmbedder wraps next and ensures the schema.
func NewCachedEmbedder(next Embedder, model string, db *sql.DB) (*CachedEmbedder, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	_, err := db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		dims INTEGER NOT NULL,
		vector BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);`, embeddingTable))
	if err != nil {
		return nil, fmt.Errorf("ensure embedding cache schema: %w", err)
	}
	return &CachedEmbedder{next: next, model: model, db: db}, nil
}

func (c *CachedEmbedder) Model() string { return c.model }

// Embed implements Embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.model, text)

	var blob []byte
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT vector FROM %s WHERE id = ?`, embeddingTable), key).Scan(&blob)
	switch {
	case err == nil:
		return decodeVector(blob), nil
	case !stderrors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR REPLACE INTO %s (id, model, dims, vector, created_at) VALUES (?, ?, ?, ?, ?)`, embeddingTable),
		key, c.model, len(vec), encodeVector(vec), time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("write embedding cache: %w", err)
	}
	return vec, nil
}

func cacheKey(model, text string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(model+"\x00"+text)).String()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
