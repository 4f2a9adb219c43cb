// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package knowledge

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultHashDimensions is the vector size of HashEmbedder.
const DefaultHashDimensions = 512

// HashEmbedder is an offline, deterministic embedder based on feature
// hashing of words. It captures lexical overlap only, which is enough for
// a small corpus and keeps the index usable without any model credential.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a HashEmbedder with dims dimensions.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Model() string { return "hash" }

// Embed implements Embedder. The result is L2 normalized; text without
// words yields the zero vector.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, w := range Words(text) {
		hf := fnv.New64a()
		_, _ = hf.Write([]byte(w))
		sum := hf.Sum64()
		idx := int(sum % uint64(h.dims))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}
