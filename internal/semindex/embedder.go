// Package semindex implements the derived secondary index over memory
// blocks: a chromem-go vector store for semantic similarity and a SQLite
// edge table for typed graph traversal. The index is rebuildable from the
// record store and is never authoritative.
package semindex

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder converts text to vector embeddings for the semantic sub-index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// LocalEmbedder generates deterministic embeddings from a text hash. It
// needs no model or network and gives stable, repeatable similarity
// behavior, which is what local deployments and tests want. Swap in a real
// model-backed Embedder for production-quality recall.
type LocalEmbedder struct {
	dimensions int
}

// NewLocalEmbedder returns a LocalEmbedder with the given dimensionality
// (384 when dims <= 0, matching common sentence-embedding models).
func NewLocalEmbedder(dims int) *LocalEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &LocalEmbedder{dimensions: dims}
}

// Embed creates a deterministic unit vector from text.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	out := make([]float32, e.dimensions)
	for i := range out {
		seed = seed*6364136223846793005 + 1442695040888963407
		out[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(out), nil
}

// Dimensions returns the embedding vector size.
func (e *LocalEmbedder) Dimensions() int {
	return e.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
