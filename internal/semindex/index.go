package semindex

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/halvard/munin/internal/block"
)

// Config holds the secondary-index storage locations.
type Config struct {
	// VectorPath is the chromem persistence directory. Empty keeps the
	// vector store in memory.
	VectorPath string
	// GraphDSN is the SQLite path for the edge table. Empty uses an
	// in-memory database.
	GraphDSN string
	// Embedder converts text to vectors. Nil selects the local
	// deterministic embedder.
	Embedder Embedder
}

// Index is the combined semantic + graph secondary index. Readiness is
// established once at construction: if either sub-index cannot be opened,
// New fails and the caller must treat the whole index as unavailable.
type Index struct {
	vec    *vectorIndex
	graph  *graphIndex
	logger *slog.Logger
}

// New opens both sub-indexes.
func New(cfg Config, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	emb := cfg.Embedder
	if emb == nil {
		emb = NewLocalEmbedder(0)
	}
	vec, err := newVectorIndex(cfg.VectorPath, emb)
	if err != nil {
		return nil, err
	}
	graphDSN := cfg.GraphDSN
	if graphDSN == "" {
		graphDSN = ":memory:"
	}
	graph, err := newGraphIndex(graphDSN)
	if err != nil {
		return nil, err
	}
	return &Index{vec: vec, graph: graph, logger: logger}, nil
}

// Upsert indexes a block into both sub-indexes.
func (ix *Index) Upsert(ctx context.Context, b *block.Block) error {
	n := BuildNode(b)
	if err := ix.vec.upsert(ctx, n); err != nil {
		return err
	}
	if err := ix.graph.upsert(ctx, n); err != nil {
		return err
	}
	return nil
}

// Update refreshes a block's index entry as delete-then-reinsert under the
// same id. There is no atomic swap: a concurrent query can observe the gap.
func (ix *Index) Update(ctx context.Context, b *block.Block) error {
	if err := ix.Delete(ctx, b.ID); err != nil {
		return err
	}
	return ix.Upsert(ctx, b)
}

// Delete removes the given ids from both sub-indexes. Ids that are not
// indexed are not an error (idempotent delete).
func (ix *Index) Delete(ctx context.Context, ids ...string) error {
	if err := ix.vec.delete(ctx, ids...); err != nil {
		return err
	}
	return ix.graph.delete(ctx, ids...)
}

// QuerySimilar returns up to topK block ids ordered by descending semantic
// similarity to text.
func (ix *Index) QuerySimilar(ctx context.Context, text string, topK int) ([]Hit, error) {
	return ix.vec.querySimilar(ctx, text, topK)
}

// ForwardEdges returns the graph edges leaving a node.
func (ix *Index) ForwardEdges(ctx context.Context, id string) ([]Edge, error) {
	return ix.graph.forwardEdges(ctx, id)
}

// BackwardEdges returns the graph edges arriving at a node.
func (ix *Index) BackwardEdges(ctx context.Context, id string) ([]Edge, error) {
	return ix.graph.backwardEdges(ctx, id)
}

// Close releases the graph database handle. The vector store persists on
// write and needs no explicit close.
func (ix *Index) Close() error {
	if err := ix.graph.close(); err != nil {
		return fmt.Errorf("semindex: close graph: %w", err)
	}
	return nil
}

// Indexer is the secondary-index surface the memory bank consumes.
type Indexer interface {
	Upsert(ctx context.Context, b *block.Block) error
	Update(ctx context.Context, b *block.Block) error
	Delete(ctx context.Context, ids ...string) error
	QuerySimilar(ctx context.Context, text string, topK int) ([]Hit, error)
	ForwardEdges(ctx context.Context, id string) ([]Edge, error)
	BackwardEdges(ctx context.Context, id string) ([]Edge, error)
	Close() error
}

// Verify *Index satisfies Indexer at compile time.
var _ Indexer = (*Index)(nil)
