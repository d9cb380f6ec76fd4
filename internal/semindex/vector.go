package semindex

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// Hit is one semantic query result, ordered by descending similarity.
type Hit struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

const collectionName = "memory_blocks"

// vectorIndex adapts chromem-go, a pure Go embedded vector database.
type vectorIndex struct {
	col      *chromem.Collection
	embedder Embedder
}

// newVectorIndex opens the vector store. An empty path keeps everything in
// memory (tests); otherwise the collection persists under path.
func newVectorIndex(path string, embedder Embedder) (*vectorIndex, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("semindex: open vector db: %w", err)
		}
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	col, err := db.GetOrCreateCollection(collectionName, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("semindex: open collection: %w", err)
	}
	return &vectorIndex{col: col, embedder: embedder}, nil
}

// upsert embeds the node text and stores the document under the node id.
func (v *vectorIndex) upsert(ctx context.Context, n Node) error {
	embedding, err := v.embedder.Embed(ctx, n.Text)
	if err != nil {
		return fmt.Errorf("semindex: embed node %s: %w", n.ID, err)
	}
	doc := chromem.Document{
		ID:        n.ID,
		Content:   n.Text,
		Embedding: embedding,
		Metadata:  n.Attributes,
	}
	if err := v.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("semindex: add document %s: %w", n.ID, err)
	}
	return nil
}

// delete removes documents by id. Unknown ids are not an error.
func (v *vectorIndex) delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := v.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("semindex: delete documents: %w", err)
	}
	return nil
}

// querySimilar returns up to topK hits ordered by descending similarity.
// chromem rejects result counts above the collection size, so topK is
// clamped to what is actually stored.
func (v *vectorIndex) querySimilar(ctx context.Context, text string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}
	if count := v.col.Count(); count < topK {
		topK = count
	}
	if topK == 0 {
		return nil, nil
	}
	results, err := v.col.Query(ctx, text, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("semindex: query: %w", err)
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{ID: r.ID, Score: r.Similarity}
	}
	return hits, nil
}
