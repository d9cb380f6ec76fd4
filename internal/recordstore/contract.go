package recordstore

import (
	"context"

	"github.com/halvard/munin/internal/block"
)

// BlockStore defines the record-store operations the memory bank consumes.
// Consumers should depend on this interface rather than the concrete *Store
// type to facilitate testing with mocks.
type BlockStore interface {
	Write(ctx context.Context, b *block.Block, commit bool) (string, error)
	Delete(ctx context.Context, id string, commit bool) (string, error)
	StateHash(ctx context.Context) (string, error)

	ReadByID(ctx context.Context, id string) (*block.Block, error)
	ReadAll(ctx context.Context, typ string) ([]*block.Block, error)
	ReadByIDs(ctx context.Context, ids []string) ([]*block.Block, error)
	BlocksByTags(ctx context.Context, tags []string, matchAll bool) ([]*block.Block, error)

	ForwardLinks(ctx context.Context, id string, rel block.Relation) ([]block.Link, error)
	Backlinks(ctx context.Context, id string, rel block.Relation) ([]block.Link, error)

	RegisterSchema(ctx context.Context, typ string, version int, shape map[string]any) error
	GetSchema(ctx context.Context, typ string, version int) (*SchemaRecord, error)
	GetLatestSchema(ctx context.Context, typ string) (*SchemaRecord, error)
	LatestSchemaVersion(ctx context.Context, typ string) (int, error)
	ListSchemas(ctx context.Context) ([]SchemaListing, error)

	AppendProof(ctx context.Context, blockID, contentHash, operation, note string) (*ProofRecord, error)
	ProofsFor(ctx context.Context, blockID string) ([]ProofRecord, error)

	Close() error
}

// Verify *Store satisfies BlockStore at compile time.
var _ BlockStore = (*Store)(nil)
