// Package membank implements the structured memory bank: the orchestrator
// that drives the record store, the secondary index, and the proof log for
// every block operation.
//
// The record store is authoritative. The secondary index is a derived,
// best-effort cache: writes to it happen after the record-store commit and
// are not rolled back when they fail. The two stores are therefore only
// eventually consistent, and Reindex exists to resync them.
package membank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/block"
	"github.com/halvard/munin/internal/recordstore"
	"github.com/halvard/munin/internal/schema"
	"github.com/halvard/munin/internal/semindex"
)

// Bank composes the registry, the record store and the secondary index
// behind the public block operations.
type Bank struct {
	store    recordstore.BlockStore
	index    semindex.Indexer
	registry *schema.Registry
	logger   *slog.Logger
	notify   func(op, blockID string)
}

// Option configures a Bank.
type Option func(*Bank)

// WithLogger sets the bank's logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bank) { b.logger = l }
}

// WithNotify installs a hook invoked after every successful mutation with
// the operation name and block id. Used to publish change events.
func WithNotify(fn func(op, blockID string)) Option {
	return func(b *Bank) { b.notify = fn }
}

// New builds a Bank. index may be nil when the secondary index could not be
// opened; the bank then reports not-ready on every call rather than attempt
// partial work.
func New(store recordstore.BlockStore, index semindex.Indexer, registry *schema.Registry, opts ...Option) *Bank {
	b := &Bank{
		store:    store,
		index:    index,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Ready reports whether the bank can serve requests.
func (b *Bank) Ready() bool {
	return b.store != nil && b.index != nil && b.registry != nil
}

func (b *Bank) checkReady() error {
	if !b.Ready() {
		return apperr.ErrNotReady
	}
	return nil
}

// SyncSchemas persists the registry's builtin shapes into the schema store
// so schema-version resolution works from a fresh database. Call at startup.
func (b *Bank) SyncSchemas(ctx context.Context) error {
	if err := b.checkReady(); err != nil {
		return err
	}
	for _, typ := range b.registry.ListTypes() {
		shape, _ := b.registry.Get(typ)
		if err := b.store.RegisterSchema(ctx, typ, schema.BuiltinVersion, shape); err != nil {
			return fmt.Errorf("membank: sync schema %s: %w", typ, err)
		}
	}
	return nil
}

// CreateBlock validates and persists a new block, indexes it, and appends a
// create proof. The reported result depends on the record store alone:
// an indexing failure is logged and tolerated, never escalated.
func (b *Bank) CreateBlock(ctx context.Context, blk *block.Block) error {
	if err := b.checkReady(); err != nil {
		return err
	}
	if blk.ID == "" {
		blk.ID = uuid.NewString()
	}
	if blk.CreatedAt.IsZero() || blk.UpdatedAt.IsZero() {
		blk.Touch()
	}

	// Version resolution is best-effort: a type with no registered schema
	// versions still gets stored, just untracked.
	if blk.SchemaVersion == nil {
		v, err := b.store.LatestSchemaVersion(ctx, blk.Type)
		switch {
		case err == nil:
			blk.SchemaVersion = &v
		case errors.Is(err, apperr.ErrNotFound):
			b.logger.Warn("membank: no schema version for type, storing unversioned",
				slog.String("id", blk.ID), slog.String("type", blk.Type))
		default:
			return fmt.Errorf("membank: resolve schema version: %w", err)
		}
	}

	if err := b.validate(blk); err != nil {
		return err
	}

	hash, err := b.store.Write(ctx, blk, true)
	if err != nil {
		return fmt.Errorf("membank: write block %s: %w", blk.ID, err)
	}

	if err := b.index.Upsert(ctx, blk); err != nil {
		b.logger.Warn("membank: block stored but indexing failed",
			slog.String("id", blk.ID), slog.String("error", err.Error()))
	}

	if hash != "" {
		if _, err := b.store.AppendProof(ctx, blk.ID, hash, recordstore.OpCreate, "type="+blk.Type); err != nil {
			b.logger.Warn("membank: proof append failed",
				slog.String("id", blk.ID), slog.String("error", err.Error()))
		}
	}
	b.emit(recordstore.OpCreate, blk.ID)
	return nil
}

// GetBlock reads a block straight from the record store. The secondary
// index is never consulted.
func (b *Bank) GetBlock(ctx context.Context, id string) (*block.Block, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	return b.store.ReadByID(ctx, id)
}

// UpdateBlock merges the patch over the stored block with replace semantics
// per field, revalidates, rewrites the row, reindexes, and appends an update
// proof noting the changed fields.
func (b *Bank) UpdateBlock(ctx context.Context, id string, patch block.Patch) (*block.Block, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	existing, err := b.store.ReadByID(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := patch.Apply(existing)
	if err := b.validate(merged); err != nil {
		return nil, err
	}

	diff := block.Diff(existing, merged)
	changed := block.ChangedFields(diff)
	b.logger.Info("membank: updating block",
		slog.String("id", id), slog.String("changed", strings.Join(changed, ",")))

	hash, err := b.store.Write(ctx, merged, true)
	if err != nil {
		return nil, fmt.Errorf("membank: write block %s: %w", id, err)
	}

	if err := b.index.Update(ctx, merged); err != nil {
		b.logger.Warn("membank: block updated but reindex failed",
			slog.String("id", id), slog.String("error", err.Error()))
	}

	if hash != "" {
		if _, err := b.store.AppendProof(ctx, id, hash, recordstore.OpUpdate, strings.Join(changed, ",")); err != nil {
			b.logger.Warn("membank: proof append failed",
				slog.String("id", id), slog.String("error", err.Error()))
		}
	}
	b.emit(recordstore.OpUpdate, id)
	return merged, nil
}

// DeleteBlock removes a block. Deletion is idempotent: deleting an absent
// id succeeds. Index-side failures are tolerated; the record store decides
// the reported result.
func (b *Bank) DeleteBlock(ctx context.Context, id string) error {
	if err := b.checkReady(); err != nil {
		return err
	}
	hash, err := b.store.Delete(ctx, id, true)
	if err != nil {
		return fmt.Errorf("membank: delete block %s: %w", id, err)
	}

	if err := b.index.Delete(ctx, id); err != nil {
		b.logger.Warn("membank: block deleted but index removal failed",
			slog.String("id", id), slog.String("error", err.Error()))
	}

	if hash != "" {
		if _, err := b.store.AppendProof(ctx, id, hash, recordstore.OpDelete, "deleted"); err != nil {
			b.logger.Warn("membank: proof append failed",
				slog.String("id", id), slog.String("error", err.Error()))
		}
	}
	b.emit(recordstore.OpDelete, id)
	return nil
}

// QuerySemantic fans a similarity query out to the vector index and
// materializes the hits from the record store. Ids known to the index but
// missing from the record store are the expected shape of eventual
// inconsistency: they are dropped with a warning, never surfaced.
func (b *Bank) QuerySemantic(ctx context.Context, text string, topK int) ([]*block.Block, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	hits, err := b.index.QuerySimilar(ctx, text, topK)
	if err != nil {
		return nil, fmt.Errorf("membank: semantic query: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	blocks, err := b.store.ReadByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("membank: materialize hits: %w", err)
	}
	if len(blocks) < len(ids) {
		found := make(map[string]struct{}, len(blocks))
		for _, blk := range blocks {
			found[blk.ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				b.logger.Warn("membank: dropping orphaned index hit", slog.String("id", id))
			}
		}
	}
	return blocks, nil
}

// ListBlocks returns every stored block, optionally restricted to a type.
func (b *Bank) ListBlocks(ctx context.Context, typ string) ([]*block.Block, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	return b.store.ReadAll(ctx, typ)
}

// ListSchemas returns every registered schema (type, version) pair.
func (b *Bank) ListSchemas(ctx context.Context) ([]recordstore.SchemaListing, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	return b.store.ListSchemas(ctx)
}

// BlocksByTags returns blocks matching the tags; matchAll selects the AND
// combinator, otherwise one overlapping tag suffices.
func (b *Bank) BlocksByTags(ctx context.Context, tags []string, matchAll bool) ([]*block.Block, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	return b.store.BlocksByTags(ctx, tags, matchAll)
}

// ForwardLinks returns a block's outgoing links from the record store,
// optionally filtered by relation.
func (b *Bank) ForwardLinks(ctx context.Context, id string, rel block.Relation) ([]block.Link, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	return b.store.ForwardLinks(ctx, id, rel)
}

// Backlinks returns who points at the given block; each returned link's
// ToID is the pointing block's id.
func (b *Bank) Backlinks(ctx context.Context, id string, rel block.Relation) ([]block.Link, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	return b.store.Backlinks(ctx, id, rel)
}

// Proofs returns the audit trail for a block, newest first.
func (b *Bank) Proofs(ctx context.Context, id string) ([]recordstore.ProofRecord, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	return b.store.ProofsFor(ctx, id)
}

// RegisterSchema registers a new metadata shape version both in the
// in-process registry and the schema store.
func (b *Bank) RegisterSchema(ctx context.Context, typ string, version int, shape map[string]any) error {
	if err := b.checkReady(); err != nil {
		return err
	}
	if err := b.registry.Register(typ, shape); err != nil {
		return err
	}
	return b.store.RegisterSchema(ctx, typ, version, shape)
}

// validate runs the structural block check and the per-type metadata shape
// check. Both report field-level detail.
func (b *Bank) validate(blk *block.Block) error {
	if err := blk.Validate(); err != nil {
		return structuralError(err)
	}
	if err := b.registry.Validate(blk.Type, blk.Metadata); err != nil {
		return fmt.Errorf("membank: invalid metadata for %s: %w", blk.ID, err)
	}
	return nil
}

// structuralError converts ozzo's field-keyed errors into the shared
// ValidationError shape so every layer maps them the same way.
func structuralError(err error) error {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return apperr.NewValidationError(apperr.FieldError{Message: err.Error()})
	}
	paths := make([]string, 0, len(fieldErrs))
	for p := range fieldErrs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	fields := make([]apperr.FieldError, len(paths))
	for i, p := range paths {
		fields[i] = apperr.FieldError{Path: p, Message: fieldErrs[p].Error()}
	}
	return apperr.NewValidationError(fields...)
}

func (b *Bank) emit(op, id string) {
	if b.notify != nil {
		b.notify(op, id)
	}
}
