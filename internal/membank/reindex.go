package membank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/halvard/munin/internal/apperr"
)

// Reindex rebuilds the secondary-index entry for one block from the record
// store. When the block no longer exists, any stale index entry is removed
// instead. This is the operator escape hatch for resyncing the two stores.
func (b *Bank) Reindex(ctx context.Context, id string) error {
	if err := b.checkReady(); err != nil {
		return err
	}
	blk, err := b.store.ReadByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		if err := b.index.Delete(ctx, id); err != nil {
			return fmt.Errorf("membank: remove stale index entry %s: %w", id, err)
		}
		b.logger.Info("membank: removed stale index entry", slog.String("id", id))
		return nil
	}
	if err != nil {
		return err
	}
	if err := b.index.Update(ctx, blk); err != nil {
		return fmt.Errorf("membank: reindex %s: %w", id, err)
	}
	return nil
}

// ReindexAll rebuilds the secondary index for every stored block and
// returns how many blocks were reindexed. Per-block failures are logged and
// skipped so one bad block cannot stall the rebuild.
func (b *Bank) ReindexAll(ctx context.Context) (int, error) {
	if err := b.checkReady(); err != nil {
		return 0, err
	}
	blocks, err := b.store.ReadAll(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("membank: read all: %w", err)
	}
	n := 0
	for _, blk := range blocks {
		if err := b.index.Update(ctx, blk); err != nil {
			b.logger.Warn("membank: reindex failed",
				slog.String("id", blk.ID), slog.String("error", err.Error()))
			continue
		}
		n++
	}
	return n, nil
}
