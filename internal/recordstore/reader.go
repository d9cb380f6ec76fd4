package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/block"
)

// ReadByID returns the block with the given id, or apperr.ErrNotFound.
// A stored row that no longer decodes or validates is treated as absent
// rather than surfacing a decode error to the caller.
func (s *Store) ReadByID(ctx context.Context, id string) (*block.Block, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM memory_blocks WHERE id = ?`, id)
	b, err := scanBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		s.logger.Warn("recordstore: skipping unreadable row",
			slog.String("id", id), slog.String("error", err.Error()))
		return nil, apperr.ErrNotFound
	}
	if err := b.Validate(); err != nil {
		s.logger.Warn("recordstore: skipping invalid row",
			slog.String("id", id), slog.String("error", err.Error()))
		return nil, apperr.ErrNotFound
	}
	return b, nil
}

// ReadAll returns every stored block, optionally restricted to one type.
// Rows that fail to decode or validate are logged and skipped so one bad
// historical row cannot make the whole store unreadable.
func (s *Store) ReadAll(ctx context.Context, typ string) ([]*block.Block, error) {
	q := `SELECT ` + blockColumns + ` FROM memory_blocks`
	var args []any
	if typ != "" {
		q += ` WHERE type = ?`
		args = append(args, typ)
	}
	q += ` ORDER BY id`

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("recordstore: read all: %w", err)
	}
	defer rows.Close()
	return s.collect(rows)
}

// ReadByIDs batch-fetches blocks by id. Missing ids are silently omitted.
func (s *Store) ReadByIDs(ctx context.Context, ids []string) ([]*block.Block, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM memory_blocks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("recordstore: read batch: %w", err)
	}
	defer rows.Close()

	blocks, err := s.collect(rows)
	if err != nil {
		return nil, err
	}
	// Preserve the caller's id order (query fan-out relies on it).
	byID := make(map[string]*block.Block, len(blocks))
	for _, b := range blocks {
		byID[b.ID] = b
	}
	out := make([]*block.Block, 0, len(blocks))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// BlocksByTags returns blocks matching the given tags. With matchAll, every
// query tag must be present on the block; otherwise one overlapping tag is
// enough. Tag order is irrelevant; matching is exact string membership.
func (s *Store) BlocksByTags(ctx context.Context, tags []string, matchAll bool) ([]*block.Block, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	// The prefilter narrows the scan via json_each so it compares decoded
	// tag values, not escaped JSON text; the exact set check below decides
	// membership. The json_valid guard keeps a malformed historical row
	// from erroring the whole query (it is skipped, matching collect).
	var (
		clauses []string
		args    []any
	)
	for _, t := range tags {
		clauses = append(clauses,
			`(json_valid(memory_blocks.tags) AND EXISTS `+
				`(SELECT 1 FROM json_each(memory_blocks.tags) WHERE json_each.value = ?))`)
		args = append(args, t)
	}
	joiner := ` OR `
	if matchAll {
		joiner = ` AND `
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM memory_blocks WHERE `+strings.Join(clauses, joiner)+` ORDER BY id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("recordstore: blocks by tags: %w", err)
	}
	defer rows.Close()

	candidates, err := s.collect(rows)
	if err != nil {
		return nil, err
	}
	var out []*block.Block
	for _, b := range candidates {
		if tagsMatch(tags, b.Tags, matchAll) {
			out = append(out, b)
		}
	}
	return out, nil
}

func tagsMatch(query, have []string, matchAll bool) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	if matchAll {
		for _, t := range query {
			if _, ok := set[t]; !ok {
				return false
			}
		}
		return true
	}
	for _, t := range query {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// collect drains rows with the tolerant-read policy.
func (s *Store) collect(rows *sql.Rows) ([]*block.Block, error) {
	var out []*block.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			s.logger.Warn("recordstore: skipping unreadable row", slog.String("error", err.Error()))
			continue
		}
		if err := b.Validate(); err != nil {
			s.logger.Warn("recordstore: skipping invalid row",
				slog.String("id", b.ID), slog.String("error", err.Error()))
			continue
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
