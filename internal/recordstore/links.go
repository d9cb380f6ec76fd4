package recordstore

import (
	"context"
	"fmt"

	"github.com/halvard/munin/internal/block"
)

// ForwardLinks returns the outgoing links of a block from the dedicated
// links table, optionally filtered by relation. A block with no links (or no
// row at all) yields an empty result, not an error.
func (s *Store) ForwardLinks(ctx context.Context, id string, rel block.Relation) ([]block.Link, error) {
	q := `SELECT to_id, relation FROM block_links WHERE source_id = ?`
	args := []any{id}
	if rel != "" {
		q += ` AND relation = ?`
		args = append(args, string(rel))
	}
	return s.queryLinks(ctx, q, args, false)
}

// Backlinks returns the links pointing at the given block, derived by a
// reverse lookup on to_id. Each result's ToID carries the *source* block's
// id, answering "who points at me".
func (s *Store) Backlinks(ctx context.Context, id string, rel block.Relation) ([]block.Link, error) {
	q := `SELECT source_id, relation FROM block_links WHERE to_id = ?`
	args := []any{id}
	if rel != "" {
		q += ` AND relation = ?`
		args = append(args, string(rel))
	}
	return s.queryLinks(ctx, q, args, true)
}

func (s *Store) queryLinks(ctx context.Context, q string, args []any, reverse bool) ([]block.Link, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		if reverse {
			return nil, fmt.Errorf("recordstore: backlinks: %w", err)
		}
		return nil, fmt.Errorf("recordstore: forward links: %w", err)
	}
	defer rows.Close()

	var out []block.Link
	for rows.Next() {
		var l block.Link
		var rel string
		if err := rows.Scan(&l.ToID, &rel); err != nil {
			return nil, err
		}
		l.Relation = block.Relation(rel)
		out = append(out, l)
	}
	return out, rows.Err()
}
