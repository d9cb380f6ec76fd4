package recordstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/halvard/munin/internal/block"
	"github.com/halvard/munin/internal/checksum"
)

// Write upserts a block by id with full-replace semantics: the row and the
// block's outgoing links are rewritten in one transaction. When commit is
// true the post-write state hash of the blocks table is returned; a no-op
// write still returns the hash of current state.
func (s *Store) Write(ctx context.Context, b *block.Block, commit bool) (string, error) {
	rowChecksum, err := checksum.Canonical(b)
	if err != nil {
		return "", fmt.Errorf("recordstore: row checksum: %w", err)
	}
	args, err := encodeArgs(b, rowChecksum)
	if err != nil {
		return "", fmt.Errorf("recordstore: encode block: %w", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("recordstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO memory_blocks (`+blockColumns+`)
		VALUES (`+placeholders+`)
	`, args...)
	if err != nil {
		return "", fmt.Errorf("recordstore: upsert block: %w", err)
	}

	// The dedicated links table is authoritative for link queries; the
	// embedded links column above is its serialization cache. Replace both
	// together so they cannot drift.
	if _, err := tx.ExecContext(ctx, `DELETE FROM block_links WHERE source_id = ?`, b.ID); err != nil {
		return "", fmt.Errorf("recordstore: clear links: %w", err)
	}
	if len(b.Links) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO block_links (source_id, to_id, relation) VALUES (?, ?, ?)`)
		if err != nil {
			return "", fmt.Errorf("recordstore: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range b.Links {
			if _, err := stmt.ExecContext(ctx, b.ID, l.ToID, string(l.Relation)); err != nil {
				return "", fmt.Errorf("recordstore: insert link: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("recordstore: commit: %w", err)
	}
	if !commit {
		return "", nil
	}
	return s.StateHash(ctx)
}

// Delete removes a block row and its outgoing links. Deleting an id that is
// not present is still a success (idempotent delete).
func (s *Store) Delete(ctx context.Context, id string, commit bool) (string, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("recordstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM block_links WHERE source_id = ?`, id); err != nil {
		return "", fmt.Errorf("recordstore: delete links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_blocks WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("recordstore: delete block: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("recordstore: commit: %w", err)
	}
	if !commit {
		return "", nil
	}
	return s.StateHash(ctx)
}

// StateHash returns a content hash identifying the current state of the
// blocks table: the SHA-256 of every (id, row checksum) pair in id order.
func (s *Store) StateHash(ctx context.Context) (string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, checksum FROM memory_blocks ORDER BY id`)
	if err != nil {
		return "", fmt.Errorf("recordstore: state hash: %w", err)
	}
	defer rows.Close()

	var sb strings.Builder
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return "", err
		}
		sb.WriteString(id)
		sb.WriteByte(':')
		sb.WriteString(cs)
		sb.WriteByte('\n')
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return checksum.Sum([]byte(sb.String())), nil
}
