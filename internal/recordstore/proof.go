package recordstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Operation names recorded in the proof log.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ProofRecord ties one committed block mutation to the content hash of the
// store state immediately after it. The log is the ground truth for what
// actually persisted, independent of the secondary index.
type ProofRecord struct {
	ID          string    `json:"id"`
	BlockID     string    `json:"block_id"`
	ContentHash string    `json:"content_hash"`
	Operation   string    `json:"operation"`
	Note        string    `json:"note,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Message renders the record's commit message.
func (p ProofRecord) Message() string {
	return fmt.Sprintf("%s: %s - %s", p.Operation, p.BlockID, p.Note)
}

const proofSchemaSQL = `
CREATE TABLE IF NOT EXISTS block_proofs (
	id           TEXT PRIMARY KEY,
	block_id     TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	operation    TEXT NOT NULL,
	note         TEXT NOT NULL DEFAULT '',
	timestamp    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_block_proofs_block ON block_proofs(block_id);
`

// ensureProofTable creates the proof table lazily on first use.
func (s *Store) ensureProofTable(ctx context.Context) error {
	s.proofOnce.Do(func() {
		if _, err := s.conn.ExecContext(ctx, proofSchemaSQL); err != nil {
			s.proofErr = fmt.Errorf("recordstore: create proof table: %w", err)
		}
	})
	return s.proofErr
}

// AppendProof appends one audit record. Each append is its own committed
// unit of change; records are never updated or deleted.
func (s *Store) AppendProof(ctx context.Context, blockID, contentHash, operation, note string) (*ProofRecord, error) {
	if err := s.ensureProofTable(ctx); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec := &ProofRecord{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		BlockID:     blockID,
		ContentHash: contentHash,
		Operation:   operation,
		Note:        note,
		Timestamp:   now,
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO block_proofs (id, block_id, content_hash, operation, note, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.BlockID, rec.ContentHash, rec.Operation, rec.Note, now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("recordstore: append proof: %w", err)
	}
	return rec, nil
}

// ProofsFor returns the audit trail for a block, newest first. A block with
// no history yields an empty result, not an error.
func (s *Store) ProofsFor(ctx context.Context, blockID string) ([]ProofRecord, error) {
	if err := s.ensureProofTable(ctx); err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, block_id, content_hash, operation, note, timestamp
		FROM block_proofs WHERE block_id = ?
		ORDER BY timestamp DESC, id DESC
	`, blockID)
	if err != nil {
		return nil, fmt.Errorf("recordstore: proofs for %s: %w", blockID, err)
	}
	defer rows.Close()

	var out []ProofRecord
	for rows.Next() {
		var (
			rec ProofRecord
			at  string
		)
		if err := rows.Scan(&rec.ID, &rec.BlockID, &rec.ContentHash, &rec.Operation, &rec.Note, &at); err != nil {
			return nil, err
		}
		if rec.Timestamp, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("recordstore: decode proof timestamp: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
