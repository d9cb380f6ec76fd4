package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/halvard/munin/internal/apperr"
)

// SchemaRecord is one persisted metadata-shape version for a block type.
type SchemaRecord struct {
	NodeType      string         `json:"node_type"`
	SchemaVersion int            `json:"schema_version"`
	Shape         map[string]any `json:"json_shape"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Self-describing fields added to every stored shape document.
const (
	shapeTypeKey    = "x_node_type"
	shapeVersionKey = "x_schema_version"
)

// RegisterSchema upserts a shape document under (typ, version) and commits.
// Versions are monotonically increasing per type by convention; there is no
// delete, so obsolete versions stay queryable for historical blocks.
func (s *Store) RegisterSchema(ctx context.Context, typ string, version int, shape map[string]any) error {
	if typ == "" {
		return fmt.Errorf("recordstore: register schema: empty type")
	}
	doc := make(map[string]any, len(shape)+2)
	for k, v := range shape {
		doc[k] = v
	}
	doc[shapeTypeKey] = typ
	doc[shapeVersionKey] = version

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("recordstore: encode shape: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO node_schemas (node_type, schema_version, json_shape, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(node_type, schema_version) DO UPDATE SET
			json_shape = excluded.json_shape
	`, typ, version, string(raw), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("recordstore: register schema: %w", err)
	}
	return nil
}

// GetSchema returns the shape for (typ, version), or apperr.ErrNotFound.
func (s *Store) GetSchema(ctx context.Context, typ string, version int) (*SchemaRecord, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT node_type, schema_version, json_shape, created_at
		FROM node_schemas WHERE node_type = ? AND schema_version = ?
	`, typ, version)
	return scanSchema(row)
}

// GetLatestSchema returns the highest-versioned shape for typ, or
// apperr.ErrNotFound. This is a read-through query on every call; callers
// needing low latency should cache at a higher layer.
func (s *Store) GetLatestSchema(ctx context.Context, typ string) (*SchemaRecord, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT node_type, schema_version, json_shape, created_at
		FROM node_schemas WHERE node_type = ?
		ORDER BY schema_version DESC LIMIT 1
	`, typ)
	return scanSchema(row)
}

// LatestSchemaVersion resolves "latest version for type", or ErrNotFound when
// no version was ever registered for the type.
func (s *Store) LatestSchemaVersion(ctx context.Context, typ string) (int, error) {
	rec, err := s.GetLatestSchema(ctx, typ)
	if err != nil {
		return 0, err
	}
	return rec.SchemaVersion, nil
}

// SchemaListing is one row of ListSchemas.
type SchemaListing struct {
	NodeType      string    `json:"node_type"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListSchemas returns every registered (type, version) pair.
func (s *Store) ListSchemas(ctx context.Context) ([]SchemaListing, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT node_type, schema_version, created_at
		FROM node_schemas ORDER BY node_type, schema_version
	`)
	if err != nil {
		return nil, fmt.Errorf("recordstore: list schemas: %w", err)
	}
	defer rows.Close()

	var out []SchemaListing
	for rows.Next() {
		var (
			l  SchemaListing
			at string
		)
		if err := rows.Scan(&l.NodeType, &l.SchemaVersion, &at); err != nil {
			return nil, err
		}
		if l.CreatedAt, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("recordstore: decode schema created_at: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanSchema(row *sql.Row) (*SchemaRecord, error) {
	var (
		rec      SchemaRecord
		rawShape string
		at       string
	)
	if err := row.Scan(&rec.NodeType, &rec.SchemaVersion, &rawShape, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("recordstore: read schema: %w", err)
	}
	if err := json.Unmarshal([]byte(rawShape), &rec.Shape); err != nil {
		return nil, fmt.Errorf("recordstore: decode shape: %w", err)
	}
	var err error
	if rec.CreatedAt, err = time.Parse(timeLayout, at); err != nil {
		return nil, fmt.Errorf("recordstore: decode schema created_at: %w", err)
	}
	return &rec, nil
}
