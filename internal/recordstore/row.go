package recordstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/halvard/munin/internal/block"
)

const timeLayout = time.RFC3339Nano

// blockColumns is the column list used by every block SELECT, in scan order.
const blockColumns = `id, type, schema_version, text, tags, metadata, links,
	source_file, source_uri, created_by, confidence, embedding, checksum,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanBlock decodes one memory_blocks row. A malformed row returns an error;
// callers on the read path treat that as a soft failure (skip + warn).
func scanBlock(sc rowScanner) (*block.Block, error) {
	var (
		b             block.Block
		schemaVersion sql.NullInt64
		tagsJSON      string
		metaJSON      string
		linksJSON     string
		confJSON      sql.NullString
		embJSON       sql.NullString
		cs            string
		createdAt     string
		updatedAt     string
	)
	if err := sc.Scan(&b.ID, &b.Type, &schemaVersion, &b.Text, &tagsJSON, &metaJSON,
		&linksJSON, &b.SourceFile, &b.SourceURI, &b.CreatedBy, &confJSON, &embJSON,
		&cs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if schemaVersion.Valid {
		v := int(schemaVersion.Int64)
		b.SchemaVersion = &v
	}
	if err := json.Unmarshal([]byte(tagsJSON), &b.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &b.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(linksJSON), &b.Links); err != nil {
		return nil, fmt.Errorf("decode links: %w", err)
	}
	if confJSON.Valid && confJSON.String != "" {
		var c block.Confidence
		if err := json.Unmarshal([]byte(confJSON.String), &c); err != nil {
			return nil, fmt.Errorf("decode confidence: %w", err)
		}
		b.Confidence = &c
	}
	if embJSON.Valid && embJSON.String != "" {
		if err := json.Unmarshal([]byte(embJSON.String), &b.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
	}
	var err error
	if b.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	if b.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("decode updated_at: %w", err)
	}
	return &b, nil
}

// encodeArgs serializes a block into the INSERT argument list matching
// blockColumns order. Nested structures become JSON; timestamps ISO-8601.
func encodeArgs(b *block.Block, rowChecksum string) ([]any, error) {
	tagsJSON, err := json.Marshal(nonNil(b.Tags))
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	meta := b.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	links := b.Links
	if links == nil {
		links = []block.Link{}
	}
	linksJSON, err := json.Marshal(links)
	if err != nil {
		return nil, fmt.Errorf("encode links: %w", err)
	}
	var schemaVersion any
	if b.SchemaVersion != nil {
		schemaVersion = *b.SchemaVersion
	}
	var confJSON any
	if b.Confidence != nil {
		raw, err := json.Marshal(b.Confidence)
		if err != nil {
			return nil, fmt.Errorf("encode confidence: %w", err)
		}
		confJSON = string(raw)
	}
	var embJSON any
	if len(b.Embedding) > 0 {
		raw, err := json.Marshal(b.Embedding)
		if err != nil {
			return nil, fmt.Errorf("encode embedding: %w", err)
		}
		embJSON = string(raw)
	}
	return []any{
		b.ID, b.Type, schemaVersion, b.Text, string(tagsJSON), string(metaJSON),
		string(linksJSON), b.SourceFile, b.SourceURI, b.CreatedBy, confJSON,
		embJSON, rowChecksum,
		b.CreatedAt.UTC().Format(timeLayout), b.UpdatedAt.UTC().Format(timeLayout),
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
