// Package recordstore implements the authoritative SQLite store for memory
// blocks, the versioned schema documents, and the append-only proof log.
//
// Every committed write returns a content hash identifying the post-write
// state of the blocks table, which the proof log records per mutation.
package recordstore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS memory_blocks (
	id             TEXT PRIMARY KEY,
	type           TEXT NOT NULL,
	schema_version INTEGER,
	text           TEXT NOT NULL,
	tags           TEXT NOT NULL DEFAULT '[]',
	metadata       TEXT NOT NULL DEFAULT '{}',
	links          TEXT NOT NULL DEFAULT '[]',
	source_file    TEXT NOT NULL DEFAULT '',
	source_uri     TEXT NOT NULL DEFAULT '',
	created_by     TEXT NOT NULL DEFAULT '',
	confidence     TEXT,
	embedding      TEXT,
	checksum       TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS block_links (
	source_id TEXT NOT NULL,
	to_id     TEXT NOT NULL,
	relation  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_block_links_source ON block_links(source_id);
CREATE INDEX IF NOT EXISTS idx_block_links_to ON block_links(to_id);

CREATE TABLE IF NOT EXISTS node_schemas (
	node_type      TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	json_shape     TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	PRIMARY KEY (node_type, schema_version)
);
`

// Store wraps a sql.DB with record-store operations.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger

	proofOnce sync.Once
	proofErr  error
}

// Open opens (or creates) the SQLite database and applies the schema.
// A connectivity or DDL failure here is a hard failure.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("recordstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("recordstore: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("recordstore: apply schema: %w", err)
	}
	return &Store{conn: conn, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
