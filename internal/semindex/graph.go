package semindex

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const graphSchemaSQL = `
CREATE TABLE IF NOT EXISTS edges (
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	category  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
`

// graphIndex stores the typed edges of the graph sub-index in its own
// SQLite database, separate from the record store. Duplicate edges of the
// same category are kept as independent rows.
type graphIndex struct {
	conn *sql.DB
}

func newGraphIndex(dsn string) (*graphIndex, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("semindex: open graph db: %w", err)
	}
	if dsn == ":memory:" {
		// Every pooled connection would otherwise get its own empty
		// in-memory database.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("semindex: ping graph db: %w", err)
	}
	if _, err := conn.Exec(graphSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("semindex: apply graph schema: %w", err)
	}
	return &graphIndex{conn: conn}, nil
}

// upsert replaces the node's outgoing edges with the node's current set.
func (g *graphIndex) upsert(ctx context.Context, n Node) error {
	tx, err := g.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("semindex: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE source_id = ?`, n.ID); err != nil {
		return fmt.Errorf("semindex: clear edges: %w", err)
	}
	if len(n.Edges) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO edges (source_id, target_id, category) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("semindex: prepare edge insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range n.Edges {
			if _, err := stmt.ExecContext(ctx, e.SourceID, e.TargetID, e.Category); err != nil {
				return fmt.Errorf("semindex: insert edge: %w", err)
			}
		}
	}
	return tx.Commit()
}

// delete removes the outgoing edges of the given nodes.
func (g *graphIndex) delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := g.conn.ExecContext(ctx, `DELETE FROM edges WHERE source_id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("semindex: delete edges: %w", err)
	}
	return nil
}

// forwardEdges returns the edges leaving a node.
func (g *graphIndex) forwardEdges(ctx context.Context, id string) ([]Edge, error) {
	return g.queryEdges(ctx, `SELECT source_id, target_id, category FROM edges WHERE source_id = ?`, id)
}

// backwardEdges returns the edges arriving at a node.
func (g *graphIndex) backwardEdges(ctx context.Context, id string) ([]Edge, error) {
	return g.queryEdges(ctx, `SELECT source_id, target_id, category FROM edges WHERE target_id = ?`, id)
}

func (g *graphIndex) queryEdges(ctx context.Context, q, id string) ([]Edge, error) {
	rows, err := g.conn.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("semindex: query edges: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Category); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (g *graphIndex) close() error {
	return g.conn.Close()
}
