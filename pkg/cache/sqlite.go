package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/klarvik/schemascope/pkg/graph"
	"github.com/klarvik/schemascope/pkg/logging"
)

// schemaStatements is the v1 relational layout. The shape is fixed for
// inter-version compatibility: one ontology row per graph type, with
// nodes and edges cascading from it.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS graph_ontology (
		ontology_id INTEGER PRIMARY KEY AUTOINCREMENT,
		graph_type  TEXT NOT NULL CHECK (graph_type IN ('schema', 'data', 'csn')),
		description TEXT,
		created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (graph_type)
	)`,
	`CREATE TABLE IF NOT EXISTS graph_nodes (
		node_id         INTEGER PRIMARY KEY AUTOINCREMENT,
		ontology_id     INTEGER NOT NULL REFERENCES graph_ontology(ontology_id) ON DELETE CASCADE,
		node_key        TEXT NOT NULL,
		node_label      TEXT NOT NULL,
		node_type       TEXT,
		properties_json TEXT,
		UNIQUE (ontology_id, node_key)
	)`,
	`CREATE TABLE IF NOT EXISTS graph_edges (
		edge_id         INTEGER PRIMARY KEY AUTOINCREMENT,
		ontology_id     INTEGER NOT NULL REFERENCES graph_ontology(ontology_id) ON DELETE CASCADE,
		from_node_key   TEXT NOT NULL,
		to_node_key     TEXT NOT NULL,
		edge_type       TEXT,
		edge_label      TEXT,
		properties_json TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_graph_nodes_ontology ON graph_nodes(ontology_id)`,
	`CREATE INDEX IF NOT EXISTS idx_graph_nodes_key ON graph_nodes(ontology_id, node_key)`,
	`CREATE INDEX IF NOT EXISTS idx_graph_edges_ontology ON graph_edges(ontology_id)`,
	`CREATE INDEX IF NOT EXISTS idx_graph_edges_from ON graph_edges(ontology_id, from_node_key)`,
	`CREATE INDEX IF NOT EXISTS idx_graph_edges_to ON graph_edges(ontology_id, to_node_key)`,
}

// SQLiteRepository is the durable, cross-process repository backed by a
// single SQLite file. Concurrency control is delegated to SQLite's own
// transaction isolation; a save is one transaction, so readers observe
// either the old graph, the new graph, or nothing.
type SQLiteRepository struct {
	db        *sql.DB
	cascadeFK bool
}

// SQLiteOption configures a SQLiteRepository.
type SQLiteOption func(*SQLiteRepository)

// WithCascadeFK controls whether foreign-key cascading is asserted at
// session scope before delete and clear operations. Default true.
func WithCascadeFK(enabled bool) SQLiteOption {
	return func(r *SQLiteRepository) {
		r.cascadeFK = enabled
	}
}

// NewSQLiteRepository opens (and migrates) the cache database at path.
func NewSQLiteRepository(path string, opts ...SQLiteOption) (*SQLiteRepository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	r := &SQLiteRepository{db: db, cascadeFK: true}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// assertCascade enables foreign-key enforcement for the session before
// operations that rely on ON DELETE CASCADE.
func (r *SQLiteRepository) assertCascade(ctx context.Context) error {
	if !r.cascadeFK {
		return nil
	}
	_, err := r.db.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	return err
}

func (r *SQLiteRepository) Save(ctx context.Context, g *graph.Graph) error {
	if err := r.assertCascade(ctx); err != nil {
		return &RepositoryError{Op: "save", Err: err}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &RepositoryError{Op: "save", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	// Overwrite semantics: drop the previous graph of this type in the
	// same unit of work. Cascade removes its nodes and edges.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM graph_ontology WHERE graph_type = ?", string(g.Type)); err != nil {
		return &RepositoryError{Op: "save", Err: err}
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO graph_ontology (graph_type, description) VALUES (?, ?)",
		string(g.Type), g.ID)
	if err != nil {
		return &RepositoryError{Op: "save", Err: err}
	}
	ontologyID, err := res.LastInsertId()
	if err != nil {
		return &RepositoryError{Op: "save", Err: err}
	}

	nodeStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO graph_nodes (ontology_id, node_key, node_label, node_type, properties_json) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return &RepositoryError{Op: "save", Err: err}
	}
	defer func() { _ = nodeStmt.Close() }()

	for _, n := range g.Nodes() {
		props, err := marshalProperties(n.Properties)
		if err != nil {
			return &RepositoryError{Op: "save", Err: fmt.Errorf("node %s: %w", n.ID, err)}
		}
		if _, err := nodeStmt.ExecContext(ctx, ontologyID, n.ID, n.Label, string(n.Type), props); err != nil {
			return &RepositoryError{Op: "save", Err: fmt.Errorf("node %s: %w", n.ID, err)}
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO graph_edges (ontology_id, from_node_key, to_node_key, edge_type, edge_label, properties_json) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return &RepositoryError{Op: "save", Err: err}
	}
	defer func() { _ = edgeStmt.Close() }()

	for _, e := range g.Edges() {
		props, err := marshalProperties(e.Properties)
		if err != nil {
			return &RepositoryError{Op: "save", Err: fmt.Errorf("edge %s->%s: %w", e.SourceID, e.TargetID, err)}
		}
		var label any
		if e.Label != "" {
			label = e.Label
		}
		if _, err := edgeStmt.ExecContext(ctx, ontologyID, e.SourceID, e.TargetID, string(e.Type), label, props); err != nil {
			return &RepositoryError{Op: "save", Err: fmt.Errorf("edge %s->%s: %w", e.SourceID, e.TargetID, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &RepositoryError{Op: "save", Err: err}
	}

	logging.Debug("graph saved", "graphType", string(g.Type), "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, graphID string, t graph.GraphType) (*graph.Graph, error) {
	var ontologyID int64
	err := r.db.QueryRowContext(ctx,
		"SELECT ontology_id FROM graph_ontology WHERE graph_type = ?", string(t)).Scan(&ontologyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading ontology row: %w", err)
	}

	g, err := graph.New(graphID, t)
	if err != nil {
		return nil, err
	}

	// Nodes first, then edges, so referential integrity holds during
	// replay.
	if err := r.loadNodes(ctx, ontologyID, g); err != nil {
		return nil, err
	}
	if err := r.loadEdges(ctx, ontologyID, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *SQLiteRepository) loadNodes(ctx context.Context, ontologyID int64, g *graph.Graph) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT node_key, node_label, node_type, properties_json FROM graph_nodes WHERE ontology_id = ? ORDER BY node_id", ontologyID)
	if err != nil {
		return fmt.Errorf("loading nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key, label string
		var nodeType, propsJSON sql.NullString
		if err := rows.Scan(&key, &label, &nodeType, &propsJSON); err != nil {
			return fmt.Errorf("scanning node row: %w", err)
		}

		t, known := graph.ParseNodeType(nodeType.String)
		if !known {
			logging.Warn("unknown node type, using default", "nodeKey", key, "storedType", nodeType.String, "default", string(t))
		}

		node := graph.NewNode(key, label, t)
		if err := unmarshalProperties(propsJSON, node.Properties); err != nil {
			return fmt.Errorf("node %s properties: %w", key, err)
		}
		if err := g.AddNode(node); err != nil {
			return fmt.Errorf("replaying node %s: %w", key, err)
		}
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadEdges(ctx context.Context, ontologyID int64, g *graph.Graph) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT from_node_key, to_node_key, edge_type, edge_label, properties_json FROM graph_edges WHERE ontology_id = ? ORDER BY edge_id", ontologyID)
	if err != nil {
		return fmt.Errorf("loading edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var from, to string
		var edgeType, label, propsJSON sql.NullString
		if err := rows.Scan(&from, &to, &edgeType, &label, &propsJSON); err != nil {
			return fmt.Errorf("scanning edge row: %w", err)
		}

		t, known := graph.ParseEdgeType(edgeType.String)
		if !known {
			logging.Warn("unknown edge type, using default", "from", from, "to", to, "storedType", edgeType.String, "default", string(t))
		}

		props := make(map[string]any)
		if err := unmarshalProperties(propsJSON, props); err != nil {
			return fmt.Errorf("edge %s->%s properties: %w", from, to, err)
		}
		edge := graph.Edge{SourceID: from, TargetID: to, Type: t, Label: label.String, Properties: props}
		if err := g.AddEdge(edge); err != nil {
			return fmt.Errorf("replaying edge %s->%s: %w", from, to, err)
		}
	}
	return rows.Err()
}

func (r *SQLiteRepository) Exists(ctx context.Context, graphID string, t graph.GraphType) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM graph_ontology WHERE graph_type = ?", string(t)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking cache: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, graphID string, t graph.GraphType) (bool, error) {
	if err := r.assertCascade(ctx); err != nil {
		return false, &RepositoryError{Op: "delete", Err: err}
	}

	res, err := r.db.ExecContext(ctx,
		"DELETE FROM graph_ontology WHERE graph_type = ?", string(t))
	if err != nil {
		return false, &RepositoryError{Op: "delete", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, &RepositoryError{Op: "delete", Err: err}
	}
	return affected > 0, nil
}

func (r *SQLiteRepository) ClearAll(ctx context.Context) (int, error) {
	if err := r.assertCascade(ctx); err != nil {
		return 0, &RepositoryError{Op: "clear_all", Err: err}
	}

	res, err := r.db.ExecContext(ctx, "DELETE FROM graph_ontology")
	if err != nil {
		return 0, &RepositoryError{Op: "clear_all", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &RepositoryError{Op: "clear_all", Err: err}
	}
	return int(affected), nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// marshalProperties serializes a properties map, representing absence as
// SQL NULL rather than "{}".
func marshalProperties(props map[string]any) (any, error) {
	if len(props) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// unmarshalProperties decodes a stored properties column into dst.
func unmarshalProperties(col sql.NullString, dst map[string]any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), &dst)
}
