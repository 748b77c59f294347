package cache

import (
	"context"
	"fmt"

	"github.com/klarvik/schemascope/pkg/graph"
)

// Repository persists schema knowledge graphs.
//
// The v1 storage schema keys cache entries on graph type alone (one
// cached graph per type per store). Get, Exists and Delete still accept
// a graphID so the signature survives a future multi-graph schema; the
// id is carried through but does not participate in lookups.
type Repository interface {
	// Save persists a graph with overwrite semantics: an existing graph
	// of the same type is removed in the same unit of work before the
	// new rows are written. Mid-stream failures roll back and surface
	// as a *RepositoryError.
	Save(ctx context.Context, g *graph.Graph) error

	// Get reconstructs a persisted graph, or returns (nil, nil) when no
	// graph of that type is cached.
	Get(ctx context.Context, graphID string, t graph.GraphType) (*graph.Graph, error)

	// Exists reports whether a graph of the given type is cached.
	Exists(ctx context.Context, graphID string, t graph.GraphType) (bool, error)

	// Delete removes a cached graph and everything it owns. It reports
	// whether anything was deleted.
	Delete(ctx context.Context, graphID string, t graph.GraphType) (bool, error)

	// ClearAll removes every cached graph and returns how many were
	// deleted.
	ClearAll(ctx context.Context) (int, error)

	// Close releases the repository's resources.
	Close() error
}

// RepositoryError marks a persistence failure on the write path.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// cloneGraph deep-copies a graph so repository callers and internal
// storage never share mutable state.
func cloneGraph(g *graph.Graph) (*graph.Graph, error) {
	clone, err := graph.New(g.ID, g.Type)
	if err != nil {
		return nil, err
	}
	for _, n := range g.Nodes() {
		copied := graph.NewNode(n.ID, n.Label, n.Type)
		for k, v := range n.Properties {
			copied.Properties[k] = v
		}
		if err := clone.AddNode(copied); err != nil {
			return nil, err
		}
	}
	for _, e := range g.Edges() {
		props := make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			props[k] = v
		}
		err := clone.AddEdge(graph.Edge{
			SourceID:   e.SourceID,
			TargetID:   e.TargetID,
			Type:       e.Type,
			Label:      e.Label,
			Properties: props,
		})
		if err != nil {
			return nil, err
		}
	}
	return clone, nil
}
