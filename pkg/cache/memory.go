package cache

import (
	"context"
	"sync"

	"github.com/klarvik/schemascope/pkg/graph"
)

// MemoryRepository keeps cached graphs in process memory. It is used in
// tests and as a warm cache for single-process deployments. Safe for
// concurrent use.
type MemoryRepository struct {
	mu     sync.RWMutex
	graphs map[graph.GraphType]*graph.Graph
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{graphs: make(map[graph.GraphType]*graph.Graph)}
}

func (r *MemoryRepository) Save(ctx context.Context, g *graph.Graph) error {
	stored, err := cloneGraph(g)
	if err != nil {
		return &RepositoryError{Op: "save", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[g.Type] = stored
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, graphID string, t graph.GraphType) (*graph.Graph, error) {
	r.mu.RLock()
	stored, ok := r.graphs[t]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return cloneGraph(stored)
}

func (r *MemoryRepository) Exists(ctx context.Context, graphID string, t graph.GraphType) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.graphs[t]
	return ok, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, graphID string, t graph.GraphType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.graphs[t]; !ok {
		return false, nil
	}
	delete(r.graphs, t)
	return true, nil
}

func (r *MemoryRepository) ClearAll(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := len(r.graphs)
	r.graphs = make(map[graph.GraphType]*graph.Graph)
	return count, nil
}

func (r *MemoryRepository) Close() error { return nil }
