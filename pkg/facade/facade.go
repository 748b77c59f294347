package facade

import (
	"context"
	"errors"

	"github.com/klarvik/schemascope/pkg/builder"
	"github.com/klarvik/schemascope/pkg/cache"
	"github.com/klarvik/schemascope/pkg/csn"
	"github.com/klarvik/schemascope/pkg/graph"
	"github.com/klarvik/schemascope/pkg/logging"
)

// Result is the shape every facade operation returns: a JSON-ready
// dictionary with a success flag, payload on success, and error plus
// error_type on failure. The facade never returns a Go error to its
// callers.
type Result = map[string]any

// QueryEngine is the optional graph-analysis collaborator behind the
// advanced surface. When none is injected those operations report
// "not initialized".
type QueryEngine interface {
	PageRank(g *graph.Graph) (map[string]float64, error)
	DegreeCentrality(g *graph.Graph) (map[string]float64, error)
	FindCycles(g *graph.Graph) ([][]string, error)
	ConnectedComponents(g *graph.Graph) ([][]string, error)
}

// Facade is the external-facing read API over the schema graph cache.
type Facade struct {
	service      *cache.Service
	csnDirectory string
	query        QueryEngine
}

// Option configures a Facade.
type Option func(*Facade)

// WithQueryEngine injects the advanced-analytics collaborator.
func WithQueryEngine(q QueryEngine) Option {
	return func(f *Facade) {
		f.query = q
	}
}

// New creates a facade over a cache service. csnDirectory is only used
// for the status surface.
func New(service *cache.Service, csnDirectory string, opts ...Option) *Facade {
	f := &Facade{service: service, csnDirectory: csnDirectory}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetSchemaGraph returns the schema graph in neutral dictionary form,
// rebuilding on cache miss or corruption. With useCache false the cache
// is bypassed and rebuilt unconditionally.
func (f *Facade) GetSchemaGraph(ctx context.Context, useCache bool) Result {
	if !useCache {
		return f.RebuildSchemaGraph(ctx)
	}

	g, _, err := f.service.GetOrRebuild(ctx)
	if err != nil {
		return failure(err)
	}
	return graphResult(g, true)
}

// RebuildSchemaGraph discards the cache and rebuilds from the corpus.
func (f *Facade) RebuildSchemaGraph(ctx context.Context) Result {
	g, err := f.service.ForceRebuild(ctx)
	if err != nil {
		return failure(err)
	}
	return graphResult(g, false)
}

// GetSchemaStatus reports cache state and corpus shape.
func (f *Facade) GetSchemaStatus(ctx context.Context) Result {
	cached, err := f.service.ExistsInCache(ctx)
	if err != nil {
		return failure(err)
	}
	return Result{
		"success":         true,
		"cached":          cached,
		"csn_files_count": csn.CountDocuments(f.csnDirectory),
		"csn_directory":   f.csnDirectory,
	}
}

// ClearSchemaCache removes the cached schema graph.
func (f *Facade) ClearSchemaCache(ctx context.Context) Result {
	cleared, err := f.service.ClearCache(ctx)
	if err != nil {
		return failure(err)
	}
	return Result{"success": true, "cleared": cleared}
}

// GetGraphStatistics returns node and edge statistics for the current
// graph. Part of the advanced surface.
func (f *Facade) GetGraphStatistics(ctx context.Context) Result {
	return f.withQueryGraph(ctx, func(g *graph.Graph) (string, any, error) {
		stats := g.Statistics()
		return "statistics", Result{
			"graph_id":      stats.GraphID,
			"graph_type":    string(stats.GraphType),
			"node_count":    stats.NodeCount,
			"edge_count":    stats.EdgeCount,
			"nodes_by_type": stats.NodesByType,
			"edges_by_type": stats.EdgesByType,
		}, nil
	})
}

// GetPageRank returns PageRank scores per node.
func (f *Facade) GetPageRank(ctx context.Context) Result {
	return f.withQueryGraph(ctx, func(g *graph.Graph) (string, any, error) {
		ranks, err := f.query.PageRank(g)
		return "pagerank", ranks, err
	})
}

// GetCentrality returns degree centrality per node.
func (f *Facade) GetCentrality(ctx context.Context) Result {
	return f.withQueryGraph(ctx, func(g *graph.Graph) (string, any, error) {
		centrality, err := f.query.DegreeCentrality(g)
		return "centrality", centrality, err
	})
}

// FindCycles returns the cycles in the graph, if any.
func (f *Facade) FindCycles(ctx context.Context) Result {
	return f.withQueryGraph(ctx, func(g *graph.Graph) (string, any, error) {
		cycles, err := f.query.FindCycles(g)
		return "cycles", cycles, err
	})
}

// GetConnectedComponents returns the weakly connected components.
func (f *Facade) GetConnectedComponents(ctx context.Context) Result {
	return f.withQueryGraph(ctx, func(g *graph.Graph) (string, any, error) {
		components, err := f.query.ConnectedComponents(g)
		return "components", components, err
	})
}

// withQueryGraph runs one advanced-surface computation against the
// current graph, guarding on the injected collaborator.
func (f *Facade) withQueryGraph(ctx context.Context, compute func(*graph.Graph) (string, any, error)) Result {
	if f.query == nil {
		return Result{
			"success":    false,
			"error":      "graph query engine not initialized",
			"error_type": "NotInitialized",
		}
	}

	g, _, err := f.service.GetOrRebuild(ctx)
	if err != nil {
		return failure(err)
	}

	key, payload, err := compute(g)
	if err != nil {
		return failure(err)
	}
	return Result{"success": true, key: payload}
}

// graphResult shapes a successful graph response. cache_used reflects
// whether the caller went through the cache path, not whether the read
// was a hit; a corrupted-cache rebuild still counts as a cached call.
func graphResult(g *graph.Graph, cacheUsed bool) Result {
	stats := g.Statistics()
	return Result{
		"success":    true,
		"graph":      g.ToDict(),
		"cache_used": cacheUsed,
		"metadata": Result{
			"graph_id":      stats.GraphID,
			"graph_type":    string(stats.GraphType),
			"node_count":    stats.NodeCount,
			"edge_count":    stats.EdgeCount,
			"nodes_by_type": stats.NodesByType,
			"edges_by_type": stats.EdgesByType,
		},
	}
}

// failure shapes an error response and classifies the error kind.
func failure(err error) Result {
	logging.Error("facade operation failed", "error", err)
	return Result{
		"success":    false,
		"error":      err.Error(),
		"error_type": errorType(err),
	}
}

func errorType(err error) string {
	var repoErr *cache.RepositoryError
	var buildErr *builder.BuildError
	switch {
	case errors.As(err, &repoErr):
		return "RepositoryError"
	case errors.As(err, &buildErr):
		return "BuilderError"
	case errors.Is(err, graph.ErrDuplicateNode):
		return "DuplicateNode"
	case errors.Is(err, graph.ErrDanglingEdge):
		return "DanglingEdge"
	case errors.Is(err, graph.ErrInvalidArgument):
		return "InvalidArgument"
	}
	return "InternalError"
}
