package cache

import (
	"context"
	"fmt"

	"github.com/klarvik/schemascope/pkg/graph"
	"github.com/klarvik/schemascope/pkg/logging"
)

// Builder produces a fresh graph from the source corpus. The cache
// service calls it on a miss, on a corrupted read, and on forced
// rebuilds.
type Builder interface {
	Build(ctx context.Context) (*graph.Graph, error)
}

// Service orchestrates the cache protocol for one (graphID, graphType)
// pair. A read has three outcomes: HIT returns the cached graph, MISS
// rebuilds and saves, and a read error (CORRUPTED) is absorbed and
// handled exactly like a miss. Builder and write errors propagate.
type Service struct {
	repo      Repository
	builder   Builder
	graphID   string
	graphType graph.GraphType
}

// NewService wires a repository and a builder for the given graph.
func NewService(repo Repository, builder Builder, graphID string, t graph.GraphType) *Service {
	return &Service{repo: repo, builder: builder, graphID: graphID, graphType: t}
}

// GetOrRebuild returns the cached graph when possible, rebuilding and
// saving otherwise. The second result reports whether the graph came
// from the cache. On builder failure the stale cache, if any, is left
// in place.
func (s *Service) GetOrRebuild(ctx context.Context) (*graph.Graph, bool, error) {
	g, err := s.repo.Get(ctx, s.graphID, s.graphType)
	if err != nil {
		// Corruption recovery is symmetric to miss recovery: the
		// caller never sees a read error a rebuild can mask.
		logging.Warn("cache read failed, rebuilding",
			"graphType", string(s.graphType), "error", err)
	} else if g != nil {
		logging.Debug("cache hit", "graphType", string(s.graphType),
			"nodes", g.NodeCount(), "edges", g.EdgeCount())
		return g, true, nil
	}

	fresh, err := s.rebuild(ctx)
	if err != nil {
		return nil, false, err
	}
	return fresh, false, nil
}

// ForceRebuild discards any cached graph and rebuilds from source. It
// never consults Get.
func (s *Service) ForceRebuild(ctx context.Context) (*graph.Graph, error) {
	exists, err := s.repo.Exists(ctx, s.graphID, s.graphType)
	if err != nil {
		logging.Warn("cache existence check failed before rebuild",
			"graphType", string(s.graphType), "error", err)
	}
	if exists {
		if _, err := s.repo.Delete(ctx, s.graphID, s.graphType); err != nil {
			return nil, fmt.Errorf("deleting stale cache: %w", err)
		}
	}
	return s.rebuild(ctx)
}

func (s *Service) rebuild(ctx context.Context) (*graph.Graph, error) {
	g, err := s.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, g); err != nil {
		return nil, err
	}
	logging.Info("graph rebuilt", "graphType", string(s.graphType),
		"nodes", g.NodeCount(), "edges", g.EdgeCount())
	return g, nil
}

// ExistsInCache is a thin pass-through to the repository.
func (s *Service) ExistsInCache(ctx context.Context) (bool, error) {
	return s.repo.Exists(ctx, s.graphID, s.graphType)
}

// ClearCache removes the cached graph, reporting whether anything was
// deleted.
func (s *Service) ClearCache(ctx context.Context) (bool, error) {
	return s.repo.Delete(ctx, s.graphID, s.graphType)
}
