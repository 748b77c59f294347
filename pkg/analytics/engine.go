package analytics

import (
	"sort"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/klarvik/schemascope/pkg/graph"
)

// PageRank parameters. The damping factor is the standard 0.85; the
// tolerance bounds the iteration error.
const (
	pageRankDamping   = 0.85
	pageRankTolerance = 1e-6
)

// Engine answers graph-analysis queries over schema graphs. It projects
// the domain graph onto gonum structures per call; graphs at this scale
// are small enough that the projection cost does not matter.
type Engine struct{}

// NewEngine creates an analytics engine.
func NewEngine() *Engine {
	return &Engine{}
}

// PageRank returns the PageRank score per node id.
func (e *Engine) PageRank(g *graph.Graph) (map[string]float64, error) {
	p := project(g)
	ranks := network.PageRank(p.directed, pageRankDamping, pageRankTolerance)

	result := make(map[string]float64, len(ranks))
	for id, rank := range ranks {
		result[p.key(id)] = rank
	}
	return result, nil
}

// DegreeCentrality returns, per node id, the fraction of other nodes it
// is directly connected to (in either direction).
func (e *Engine) DegreeCentrality(g *graph.Graph) (map[string]float64, error) {
	degrees := make(map[string]int, g.NodeCount())
	for _, n := range g.Nodes() {
		degrees[n.ID] = 0
	}
	for _, edge := range g.Edges() {
		if edge.SourceID == edge.TargetID {
			continue
		}
		degrees[edge.SourceID]++
		degrees[edge.TargetID]++
	}

	result := make(map[string]float64, len(degrees))
	denominator := float64(g.NodeCount() - 1)
	for id, degree := range degrees {
		if denominator <= 0 {
			result[id] = 0
			continue
		}
		result[id] = float64(degree) / denominator
	}
	return result, nil
}

// FindCycles returns the strongly connected components with more than
// one node, each as a sorted list of node ids.
func (e *Engine) FindCycles(g *graph.Graph) ([][]string, error) {
	p := project(g)
	sccs := newTarjanSCC(p.directed).findSCCs()

	cycles := make([][]string, 0, len(sccs))
	for _, scc := range sccs {
		cycle := make([]string, 0, len(scc))
		for _, id := range scc {
			cycle = append(cycle, p.key(id))
		}
		sort.Strings(cycle)
		cycles = append(cycles, cycle)
	}
	return cycles, nil
}

// ConnectedComponents returns the weakly connected components, each as
// a sorted list of node ids, largest first.
func (e *Engine) ConnectedComponents(g *graph.Graph) ([][]string, error) {
	p := project(g)

	// Weak connectivity: fold the directed projection into an
	// undirected graph.
	undirected := simple.NewUndirectedGraph()
	nodes := p.directed.Nodes()
	for nodes.Next() {
		undirected.AddNode(nodes.Node())
	}
	edges := p.directed.Edges()
	for edges.Next() {
		edge := edges.Edge()
		if !undirected.HasEdgeBetween(edge.From().ID(), edge.To().ID()) {
			undirected.SetEdge(undirected.NewEdge(edge.From(), edge.To()))
		}
	}

	components := topo.ConnectedComponents(undirected)
	result := make([][]string, 0, len(components))
	for _, component := range components {
		keys := make([]string, 0, len(component))
		for _, node := range component {
			keys = append(keys, p.key(node.ID()))
		}
		sort.Strings(keys)
		result = append(result, keys)
	}
	sort.Slice(result, func(i, j int) bool {
		if len(result[i]) != len(result[j]) {
			return len(result[i]) > len(result[j])
		}
		return result[i][0] < result[j][0]
	})
	return result, nil
}
