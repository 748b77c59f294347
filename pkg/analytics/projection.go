package analytics

import (
	"gonum.org/v1/gonum/graph/simple"

	"github.com/klarvik/schemascope/pkg/graph"
)

// projection maps a schema graph onto a gonum directed graph with a
// stable id mapping in both directions.
type projection struct {
	directed *simple.DirectedGraph
	ids      map[string]int64
	keys     map[int64]string
	nextID   int64
}

func project(g *graph.Graph) *projection {
	p := &projection{
		directed: simple.NewDirectedGraph(),
		ids:      make(map[string]int64),
		keys:     make(map[int64]string),
	}

	for _, n := range g.Nodes() {
		p.add(n.ID)
	}
	for _, e := range g.Edges() {
		from := p.ids[e.SourceID]
		to := p.ids[e.TargetID]
		if from == to {
			// simple.DirectedGraph panics on self loops.
			continue
		}
		if !p.directed.HasEdgeFromTo(from, to) {
			p.directed.SetEdge(p.directed.NewEdge(p.directed.Node(from), p.directed.Node(to)))
		}
	}
	return p
}

func (p *projection) add(key string) {
	if _, exists := p.ids[key]; exists {
		return
	}
	p.ids[key] = p.nextID
	p.keys[p.nextID] = key
	p.directed.AddNode(simple.Node(p.nextID))
	p.nextID++
}

// key returns the node key for a gonum id.
func (p *projection) key(id int64) string {
	return p.keys[id]
}
