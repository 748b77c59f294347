package graph

import "fmt"

// Graph is the aggregate root for a schema knowledge graph. It owns its
// nodes and edges; edges refer to nodes by id, never by pointer.
//
// Graph is not safe for concurrent mutation. Build it single-threaded,
// then treat it as read-only.
type Graph struct {
	ID   string
	Type GraphType

	nodes map[string]*Node
	edges []Edge

	// edgeKeys tracks identity triples so duplicate edges are no-ops.
	edgeKeys map[edgeKey]bool
}

// New creates an empty graph with the given id and type.
func New(id string, t GraphType) (*Graph, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: graph id must not be empty", ErrInvalidArgument)
	}
	if !ValidGraphType(t) {
		return nil, fmt.Errorf("%w: unknown graph type %q", ErrInvalidArgument, string(t))
	}
	return &Graph{
		ID:       id,
		Type:     t,
		nodes:    make(map[string]*Node),
		edgeKeys: make(map[edgeKey]bool),
	}, nil
}

// AddNode adds a node to the graph. Adding a node whose id already exists
// fails with ErrDuplicateNode.
func (g *Graph) AddNode(n *Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("%w: node id must not be empty", ErrInvalidArgument)
	}
	if n.Label == "" {
		return fmt.Errorf("%w: node %s has no label", ErrInvalidArgument, n.ID)
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	if n.Properties == nil {
		n.Properties = make(map[string]any)
	}
	g.nodes[n.ID] = n
	return nil
}

// AddEdge adds a directed edge. Both endpoints must already be nodes of
// the graph, otherwise ErrDanglingEdge is returned. Adding an edge whose
// (source, target, type) triple is already present is a silent no-op;
// the first edge wins.
func (g *Graph) AddEdge(e Edge) error {
	if e.SourceID == "" || e.TargetID == "" {
		return fmt.Errorf("%w: edge endpoints must not be empty", ErrInvalidArgument)
	}
	if _, ok := g.nodes[e.SourceID]; !ok {
		return fmt.Errorf("%w: unknown source %s", ErrDanglingEdge, e.SourceID)
	}
	if _, ok := g.nodes[e.TargetID]; !ok {
		return fmt.Errorf("%w: unknown target %s", ErrDanglingEdge, e.TargetID)
	}
	key := e.key()
	if g.edgeKeys[key] {
		return nil
	}
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	g.edgeKeys[key] = true
	g.edges = append(g.edges, e)
	return nil
}

// GetNode returns the node with the given id, or nil.
func (g *Graph) GetNode(id string) *Node {
	return g.nodes[id]
}

// HasNode reports whether a node with the given id exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes returns a fresh slice of the graph's nodes. Mutating the slice
// does not affect the graph; the nodes themselves are shared.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

// Edges returns a fresh copy of the graph's edges in insertion order.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// ToDict projects the graph into its neutral dictionary form:
// nodes carry id/label/type plus their properties, edges carry
// source/target/type plus optional label and their properties. The
// projection never uses visualization-library vocabulary.
func (g *Graph) ToDict() map[string]any {
	nodes := make([]map[string]any, 0, len(g.nodes))
	for _, n := range g.nodes {
		d := map[string]any{
			"id":    n.ID,
			"label": n.Label,
			"type":  string(n.Type),
		}
		for k, v := range n.Properties {
			d[k] = v
		}
		nodes = append(nodes, d)
	}

	edges := make([]map[string]any, 0, len(g.edges))
	for _, e := range g.edges {
		d := map[string]any{
			"source": e.SourceID,
			"target": e.TargetID,
			"type":   string(e.Type),
		}
		if e.Label != "" {
			d["label"] = e.Label
		}
		for k, v := range e.Properties {
			d[k] = v
		}
		edges = append(edges, d)
	}

	return map[string]any{"nodes": nodes, "edges": edges}
}

// Statistics summarizes a graph for status and metadata surfaces.
type Statistics struct {
	GraphID     string         `json:"graph_id"`
	GraphType   GraphType      `json:"graph_type"`
	NodeCount   int            `json:"node_count"`
	EdgeCount   int            `json:"edge_count"`
	NodesByType map[string]int `json:"nodes_by_type"`
	EdgesByType map[string]int `json:"edges_by_type"`
}

// Statistics computes node and edge counts, per type.
func (g *Graph) Statistics() Statistics {
	stats := Statistics{
		GraphID:     g.ID,
		GraphType:   g.Type,
		NodeCount:   len(g.nodes),
		EdgeCount:   len(g.edges),
		NodesByType: make(map[string]int),
		EdgesByType: make(map[string]int),
	}
	for _, n := range g.nodes {
		stats.NodesByType[string(n.Type)]++
	}
	for _, e := range g.edges {
		stats.EdgesByType[string(e.Type)]++
	}
	return stats
}
