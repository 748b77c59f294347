package analytics

import (
	gonumgraph "gonum.org/v1/gonum/graph"
)

// tarjanSCC finds all strongly connected components using Tarjan's algorithm
type tarjanSCC struct {
	graph   gonumgraph.Directed
	index   int
	stack   []int64
	onStack map[int64]bool
	indices map[int64]int
	lowLink map[int64]int
	sccs    [][]int64
}

func newTarjanSCC(g gonumgraph.Directed) *tarjanSCC {
	return &tarjanSCC{
		graph:   g,
		onStack: make(map[int64]bool),
		indices: make(map[int64]int),
		lowLink: make(map[int64]int),
	}
}

// findSCCs returns the strongly connected components with more than one
// node, i.e. the cycles.
func (t *tarjanSCC) findSCCs() [][]int64 {
	nodes := t.graph.Nodes()
	for nodes.Next() {
		node := nodes.Node()
		if _, visited := t.indices[node.ID()]; !visited {
			t.strongConnect(node.ID())
		}
	}
	return t.sccs
}

// strongConnect performs the recursive Tarjan's algorithm
func (t *tarjanSCC) strongConnect(nodeID int64) {
	// Set the depth index for this node
	t.indices[nodeID] = t.index
	t.lowLink[nodeID] = t.index
	t.index++

	// Push node onto stack
	t.stack = append(t.stack, nodeID)
	t.onStack[nodeID] = true

	// Consider successors of node
	successors := t.graph.From(nodeID)
	for successors.Next() {
		successorID := successors.Node().ID()

		if _, visited := t.indices[successorID]; !visited {
			// Successor has not yet been visited; recurse on it
			t.strongConnect(successorID)
			t.lowLink[nodeID] = min(t.lowLink[nodeID], t.lowLink[successorID])
		} else if t.onStack[successorID] {
			// Successor is on stack and hence in the current SCC
			t.lowLink[nodeID] = min(t.lowLink[nodeID], t.indices[successorID])
		}
	}

	// If nodeID is a root node, pop the stack and create an SCC
	if t.lowLink[nodeID] == t.indices[nodeID] {
		scc := make([]int64, 0)
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == nodeID {
				break
			}
		}
		// Only keep SCCs with more than one node (cycles)
		if len(scc) > 1 {
			t.sccs = append(t.sccs, scc)
		}
	}
}
