package graph

// NodeType classifies a node in a schema knowledge graph.
type NodeType string

const (
	NodeTypeProduct NodeType = "product"
	NodeTypeTable   NodeType = "table"
	NodeTypeRecord  NodeType = "record"
	NodeTypeColumn  NodeType = "column"
)

// ParseNodeType maps a stored string to a NodeType. Unknown values fall
// back to NodeTypeTable so that old or foreign rows still load.
func ParseNodeType(s string) (NodeType, bool) {
	switch NodeType(s) {
	case NodeTypeProduct, NodeTypeTable, NodeTypeRecord, NodeTypeColumn:
		return NodeType(s), true
	}
	return NodeTypeTable, false
}

// EdgeType classifies a relationship between two nodes.
type EdgeType string

const (
	// EdgeTypeContains links a product node to a table it owns.
	EdgeTypeContains EdgeType = "contains"

	// EdgeTypeForeignKey links two table nodes through a foreign key.
	EdgeTypeForeignKey EdgeType = "fk"

	// EdgeTypeReferences is the generic relationship type.
	EdgeTypeReferences EdgeType = "references"
)

// ParseEdgeType maps a stored string to an EdgeType. Unknown values fall
// back to EdgeTypeReferences.
func ParseEdgeType(s string) (EdgeType, bool) {
	switch EdgeType(s) {
	case EdgeTypeContains, EdgeTypeForeignKey, EdgeTypeReferences:
		return EdgeType(s), true
	}
	return EdgeTypeReferences, false
}

// GraphType identifies which kind of graph a cache entry holds.
type GraphType string

const (
	GraphTypeSchema GraphType = "schema"
	GraphTypeData   GraphType = "data"
	GraphTypeCSN    GraphType = "csn"
)

// ValidGraphType reports whether s is a known GraphType value.
func ValidGraphType(t GraphType) bool {
	switch t {
	case GraphTypeSchema, GraphTypeData, GraphTypeCSN:
		return true
	}
	return false
}

// Node is a vertex in the schema graph. ID, Label and Type are fixed at
// construction; Properties may be extended by the builder before the
// graph is handed off.
type Node struct {
	ID         string
	Label      string
	Type       NodeType
	Properties map[string]any
}

// NewNode creates a node with an empty properties map.
func NewNode(id, label string, t NodeType) *Node {
	return &Node{
		ID:         id,
		Label:      label,
		Type:       t,
		Properties: make(map[string]any),
	}
}

// Edge is a directed, immutable connection between two nodes, identified
// by the (SourceID, TargetID, Type) triple. Label and Properties are
// serialized but do not participate in identity.
type Edge struct {
	SourceID   string
	TargetID   string
	Type       EdgeType
	Label      string
	Properties map[string]any
}

// edgeKey is the identity triple used for deduplication.
type edgeKey struct {
	source string
	target string
	typ    EdgeType
}

func (e Edge) key() edgeKey {
	return edgeKey{source: e.SourceID, target: e.TargetID, typ: e.Type}
}
