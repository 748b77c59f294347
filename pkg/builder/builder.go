package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/klarvik/schemascope/pkg/csn"
	"github.com/klarvik/schemascope/pkg/graph"
	"github.com/klarvik/schemascope/pkg/logging"
)

// SchemaGraphID is the id of the graph the builder produces.
const SchemaGraphID = "schema"

// BuildError marks a failure in the build pipeline, usually a parser or
// relationship-mapper problem.
type BuildError struct {
	Stage string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building schema graph (%s): %v", e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// KnownProduct is a fixed grouping of entities into a data product.
// Matching is on normalized entity names.
type KnownProduct struct {
	Name    string
	Members []string
}

// defaultKnownProducts groups the well-known entity families. Entities
// not covered here fall back to namespace-prefix grouping.
var defaultKnownProducts = []KnownProduct{
	{Name: "Purchase_Order", Members: []string{"PurchaseOrder", "PurchaseOrderItem"}},
	{Name: "Sales_Order", Members: []string{"SalesOrder", "SalesOrderItem"}},
	{Name: "Business_Partner", Members: []string{"BusinessPartner", "BusinessPartnerAddress"}},
}

// SchemaGraphBuilder derives the schema knowledge graph from a CSN
// corpus: product nodes, table nodes, containment edges and foreign-key
// edges. The builder performs no I/O of its own; it is pure with
// respect to the parser snapshot it is given.
type SchemaGraphBuilder struct {
	entities csn.EntityLister
	mapper   csn.RelationshipMapper
	known    []KnownProduct
}

// Option configures a SchemaGraphBuilder.
type Option func(*SchemaGraphBuilder)

// WithKnownProducts replaces the default known-product map.
func WithKnownProducts(products []KnownProduct) Option {
	return func(b *SchemaGraphBuilder) {
		b.known = products
	}
}

// New creates a builder over the given parser contracts.
func New(entities csn.EntityLister, mapper csn.RelationshipMapper, opts ...Option) *SchemaGraphBuilder {
	b := &SchemaGraphBuilder{
		entities: entities,
		mapper:   mapper,
		known:    defaultKnownProducts,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the derivation pipeline and returns the populated graph.
func (b *SchemaGraphBuilder) Build(ctx context.Context) (*graph.Graph, error) {
	g, err := graph.New(SchemaGraphID, graph.GraphTypeSchema)
	if err != nil {
		return nil, err
	}

	names, err := b.entities.ListEntities()
	if err != nil {
		return nil, &BuildError{Stage: "list_entities", Err: err}
	}
	if len(names) == 0 {
		logging.Debug("no entities in corpus, returning empty schema graph")
		return g, nil
	}

	// Group entities into products, preserving first-seen product order.
	type member struct {
		raw     string
		product string
	}
	var productOrder []string
	seenProduct := make(map[string]bool)
	members := make([]member, 0, len(names))
	for _, raw := range names {
		product := b.productFor(raw)
		if !seenProduct[product] {
			seenProduct[product] = true
			productOrder = append(productOrder, product)
		}
		members = append(members, member{raw: raw, product: product})
	}

	for _, product := range productOrder {
		node := graph.NewNode("product-"+product, product, graph.NodeTypeProduct)
		node.Properties["description"] = "Data Product: " + product
		if err := g.AddNode(node); err != nil {
			return nil, &BuildError{Stage: "product_nodes", Err: err}
		}
	}

	// tableByName resolves normalized entity names to table node ids for
	// the relationship pass. First table wins on normalization clashes.
	tableByName := make(map[string]string)
	for _, m := range members {
		id := "table-" + m.product + "-" + m.raw
		normalized := csn.NormalizeName(m.raw)

		node := graph.NewNode(id, normalized, graph.NodeTypeTable)
		node.Properties["product"] = m.product

		meta, err := b.entities.GetEntityMetadata(m.raw)
		if err != nil {
			return nil, &BuildError{Stage: "entity_metadata", Err: err}
		}
		if meta != nil && meta.Label != "" {
			node.Properties["entity_label"] = meta.Label
		}

		if err := g.AddNode(node); err != nil {
			return nil, &BuildError{Stage: "table_nodes", Err: err}
		}
		if _, taken := tableByName[normalized]; !taken {
			tableByName[normalized] = id
		}

		edge := graph.Edge{
			SourceID: "product-" + m.product,
			TargetID: id,
			Type:     graph.EdgeTypeContains,
			Label:    "contains",
		}
		if err := g.AddEdge(edge); err != nil {
			return nil, &BuildError{Stage: "containment_edges", Err: err}
		}
	}

	if err := b.addForeignKeyEdges(g, tableByName); err != nil {
		return nil, err
	}

	logging.Debug("schema graph built", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return g, nil
}

// productFor applies the two-level product inference policy: the known
// map first (matched on the normalized name), then the namespace prefix,
// then the raw name itself.
func (b *SchemaGraphBuilder) productFor(raw string) string {
	normalized := csn.NormalizeName(raw)
	for _, kp := range b.known {
		for _, m := range kp.Members {
			if m == normalized {
				return kp.Name
			}
		}
	}
	if idx := strings.Index(raw, "."); idx > 0 {
		return raw[:idx]
	}
	return raw
}

func (b *SchemaGraphBuilder) addForeignKeyEdges(g *graph.Graph, tableByName map[string]string) error {
	rels, err := b.mapper.Relationships()
	if err != nil {
		return &BuildError{Stage: "relationships", Err: err}
	}

	for _, rel := range rels {
		sourceID, sourceOK := tableByName[rel.FromEntity]
		targetID, targetOK := tableByName[rel.ToEntity]
		if !sourceOK || !targetOK {
			logging.Warn("skipping relationship with unresolved endpoint",
				"from", rel.FromEntity, "to", rel.ToEntity,
				"fromResolved", sourceOK, "toResolved", targetOK)
			continue
		}
		if sourceID == targetID {
			// Self-referential foreign keys stay out of the graph.
			logging.Debug("skipping self-referential relationship",
				"entity", rel.FromEntity, "column", rel.FromColumn)
			continue
		}

		props := map[string]any{
			"source_table": rel.FromEntity,
			"target_table": rel.ToEntity,
			"fk_column":    rel.FromColumn,
			"confidence":   rel.Confidence,
			"inferred":     rel.Inferred,
		}
		if rel.Cardinality != "" {
			props["cardinality"] = rel.Cardinality
		}
		if len(rel.OnConditions) > 0 {
			props["on_conditions"] = rel.OnConditions
			props["join_clause"] = strings.Join(rel.OnConditions, " AND ")
		}
		if rel.IsComposition {
			props["is_composition"] = true
		}
		if rel.IsManyToMany {
			props["is_many_to_many"] = true
		}

		edge := graph.Edge{
			SourceID:   sourceID,
			TargetID:   targetID,
			Type:       graph.EdgeTypeForeignKey,
			Label:      rel.FromColumn,
			Properties: props,
		}
		if err := g.AddEdge(edge); err != nil {
			return &BuildError{Stage: "foreign_key_edges", Err: err}
		}
	}
	return nil
}
