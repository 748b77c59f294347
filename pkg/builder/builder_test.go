package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/klarvik/schemascope/pkg/csn"
	"github.com/klarvik/schemascope/pkg/graph"
)

// fakeCorpus implements both parser contracts from canned data.
type fakeCorpus struct {
	entities []string
	metadata map[string]*csn.Metadata
	rels     []csn.Relationship

	listErr error
	relsErr error
}

func (c *fakeCorpus) ListEntities() ([]string, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.entities, nil
}

func (c *fakeCorpus) GetEntityMetadata(name string) (*csn.Metadata, error) {
	return c.metadata[name], nil
}

func (c *fakeCorpus) Relationships() ([]csn.Relationship, error) {
	if c.relsErr != nil {
		return nil, c.relsErr
	}
	return c.rels, nil
}

func TestBuildEmptyCorpus(t *testing.T) {
	b := New(&fakeCorpus{}, &fakeCorpus{})

	g, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build on empty corpus failed: %v", err)
	}
	if g.NodeCount() != 0 || g.EdgeCount() != 0 {
		t.Errorf("Empty corpus should yield an empty graph, got %d/%d", g.NodeCount(), g.EdgeCount())
	}
	if g.ID != SchemaGraphID || g.Type != graph.GraphTypeSchema {
		t.Errorf("Unexpected graph identity: %s/%s", g.ID, g.Type)
	}
}

func TestBuildKnownProductGrouping(t *testing.T) {
	corpus := &fakeCorpus{
		entities: []string{"PurchaseOrder", "PurchaseOrderItem", "SalesOrder"},
		metadata: map[string]*csn.Metadata{
			"PurchaseOrder": {Label: "Purchase Order Header"},
		},
	}
	b := New(corpus, corpus)

	g, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Two products, three tables, one containment edge per table.
	stats := g.Statistics()
	if stats.NodesByType["product"] != 2 || stats.NodesByType["table"] != 3 {
		t.Errorf("Unexpected node counts: %v", stats.NodesByType)
	}
	if stats.EdgesByType["contains"] != 3 {
		t.Errorf("Expected 3 containment edges, got %v", stats.EdgesByType)
	}

	product := g.GetNode("product-Purchase_Order")
	if product == nil {
		t.Fatal("Known product node missing")
	}
	if product.Properties["description"] != "Data Product: Purchase_Order" {
		t.Errorf("Unexpected product description: %v", product.Properties)
	}

	table := g.GetNode("table-Purchase_Order-PurchaseOrder")
	if table == nil {
		t.Fatal("Table node missing")
	}
	if table.Label != "PurchaseOrder" {
		t.Errorf("Table label should be the normalized name, got %q", table.Label)
	}
	if table.Properties["product"] != "Purchase_Order" {
		t.Errorf("Table should record its product, got %v", table.Properties)
	}
	if table.Properties["entity_label"] != "Purchase Order Header" {
		t.Errorf("Entity label from metadata missing: %v", table.Properties)
	}

	if !g.HasNode("table-Sales_Order-SalesOrder") {
		t.Error("SalesOrder should group under Sales_Order")
	}
}

func TestBuildNamespacePrefixGrouping(t *testing.T) {
	corpus := &fakeCorpus{
		entities: []string{"companycode.CompanyCode", "Standalone"},
	}
	b := New(corpus, corpus)

	g, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Namespaced entities group under the prefix before the first dot;
	// bare unknown entities become their own product.
	if !g.HasNode("product-companycode") {
		t.Error("Namespace prefix should become the product")
	}
	table := g.GetNode("table-companycode-companycode.CompanyCode")
	if table == nil {
		t.Fatal("Namespaced table node missing")
	}
	if table.Label != "CompanyCode" {
		t.Errorf("Label should drop the namespace, got %q", table.Label)
	}

	if !g.HasNode("product-Standalone") || !g.HasNode("table-Standalone-Standalone") {
		t.Error("Unknown bare entity should be its own product")
	}
}

func TestBuildForeignKeyEdges(t *testing.T) {
	corpus := &fakeCorpus{
		entities: []string{"SalesOrder", "SalesOrderItem"},
		rels: []csn.Relationship{
			{
				FromEntity:   "SalesOrderItem",
				ToEntity:     "SalesOrder",
				FromColumn:   "SalesOrderID",
				Confidence:   1.0,
				Cardinality:  "1..n",
				OnConditions: []string{"item.parent = header.ID"},
			},
		},
	}
	b := New(corpus, corpus)

	g, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var fk graph.Edge
	var found bool
	for _, e := range g.Edges() {
		if e.Type == graph.EdgeTypeForeignKey {
			fk, found = e, true
			break
		}
	}
	if !found {
		t.Fatal("Foreign key edge missing")
	}
	if fk.SourceID != "table-Sales_Order-SalesOrderItem" || fk.TargetID != "table-Sales_Order-SalesOrder" {
		t.Errorf("Unexpected FK endpoints: %s -> %s", fk.SourceID, fk.TargetID)
	}
	if fk.Label != "SalesOrderID" {
		t.Errorf("FK edge label should be the source column, got %q", fk.Label)
	}
	if fk.Properties["fk_column"] != "SalesOrderID" || fk.Properties["confidence"] != 1.0 {
		t.Errorf("Unexpected FK properties: %v", fk.Properties)
	}
	if fk.Properties["cardinality"] != "1..n" {
		t.Errorf("Cardinality missing: %v", fk.Properties)
	}
	if fk.Properties["join_clause"] != "item.parent = header.ID" {
		t.Errorf("Join clause missing: %v", fk.Properties)
	}
}

func TestBuildSkipsSelfReferences(t *testing.T) {
	corpus := &fakeCorpus{
		entities: []string{"BusinessPartner"},
		rels: []csn.Relationship{
			{FromEntity: "BusinessPartner", ToEntity: "BusinessPartner", FromColumn: "ParentID"},
		},
	}
	b := New(corpus, corpus)

	g, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g.Statistics().EdgesByType["fk"] != 0 {
		t.Error("Self-referential FK should be suppressed")
	}
}

func TestBuildSkipsUnresolvedEndpoints(t *testing.T) {
	corpus := &fakeCorpus{
		entities: []string{"SalesOrder"},
		rels: []csn.Relationship{
			{FromEntity: "SalesOrder", ToEntity: "Phantom", FromColumn: "PhantomID"},
			{FromEntity: "Phantom", ToEntity: "SalesOrder", FromColumn: "SalesOrderID"},
		},
	}
	b := New(corpus, corpus)

	g, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Unresolved endpoints must not fail the build: %v", err)
	}
	if g.Statistics().EdgesByType["fk"] != 0 {
		t.Error("Relationships with unresolved endpoints should be skipped")
	}
}

func TestBuildListEntitiesError(t *testing.T) {
	corpus := &fakeCorpus{listErr: errors.New("corpus unreadable")}
	b := New(corpus, corpus)

	_, err := b.Build(context.Background())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Expected *BuildError, got %v", err)
	}
	if buildErr.Stage != "list_entities" {
		t.Errorf("Unexpected stage: %q", buildErr.Stage)
	}
}

func TestBuildRelationshipsError(t *testing.T) {
	corpus := &fakeCorpus{
		entities: []string{"SalesOrder"},
		relsErr:  errors.New("mapper broke"),
	}
	b := New(corpus, corpus)

	_, err := b.Build(context.Background())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Expected *BuildError, got %v", err)
	}
	if buildErr.Stage != "relationships" {
		t.Errorf("Unexpected stage: %q", buildErr.Stage)
	}
}

func TestWithKnownProducts(t *testing.T) {
	corpus := &fakeCorpus{entities: []string{"Widget"}}
	b := New(corpus, corpus, WithKnownProducts([]KnownProduct{
		{Name: "Inventory", Members: []string{"Widget"}},
	}))

	g, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !g.HasNode("product-Inventory") || !g.HasNode("table-Inventory-Widget") {
		t.Error("Custom known-product map was not applied")
	}
}
