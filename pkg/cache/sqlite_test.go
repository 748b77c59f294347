package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/klarvik/schemascope/pkg/graph"
)

func newTestSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteRoundTrip(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	g := sampleGraph(t)
	fk := graph.Edge{
		SourceID: "table-Sales_Order-SalesOrder",
		TargetID: "product-Sales_Order",
		Type:     graph.EdgeTypeForeignKey,
		Label:    "ProductID",
		Properties: map[string]any{
			"fk_column":  "ProductID",
			"confidence": 0.9,
			"inferred":   true,
		},
	}
	if err := g.AddEdge(fk); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}

	if err := repo.Save(ctx, g); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.Get(ctx, "schema", graph.GraphTypeSchema)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for a saved graph")
	}
	if got.NodeCount() != g.NodeCount() || got.EdgeCount() != g.EdgeCount() {
		t.Fatalf("Round trip changed shape: %d/%d vs %d/%d",
			got.NodeCount(), got.EdgeCount(), g.NodeCount(), g.EdgeCount())
	}

	node := got.GetNode("product-Sales_Order")
	if node == nil {
		t.Fatal("Product node missing after round trip")
	}
	if node.Type != graph.NodeTypeProduct || node.Label != "Sales_Order" {
		t.Errorf("Node identity changed: %+v", node)
	}
	if node.Properties["description"] != "Data Product: Sales_Order" {
		t.Errorf("Node properties lost: %v", node.Properties)
	}

	var fkEdge graph.Edge
	var found bool
	for _, e := range got.Edges() {
		if e.Type == graph.EdgeTypeForeignKey {
			fkEdge, found = e, true
			break
		}
	}
	if !found {
		t.Fatal("Foreign key edge missing after round trip")
	}
	if fkEdge.Label != "ProductID" {
		t.Errorf("Edge label changed: %q", fkEdge.Label)
	}
	// JSON numbers come back as float64.
	if fkEdge.Properties["fk_column"] != "ProductID" ||
		fkEdge.Properties["confidence"] != 0.9 ||
		fkEdge.Properties["inferred"] != true {
		t.Errorf("Edge properties lost: %v", fkEdge.Properties)
	}
}

func TestSQLiteGetMissing(t *testing.T) {
	repo := newTestSQLiteRepo(t)

	got, err := repo.Get(context.Background(), "schema", graph.GraphTypeSchema)
	if err != nil {
		t.Fatalf("Get on empty store failed: %v", err)
	}
	if got != nil {
		t.Error("Expected nil graph when nothing is cached")
	}
}

func TestSQLiteOverwrite(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, sampleGraph(t)); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	// Second save of the same graph type must replace, not accumulate.
	small, _ := graph.New("schema", graph.GraphTypeSchema)
	_ = small.AddNode(graph.NewNode("product-Only", "Only", graph.NodeTypeProduct))
	if err := repo.Save(ctx, small); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	got, err := repo.Get(ctx, "schema", graph.GraphTypeSchema)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.NodeCount() != 1 || got.EdgeCount() != 0 {
		t.Errorf("Overwrite left stale rows: %d nodes, %d edges", got.NodeCount(), got.EdgeCount())
	}
	if !got.HasNode("product-Only") {
		t.Error("Replacement graph not found after overwrite")
	}
}

func TestSQLiteExistsAndDelete(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	exists, err := repo.Exists(ctx, "schema", graph.GraphTypeSchema)
	if err != nil || exists {
		t.Errorf("Exists on empty store = (%v, %v), want (false, nil)", exists, err)
	}

	if err := repo.Save(ctx, sampleGraph(t)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	exists, err = repo.Exists(ctx, "schema", graph.GraphTypeSchema)
	if err != nil || !exists {
		t.Errorf("Exists after save = (%v, %v), want (true, nil)", exists, err)
	}

	deleted, err := repo.Delete(ctx, "schema", graph.GraphTypeSchema)
	if err != nil || !deleted {
		t.Errorf("Delete = (%v, %v), want (true, nil)", deleted, err)
	}
	deleted, err = repo.Delete(ctx, "schema", graph.GraphTypeSchema)
	if err != nil || deleted {
		t.Errorf("Second delete = (%v, %v), want (false, nil)", deleted, err)
	}

	// Cascade must have removed the owned rows, so a fresh save works and
	// reads back clean.
	if err := repo.Save(ctx, sampleGraph(t)); err != nil {
		t.Fatalf("Save after delete failed: %v", err)
	}
	got, err := repo.Get(ctx, "schema", graph.GraphTypeSchema)
	if err != nil {
		t.Fatalf("Get after re-save failed: %v", err)
	}
	if got.NodeCount() != 2 || got.EdgeCount() != 1 {
		t.Errorf("Unexpected shape after delete and re-save: %d/%d", got.NodeCount(), got.EdgeCount())
	}
}

func TestSQLiteClearAll(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, sampleGraph(t)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	count, err := repo.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 cleared graph, got %d", count)
	}
	if exists, _ := repo.Exists(ctx, "schema", graph.GraphTypeSchema); exists {
		t.Error("Graph survived ClearAll")
	}
}

func TestSQLiteUnknownTypeFallback(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, sampleGraph(t)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Corrupt the stored type strings the way a schema drift would.
	if _, err := repo.db.Exec(
		"UPDATE graph_nodes SET node_type = 'mystery' WHERE node_key = 'table-Sales_Order-SalesOrder'"); err != nil {
		t.Fatalf("Corrupting node type failed: %v", err)
	}
	if _, err := repo.db.Exec("UPDATE graph_edges SET edge_type = 'mystery'"); err != nil {
		t.Fatalf("Corrupting edge type failed: %v", err)
	}

	got, err := repo.Get(ctx, "schema", graph.GraphTypeSchema)
	if err != nil {
		t.Fatalf("Get with unknown types failed: %v", err)
	}
	node := got.GetNode("table-Sales_Order-SalesOrder")
	if node.Type != graph.NodeTypeTable {
		t.Errorf("Unknown node type should fall back to table, got %v", node.Type)
	}
	if got.Edges()[0].Type != graph.EdgeTypeReferences {
		t.Errorf("Unknown edge type should fall back to references, got %v", got.Edges()[0].Type)
	}
}
