package csn

import (
	"os"
	"path/filepath"
	"testing"
)

const purchaseOrderCSN = `{
  "definitions": {
    "PurchaseOrder": {
      "kind": "entity",
      "@EndUserText.label": "Purchase Order",
      "elements": {
        "ID": {"type": "cds.UUID"},
        "Supplier": {
          "type": "cds.Association",
          "target": "BusinessPartner",
          "keys": [{"ref": ["ID"]}]
        }
      }
    },
    "PurchaseOrderItem": {
      "kind": "entity",
      "elements": {
        "ID": {"type": "cds.UUID"},
        "parent": {
          "type": "cds.Association",
          "target": "PurchaseOrder",
          "cardinality": {"max": 1},
          "on": [{"ref": ["parent_ID"]}, "=", {"ref": ["PurchaseOrder", "ID"]}]
        }
      }
    },
    "PurchaseOrderType": {
      "kind": "type"
    }
  }
}`

const businessPartnerCSN = `{
  "definitions": {
    "sap.BusinessPartner": {
      "kind": "entity",
      "@title": "Business Partner",
      "elements": {
        "ID": {"type": "cds.UUID"},
        "Addresses": {
          "type": "cds.Composition",
          "target": "BusinessPartnerAddress",
          "cardinality": {"max": "*"}
        }
      }
    }
  }
}`

func writeCorpus(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("Writing fixture %s failed: %v", name, err)
		}
	}
	return dir
}

func TestListEntities(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"PurchaseOrder_CSN.json":   purchaseOrderCSN,
		"BusinessPartner_CSN.json": businessPartnerCSN,
		"README.md":                "not a CSN file",
	})
	p := NewParser(dir)

	names, err := p.ListEntities()
	if err != nil {
		t.Fatalf("ListEntities failed: %v", err)
	}

	// Files load in sorted order, entities within a file in sorted order,
	// and non-entity definitions are skipped.
	want := []string{"sap.BusinessPartner", "PurchaseOrder", "PurchaseOrderItem"}
	if len(names) != len(want) {
		t.Fatalf("Expected %d entities, got %v", len(want), names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("Entity %d: expected %q, got %q", i, name, names[i])
		}
	}
}

func TestListEntitiesEmptyDirectory(t *testing.T) {
	p := NewParser(t.TempDir())

	names, err := p.ListEntities()
	if err != nil {
		t.Fatalf("ListEntities on empty directory failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Expected no entities, got %v", names)
	}
}

func TestGetEntityMetadata(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"PurchaseOrder_CSN.json":   purchaseOrderCSN,
		"BusinessPartner_CSN.json": businessPartnerCSN,
	})
	p := NewParser(dir)

	meta, err := p.GetEntityMetadata("PurchaseOrder")
	if err != nil {
		t.Fatalf("GetEntityMetadata failed: %v", err)
	}
	if meta == nil || meta.Label != "Purchase Order" {
		t.Errorf("Expected labeled metadata, got %+v", meta)
	}
	if meta.Annotations["@EndUserText.label"] != "Purchase Order" {
		t.Errorf("Annotations should be carried, got %v", meta.Annotations)
	}

	// Lookup by normalized name resolves the namespaced entity.
	meta, err = p.GetEntityMetadata("BusinessPartner")
	if err != nil {
		t.Fatalf("GetEntityMetadata failed: %v", err)
	}
	if meta == nil || meta.Label != "Business Partner" {
		t.Errorf("Normalized lookup failed, got %+v", meta)
	}

	// Unlabeled entities fall back to the normalized name.
	meta, _ = p.GetEntityMetadata("PurchaseOrderItem")
	if meta == nil || meta.Label != "PurchaseOrderItem" {
		t.Errorf("Expected name fallback label, got %+v", meta)
	}

	meta, err = p.GetEntityMetadata("Unknown")
	if err != nil || meta != nil {
		t.Errorf("Unknown entity should yield (nil, nil), got (%+v, %v)", meta, err)
	}
}

func TestRelationships(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"PurchaseOrder_CSN.json":   purchaseOrderCSN,
		"BusinessPartner_CSN.json": businessPartnerCSN,
	})
	p := NewParser(dir)

	rels, err := p.Relationships()
	if err != nil {
		t.Fatalf("Relationships failed: %v", err)
	}
	if len(rels) != 3 {
		t.Fatalf("Expected 3 relationships, got %d: %+v", len(rels), rels)
	}

	byFrom := make(map[string]Relationship)
	for _, r := range rels {
		byFrom[r.FromEntity+"/"+r.FromColumn] = r
	}

	// Managed association: foreign key column follows <element>_<key>.
	managed, ok := byFrom["PurchaseOrder/Supplier_ID"]
	if !ok {
		t.Fatalf("Managed association missing: %v", byFrom)
	}
	if managed.ToEntity != "BusinessPartner" {
		t.Errorf("Unexpected target: %q", managed.ToEntity)
	}
	if managed.Confidence != 1.0 || managed.Inferred {
		t.Errorf("Declared relationships are confidence 1.0, not inferred: %+v", managed)
	}

	// Unmanaged association: column comes from the on-condition ref.
	unmanaged, ok := byFrom["PurchaseOrderItem/parent_ID"]
	if !ok {
		t.Fatalf("Unmanaged association missing: %v", byFrom)
	}
	if unmanaged.Cardinality != "1..1" {
		t.Errorf("Expected cardinality 1..1, got %q", unmanaged.Cardinality)
	}
	if len(unmanaged.OnConditions) != 1 || unmanaged.OnConditions[0] != "parent_ID = PurchaseOrder.ID" {
		t.Errorf("Unexpected on conditions: %v", unmanaged.OnConditions)
	}

	// Composition with to-many cardinality.
	comp, ok := byFrom["BusinessPartner/Addresses_ID"]
	if !ok {
		t.Fatalf("Composition missing: %v", byFrom)
	}
	if !comp.IsComposition {
		t.Error("Expected IsComposition for cds.Composition")
	}
	if comp.Cardinality != "1..n" {
		t.Errorf("Expected cardinality 1..n, got %q", comp.Cardinality)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"PurchaseOrder":                "PurchaseOrder",
		"purchaseorder.PurchaseOrder":  "PurchaseOrder",
		"a.b.c.SalesOrder":             "SalesOrder",
		"":                             "",
		"trailingdot.":                 "",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCountDocuments(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"PurchaseOrder_CSN.json":   purchaseOrderCSN,
		"BusinessPartner_CSN.json": businessPartnerCSN,
		"schema.json":              "{}",
	})

	if got := CountDocuments(dir); got != 2 {
		t.Errorf("CountDocuments = %d, want 2", got)
	}
	if got := CountDocuments(filepath.Join(dir, "missing")); got != 0 {
		t.Errorf("CountDocuments on missing dir = %d, want 0", got)
	}
}
