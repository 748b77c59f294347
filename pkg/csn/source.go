package csn

// Metadata holds per-entity descriptive data extracted from a CSN
// document. Extra annotation keys are carried opaquely.
type Metadata struct {
	Label       string
	Annotations map[string]any
}

// Relationship describes a foreign-key style relationship between two
// entities, keyed by normalized entity names.
type Relationship struct {
	FromEntity    string
	ToEntity      string
	FromColumn    string
	Confidence    float64
	Inferred      bool
	Cardinality   string
	OnConditions  []string
	IsComposition bool
	IsManyToMany  bool
}

// EntityLister is the parser contract the graph builder binds to.
// Entity names may be bare identifiers or dot-prefixed; consumers
// normalize by taking the trailing segment.
type EntityLister interface {
	// ListEntities returns the entity names declared across the corpus.
	ListEntities() ([]string, error)

	// GetEntityMetadata returns metadata for an entity, or nil when the
	// entity is unknown.
	GetEntityMetadata(name string) (*Metadata, error)
}

// RelationshipMapper yields relationship descriptors for the corpus.
type RelationshipMapper interface {
	Relationships() ([]Relationship, error)
}

// NormalizeName reduces an entity name to its trailing dot segment.
// "purchaseorder.PurchaseOrder" becomes "PurchaseOrder"; bare names
// pass through unchanged.
func NormalizeName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}
