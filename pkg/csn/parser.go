package csn

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klarvik/schemascope/pkg/logging"
)

// DocumentPattern matches the CSN files the parser consumes.
const DocumentPattern = "*_CSN.json"

// csnDocument mirrors the top level of a CSN file.
type csnDocument struct {
	Definitions map[string]json.RawMessage `json:"definitions"`
}

// definition is the subset of a CSN definition the parser cares about.
// Annotation keys (leading "@") are collected separately.
type definition struct {
	Kind     string             `json:"kind"`
	Elements map[string]element `json:"elements"`
}

// element is a single entity element. Associations and compositions
// carry a target; everything else is a plain column.
type element struct {
	Type        string           `json:"type"`
	Target      string           `json:"target"`
	Keys        []refClause      `json:"keys"`
	On          []json.RawMessage `json:"on"`
	Cardinality *cardinality     `json:"cardinality"`
}

type refClause struct {
	Ref []string `json:"ref"`
}

type cardinality struct {
	Max json.RawMessage `json:"max"`
}

// entityDef is a parsed entity with its raw CSN name.
type entityDef struct {
	name        string
	label       string
	annotations map[string]any
	elements    map[string]element
	order       []string
}

// Parser reads all CSN documents under a directory and implements both
// the EntityLister and RelationshipMapper contracts.
type Parser struct {
	dir      string
	entities map[string]*entityDef
	order    []string
	loaded   bool
}

// NewParser creates a parser rooted at dir. Documents are read lazily on
// first use and cached for the lifetime of the parser.
func NewParser(dir string) *Parser {
	return &Parser{dir: dir, entities: make(map[string]*entityDef)}
}

// Load scans the directory and parses every matching document. Calling
// it again is a no-op; create a new Parser to pick up changed files.
func (p *Parser) Load() error {
	if p.loaded {
		return nil
	}

	paths, err := filepath.Glob(filepath.Join(p.dir, DocumentPattern))
	if err != nil {
		return fmt.Errorf("scanning %s: %w", p.dir, err)
	}
	sort.Strings(paths)

	logger := logging.New("csn.parser")
	for _, path := range paths {
		if err := p.parseDocument(path); err != nil {
			return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
		}
	}
	logger.Debug("loaded CSN corpus", "directory", p.dir, "files", len(paths), "entities", len(p.entities))

	p.loaded = true
	return nil
}

func (p *Parser) parseDocument(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc csnDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid CSN document: %w", err)
	}

	// Map iteration order is random; sort names so entity listing and
	// relationship order are stable across runs.
	names := make([]string, 0, len(doc.Definitions))
	for name := range doc.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := doc.Definitions[name]

		var def definition
		if err := json.Unmarshal(raw, &def); err != nil {
			return fmt.Errorf("definition %s: %w", name, err)
		}
		if def.Kind != "entity" {
			continue
		}

		// Annotations live next to the structural keys.
		var annotated map[string]any
		if err := json.Unmarshal(raw, &annotated); err != nil {
			return fmt.Errorf("definition %s: %w", name, err)
		}
		annotations := make(map[string]any)
		for k, v := range annotated {
			if strings.HasPrefix(k, "@") {
				annotations[k] = v
			}
		}

		elementOrder := make([]string, 0, len(def.Elements))
		for el := range def.Elements {
			elementOrder = append(elementOrder, el)
		}
		sort.Strings(elementOrder)

		if _, exists := p.entities[name]; exists {
			logging.Warn("duplicate entity definition ignored", "entity", name, "file", filepath.Base(path))
			continue
		}

		p.entities[name] = &entityDef{
			name:        name,
			label:       entityLabel(name, annotations),
			annotations: annotations,
			elements:    def.Elements,
			order:       elementOrder,
		}
		p.order = append(p.order, name)
	}

	return nil
}

// entityLabel picks a display label from the usual CSN annotations,
// falling back to the normalized entity name.
func entityLabel(name string, annotations map[string]any) string {
	for _, key := range []string{"@EndUserText.label", "@Common.Label", "@title"} {
		if v, ok := annotations[key].(string); ok && v != "" {
			return v
		}
	}
	return NormalizeName(name)
}

// ListEntities returns the raw entity names in document order.
func (p *Parser) ListEntities() ([]string, error) {
	if err := p.Load(); err != nil {
		return nil, err
	}
	names := make([]string, len(p.order))
	copy(names, p.order)
	return names, nil
}

// GetEntityMetadata returns metadata for an entity by raw or normalized
// name, or nil when the entity is unknown.
func (p *Parser) GetEntityMetadata(name string) (*Metadata, error) {
	if err := p.Load(); err != nil {
		return nil, err
	}

	def, ok := p.entities[name]
	if !ok {
		// Callers sometimes hold only the normalized name.
		for _, candidate := range p.entities {
			if NormalizeName(candidate.name) == NormalizeName(name) {
				def = candidate
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil, nil
	}

	annotations := make(map[string]any, len(def.annotations))
	for k, v := range def.annotations {
		annotations[k] = v
	}
	return &Metadata{Label: def.label, Annotations: annotations}, nil
}

// Relationships derives relationship descriptors from the explicit
// associations and compositions in the corpus. Confidence is 1.0 and
// Inferred false because the relationships are declared, not guessed.
func (p *Parser) Relationships() ([]Relationship, error) {
	if err := p.Load(); err != nil {
		return nil, err
	}

	var rels []Relationship
	for _, name := range p.order {
		def := p.entities[name]
		for _, elName := range def.order {
			el := def.elements[elName]
			if el.Target == "" {
				continue
			}

			rel := Relationship{
				FromEntity:    NormalizeName(name),
				ToEntity:      NormalizeName(el.Target),
				FromColumn:    foreignKeyColumn(elName, el),
				Confidence:    1.0,
				Inferred:      false,
				Cardinality:   cardinalityString(el.Cardinality),
				OnConditions:  onConditions(el.On),
				IsComposition: el.Type == "cds.Composition",
				IsManyToMany:  isManyToMany(def, el),
			}
			rels = append(rels, rel)
		}
	}
	return rels, nil
}

// foreignKeyColumn resolves the column carrying the foreign key. Managed
// associations use the CAP convention <element>_<key>; unmanaged ones
// take the source-side ref from the on-condition when available.
func foreignKeyColumn(elName string, el element) string {
	if len(el.Keys) > 0 && len(el.Keys[0].Ref) > 0 {
		return elName + "_" + strings.Join(el.Keys[0].Ref, "_")
	}
	for _, clause := range el.On {
		var ref refClause
		if err := json.Unmarshal(clause, &ref); err == nil && len(ref.Ref) == 1 {
			return ref.Ref[0]
		}
	}
	return elName + "_ID"
}

// cardinalityString renders a CSN cardinality as "1..1" or "1..n".
func cardinalityString(c *cardinality) string {
	if c == nil || len(c.Max) == 0 {
		return ""
	}
	max := strings.Trim(string(c.Max), `"`)
	if max == "*" {
		return "1..n"
	}
	return "1.." + max
}

// onConditions renders the CSN on-expression into join clause strings,
// one per "and"-separated comparison.
func onConditions(on []json.RawMessage) []string {
	if len(on) == 0 {
		return nil
	}

	var clauses []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			clauses = append(clauses, strings.Join(current, " "))
			current = nil
		}
	}

	for _, tok := range on {
		var ref refClause
		if err := json.Unmarshal(tok, &ref); err == nil && len(ref.Ref) > 0 {
			current = append(current, strings.Join(ref.Ref, "."))
			continue
		}
		var op string
		if err := json.Unmarshal(tok, &op); err == nil {
			if strings.EqualFold(op, "and") {
				flush()
			} else {
				current = append(current, op)
			}
		}
	}
	flush()
	return clauses
}

// isManyToMany reports whether an association looks like a link-table
// relationship: a to-many composition annotated as such, or an explicit
// annotation on the entity.
func isManyToMany(def *entityDef, el element) bool {
	if v, ok := def.annotations["@many_to_many"].(bool); ok {
		return v
	}
	return false
}

// CountDocuments returns the number of CSN files under dir. Missing or
// unreadable directories count as zero.
func CountDocuments(dir string) int {
	paths, err := filepath.Glob(filepath.Join(dir, DocumentPattern))
	if err != nil {
		return 0
	}
	return len(paths)
}
