// Package schema holds the immutable model of the introspected database:
// entities, columns, keys, identifier quoting, and the portable type mapping.
// The model is built once at startup and shared by reference afterwards.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// RouteSeparator joins namespace and table name in route segments for
// entities outside the public namespace. Catalog names containing it are
// rejected at introspection so the mapping stays reversible.
const RouteSeparator = "__"

// Column describes one column of an entity.
type Column struct {
	Name            string
	TypeTag         string // low-level vendor tag, e.g. int4, varchar, _int4
	DeclaredType    string // portable textual type from the catalog
	Nullable        bool
	HasDefault      bool
	DefaultText     *string
	MaxTextLength   *int
	OrdinalPosition int
}

// ForeignKey describes one outgoing reference of an entity. Referenced
// entities may be outside the introspected model.
type ForeignKey struct {
	ConstraintName      string
	Column              string
	ReferencedNamespace string
	ReferencedTable     string
	ReferencedColumn    string
}

// Entity is a single relational table.
type Entity struct {
	Namespace         string
	Name              string
	Columns           []Column // declared order
	PrimaryKeyColumns []string // PK position order
	ForeignKeys       []ForeignKey
}

// QuoteIdent wraps a catalog name in double quotes, doubling any embedded
// quote. Identifiers never flow into SQL any other way.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedIdent returns the two-part quoted SQL name of the entity.
func (e *Entity) QualifiedIdent() string {
	return QuoteIdent(e.Namespace) + "." + QuoteIdent(e.Name)
}

// RouteSegment returns the URL-safe identifier the entity is addressed by.
func (e *Entity) RouteSegment() string {
	if e.Namespace == "public" {
		return e.Name
	}
	return e.Namespace + RouteSeparator + e.Name
}

// Column returns the named column, or nil.
func (e *Entity) Column(name string) *Column {
	for i := range e.Columns {
		if e.Columns[i].Name == name {
			return &e.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the entity declares the named column.
func (e *Entity) HasColumn(name string) bool { return e.Column(name) != nil }

// ColumnNames returns the declared column names in order.
func (e *Entity) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
	}
	return names
}

// HasPrimaryKey reports whether by-key operations are possible.
func (e *Entity) HasPrimaryKey() bool { return len(e.PrimaryKeyColumns) > 0 }

// SearchableColumns returns the columns eligible for ILIKE search:
// every column carrying a textual type tag.
func (e *Entity) SearchableColumns() []string {
	var cols []string
	for _, c := range e.Columns {
		if isTextualTag(c.TypeTag) {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// Model is the immutable result of catalog introspection.
type Model struct {
	Namespaces []string           // sorted
	Entities   map[string]*Entity // keyed by qualified identifier

	byRoute map[string]*Entity
}

// NewModel indexes the given entities. Route segments must be unique;
// the introspector guarantees that by rejecting names containing the
// route separator.
func NewModel(namespaces []string, entities []*Entity) *Model {
	sorted := append([]string(nil), namespaces...)
	sort.Strings(sorted)

	m := &Model{
		Namespaces: sorted,
		Entities:   make(map[string]*Entity, len(entities)),
		byRoute:    make(map[string]*Entity, len(entities)),
	}
	for _, e := range entities {
		m.Entities[e.QualifiedIdent()] = e
		m.byRoute[e.RouteSegment()] = e
	}
	return m
}

// EntityByRoute resolves a route segment, or nil.
func (m *Model) EntityByRoute(segment string) *Entity {
	return m.byRoute[segment]
}

// SortedEntities returns the entities ordered by qualified identifier.
func (m *Model) SortedEntities() []*Entity {
	out := make([]*Entity, 0, len(m.Entities))
	for _, e := range m.Entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedIdent() < out[j].QualifiedIdent()
	})
	return out
}

// canonical* mirror the semantic fields of the model for digest purposes.
// Field order is fixed by the struct definitions; slices are sorted before
// marshalling so source ordering cannot influence the digest.
type canonicalColumn struct {
	Name          string `json:"name"`
	TypeTag       string `json:"type_tag"`
	Nullable      bool   `json:"nullable"`
	HasDefault    bool   `json:"has_default"`
	MaxTextLength *int   `json:"max_text_length"`
	Ordinal       int    `json:"ordinal"`
}

type canonicalFK struct {
	Constraint   string `json:"constraint"`
	Column       string `json:"column"`
	RefNamespace string `json:"ref_namespace"`
	RefTable     string `json:"ref_table"`
	RefColumn    string `json:"ref_column"`
}

type canonicalEntity struct {
	Namespace   string            `json:"namespace"`
	Name        string            `json:"name"`
	Columns     []canonicalColumn `json:"columns"`
	PrimaryKeys []string          `json:"primary_keys"`
	ForeignKeys []canonicalFK     `json:"foreign_keys"`
}

type canonicalModel struct {
	Namespaces []string          `json:"namespaces"`
	Entities   []canonicalEntity `json:"entities"`
}

// Digest returns the deterministic SHA-256 of the canonicalized model,
// used to expose schema drift across restarts.
func (m *Model) Digest() string {
	cm := canonicalModel{Namespaces: m.Namespaces}

	for _, e := range m.SortedEntities() {
		ce := canonicalEntity{
			Namespace:   e.Namespace,
			Name:        e.Name,
			PrimaryKeys: append([]string(nil), e.PrimaryKeyColumns...),
		}
		sort.Strings(ce.PrimaryKeys)

		cols := append([]Column(nil), e.Columns...)
		sort.Slice(cols, func(i, j int) bool {
			return cols[i].OrdinalPosition < cols[j].OrdinalPosition
		})
		for _, c := range cols {
			ce.Columns = append(ce.Columns, canonicalColumn{
				Name:          c.Name,
				TypeTag:       c.TypeTag,
				Nullable:      c.Nullable,
				HasDefault:    c.HasDefault,
				MaxTextLength: c.MaxTextLength,
				Ordinal:       c.OrdinalPosition,
			})
		}

		fks := append([]ForeignKey(nil), e.ForeignKeys...)
		sort.Slice(fks, func(i, j int) bool {
			return fks[i].ConstraintName < fks[j].ConstraintName
		})
		for _, fk := range fks {
			ce.ForeignKeys = append(ce.ForeignKeys, canonicalFK{
				Constraint:   fk.ConstraintName,
				Column:       fk.Column,
				RefNamespace: fk.ReferencedNamespace,
				RefTable:     fk.ReferencedTable,
				RefColumn:    fk.ReferencedColumn,
			})
		}

		cm.Entities = append(cm.Entities, ce)
	}

	data, _ := json.Marshal(cm)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
