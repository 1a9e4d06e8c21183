// Package surface renders the agent- and documentation-facing view of the
// schema model: per-entity descriptions and the API capabilities envelope.
// The same structures back the REST _schema routes, the MCP resources, and
// the describe_table tool.
package surface

import (
	"github.com/pgcrud/pgcrud/pkg/schema"
)

// ColumnDoc is the documented shape of one column.
type ColumnDoc struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	Format         string `json:"format,omitempty"`
	Nullable       bool   `json:"nullable"`
	HasDefault     bool   `json:"has_default"`
	PrimaryKey     bool   `json:"primary_key"`
	InsertRequired bool   `json:"insert_required"`
	MaxLength      *int   `json:"max_length,omitempty"`
}

// ForeignKeyDoc documents one outgoing reference. RefPath is the route
// segment of the referenced table, derived by the same rule as the
// entity's own segment.
type ForeignKeyDoc struct {
	Column           string `json:"column"`
	ReferencesTable  string `json:"references_table"`
	ReferencesColumn string `json:"references_column"`
	RefPath          string `json:"ref_path"`
}

// EntityDoc is the full documented shape of one entity.
type EntityDoc struct {
	Name              string          `json:"name"`
	Namespace         string          `json:"namespace"`
	Path              string          `json:"path"`
	Operations        []string        `json:"operations"`
	PrimaryKey        []string        `json:"primary_key"`
	Columns           []ColumnDoc     `json:"columns"`
	ForeignKeys       []ForeignKeyDoc `json:"foreign_keys"`
	SearchableColumns []string        `json:"searchable_columns"`
}

// PaginationDoc documents the paging parameters and their bounds.
type PaginationDoc struct {
	PageParam       string `json:"page_param"`
	PageSizeParam   string `json:"page_size_param"`
	DefaultPageSize int    `json:"default_page_size"`
	MaxPageSize     int    `json:"max_page_size"`
}

// Capabilities is the API-wide envelope agents read before constructing
// requests.
type Capabilities struct {
	BasePath           string        `json:"base_path"`
	AuthEnabled        bool          `json:"auth_enabled"`
	Pagination         PaginationDoc `json:"pagination"`
	FilterParamPrefix  string        `json:"filter_param_prefix"`
	FilterOperators    []string      `json:"filter_operators"`
	SortParam          string        `json:"sort_param"`
	SortOrderParam     string        `json:"sort_order_param"`
	SearchParam        string        `json:"search_param"`
	SearchColumnsParam string        `json:"search_columns_param"`
	SelectParam        string        `json:"select_param"`
	MaxBulkRows        int           `json:"max_bulk_rows"`
}

// Options feeds the configured limits into the capabilities envelope.
type Options struct {
	AuthEnabled     bool
	DefaultPageSize int
	MaxPageSize     int
	MaxBulkRows     int
}

// filterOperators is the documented operator set.
var filterOperators = []string{"eq", "neq", "gt", "gte", "lt", "lte", "like", "ilike", "is", "in"}

// refPath derives the route segment of a referenced table.
func refPath(namespace, table string) string {
	if namespace == "public" {
		return table
	}
	return namespace + schema.RouteSeparator + table
}

// operations lists what the entity supports. By-key operations need a
// primary key.
func operations(e *schema.Entity) []string {
	ops := []string{"list", "create"}
	if e.HasPrimaryKey() {
		ops = append(ops, "read", "update", "replace", "delete")
	}
	return ops
}

// DescribeEntity renders the documented shape of one entity.
func DescribeEntity(e *schema.Entity) EntityDoc {
	pk := make(map[string]bool, len(e.PrimaryKeyColumns))
	for _, col := range e.PrimaryKeyColumns {
		pk[col] = true
	}

	doc := EntityDoc{
		Name:              e.Name,
		Namespace:         e.Namespace,
		Path:              "/api/" + e.RouteSegment(),
		Operations:        operations(e),
		PrimaryKey:        append([]string{}, e.PrimaryKeyColumns...),
		ForeignKeys:       []ForeignKeyDoc{},
		SearchableColumns: e.SearchableColumns(),
	}
	if doc.SearchableColumns == nil {
		doc.SearchableColumns = []string{}
	}

	for _, c := range e.Columns {
		pt := schema.TypeFor(c.TypeTag)
		doc.Columns = append(doc.Columns, ColumnDoc{
			Name:           c.Name,
			Type:           string(pt.Kind),
			Format:         pt.Format,
			Nullable:       c.Nullable,
			HasDefault:     c.HasDefault,
			PrimaryKey:     pk[c.Name],
			InsertRequired: !c.Nullable && !c.HasDefault,
			MaxLength:      c.MaxTextLength,
		})
	}

	for _, fk := range e.ForeignKeys {
		doc.ForeignKeys = append(doc.ForeignKeys, ForeignKeyDoc{
			Column:           fk.Column,
			ReferencesTable:  fk.ReferencedNamespace + "." + fk.ReferencedTable,
			ReferencesColumn: fk.ReferencedColumn,
			RefPath:          refPath(fk.ReferencedNamespace, fk.ReferencedTable),
		})
	}

	return doc
}

// DescribeAll renders every given entity in order.
func DescribeAll(entities []*schema.Entity) []EntityDoc {
	docs := make([]EntityDoc, len(entities))
	for i, e := range entities {
		docs[i] = DescribeEntity(e)
	}
	return docs
}

// DescribeCapabilities renders the API-wide envelope.
func DescribeCapabilities(opts Options) Capabilities {
	return Capabilities{
		BasePath:    "/api",
		AuthEnabled: opts.AuthEnabled,
		Pagination: PaginationDoc{
			PageParam:       "page",
			PageSizeParam:   "pageSize",
			DefaultPageSize: opts.DefaultPageSize,
			MaxPageSize:     opts.MaxPageSize,
		},
		FilterParamPrefix:  "filter.",
		FilterOperators:    filterOperators,
		SortParam:          "sortBy",
		SortOrderParam:     "sortOrder",
		SearchParam:        "search",
		SearchColumnsParam: "searchColumns",
		SelectParam:        "select",
		MaxBulkRows:        opts.MaxBulkRows,
	}
}
