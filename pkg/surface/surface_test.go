package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgcrud/pgcrud/pkg/schema"
)

func intp(v int) *int { return &v }

func sampleEntity() *schema.Entity {
	return &schema.Entity{
		Namespace: "reporting",
		Name:      "metrics",
		Columns: []schema.Column{
			{Name: "id", TypeTag: "uuid", HasDefault: true, OrdinalPosition: 1},
			{Name: "label", TypeTag: "varchar", MaxTextLength: intp(80), OrdinalPosition: 2},
			{Name: "value", TypeTag: "numeric", Nullable: true, OrdinalPosition: 3},
			{Name: "owner_id", TypeTag: "int4", OrdinalPosition: 4},
		},
		PrimaryKeyColumns: []string{"id"},
		ForeignKeys: []schema.ForeignKey{
			{
				ConstraintName:      "metrics_owner_fk",
				Column:              "owner_id",
				ReferencedNamespace: "public",
				ReferencedTable:     "users",
				ReferencedColumn:    "id",
			},
		},
	}
}

func TestDescribeEntity(t *testing.T) {
	doc := DescribeEntity(sampleEntity())

	assert.Equal(t, "metrics", doc.Name)
	assert.Equal(t, "reporting", doc.Namespace)
	assert.Equal(t, "/api/reporting__metrics", doc.Path)
	assert.Equal(t, []string{"list", "create", "read", "update", "replace", "delete"}, doc.Operations)
	assert.Equal(t, []string{"id"}, doc.PrimaryKey)

	require.Len(t, doc.Columns, 4)
	id := doc.Columns[0]
	assert.Equal(t, "string", id.Type)
	assert.Equal(t, "uuid", id.Format)
	assert.True(t, id.PrimaryKey)
	assert.False(t, id.InsertRequired) // has a default

	label := doc.Columns[1]
	assert.True(t, label.InsertRequired) // not nullable, no default
	require.NotNil(t, label.MaxLength)
	assert.Equal(t, 80, *label.MaxLength)

	value := doc.Columns[2]
	assert.Equal(t, "number", value.Type)
	assert.False(t, value.InsertRequired) // nullable

	require.Len(t, doc.ForeignKeys, 1)
	fk := doc.ForeignKeys[0]
	assert.Equal(t, "owner_id", fk.Column)
	assert.Equal(t, "public.users", fk.ReferencesTable)
	assert.Equal(t, "users", fk.RefPath) // public namespace drops the prefix

	assert.Equal(t, []string{"id", "label"}, doc.SearchableColumns)
}

func TestDescribeEntityWithoutPrimaryKey(t *testing.T) {
	e := &schema.Entity{
		Namespace: "public",
		Name:      "events",
		Columns:   []schema.Column{{Name: "payload", TypeTag: "jsonb", OrdinalPosition: 1}},
	}
	doc := DescribeEntity(e)

	assert.Equal(t, "/api/events", doc.Path)
	assert.Equal(t, []string{"list", "create"}, doc.Operations)
	assert.Empty(t, doc.PrimaryKey)
	assert.Equal(t, "object", doc.Columns[0].Type)
	assert.Equal(t, []string{}, doc.SearchableColumns)
}

func TestDescribeCapabilities(t *testing.T) {
	caps := DescribeCapabilities(Options{
		AuthEnabled:     true,
		DefaultPageSize: 50,
		MaxPageSize:     200,
		MaxBulkRows:     500,
	})

	assert.Equal(t, "/api", caps.BasePath)
	assert.True(t, caps.AuthEnabled)
	assert.Equal(t, "filter.", caps.FilterParamPrefix)
	assert.Contains(t, caps.FilterOperators, "ilike")
	assert.Contains(t, caps.FilterOperators, "in")
	assert.Equal(t, 50, caps.Pagination.DefaultPageSize)
	assert.Equal(t, 200, caps.Pagination.MaxPageSize)
	assert.Equal(t, 500, caps.MaxBulkRows)
}
