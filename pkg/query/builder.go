// Package query converts validated request intents into parameterized SQL.
// Every function is pure: output depends only on the schema model and the
// intent, and no value of untrusted origin is ever concatenated into the
// SQL text — identifiers are quoted, values become positional parameters.
package query

import (
	"fmt"
	"strings"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
	"github.com/pgcrud/pgcrud/pkg/schema"
)

// Query is a SQL text with positional placeholders and its bound values,
// numbered $1..$n in the order the values appear in the text.
type Query struct {
	SQL  string
	Args []any
}

// updatedAtColumn and deletedAtColumn trigger automatic timestamp handling.
const (
	updatedAtColumn = "updated_at"
	deletedAtColumn = "deleted_at"
)

// ListParams carries the validated parameters of a list intent.
type ListParams struct {
	Filters       []Filter
	Search        string
	SearchColumns []string
	Select        []string
	SortBy        string
	SortOrder     string // "desc" for descending, anything else ascending
	Page          int
	PageSize      int
}

// projection renders the column list: `*` when no selection, otherwise the
// requested columns that exist, in request order. A selection with no
// surviving column is an error.
func projection(e *schema.Entity, selected []string) (string, error) {
	if len(selected) == 0 {
		return "*", nil
	}
	var cols []string
	for _, name := range selected {
		if e.HasColumn(name) {
			cols = append(cols, schema.QuoteIdent(name))
		}
	}
	if len(cols) == 0 {
		return "", apperrors.Validation(
			"none of the selected columns exist (known columns: %s)",
			strings.Join(e.ColumnNames(), ", "))
	}
	return strings.Join(cols, ", "), nil
}

// sortColumn picks the ORDER BY column: the requested one if it exists,
// else the first primary key column, else the first declared column.
func sortColumn(e *schema.Entity, requested string) string {
	if requested != "" && e.HasColumn(requested) {
		return requested
	}
	if len(e.PrimaryKeyColumns) > 0 {
		return e.PrimaryKeyColumns[0]
	}
	return e.Columns[0].Name
}

// clampPage returns page clamped to at least 1.
func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// clampPageSize returns pageSize clamped to [1, max].
func clampPageSize(size, max int) int {
	if size < 1 {
		return 1
	}
	if size > max {
		return max
	}
	return size
}

// Normalize applies the default page size when none was requested and
// clamps page and page size to their valid ranges. The dispatch layer
// normalizes before building so the response envelope and the query agree
// on the effective values.
func Normalize(p ListParams, defaultPageSize, maxPageSize int) ListParams {
	if p.PageSize == 0 {
		p.PageSize = defaultPageSize
	}
	p.Page = clampPage(p.Page)
	p.PageSize = clampPageSize(p.PageSize, maxPageSize)
	return p
}

// BuildList produces the paginated SELECT for a list intent.
func BuildList(e *schema.Entity, p ListParams, maxPageSize int) (Query, error) {
	cols, err := projection(e, p.Select)
	if err != nil {
		return Query{}, err
	}

	where, args, next, err := buildWhere(e, p.Filters, p.Search, p.SearchColumns, 1)
	if err != nil {
		return Query{}, err
	}

	dir := "ASC"
	if strings.EqualFold(p.SortOrder, "desc") {
		dir = "DESC"
	}

	page := clampPage(p.Page)
	size := clampPageSize(p.PageSize, maxPageSize)
	offset := (page - 1) * size

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		cols, e.QualifiedIdent(), where,
		schema.QuoteIdent(sortColumn(e, p.SortBy)), dir, next, next+1)
	args = append(args, size, offset)

	return Query{SQL: sql, Args: args}, nil
}

// BuildCount produces the COUNT query matching BuildList's WHERE clause.
func BuildCount(e *schema.Entity, p ListParams) (Query, error) {
	where, args, _, err := buildWhere(e, p.Filters, p.Search, p.SearchColumns, 1)
	if err != nil {
		return Query{}, err
	}
	sql := fmt.Sprintf("SELECT COUNT(*) AS total FROM %s%s", e.QualifiedIdent(), where)
	return Query{SQL: sql, Args: args}, nil
}

// pkWhere renders the conjunction over all primary key columns with
// parameters starting at next. keys must be in primary-key order.
func pkWhere(e *schema.Entity, keys []any, next int) (string, []any, error) {
	if len(keys) != len(e.PrimaryKeyColumns) {
		return "", nil, apperrors.Validation(
			"expected %d primary key values, got %d", len(e.PrimaryKeyColumns), len(keys))
	}
	parts := make([]string, len(keys))
	for i, col := range e.PrimaryKeyColumns {
		parts[i] = fmt.Sprintf("%s = $%d", schema.QuoteIdent(col), next+i)
	}
	return strings.Join(parts, " AND "), keys, nil
}

// BuildRead produces the by-key SELECT. keys are the primary key values in
// primary-key order.
func BuildRead(e *schema.Entity, keys []any) (Query, error) {
	where, args, err := pkWhere(e, keys, 1)
	if err != nil {
		return Query{}, err
	}
	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT 1", e.QualifiedIdent(), where)
	return Query{SQL: sql, Args: args}, nil
}

// insertColumns computes the insert column list: the entity's columns that
// appear in any of the payloads, in declared order, plus updated_at when
// the entity has it and no payload provides it is handled per row.
func insertColumns(e *schema.Entity, rows []map[string]any) []string {
	present := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			present[k] = true
		}
	}
	var cols []string
	for _, c := range e.Columns {
		if present[c.Name] {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// BuildInsert produces the single-row INSERT. Payload keys that are not
// entity columns are silently dropped. If the entity has an updated_at
// column absent from the payload, the literal NOW() is emitted for it.
func BuildInsert(e *schema.Entity, payload map[string]any) (Query, error) {
	cols := insertColumns(e, []map[string]any{payload})
	if len(cols) == 0 {
		return Query{}, apperrors.Validation(
			"payload contains no known columns (known columns: %s)",
			strings.Join(e.ColumnNames(), ", "))
	}

	autoUpdatedAt := e.HasColumn(updatedAtColumn) && !hasKey(payload, updatedAtColumn)
	if autoUpdatedAt {
		cols = append(cols, updatedAtColumn)
	}

	quoted := make([]string, len(cols))
	values := make([]string, len(cols))
	var args []any
	next := 1
	for i, name := range cols {
		quoted[i] = schema.QuoteIdent(name)
		if autoUpdatedAt && name == updatedAtColumn {
			values[i] = "NOW()"
			continue
		}
		values[i] = fmt.Sprintf("$%d", next)
		args = append(args, payload[name])
		next++
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		e.QualifiedIdent(), strings.Join(quoted, ", "), strings.Join(values, ", "))
	return Query{SQL: sql, Args: args}, nil
}

// BuildBulkInsert produces a multi-row INSERT. The column list is the union
// of all payload keys restricted to entity columns; rows omitting a column
// bind NULL for it, except updated_at which becomes the NOW() literal.
func BuildBulkInsert(e *schema.Entity, rows []map[string]any, maxRows int) (Query, error) {
	if len(rows) == 0 {
		return Query{}, apperrors.Validation("bulk insert requires at least one row")
	}
	if len(rows) > maxRows {
		return Query{}, apperrors.Validation(
			"bulk insert accepts at most %d rows, got %d", maxRows, len(rows))
	}

	cols := insertColumns(e, rows)
	if len(cols) == 0 {
		return Query{}, apperrors.Validation(
			"payload contains no known columns (known columns: %s)",
			strings.Join(e.ColumnNames(), ", "))
	}

	hasUpdatedAt := e.HasColumn(updatedAtColumn)
	if hasUpdatedAt && !contains(cols, updatedAtColumn) {
		cols = append(cols, updatedAtColumn)
	}

	quoted := make([]string, len(cols))
	for i, name := range cols {
		quoted[i] = schema.QuoteIdent(name)
	}

	var args []any
	next := 1
	tuples := make([]string, len(rows))
	for r, row := range rows {
		values := make([]string, len(cols))
		for i, name := range cols {
			if name == updatedAtColumn && hasUpdatedAt && !hasKey(row, updatedAtColumn) {
				values[i] = "NOW()"
				continue
			}
			values[i] = fmt.Sprintf("$%d", next)
			args = append(args, row[name]) // missing keys bind NULL
			next++
		}
		tuples[r] = "(" + strings.Join(values, ", ") + ")"
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING *",
		e.QualifiedIdent(), strings.Join(quoted, ", "), strings.Join(tuples, ", "))
	return Query{SQL: sql, Args: args}, nil
}

// BuildUpdate produces the UPDATE for both partial and full updates. The
// SET list is the payload restricted to non-primary-key entity columns;
// primary key columns in the payload are silently dropped. updated_at is
// auto-filled with NOW() when the entity has it and the payload does not.
func BuildUpdate(e *schema.Entity, payload map[string]any, keys []any) (Query, error) {
	pk := make(map[string]bool, len(e.PrimaryKeyColumns))
	for _, col := range e.PrimaryKeyColumns {
		pk[col] = true
	}

	var sets []string
	var args []any
	next := 1
	for _, c := range e.Columns {
		if pk[c.Name] || !hasKey(payload, c.Name) {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", schema.QuoteIdent(c.Name), next))
		args = append(args, payload[c.Name])
		next++
	}
	if len(sets) == 0 {
		return Query{}, apperrors.Validation(
			"payload contains no updatable columns (known columns: %s)",
			strings.Join(e.ColumnNames(), ", "))
	}

	if e.HasColumn(updatedAtColumn) && !hasKey(payload, updatedAtColumn) {
		sets = append(sets, schema.QuoteIdent(updatedAtColumn)+" = NOW()")
	}

	where, keyArgs, err := pkWhere(e, keys, next)
	if err != nil {
		return Query{}, err
	}
	args = append(args, keyArgs...)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
		e.QualifiedIdent(), strings.Join(sets, ", "), where)
	return Query{SQL: sql, Args: args}, nil
}

// BuildDelete produces either a soft delete (UPDATE setting deleted_at,
// and updated_at when present) or a hard DELETE, depending on whether the
// entity carries a deleted_at column. The soft flag reports which.
func BuildDelete(e *schema.Entity, keys []any) (q Query, soft bool, err error) {
	if e.HasColumn(deletedAtColumn) {
		sets := []string{schema.QuoteIdent(deletedAtColumn) + " = NOW()"}
		if e.HasColumn(updatedAtColumn) {
			sets = append(sets, schema.QuoteIdent(updatedAtColumn)+" = NOW()")
		}
		where, args, err := pkWhere(e, keys, 1)
		if err != nil {
			return Query{}, false, err
		}
		sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
			e.QualifiedIdent(), strings.Join(sets, ", "), where)
		return Query{SQL: sql, Args: args}, true, nil
	}

	where, args, err := pkWhere(e, keys, 1)
	if err != nil {
		return Query{}, false, err
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s RETURNING *", e.QualifiedIdent(), where)
	return Query{SQL: sql, Args: args}, false, nil
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
