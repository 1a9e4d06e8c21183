package query

import (
	"fmt"
	"strings"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
	"github.com/pgcrud/pgcrud/pkg/schema"
)

// MaxInListValues caps the number of operands in an `in` filter.
const MaxInListValues = 100

// Filter is one column condition in `operator:value` form. Raw keeps the
// undecoded right-hand side; parsing happens at build time.
type Filter struct {
	Column string
	Raw    string
}

// operators maps filter operator names to their SQL realization.
// `is` and `in` have dedicated handling.
var operators = map[string]string{
	"eq":    "=",
	"neq":   "!=",
	"gt":    ">",
	"gte":   ">=",
	"lt":    "<",
	"lte":   "<=",
	"like":  "LIKE",
	"ilike": "ILIKE",
}

// splitOperator separates the operator prefix from the operand. A prefix
// that is not a known operator means the whole value is an equals operand.
func splitOperator(raw string) (op, operand string) {
	if idx := strings.Index(raw, ":"); idx >= 0 {
		prefix := raw[:idx]
		if prefix == "is" || prefix == "in" || operators[prefix] != "" {
			return prefix, raw[idx+1:]
		}
	}
	return "eq", raw
}

// buildFilterClause renders one filter as SQL, appending operand parameters
// to args. next is the 1-based index of the next placeholder.
func buildFilterClause(e *schema.Entity, f Filter, next int, args []any) (clause string, outArgs []any, outNext int, err error) {
	if !e.HasColumn(f.Column) {
		return "", nil, 0, apperrors.Validation(
			"unknown filter column %q (known columns: %s)",
			f.Column, strings.Join(e.ColumnNames(), ", "))
	}
	ident := schema.QuoteIdent(f.Column)

	op, operand := splitOperator(f.Raw)
	switch op {
	case "is":
		switch strings.ToLower(operand) {
		case "null":
			return ident + " IS NULL", args, next, nil
		case "notnull":
			return ident + " IS NOT NULL", args, next, nil
		default:
			return "", nil, 0, apperrors.Validation(
				"filter %q: `is` expects `null` or `notnull`, got %q", f.Column, operand)
		}
	case "in":
		values := strings.Split(operand, ",")
		if len(values) > MaxInListValues {
			return "", nil, 0, apperrors.Validation(
				"filter %q: `in` accepts at most %d values, got %d",
				f.Column, MaxInListValues, len(values))
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = fmt.Sprintf("$%d", next)
			args = append(args, v)
			next++
		}
		return fmt.Sprintf("%s IN (%s)", ident, strings.Join(placeholders, ", ")), args, next, nil
	default:
		clause := fmt.Sprintf("%s %s $%d", ident, operators[op], next)
		args = append(args, operand)
		return clause, args, next + 1, nil
	}
}

// escapeSearchTerm backslash-escapes the LIKE metacharacters so a search
// term is matched literally inside the surrounding percent signs.
var searchEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeSearchTerm(term string) string {
	return searchEscaper.Replace(term)
}

// resolveSearchColumns picks the columns a search term applies to. An
// explicit list restricts to its existing members; otherwise every textual
// column participates. An empty result drops the search entirely.
func resolveSearchColumns(e *schema.Entity, requested []string) []string {
	if len(requested) == 0 {
		return e.SearchableColumns()
	}
	var cols []string
	for _, name := range requested {
		if e.HasColumn(name) {
			cols = append(cols, name)
		}
	}
	return cols
}

// buildWhere renders the conjunction of all filters plus the optional
// search disjunction. Shared verbatim by the list and count queries so
// their WHERE clauses stay textually identical.
func buildWhere(e *schema.Entity, filters []Filter, search string, searchColumns []string, next int) (clause string, args []any, outNext int, err error) {
	var parts []string

	for _, f := range filters {
		var part string
		part, args, next, err = buildFilterClause(e, f, next, args)
		if err != nil {
			return "", nil, 0, err
		}
		parts = append(parts, part)
	}

	if search != "" {
		cols := resolveSearchColumns(e, searchColumns)
		if len(cols) > 0 {
			term := "%" + escapeSearchTerm(search) + "%"
			disjuncts := make([]string, len(cols))
			for i, c := range cols {
				disjuncts[i] = fmt.Sprintf("%s::text ILIKE $%d", schema.QuoteIdent(c), next)
			}
			args = append(args, term)
			next++
			parts = append(parts, "("+strings.Join(disjuncts, " OR ")+")")
		}
	}

	if len(parts) == 0 {
		return "", args, next, nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args, next, nil
}
