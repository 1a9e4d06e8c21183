package handlers

import (
	"encoding/json"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
	"github.com/pgcrud/pgcrud/pkg/query"
	"github.com/pgcrud/pgcrud/pkg/schema"
)

// filterParamPrefix marks query parameters carrying column filters.
const filterParamPrefix = "filter."

// parseListParams extracts the list intent from the query string. Filters
// are sorted by column name so the generated SQL is deterministic
// regardless of parameter order on the wire.
func parseListParams(values url.Values) (query.ListParams, error) {
	p := query.ListParams{
		Search:    values.Get("search"),
		SortBy:    values.Get("sortBy"),
		SortOrder: values.Get("sortOrder"),
	}

	var err error
	if p.Page, err = parseIntParam(values, "page"); err != nil {
		return p, err
	}
	if p.PageSize, err = parseIntParam(values, "pageSize"); err != nil {
		return p, err
	}

	p.Select = splitParam(values.Get("select"))
	p.SearchColumns = splitParam(values.Get("searchColumns"))

	for key, vals := range values {
		col, ok := strings.CutPrefix(key, filterParamPrefix)
		if !ok || col == "" || len(vals) == 0 {
			continue
		}
		for _, v := range vals {
			p.Filters = append(p.Filters, query.Filter{Column: col, Raw: v})
		}
	}
	sort.Slice(p.Filters, func(i, j int) bool {
		if p.Filters[i].Column != p.Filters[j].Column {
			return p.Filters[i].Column < p.Filters[j].Column
		}
		return p.Filters[i].Raw < p.Filters[j].Raw
	})

	return p, nil
}

func parseIntParam(values url.Values, name string) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Validation("parameter %q must be an integer, got %q", name, raw)
	}
	return n, nil
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseKeys splits the path key segment into primary key values. Composite
// keys arrive comma-joined in primary-key column order.
func parseKeys(e *schema.Entity, raw string) ([]any, error) {
	want := len(e.PrimaryKeyColumns)
	parts := strings.Split(raw, ",")
	if len(parts) != want {
		if want > 1 {
			return nil, apperrors.Validation(
				"Composite primary key expects %d values, got %d", want, len(parts))
		}
		return nil, apperrors.Validation(
			"Primary key expects 1 value, got %d", len(parts))
	}
	keys := make([]any, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, apperrors.Validation("primary key value for %q must not be empty",
				e.PrimaryKeyColumns[i])
		}
		keys[i] = part
	}
	return keys, nil
}

// decodeWriteBody parses a write payload: a single object, or for bulk
// create a non-empty array of objects.
func decodeWriteBody(r io.Reader, allowBulk bool) (single map[string]any, bulk []map[string]any, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, apperrors.Validation("failed to read request body: %v", err)
	}

	trimmed := strings.TrimLeftFunc(string(data), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if trimmed == "" {
		return nil, nil, apperrors.Validation("request body must not be empty")
	}

	if trimmed[0] == '[' {
		if !allowBulk {
			return nil, nil, apperrors.Validation("request body must be a single JSON object")
		}
		if err := json.Unmarshal(data, &bulk); err != nil {
			return nil, nil, apperrors.Validation("request body must be an array of JSON objects")
		}
		if len(bulk) == 0 {
			return nil, nil, apperrors.Validation("bulk create requires at least one record")
		}
		return nil, bulk, nil
	}

	if err := json.Unmarshal(data, &single); err != nil {
		return nil, nil, apperrors.Validation("request body must be a JSON object")
	}
	return single, nil, nil
}
