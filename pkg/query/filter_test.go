package query

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
)

func TestSplitOperator(t *testing.T) {
	tests := []struct {
		raw, op, operand string
	}{
		{"eq:Alice", "eq", "Alice"},
		{"neq:Bob", "neq", "Bob"},
		{"gte:10", "gte", "10"},
		{"like:al%", "like", "al%"},
		{"ilike:AL%", "ilike", "AL%"},
		{"is:null", "is", "null"},
		{"in:a,b,c", "in", "a,b,c"},
		{"Alice", "eq", "Alice"},                       // no colon: whole value equals
		{"mailto:a@b.c", "eq", "mailto:a@b.c"},         // unknown prefix: equals on whole value
		{"eq:with:colons", "eq", "with:colons"},        // only first colon splits
		{"in:", "in", ""},                              // empty operand stays with the operator
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			op, operand := splitOperator(tt.raw)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.operand, operand)
		})
	}
}

func TestFilterOperatorsSQL(t *testing.T) {
	tests := []struct {
		raw    string
		clause string
		args   []any
	}{
		{"eq:Alice", `"name" = $1`, []any{"Alice"}},
		{"neq:Alice", `"name" != $1`, []any{"Alice"}},
		{"gt:5", `"name" > $1`, []any{"5"}},
		{"gte:5", `"name" >= $1`, []any{"5"}},
		{"lt:5", `"name" < $1`, []any{"5"}},
		{"lte:5", `"name" <= $1`, []any{"5"}},
		{"like:al%", `"name" LIKE $1`, []any{"al%"}},
		{"ilike:al%", `"name" ILIKE $1`, []any{"al%"}},
		{"is:null", `"name" IS NULL`, nil},
		{"is:NULL", `"name" IS NULL`, nil},
		{"is:notnull", `"name" IS NOT NULL`, nil},
		{"is:NotNull", `"name" IS NOT NULL`, nil},
		{"in:a,b", `"name" IN ($1, $2)`, []any{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			clause, args, _, err := buildFilterClause(usersEntity(), Filter{Column: "name", Raw: tt.raw}, 1, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.clause, clause)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestFilterUnknownColumn(t *testing.T) {
	_, _, _, err := buildFilterClause(usersEntity(), Filter{Column: "ghost", Raw: "eq:1"}, 1, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidationFailed, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "id, name, email")
}

func TestFilterIsInvalidOperand(t *testing.T) {
	_, _, _, err := buildFilterClause(usersEntity(), Filter{Column: "name", Raw: "is:maybe"}, 1, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidationFailed, apperrors.KindOf(err))
}

func TestInListBoundary(t *testing.T) {
	build := func(n int) (string, error) {
		values := make([]string, n)
		for i := range values {
			values[i] = fmt.Sprintf("v%d", i)
		}
		clause, _, _, err := buildFilterClause(usersEntity(),
			Filter{Column: "name", Raw: "in:" + strings.Join(values, ",")}, 1, nil)
		return clause, err
	}

	t.Run("100 values succeed", func(t *testing.T) {
		clause, err := build(100)
		require.NoError(t, err)
		assert.Contains(t, clause, "$100")
	})

	t.Run("101 values fail", func(t *testing.T) {
		_, err := build(101)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidationFailed, apperrors.KindOf(err))
	})
}

func TestEscapeSearchTerm(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"50%", `50\%`},
		{"under_score", `under\_score`},
		{`back\slash`, `back\\slash`},
		{`%_\`, `\%\_\\`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeSearchTerm(tt.in))
	}
}

func TestBuildWhereSearch(t *testing.T) {
	t.Run("defaults to textual columns", func(t *testing.T) {
		clause, args, next, err := buildWhere(usersEntity(), nil, "needle", nil, 1)
		require.NoError(t, err)
		assert.Equal(t, ` WHERE ("name"::text ILIKE $1 OR "email"::text ILIKE $1)`, clause)
		assert.Equal(t, []any{"%needle%"}, args)
		assert.Equal(t, 2, next)
	})

	t.Run("explicit columns restrict and skip unknown", func(t *testing.T) {
		clause, args, _, err := buildWhere(usersEntity(), nil, "needle", []string{"email", "ghost"}, 1)
		require.NoError(t, err)
		assert.Equal(t, ` WHERE ("email"::text ILIKE $1)`, clause)
		assert.Len(t, args, 1)
	})

	t.Run("no surviving column drops search", func(t *testing.T) {
		clause, args, _, err := buildWhere(usersEntity(), nil, "needle", []string{"ghost"}, 1)
		require.NoError(t, err)
		assert.Empty(t, clause)
		assert.Empty(t, args)
	})

	t.Run("filters and search conjoin", func(t *testing.T) {
		clause, args, _, err := buildWhere(usersEntity(),
			[]Filter{{Column: "id", Raw: "gt:10"}}, "needle", nil, 1)
		require.NoError(t, err)
		assert.Equal(t, ` WHERE "id" > $1 AND ("name"::text ILIKE $2 OR "email"::text ILIKE $2)`, clause)
		assert.Equal(t, []any{"10", "%needle%"}, args)
	})
}
