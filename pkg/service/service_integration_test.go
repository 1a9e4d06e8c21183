package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
	"github.com/pgcrud/pgcrud/pkg/query"
	"github.com/pgcrud/pgcrud/pkg/schema"
	"github.com/pgcrud/pgcrud/pkg/service"
	"github.com/pgcrud/pgcrud/pkg/testhelpers"
)

func integrationService(t *testing.T) *service.Service {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)

	model, err := schema.NewIntrospector(testDB.DB, schema.Options{}, nil).Introspect(context.Background())
	require.NoError(t, err)

	return service.New(model, testDB.DB, testDB.DB, service.Limits{
		DefaultPageSize: 50,
		MaxPageSize:     200,
		MaxBulkRows:     500,
	}, nil)
}

func TestRecordLifecycle(t *testing.T) {
	svc := integrationService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "users", map[string]any{
		"email": "lifecycle@example.com",
		"name":  "Lifecycle",
	})
	require.NoError(t, err)
	id, ok := created["id"].(string)
	require.True(t, ok, "generated uuid key should come back as a string")
	assert.Equal(t, true, created["active"], "column default should apply")

	read, err := svc.Read(ctx, "users", []any{id})
	require.NoError(t, err)
	assert.Equal(t, "lifecycle@example.com", read["email"])

	updated, err := svc.Update(ctx, "users", []any{id}, map[string]any{"name": "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated["name"])
	assert.NotEqual(t, read["updated_at"], updated["updated_at"])

	deleted, err := svc.Delete(ctx, "users", []any{id})
	require.NoError(t, err)
	assert.True(t, deleted.Soft, "users carries deleted_at, so deletes are soft")
	assert.NotNil(t, deleted.Record["deleted_at"])

	// The soft-deleted row remains readable.
	_, err = svc.Read(ctx, "users", []any{id})
	assert.NoError(t, err)
}

func TestHardDeleteWithoutSoftDeleteColumn(t *testing.T) {
	svc := integrationService(t)
	ctx := context.Background()

	author, err := svc.Create(ctx, "users", map[string]any{"email": "author@example.com"})
	require.NoError(t, err)

	post, err := svc.Create(ctx, "posts", map[string]any{
		"author_id": author["id"],
		"title":     "disposable",
	})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, "posts", []any{post["id"]})
	require.NoError(t, err)
	assert.False(t, deleted.Soft)

	_, err = svc.Read(ctx, "posts", []any{post["id"]})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestListFilterSearchAndPagination(t *testing.T) {
	svc := integrationService(t)
	ctx := context.Background()

	author, err := svc.Create(ctx, "users", map[string]any{"email": "lister@example.com"})
	require.NoError(t, err)

	rows := make([]map[string]any, 0, 5)
	for _, title := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		rows = append(rows, map[string]any{
			"author_id": author["id"],
			"title":     title,
			"published": title != "gamma",
		})
	}
	inserted, err := svc.CreateBulk(ctx, "posts", rows)
	require.NoError(t, err)
	require.Len(t, inserted, 5)

	t.Run("filter with pagination envelope", func(t *testing.T) {
		result, err := svc.List(ctx, "posts", query.ListParams{
			Filters:  []query.Filter{{Column: "published", Raw: "eq:true"}},
			SortBy:   "title",
			PageSize: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(4), result.Total)
		assert.Equal(t, int64(2), result.TotalPages)
		require.Len(t, result.Rows, 2)
		assert.Equal(t, "alpha", result.Rows[0]["title"])
	})

	t.Run("search matches text columns case-insensitively", func(t *testing.T) {
		result, err := svc.List(ctx, "posts", query.ListParams{Search: "GAMM"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Total)
	})

	t.Run("projection narrows the row", func(t *testing.T) {
		result, err := svc.List(ctx, "posts", query.ListParams{
			Select:   []string{"title"},
			PageSize: 1,
		})
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		_, hasID := result.Rows[0]["id"]
		assert.False(t, hasID)
	})
}

func TestCompositeKeyOperations(t *testing.T) {
	svc := integrationService(t)
	ctx := context.Background()

	author, err := svc.Create(ctx, "users", map[string]any{"email": "tagger@example.com"})
	require.NoError(t, err)
	post, err := svc.Create(ctx, "posts", map[string]any{
		"author_id": author["id"],
		"title":     "tagged",
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "post_tags", map[string]any{
		"post_id": post["id"],
		"tag":     "golang",
	})
	require.NoError(t, err)

	row, err := svc.Read(ctx, "post_tags", []any{post["id"], "golang"})
	require.NoError(t, err)
	assert.Equal(t, "golang", row["tag"])
}

func TestConstraintViolationsMapToClientErrors(t *testing.T) {
	svc := integrationService(t)
	ctx := context.Background()

	t.Run("not-null violation", func(t *testing.T) {
		_, err := svc.Create(ctx, "posts", map[string]any{"title": "orphan"})
		assert.Equal(t, apperrors.KindNullViolation, apperrors.KindOf(err))
	})

	t.Run("foreign key violation", func(t *testing.T) {
		_, err := svc.Create(ctx, "posts", map[string]any{
			"author_id": "00000000-0000-0000-0000-000000000000",
			"title":     "dangling",
		})
		assert.Equal(t, apperrors.KindForeignKeyViolation, apperrors.KindOf(err))
	})

	t.Run("duplicate composite key", func(t *testing.T) {
		author, err := svc.Create(ctx, "users", map[string]any{"email": "dup@example.com"})
		require.NoError(t, err)
		post, err := svc.Create(ctx, "posts", map[string]any{
			"author_id": author["id"],
			"title":     "dup",
		})
		require.NoError(t, err)

		_, err = svc.Create(ctx, "post_tags", map[string]any{"post_id": post["id"], "tag": "x"})
		require.NoError(t, err)
		_, err = svc.Create(ctx, "post_tags", map[string]any{"post_id": post["id"], "tag": "x"})
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	})
}
