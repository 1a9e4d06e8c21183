package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pgcrud/pgcrud/pkg/auth"
	"github.com/pgcrud/pgcrud/pkg/middleware"
	"github.com/pgcrud/pgcrud/pkg/schema"
	"github.com/pgcrud/pgcrud/pkg/service"
	"github.com/pgcrud/pgcrud/pkg/surface"
)

func testModel() *schema.Model {
	users := &schema.Entity{
		Namespace: "public",
		Name:      "users",
		Columns: []schema.Column{
			{Name: "id", TypeTag: "int4", OrdinalPosition: 1},
			{Name: "name", TypeTag: "text", Nullable: true, OrdinalPosition: 2},
		},
		PrimaryKeyColumns: []string{"id"},
	}
	userRoles := &schema.Entity{
		Namespace: "public",
		Name:      "user_roles",
		Columns: []schema.Column{
			{Name: "user_id", TypeTag: "int4", OrdinalPosition: 1},
			{Name: "role_id", TypeTag: "int4", OrdinalPosition: 2},
		},
		PrimaryKeyColumns: []string{"user_id", "role_id"},
	}
	metrics := &schema.Entity{
		Namespace: "reporting",
		Name:      "metrics",
		Columns: []schema.Column{
			{Name: "id", TypeTag: "int8", OrdinalPosition: 1},
		},
		PrimaryKeyColumns: []string{"id"},
	}
	return schema.NewModel([]string{"public", "reporting"},
		[]*schema.Entity{users, userRoles, metrics})
}

func testService() *service.Service {
	return service.New(testModel(), nil, nil,
		service.Limits{DefaultPageSize: 50, MaxPageSize: 200, MaxBulkRows: 500}, nil)
}

func testMux(t *testing.T) *http.ServeMux {
	t.Helper()
	svc := testService()
	mux := http.NewServeMux()
	NewCRUDHandler(svc, nil, false).RegisterRoutes(mux)
	NewMetaHandler(svc, surface.Options{DefaultPageSize: 50, MaxPageSize: 200, MaxBulkRows: 500}, nil, false).RegisterRoutes(mux)
	return mux
}

func scopedContext(scopes map[string]auth.Access) context.Context {
	return auth.WithClaims(context.Background(), &auth.Claims{Label: "t", Scopes: scopes})
}

func TestUnknownTableReturns404(t *testing.T) {
	mux := testMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/missing/1", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["error"])
}

func TestCompositeKeyArityMismatch(t *testing.T) {
	mux := testMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user_roles/42", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_failed", body["error"])
	assert.Contains(t, body["message"], "Composite primary key expects 2 values")
}

func TestScopedCredentialDeniedAcrossNamespace(t *testing.T) {
	mux := testMux(t)
	req := httptest.NewRequest(http.MethodGet, "/api/reporting__metrics", nil)
	req = req.WithContext(scopedContext(map[string]auth.Access{"public": auth.AccessReadWrite}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "permission_denied", body["error"])
	assert.Contains(t, body["message"], "reporting")
}

func TestDeniedNamespaceKeyShapeStaysHidden(t *testing.T) {
	// A denied caller must get permission_denied even when the key segment
	// would also fail arity validation; a 400 here would leak how many
	// columns the primary key has.
	mux := testMux(t)

	for _, tc := range []struct {
		name   string
		method string
	}{
		{"read", http.MethodGet},
		{"update", http.MethodPatch},
		{"delete", http.MethodDelete},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/reporting__metrics/1,2,3", nil)
			req = req.WithContext(scopedContext(map[string]auth.Access{"public": auth.AccessReadWrite}))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "permission_denied", body["error"])
			assert.NotContains(t, body["message"], "expects")
		})
	}
}

func TestReadOnlyCredentialDeniedOnWriteKeyRoute(t *testing.T) {
	mux := testMux(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/user_roles/42", nil)
	req = req.WithContext(scopedContext(map[string]auth.Access{"public": auth.AccessRead}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "permission_denied", body["error"])
}

func TestInvalidBodyReturns400(t *testing.T) {
	mux := testMux(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetaListingHidesUnreadableNamespaces(t *testing.T) {
	mux := testMux(t)

	// Without claims every table is listed.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/_meta/tables", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	// A public-only credential does not see reporting tables.
	req := httptest.NewRequest(http.MethodGet, "/api/_meta/tables", nil)
	req = req.WithContext(scopedContext(map[string]auth.Access{"public": auth.AccessReadWrite}))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var visible []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &visible))
	require.Len(t, visible, 2)
	for _, summary := range visible {
		assert.Equal(t, "public", summary["namespace"])
	}
}

func TestDescribeTableDeniedForUnreadableNamespace(t *testing.T) {
	mux := testMux(t)
	req := httptest.NewRequest(http.MethodGet, "/api/_meta/tables/reporting__metrics", nil)
	req = req.WithContext(scopedContext(map[string]auth.Access{"public": auth.AccessRead}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSchemaEnvelope(t *testing.T) {
	mux := testMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/_schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		DatabaseHash string               `json:"database_hash"`
		Capabilities surface.Capabilities `json:"capabilities"`
		Tables       []surface.EntityDoc  `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.DatabaseHash, 64)
	assert.Equal(t, "/api", envelope.Capabilities.BasePath)
	assert.Len(t, envelope.Tables, 3)
}

func TestSchemaTableRoute(t *testing.T) {
	mux := testMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/_schema/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc surface.EntityDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "users", doc.Name)
	assert.Equal(t, "/api/users", doc.Path)
}

func TestFailureLogsCarryRequestID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	svc := testService()
	mux := http.NewServeMux()
	NewCRUDHandler(svc, zap.New(core), false).RegisterRoutes(mux)
	handler := middleware.RequestLogger(zap.New(core))(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/missing/1", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assignedID := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, assignedID)

	entries := logs.FilterMessage("Request rejected").All()
	require.Len(t, entries, 1)
	assert.Equal(t, assignedID, entries[0].ContextMap()["request_id"])
}

type failingProber struct{}

func (failingProber) Healthy(context.Context) error { return errors.New("connection refused") }

type okProber struct{}

func (okProber) Healthy(context.Context) error { return nil }

func TestHealthBaselineAndAugmented(t *testing.T) {
	model := testModel()
	build := BuildInfo{Version: "1.2.3", GitHash: "abc123", Timestamp: "2026-01-01T00:00:00Z"}

	t.Run("auth enabled without credential shows baseline only", func(t *testing.T) {
		h := NewHealthHandler(model, okProber{}, build, true, nil)
		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/_health", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "1.2.3", resp.Version)
		assert.Empty(t, resp.DatabaseHash)
		assert.Nil(t, resp.Tables)
	})

	t.Run("credential augments the response", func(t *testing.T) {
		h := NewHealthHandler(model, okProber{}, build, true, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/_health", nil)
		req = req.WithContext(auth.WithClaims(req.Context(), auth.FullAccess("ops")))
		rec := httptest.NewRecorder()
		h.Health(rec, req)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.DatabaseHash, 64)
		require.NotNil(t, resp.Tables)
		assert.Equal(t, 3, *resp.Tables)
		assert.Equal(t, []string{"public", "reporting"}, resp.Namespaces)
	})

	t.Run("auth disabled always augments", func(t *testing.T) {
		h := NewHealthHandler(model, okProber{}, build, false, nil)
		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/_health", nil))

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.DatabaseHash)
	})

	t.Run("failed probe returns 503 unhealthy", func(t *testing.T) {
		h := NewHealthHandler(model, failingProber{}, build, false, nil)
		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/_health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "unhealthy", resp.Status)
	})
}
