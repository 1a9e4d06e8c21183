package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
	"github.com/pgcrud/pgcrud/pkg/auth"
	"github.com/pgcrud/pgcrud/pkg/schema"
	"github.com/pgcrud/pgcrud/pkg/service"
	"github.com/pgcrud/pgcrud/pkg/surface"
)

// tableSummary is the lightweight listing entry for _meta/tables.
type tableSummary struct {
	Name       string   `json:"name"`
	Namespace  string   `json:"namespace"`
	Path       string   `json:"path"`
	PrimaryKey []string `json:"primary_key"`
	Operations []string `json:"operations"`
}

// schemaEnvelope is the full _schema dump.
type schemaEnvelope struct {
	DatabaseHash string               `json:"database_hash"`
	Capabilities surface.Capabilities `json:"capabilities"`
	Tables       []surface.EntityDoc  `json:"tables"`
}

// MetaHandler serves the catalog metadata and schema documentation routes.
// Listings are filtered by the caller's claims; a scoped credential only
// sees the namespaces it can read.
type MetaHandler struct {
	svc      *service.Service
	opts     surface.Options
	logger   *zap.Logger
	exposeDB bool
}

// NewMetaHandler creates the meta handler.
func NewMetaHandler(svc *service.Service, opts surface.Options, logger *zap.Logger, exposeDB bool) *MetaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetaHandler{svc: svc, opts: opts, logger: logger, exposeDB: exposeDB}
}

// RegisterRoutes registers the meta routes on the given mux.
func (h *MetaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/_meta/tables", h.ListTables)
	mux.HandleFunc("GET /api/_meta/tables/{segment}", h.DescribeTable)
	mux.HandleFunc("GET /api/_schema", h.Schema)
	mux.HandleFunc("GET /api/_schema/{segment}", h.SchemaTable)
}

// ListTables handles GET /api/_meta/tables.
func (h *MetaHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	summaries := []tableSummary{}
	for _, doc := range surface.DescribeAll(h.svc.VisibleEntities(r.Context())) {
		summaries = append(summaries, tableSummary{
			Name:       doc.Name,
			Namespace:  doc.Namespace,
			Path:       doc.Path,
			PrimaryKey: doc.PrimaryKey,
			Operations: doc.Operations,
		})
	}
	_ = WriteJSON(w, http.StatusOK, summaries)
}

// DescribeTable handles GET /api/_meta/tables/{segment}.
func (h *MetaHandler) DescribeTable(w http.ResponseWriter, r *http.Request) {
	e, err := h.resolveReadable(r)
	if err != nil {
		WriteError(w, err, h.exposeDB)
		return
	}
	_ = WriteJSON(w, http.StatusOK, surface.DescribeEntity(e))
}

// Schema handles GET /api/_schema.
func (h *MetaHandler) Schema(w http.ResponseWriter, r *http.Request) {
	docs := surface.DescribeAll(h.svc.VisibleEntities(r.Context()))
	if docs == nil {
		docs = []surface.EntityDoc{}
	}
	_ = WriteJSON(w, http.StatusOK, schemaEnvelope{
		DatabaseHash: h.svc.Model().Digest(),
		Capabilities: surface.DescribeCapabilities(h.opts),
		Tables:       docs,
	})
}

// SchemaTable handles GET /api/_schema/{segment}.
func (h *MetaHandler) SchemaTable(w http.ResponseWriter, r *http.Request) {
	e, err := h.resolveReadable(r)
	if err != nil {
		WriteError(w, err, h.exposeDB)
		return
	}
	_ = WriteJSON(w, http.StatusOK, surface.DescribeEntity(e))
}

// resolveReadable resolves the segment and requires read access to its
// namespace.
func (h *MetaHandler) resolveReadable(r *http.Request) (*schema.Entity, error) {
	e, err := h.svc.Resolve(r.PathValue("segment"))
	if err != nil {
		return nil, err
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	if !claims.Permits(e.Namespace, auth.ModeRead) {
		return nil, apperrors.New(apperrors.KindPermissionDenied,
			"credential does not grant read access to namespace %q", e.Namespace)
	}
	return e, nil
}
