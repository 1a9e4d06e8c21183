package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
	"github.com/pgcrud/pgcrud/pkg/auth"
	"github.com/pgcrud/pgcrud/pkg/middleware"
	"github.com/pgcrud/pgcrud/pkg/service"
)

// CRUDHandler serves the generated per-table routes.
type CRUDHandler struct {
	svc      *service.Service
	logger   *zap.Logger
	exposeDB bool
}

// NewCRUDHandler creates the CRUD handler.
func NewCRUDHandler(svc *service.Service, logger *zap.Logger, exposeDB bool) *CRUDHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CRUDHandler{svc: svc, logger: logger, exposeDB: exposeDB}
}

// RegisterRoutes registers the CRUD routes on the given mux. Literal meta
// routes registered elsewhere take precedence over the {segment} wildcard.
func (h *CRUDHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/{segment}", h.List)
	mux.HandleFunc("POST /api/{segment}", h.Create)
	mux.HandleFunc("GET /api/{segment}/{id}", h.Read)
	mux.HandleFunc("PUT /api/{segment}/{id}", h.Update)
	mux.HandleFunc("PATCH /api/{segment}/{id}", h.Update)
	mux.HandleFunc("DELETE /api/{segment}/{id}", h.Delete)
}

// List handles GET /api/{segment}.
func (h *CRUDHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.svc.List(r.Context(), r.PathValue("segment"), params)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, listEnvelope{
		Data: result.Rows,
		Pagination: paginationBlock{
			Page:       result.Page,
			PageSize:   result.PageSize,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		},
	})
}

// Read handles GET /api/{segment}/{id}.
func (h *CRUDHandler) Read(w http.ResponseWriter, r *http.Request) {
	segment := r.PathValue("segment")
	keys, err := h.pathKeys(r, auth.ModeRead)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	row, err := h.svc.Read(r.Context(), segment, keys)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, row)
}

// Create handles POST /api/{segment}: a single object or a bulk array.
func (h *CRUDHandler) Create(w http.ResponseWriter, r *http.Request) {
	segment := r.PathValue("segment")

	single, bulk, err := decodeWriteBody(r.Body, true)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if bulk != nil {
		rows, err := h.svc.CreateBulk(r.Context(), segment, bulk)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		_ = WriteJSON(w, http.StatusCreated, bulkEnvelope{Data: rows, Count: len(rows)})
		return
	}

	row, err := h.svc.Create(r.Context(), segment, single)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, row)
}

// Update handles PUT and PATCH /api/{segment}/{id}. Both apply the
// payload's columns; unmentioned columns keep their values.
func (h *CRUDHandler) Update(w http.ResponseWriter, r *http.Request) {
	segment := r.PathValue("segment")
	keys, err := h.pathKeys(r, auth.ModeWrite)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	payload, _, err := decodeWriteBody(r.Body, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	row, err := h.svc.Update(r.Context(), segment, keys, payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, row)
}

// Delete handles DELETE /api/{segment}/{id}.
func (h *CRUDHandler) Delete(w http.ResponseWriter, r *http.Request) {
	segment := r.PathValue("segment")
	keys, err := h.pathKeys(r, auth.ModeWrite)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.svc.Delete(r.Context(), segment, keys)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, deleteEnvelope{
		Deleted:    true,
		SoftDelete: result.Soft,
		Record:     result.Record,
	})
}

// pathKeys resolves the entity and parses the {id} segment against its
// primary key arity. The permission check runs before any key validation
// so a denied caller learns nothing about the table's key shape.
func (h *CRUDHandler) pathKeys(r *http.Request, mode auth.Mode) ([]any, error) {
	e, err := h.svc.Resolve(r.PathValue("segment"))
	if err != nil {
		return nil, err
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	if !claims.Permits(e.Namespace, mode) {
		return nil, apperrors.New(apperrors.KindPermissionDenied,
			"credential does not grant %s access to namespace %q", mode, e.Namespace)
	}
	if !e.HasPrimaryKey() {
		return nil, apperrors.Validation(
			"table %q has no primary key; by-key operations are unavailable", e.RouteSegment())
	}
	return parseKeys(e, r.PathValue("id"))
}

// fail logs and serializes an error at the dispatch boundary. Log entries
// carry the request identifier the logging middleware assigned so a client
// report can be matched to its server-side record.
func (h *CRUDHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	requestID := middleware.RequestIDFromContext(r.Context())
	if kind == apperrors.KindInternal {
		h.logger.Error("Request failed",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	} else {
		h.logger.Debug("Request rejected",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)))
	}
	WriteError(w, err, h.exposeDB)
}
