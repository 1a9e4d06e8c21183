package handlers

import (
	"context"
	"net/http"
	"runtime"

	"go.uber.org/zap"

	"github.com/pgcrud/pgcrud/pkg/auth"
	"github.com/pgcrud/pgcrud/pkg/schema"
)

// Prober checks database connectivity for the health endpoint.
type Prober interface {
	Healthy(ctx context.Context) error
}

// BuildInfo carries the ldflags-injected build identity.
type BuildInfo struct {
	Version   string
	GitHash   string
	Timestamp string
}

// HealthResponse is the /api/_health body. The database fields only appear
// for authenticated callers, or everyone when authentication is off.
type HealthResponse struct {
	Status         string   `json:"status"`
	Version        string   `json:"version"`
	BuildGitHash   string   `json:"build_git_hash"`
	BuildTimestamp string   `json:"build_timestamp"`
	GoVersion      string   `json:"go_version"`
	DatabaseHash   string   `json:"database_hash,omitempty"`
	Tables         *int     `json:"tables,omitempty"`
	Namespaces     []string `json:"namespaces,omitempty"`
}

// HealthHandler serves the health endpoint.
type HealthHandler struct {
	model       *schema.Model
	prober      Prober
	build       BuildInfo
	authEnabled bool
	logger      *zap.Logger
}

// NewHealthHandler creates the health handler. A nil prober reports healthy.
func NewHealthHandler(model *schema.Model, prober Prober, build BuildInfo, authEnabled bool, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{model: model, prober: prober, build: build, authEnabled: authEnabled, logger: logger}
}

// RegisterRoutes registers the health route on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/_health", h.Health)
}

// Health handles GET /api/_health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:         "ok",
		Version:        h.build.Version,
		BuildGitHash:   h.build.GitHash,
		BuildTimestamp: h.build.Timestamp,
		GoVersion:      runtime.Version(),
	}

	if h.prober != nil {
		if err := h.prober.Healthy(r.Context()); err != nil {
			h.logger.Error("Health probe failed", zap.Error(err))
			resp.Status = "unhealthy"
			_ = WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	_, authenticated := auth.ClaimsFromContext(r.Context())
	if !h.authEnabled || authenticated {
		tables := len(h.model.Entities)
		resp.DatabaseHash = h.model.Digest()
		resp.Tables = &tables
		resp.Namespaces = h.model.Namespaces
	}

	_ = WriteJSON(w, http.StatusOK, resp)
}
