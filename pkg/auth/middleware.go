package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware authenticates requests before they reach the dispatch core.
// Credentials arrive as `Authorization: Bearer {token}` or `X-API-Key:
// {token}`; the Authorization header wins when both are present.
type Middleware struct {
	engine *Engine // nil when authentication is disabled
	public map[string]bool
	logger *zap.Logger
}

// NewMiddleware creates the auth middleware. A nil engine disables
// verification: every request proceeds with full access.
func NewMiddleware(engine *Engine, publicPaths []string, logger *zap.Logger) *Middleware {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{engine: engine, public: public, logger: logger}
}

// extractToken pulls the credential from the request headers.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}
	}
	return r.Header.Get("X-API-Key")
}

// Wrap enforces authentication on every non-public path. Public paths pass
// through untouched, but a valid credential on them is still attached so
// handlers like health can augment their response.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.engine == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)

		if m.public[r.URL.Path] {
			if token != "" {
				if claims, err := m.engine.Verify(token); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.engine.Verify(token)
		if err != nil {
			m.logger.Debug("Rejected credential",
				zap.String("path", r.URL.Path),
				zap.Bool("token_present", token != ""))
			m.unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m *Middleware) unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthenticated",
		"message": "Missing or invalid credential",
	})
}
