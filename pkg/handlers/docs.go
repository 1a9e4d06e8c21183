package handlers

import (
	"net/http"
)

// docsShell is the static landing page. The real documentation lives at
// /api/_schema; the shell just points callers there.
const docsShell = `<!doctype html>
<html>
<head><title>pgcrud gateway</title></head>
<body>
<h1>pgcrud gateway</h1>
<p>Every table in the connected database is exposed as REST CRUD under <code>/api/{table}</code>.</p>
<ul>
<li><a href="/api/_health">/api/_health</a> &mdash; service health</li>
<li><a href="/api/_meta/tables">/api/_meta/tables</a> &mdash; accessible tables</li>
<li><a href="/api/_schema">/api/_schema</a> &mdash; full schema and API capabilities</li>
</ul>
<p>Agent clients connect to <code>/mcp</code>.</p>
</body>
</html>
`

// DocsHandler serves the documentation shell at the root path.
type DocsHandler struct{}

// NewDocsHandler creates the docs handler.
func NewDocsHandler() *DocsHandler { return &DocsHandler{} }

// RegisterRoutes registers the docs route on the given mux.
func (h *DocsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Index)
}

// Index handles GET /.
func (h *DocsHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsShell))
}
