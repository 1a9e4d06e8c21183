package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
)

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// errorBody is the serialized form of a domain error. Detail, Constraint,
// and Details only appear when the deployment exposes database details.
type errorBody struct {
	Error      string   `json:"error"`
	Message    string   `json:"message"`
	Detail     string   `json:"detail,omitempty"`
	Constraint string   `json:"constraint,omitempty"`
	Details    []string `json:"details,omitempty"`
}

// WriteError serializes any error through the taxonomy. exposeDB controls
// whether native detail and constraint names leave the process.
func WriteError(w http.ResponseWriter, err error, exposeDB bool) {
	ae := apperrors.AsError(err)
	body := errorBody{
		Error:   string(ae.Kind),
		Message: ae.Message,
	}
	if exposeDB {
		body.Detail = ae.Detail
		body.Constraint = ae.Constraint
		body.Details = ae.Details
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.Kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(body)
}

// listEnvelope is the paged list response.
type listEnvelope struct {
	Data       []map[string]any `json:"data"`
	Pagination paginationBlock  `json:"pagination"`
}

type paginationBlock struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// bulkEnvelope is the bulk-create response.
type bulkEnvelope struct {
	Data  []map[string]any `json:"data"`
	Count int              `json:"count"`
}

// deleteEnvelope is the delete response.
type deleteEnvelope struct {
	Deleted    bool           `json:"deleted"`
	SoftDelete bool           `json:"soft_delete"`
	Record     map[string]any `json:"record"`
}
