package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
)

// ErrorResponse is the structured error payload embedded in tool results.
// Returning it as a tool result keeps the details visible to the agent
// instead of being swallowed by the client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error. Use
// for actionable failures the agent can fix: bad parameters, missing
// records, denied permissions. System failures should stay Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewErrorResultWithDetails creates an error result with extra context the
// agent can act on, such as the list of valid columns.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// resultFromError converts an agent-actionable domain error into a
// structured error result. Internal failures return nil so the caller
// propagates them as Go errors.
func resultFromError(err error) *mcp.CallToolResult {
	var ae *apperrors.Error
	if !errors.As(err, &ae) {
		return nil
	}
	switch ae.Kind {
	case apperrors.KindInternal, apperrors.KindUnavailable, apperrors.KindConfigurationInvalid:
		return nil
	}
	return NewErrorResult(string(ae.Kind), ae.Message)
}
