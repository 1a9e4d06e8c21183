package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
	"github.com/pgcrud/pgcrud/pkg/schema"
)

// jsonResult marshals a response into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// splitKey parses the comma-joined key argument against the entity's
// primary key arity, mirroring the REST path-key rules.
func splitKey(e *schema.Entity, raw string) ([]any, error) {
	want := len(e.PrimaryKeyColumns)
	parts := strings.Split(raw, ",")
	if len(parts) != want {
		if want > 1 {
			return nil, apperrors.Validation(
				"Composite primary key expects %d values, got %d", want, len(parts))
		}
		return nil, apperrors.Validation("Primary key expects 1 value, got %d", len(parts))
	}
	keys := make([]any, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, apperrors.Validation("primary key value for %q must not be empty",
				e.PrimaryKeyColumns[i])
		}
		keys[i] = part
	}
	return keys, nil
}

// argumentsMap extracts the raw argument object from a tool request.
func argumentsMap(req mcp.CallToolRequest) map[string]any {
	if args, ok := req.Params.Arguments.(map[string]any); ok {
		return args
	}
	return map[string]any{}
}

// optionalString returns a string argument or empty.
func optionalString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// optionalInt returns a numeric argument as int. JSON numbers decode as
// float64.
func optionalInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// optionalStringSlice accepts an array of strings or a comma-joined string.
func optionalStringSlice(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		var out []string
		for _, part := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	default:
		return nil
	}
}
