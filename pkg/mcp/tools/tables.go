package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
	"github.com/pgcrud/pgcrud/pkg/auth"
	"github.com/pgcrud/pgcrud/pkg/schema"
	"github.com/pgcrud/pgcrud/pkg/surface"
)

// tableSummary is the lightweight list_tables entry.
type tableSummary struct {
	Table      string   `json:"table"`
	Namespace  string   `json:"namespace"`
	Name       string   `json:"name"`
	PrimaryKey []string `json:"primary_key"`
	Operations []string `json:"operations"`
}

// resolvePermitted resolves a table argument and requires the given access
// mode on its namespace. The permission check precedes every other
// validation so a denied caller learns nothing about the table's shape.
// Denied access is permission_denied on the tool path.
func resolvePermitted(ctx context.Context, deps *Deps, segment string, mode auth.Mode) (*schema.Entity, error) {
	e, err := deps.Service.Resolve(segment)
	if err != nil {
		return nil, err
	}
	claims, _ := auth.ClaimsFromContext(ctx)
	if !claims.Permits(e.Namespace, mode) {
		return nil, apperrors.New(apperrors.KindPermissionDenied,
			"credential does not grant %s access to namespace %q", mode, e.Namespace)
	}
	return e, nil
}

func resolveReadable(ctx context.Context, deps *Deps, segment string) (*schema.Entity, error) {
	return resolvePermitted(ctx, deps, segment, auth.ModeRead)
}

func resolveWritable(ctx context.Context, deps *Deps, segment string) (*schema.Entity, error) {
	return resolvePermitted(ctx, deps, segment, auth.ModeWrite)
}

func registerListTablesTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"list_tables",
		mcp.WithDescription(
			"List every table the current credential can read, with its route segment, "+
				"namespace, primary key, and allowed operations. "+
				"Use the returned 'table' value as the table argument of the other tools.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		summaries := []tableSummary{}
		for _, e := range deps.Service.VisibleEntities(ctx) {
			doc := surface.DescribeEntity(e)
			summaries = append(summaries, tableSummary{
				Table:      e.RouteSegment(),
				Namespace:  doc.Namespace,
				Name:       doc.Name,
				PrimaryKey: doc.PrimaryKey,
				Operations: doc.Operations,
			})
		}
		return jsonResult(summaries)
	})
}

func registerDescribeTableTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"describe_table",
		mcp.WithDescription(
			"Describe one table: columns with portable types and formats, nullability, "+
				"defaults, primary key, foreign keys, searchable columns, and allowed operations. "+
				"Example: describe_table(table='users')",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Route segment of the table, as returned by list_tables"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return nil, err
		}

		e, err := resolveReadable(ctx, deps, table)
		if err != nil {
			if result := resultFromError(err); result != nil {
				return result, nil
			}
			return nil, err
		}
		return jsonResult(surface.DescribeEntity(e))
	})
}
