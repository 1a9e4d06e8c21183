// Package tools implements the gateway's MCP tools: the same seven
// operations the REST surface exposes, dispatched through the shared core.
package tools

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/pgcrud/pgcrud/pkg/service"
	"github.com/pgcrud/pgcrud/pkg/surface"
)

// Deps contains the dependencies shared by every tool.
type Deps struct {
	Service *service.Service
	Surface surface.Options
	Logger  *zap.Logger
}

// RegisterAll registers every gateway tool on the server.
func RegisterAll(s *server.MCPServer, deps *Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	registerListTablesTool(s, deps)
	registerDescribeTableTool(s, deps)
	registerListRecordsTool(s, deps)
	registerGetRecordTool(s, deps)
	registerCreateRecordTool(s, deps)
	registerUpdateRecordTool(s, deps)
	registerDeleteRecordTool(s, deps)
}
