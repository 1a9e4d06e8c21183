package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
	"github.com/pgcrud/pgcrud/pkg/auth"
	"github.com/pgcrud/pgcrud/pkg/service"
	"github.com/pgcrud/pgcrud/pkg/surface"
)

const (
	schemaResourceURI     = "pgcrud://schema"
	tableResourceTemplate = "pgcrud://tables/{segment}"
	tableResourcePrefix   = "pgcrud://tables/"
)

// schemaResource is the canonical model dump served at pgcrud://schema.
type schemaResource struct {
	DatabaseHash string               `json:"database_hash"`
	Capabilities surface.Capabilities `json:"capabilities"`
	Tables       []surface.EntityDoc  `json:"tables"`
}

// RegisterResources adds the schema dump and the per-table template
// resource. Both are filtered by the caller's claims.
func (s *Server) RegisterResources(svc *service.Service, opts surface.Options) {
	s.mcp.AddResource(
		mcp.NewResource(
			schemaResourceURI,
			"Database schema",
			mcp.WithResourceDescription("Every accessible table with columns, keys, and API capabilities"),
			mcp.WithMIMEType("application/json"),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			docs := surface.DescribeAll(svc.VisibleEntities(ctx))
			if docs == nil {
				docs = []surface.EntityDoc{}
			}
			payload, err := json.Marshal(schemaResource{
				DatabaseHash: svc.Model().Digest(),
				Capabilities: surface.DescribeCapabilities(opts),
				Tables:       docs,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to marshal schema resource: %w", err)
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      schemaResourceURI,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)

	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			tableResourceTemplate,
			"Table description",
			mcp.WithTemplateDescription("Columns, keys, and allowed operations of one table"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			segment := strings.TrimPrefix(req.Params.URI, tableResourcePrefix)
			e, err := svc.Resolve(segment)
			if err != nil {
				return nil, err
			}
			claims, _ := auth.ClaimsFromContext(ctx)
			if !claims.Permits(e.Namespace, auth.ModeRead) {
				return nil, apperrors.New(apperrors.KindPermissionDenied,
					"credential does not grant read access to namespace %q", e.Namespace)
			}

			payload, err := json.Marshal(surface.DescribeEntity(e))
			if err != nil {
				return nil, fmt.Errorf("failed to marshal table resource: %w", err)
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      req.Params.URI,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}
