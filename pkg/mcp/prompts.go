package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pgcrud/pgcrud/pkg/apperrors"
	"github.com/pgcrud/pgcrud/pkg/auth"
	"github.com/pgcrud/pgcrud/pkg/service"
	"github.com/pgcrud/pgcrud/pkg/surface"
)

// RegisterPrompts adds the synthesized database overview and per-table
// CRUD guide prompts.
func (s *Server) RegisterPrompts(svc *service.Service) {
	s.mcp.AddPrompt(
		mcp.NewPrompt(
			"database_overview",
			mcp.WithPromptDescription("Orientation over every accessible table and how to work with them"),
		),
		func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			return mcp.NewGetPromptResult(
				"Database overview",
				[]mcp.PromptMessage{
					mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(overviewText(ctx, svc))),
				},
			), nil
		},
	)

	s.mcp.AddPrompt(
		mcp.NewPrompt(
			"table_crud_guide",
			mcp.WithPromptDescription("How to list, read, create, update, and delete records of one table"),
			mcp.WithArgument("table",
				mcp.RequiredArgument(),
				mcp.ArgumentDescription("Route segment of the table, as returned by list_tables")),
		),
		func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			segment := req.Params.Arguments["table"]
			e, err := svc.Resolve(segment)
			if err != nil {
				return nil, err
			}
			claims, _ := auth.ClaimsFromContext(ctx)
			if !claims.Permits(e.Namespace, auth.ModeRead) {
				return nil, apperrors.New(apperrors.KindPermissionDenied,
					"credential does not grant read access to namespace %q", e.Namespace)
			}

			return mcp.NewGetPromptResult(
				fmt.Sprintf("CRUD guide for %s", segment),
				[]mcp.PromptMessage{
					mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(crudGuideText(e.RouteSegment(), surface.DescribeEntity(e)))),
				},
			), nil
		},
	)
}

// overviewText synthesizes the database_overview prompt body from the
// claims-filtered model.
func overviewText(ctx context.Context, svc *service.Service) string {
	entities := svc.VisibleEntities(ctx)

	var b strings.Builder
	b.WriteString("You are connected to a PostgreSQL database exposed through a CRUD gateway.\n")
	fmt.Fprintf(&b, "There are %d accessible tables:\n\n", len(entities))
	for _, e := range entities {
		singular := inflection.Singular(e.Name)
		pk := "no primary key"
		if e.HasPrimaryKey() {
			pk = "primary key " + strings.Join(e.PrimaryKeyColumns, ", ")
		}
		fmt.Fprintf(&b, "- %s: one row per %s (%s, %d columns)\n",
			e.RouteSegment(), singular, pk, len(e.Columns))
	}
	b.WriteString("\nUse describe_table for column details, list_records to query, and ")
	b.WriteString("get_record/create_record/update_record/delete_record for row operations. ")
	b.WriteString("The pgcrud://schema resource carries the full machine-readable schema.")
	return b.String()
}

// crudGuideText synthesizes the table_crud_guide prompt body for one table.
func crudGuideText(segment string, doc surface.EntityDoc) string {
	singular := inflection.Singular(doc.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "Working with the %s table (one row per %s).\n\n", segment, singular)

	b.WriteString("Columns:\n")
	for _, c := range doc.Columns {
		attrs := []string{c.Type}
		if c.Format != "" {
			attrs = append(attrs, c.Format)
		}
		if c.PrimaryKey {
			attrs = append(attrs, "primary key")
		}
		if c.InsertRequired {
			attrs = append(attrs, "required on insert")
		}
		if c.Nullable {
			attrs = append(attrs, "nullable")
		}
		fmt.Fprintf(&b, "- %s (%s)\n", c.Name, strings.Join(attrs, ", "))
	}

	if len(doc.ForeignKeys) > 0 {
		b.WriteString("\nReferences:\n")
		for _, fk := range doc.ForeignKeys {
			fmt.Fprintf(&b, "- %s -> %s.%s (see table %s)\n",
				fk.Column, fk.ReferencesTable, fk.ReferencesColumn, fk.RefPath)
		}
	}

	fmt.Fprintf(&b, "\nOperations: %s.\n", strings.Join(doc.Operations, ", "))
	fmt.Fprintf(&b, "List: list_records(table='%s', filters={...}, page=1)\n", segment)
	if len(doc.PrimaryKey) > 0 {
		key := strings.Join(doc.PrimaryKey, ",")
		fmt.Fprintf(&b, "Read: get_record(table='%s', key='<%s>')\n", segment, key)
		fmt.Fprintf(&b, "Update: update_record(table='%s', key='<%s>', record={...})\n", segment, key)
		fmt.Fprintf(&b, "Delete: delete_record(table='%s', key='<%s>')\n", segment, key)
	}
	fmt.Fprintf(&b, "Create: create_record(table='%s', record={...})\n", segment)
	if len(doc.SearchableColumns) > 0 {
		fmt.Fprintf(&b, "Search: list_records(table='%s', search='term') matches %s.\n",
			segment, strings.Join(doc.SearchableColumns, ", "))
	}
	return b.String()
}
