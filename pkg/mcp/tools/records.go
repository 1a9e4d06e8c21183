package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pgcrud/pgcrud/pkg/query"
)

// listRecordsResponse mirrors the REST list envelope.
type listRecordsResponse struct {
	Data       []map[string]any `json:"data"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	Total      int64            `json:"total"`
	TotalPages int64            `json:"total_pages"`
}

// listParamsFromArgs converts tool arguments into a list intent. Filters
// are sorted by column so the generated SQL is deterministic.
func listParamsFromArgs(args map[string]any) query.ListParams {
	p := query.ListParams{
		Search:        optionalString(args, "search"),
		SearchColumns: optionalStringSlice(args, "searchColumns"),
		Select:        optionalStringSlice(args, "select"),
		SortBy:        optionalString(args, "sortBy"),
		SortOrder:     optionalString(args, "sortOrder"),
		Page:          optionalInt(args, "page"),
		PageSize:      optionalInt(args, "pageSize"),
	}

	if filters, ok := args["filters"].(map[string]any); ok {
		for col, raw := range filters {
			p.Filters = append(p.Filters, query.Filter{Column: col, Raw: fmt.Sprintf("%v", raw)})
		}
		sort.Slice(p.Filters, func(i, j int) bool {
			return p.Filters[i].Column < p.Filters[j].Column
		})
	}
	return p
}

func registerListRecordsTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"list_records",
		mcp.WithDescription(
			"List records of a table with filtering, search, sorting, and pagination. "+
				"Filters are an object mapping column name to 'operator:value', operators: "+
				"eq, neq, gt, gte, lt, lte, like, ilike, is (null|notnull), in (comma-separated). "+
				"Example: list_records(table='users', filters={'status': 'eq:active'}, page=1, pageSize=20)",
		),
		mcp.WithString("table", mcp.Required(),
			mcp.Description("Route segment of the table, as returned by list_tables")),
		mcp.WithObject("filters",
			mcp.Description("Column filters: {column: 'operator:value'}")),
		mcp.WithString("search",
			mcp.Description("Term matched case-insensitively against text columns")),
		mcp.WithArray("searchColumns",
			mcp.Description("Restrict search to these columns")),
		mcp.WithArray("select",
			mcp.Description("Columns to return; omit for all")),
		mcp.WithString("sortBy", mcp.Description("Sort column; defaults to the primary key")),
		mcp.WithString("sortOrder", mcp.Description("'asc' (default) or 'desc'")),
		mcp.WithNumber("page", mcp.Description("1-based page number")),
		mcp.WithNumber("pageSize", mcp.Description("Rows per page, capped by the server")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return nil, err
		}

		result, err := deps.Service.List(ctx, table, listParamsFromArgs(argumentsMap(req)))
		if err != nil {
			if errResult := resultFromError(err); errResult != nil {
				return errResult, nil
			}
			return nil, err
		}
		return jsonResult(listRecordsResponse{
			Data:       result.Rows,
			Page:       result.Page,
			PageSize:   result.PageSize,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		})
	})
}

func registerGetRecordTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"get_record",
		mcp.WithDescription(
			"Fetch one record by primary key. For composite keys join the values with "+
				"commas in primary-key column order. Example: get_record(table='users', key='42')",
		),
		mcp.WithString("table", mcp.Required(),
			mcp.Description("Route segment of the table")),
		mcp.WithString("key", mcp.Required(),
			mcp.Description("Primary key value; comma-joined for composite keys")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return nil, err
		}
		key, err := req.RequireString("key")
		if err != nil {
			return nil, err
		}

		row, err := getByKey(ctx, deps, table, key)
		if err != nil {
			if errResult := resultFromError(err); errResult != nil {
				return errResult, nil
			}
			return nil, err
		}
		return jsonResult(row)
	})
}

func getByKey(ctx context.Context, deps *Deps, table, key string) (map[string]any, error) {
	e, err := resolveReadable(ctx, deps, table)
	if err != nil {
		return nil, err
	}
	keys, err := splitKey(e, key)
	if err != nil {
		return nil, err
	}
	return deps.Service.Read(ctx, table, keys)
}

func registerCreateRecordTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"create_record",
		mcp.WithDescription(
			"Insert one record (record argument) or several (records argument). "+
				"Returns the inserted rows including generated defaults. "+
				"Example: create_record(table='users', record={'name': 'Alice'})",
		),
		mcp.WithString("table", mcp.Required(),
			mcp.Description("Route segment of the table")),
		mcp.WithObject("record",
			mcp.Description("Column/value object for a single insert")),
		mcp.WithArray("records",
			mcp.Description("Array of column/value objects for a bulk insert")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return nil, err
		}
		args := argumentsMap(req)

		if raw, ok := args["records"].([]any); ok {
			payloads := make([]map[string]any, 0, len(raw))
			for _, item := range raw {
				obj, ok := item.(map[string]any)
				if !ok {
					return NewErrorResult("validation_failed",
						"every element of 'records' must be an object"), nil
				}
				payloads = append(payloads, obj)
			}
			if len(payloads) == 0 {
				return NewErrorResult("validation_failed", "'records' must not be empty"), nil
			}
			rows, err := deps.Service.CreateBulk(ctx, table, payloads)
			if err != nil {
				if errResult := resultFromError(err); errResult != nil {
					return errResult, nil
				}
				return nil, err
			}
			return jsonResult(map[string]any{"data": rows, "count": len(rows)})
		}

		record, ok := args["record"].(map[string]any)
		if !ok {
			return NewErrorResult("validation_failed",
				"provide either 'record' (object) or 'records' (array of objects)"), nil
		}
		row, err := deps.Service.Create(ctx, table, record)
		if err != nil {
			if errResult := resultFromError(err); errResult != nil {
				return errResult, nil
			}
			return nil, err
		}
		return jsonResult(row)
	})
}

func registerUpdateRecordTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"update_record",
		mcp.WithDescription(
			"Partially update one record by primary key: only the columns present in "+
				"'record' change. Example: update_record(table='users', key='42', record={'name': 'Bob'})",
		),
		mcp.WithString("table", mcp.Required(),
			mcp.Description("Route segment of the table")),
		mcp.WithString("key", mcp.Required(),
			mcp.Description("Primary key value; comma-joined for composite keys")),
		mcp.WithObject("record", mcp.Required(),
			mcp.Description("Columns to change and their new values")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return nil, err
		}
		key, err := req.RequireString("key")
		if err != nil {
			return nil, err
		}
		record, ok := argumentsMap(req)["record"].(map[string]any)
		if !ok {
			return NewErrorResult("validation_failed", "'record' must be an object"), nil
		}

		e, err := resolveWritable(ctx, deps, table)
		if err != nil {
			if errResult := resultFromError(err); errResult != nil {
				return errResult, nil
			}
			return nil, err
		}
		keys, err := splitKey(e, key)
		if err != nil {
			return resultFromError(err), nil
		}

		row, err := deps.Service.Update(ctx, table, keys, record)
		if err != nil {
			if errResult := resultFromError(err); errResult != nil {
				return errResult, nil
			}
			return nil, err
		}
		return jsonResult(row)
	})
}

func registerDeleteRecordTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"delete_record",
		mcp.WithDescription(
			"Delete one record by primary key. Tables with a deleted_at column are "+
				"soft-deleted (the row stays, timestamped); others are removed. "+
				"Example: delete_record(table='users', key='42')",
		),
		mcp.WithString("table", mcp.Required(),
			mcp.Description("Route segment of the table")),
		mcp.WithString("key", mcp.Required(),
			mcp.Description("Primary key value; comma-joined for composite keys")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return nil, err
		}
		key, err := req.RequireString("key")
		if err != nil {
			return nil, err
		}

		e, err := resolveWritable(ctx, deps, table)
		if err != nil {
			if errResult := resultFromError(err); errResult != nil {
				return errResult, nil
			}
			return nil, err
		}
		keys, err := splitKey(e, key)
		if err != nil {
			return resultFromError(err), nil
		}

		result, err := deps.Service.Delete(ctx, table, keys)
		if err != nil {
			if errResult := resultFromError(err); errResult != nil {
				return errResult, nil
			}
			return nil, err
		}
		return jsonResult(map[string]any{
			"deleted":     true,
			"soft_delete": result.Soft,
			"record":      result.Record,
		})
	})
}
