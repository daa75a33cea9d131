package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mwantia/gofilestore/pkg/log"
	"github.com/mwantia/gofilestore/pkg/query"
)

const filterDescription = "Mongo-style filter as JSON object, e.g. {\"name\": {\"$regex\": \"\\\\.in$\"}}. Omit to match every record."

// RegisterReadTools adds the query tools to the MCP server.
func RegisterReadTools(s *server.MCPServer, store Store, logger log.LoggerService) {
	s.AddTool(queryTool(), queryHandler(store, logger))
	s.AddTool(countTool(), countHandler(store))
	s.AddTool(distinctTool(), distinctHandler(store))
}

// --- query ---

func queryTool() mcp.Tool {
	return mcp.NewTool("query",
		mcp.WithDescription("Query file records. Each record carries path, parent, name, size, last_updated, hash, user metadata and optionally the file contents."),
		mcp.WithString("filter",
			mcp.Description(filterDescription),
		),
		mcp.WithString("properties",
			mcp.Description("Comma separated fields to return, e.g. name,size,contents. Omit for all fields."),
		),
		mcp.WithString("sort",
			mcp.Description("Comma separated sort keys, prefix with - for descending, e.g. -size,name"),
		),
		mcp.WithNumber("skip",
			mcp.Description("Number of records to skip"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records to return"),
		),
	)
}

func queryHandler(store Store, logger log.LoggerService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter, err := parseFilter(req.GetString("filter", ""))
		if err != nil {
			return toolError(err)
		}
		sort, err := query.ParseSort(req.GetString("sort", ""))
		if err != nil {
			return toolError(err)
		}

		q := &query.Query{
			Filter:     filter,
			Properties: parseList(req.GetString("properties", "")),
			Sort:       sort,
			Skip:       req.GetInt("skip", 0),
			Limit:      req.GetInt("limit", 0),
		}
		logger.Debug("Query %v", q.Filter)

		docs, err := store.Query(ctx, q)
		if err != nil {
			return toolError(err)
		}
		if len(docs) == 0 {
			return mcp.NewToolResultText("No records found."), nil
		}
		return toolJSON(docs)
	}
}

// --- count ---

func countTool() mcp.Tool {
	return mcp.NewTool("count",
		mcp.WithDescription("Count the file records matching a filter."),
		mcp.WithString("filter",
			mcp.Description(filterDescription),
		),
	)
}

func countHandler(store Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter, err := parseFilter(req.GetString("filter", ""))
		if err != nil {
			return toolError(err)
		}

		count, err := store.Count(ctx, filter)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("%d", count)), nil
	}
}

// --- distinct ---

func distinctTool() mcp.Tool {
	return mcp.NewTool("distinct",
		mcp.WithDescription("List the unique values of a field among matching records."),
		mcp.WithString("field",
			mcp.Description("Field name, dotted paths reach into nested metadata"),
			mcp.Required(),
		),
		mcp.WithString("filter",
			mcp.Description(filterDescription),
		),
	)
}

func distinctHandler(store Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		field := req.GetString("field", "")
		if field == "" {
			return toolError(fmt.Errorf("field is required"))
		}
		filter, err := parseFilter(req.GetString("filter", ""))
		if err != nil {
			return toolError(err)
		}

		values, err := store.Distinct(ctx, field, filter)
		if err != nil {
			return toolError(err)
		}
		return toolJSON(values)
	}
}
