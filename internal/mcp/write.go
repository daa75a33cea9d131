package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mwantia/gofilestore/pkg/filestore"
	"github.com/mwantia/gofilestore/pkg/log"
	"github.com/mwantia/gofilestore/pkg/query"
)

// RegisterWriteTools adds the mutating tools to the MCP server. They fail
// with a tool error while the store is read-only.
func RegisterWriteTools(s *server.MCPServer, store Store, logger log.LoggerService) {
	s.AddTool(annotateTool(), annotateHandler(store, logger))
	s.AddTool(removeTool(), removeHandler(store, logger))
}

// --- annotate ---

func annotateTool() mcp.Tool {
	return mcp.NewTool("annotate",
		mcp.WithDescription("Merge user metadata into every record matching a filter. Derived fields such as name, size or hash can not be set."),
		mcp.WithString("filter",
			mcp.Description(filterDescription),
			mcp.Required(),
		),
		mcp.WithString("fields",
			mcp.Description("Metadata as JSON object, e.g. {\"experiment\": \"e1\"}"),
			mcp.Required(),
		),
	)
}

func annotateHandler(store Store, logger log.LoggerService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter, err := parseFilter(req.GetString("filter", ""))
		if err != nil {
			return toolError(err)
		}

		fields := query.Document{}
		if err := json.Unmarshal([]byte(req.GetString("fields", "")), &fields); err != nil {
			return toolError(fmt.Errorf("invalid fields: %w", err))
		}
		if len(fields) == 0 {
			return toolError(fmt.Errorf("fields must not be empty"))
		}

		count, err := store.Count(ctx, filter)
		if err != nil {
			return toolError(err)
		}
		if err := store.AddMetadata(ctx, filter, fields, nil); err != nil {
			return toolError(err)
		}

		logger.Info("Annotated %d record(s)", count)
		return mcp.NewToolResultText(fmt.Sprintf("Annotated %d record(s).", count)), nil
	}
}

// --- remove ---

func removeTool() mcp.Tool {
	return mcp.NewTool("remove",
		mcp.WithDescription("Delete the files of all records matching a filter together with their metadata. Without confirm only reports how many files would be deleted."),
		mcp.WithString("filter",
			mcp.Description(filterDescription),
			mcp.Required(),
		),
		mcp.WithBoolean("confirm",
			mcp.Description("Set to true to actually delete the files"),
		),
	)
}

func removeHandler(store Store, logger log.LoggerService) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter, err := parseFilter(req.GetString("filter", ""))
		if err != nil {
			return toolError(err)
		}
		if len(filter) == 0 {
			return toolError(fmt.Errorf("filter must not be empty"))
		}

		err = store.RemoveDocs(ctx, filter, req.GetBool("confirm", false))

		var confirmation *filestore.ConfirmationRequiredError
		if errors.As(err, &confirmation) {
			return mcp.NewToolResultText(fmt.Sprintf("%d file(s) would be deleted, call again with confirm set to true.", confirmation.Count)), nil
		}

		var partial *filestore.RemoveError
		if errors.As(err, &partial) {
			logger.Warn("Removed %d record(s), %d failed", len(partial.Removed), len(partial.Failed))
			return toolError(err)
		}
		if err != nil {
			return toolError(err)
		}

		logger.Info("Removed records matching %v", filter)
		return mcp.NewToolResultText("Removed."), nil
	}
}
