package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mwantia/gofilestore/pkg/filestore"
	"github.com/mwantia/gofilestore/pkg/log"
	"github.com/mwantia/gofilestore/pkg/query"
)

// Store is the part of the file store exposed as tools.
type Store interface {
	Query(ctx context.Context, q *query.Query) ([]query.Document, error)
	Count(ctx context.Context, filter query.Filter) (int, error)
	Distinct(ctx context.Context, field string, filter query.Filter) ([]any, error)
	AddMetadata(ctx context.Context, filter query.Filter, fields query.Document, auto filestore.AutoMetadataFunc) error
	RemoveDocs(ctx context.Context, filter query.Filter, confirm bool) error
}

// NewServer creates an MCP server with all file store tools registered.
func NewServer(store Store, version string, logger log.LoggerService) *server.MCPServer {
	s := server.NewMCPServer(
		"gofilestore",
		version,
		server.WithToolCapabilities(true),
	)

	RegisterReadTools(s, store, logger)
	RegisterWriteTools(s, store, logger)
	return s
}

// Serve blocks until stdin is closed.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func toolJSON(value any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return toolError(fmt.Errorf("failed to encode result: %w", err))
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseFilter(raw string) (query.Filter, error) {
	filter := query.Filter{}
	if strings.TrimSpace(raw) == "" {
		return filter, nil
	}
	if err := json.Unmarshal([]byte(raw), &filter); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return filter, nil
}

func parseList(raw string) []string {
	var values []string
	for _, value := range strings.Split(raw, ",") {
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}
	return values
}
