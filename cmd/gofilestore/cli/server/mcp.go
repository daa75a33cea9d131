package server

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwantia/gofilestore/internal/agent"
	"github.com/mwantia/gofilestore/internal/config"
	"github.com/mwantia/gofilestore/internal/mcp"
	"github.com/mwantia/gofilestore/pkg/log"
)

func NewMcpCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the store as MCP tools over stdio",
		Long:  `Start an MCP server on stdin/stdout exposing the query, count, distinct, annotate and remove tools. Logs are written to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			// stdout carries the protocol
			cfg.Log.Output = "stderr"
			logger, err := log.NewLoggerService("gofilestore", cfg.Log)
			if err != nil {
				return err
			}

			fsa, err := agent.NewAgentWithLogger(cfg, logger)
			if err != nil {
				return err
			}
			if err := fsa.Start(cmd.Context()); err != nil {
				return err
			}

			serveErr := mcp.Serve(mcp.NewServer(fsa.Store(), version, logger.Named("mcp")))

			shutdown, cancel := context.WithTimeout(context.Background(), cfg.Agent.ShutdownTimeoutDuration())
			defer cancel()

			if err := fsa.Shutdown(shutdown); err != nil {
				logger.Warn("Failed to shut down cleanly: %v", err)
			}
			return serveErr
		},
	}

	return cmd
}
