package server

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwantia/gofilestore/internal/agent"
	"github.com/mwantia/gofilestore/internal/config"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the gofilestore agent",
		Long:  `Start the gofilestore agent. It keeps the store connected and rescans the root on every refresh interval until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			agent, err := agent.NewAgent(cfg)
			if err != nil {
				return err
			}
			return agent.Serve(cmd.Context())
		},
	}

	return cmd
}
