package client

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the store",
		Long:  "Scans the root and reports the record count, side-car location and orphaned metadata entries.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs, err := connectStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer fs.Close()

			stats, err := fs.Stats()
			if err != nil {
				return err
			}
			orphans, err := fs.Orphans()
			if err != nil {
				return err
			}
			latest, err := fs.LastUpdated()
			if err != nil {
				return err
			}

			exists, err := fs.Sidecar().Exists()
			if err != nil {
				return err
			}
			sidecar := fs.Sidecar().Path()
			if !exists {
				sidecar += " (not created)"
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Root:\t%s\n", fs.Root())
			fmt.Fprintf(tw, "Read-only:\t%t\n", fs.ReadOnly())
			fmt.Fprintf(tw, "Side-car:\t%s\n", sidecar)
			fmt.Fprintf(tw, "Records:\t%d\n", stats.Total-stats.Orphaned)
			fmt.Fprintf(tw, "Orphans:\t%d\n", stats.Orphaned)
			if !latest.IsZero() {
				fmt.Fprintf(tw, "Last updated:\t%s\n", humanize.Time(latest))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			for _, orphan := range orphans {
				fmt.Fprintf(cmd.OutOrStdout(), "  orphan %s  %s\n", orphan.FileID, orphan.RelPath())
			}
			return nil
		},
	}

	return cmd
}
