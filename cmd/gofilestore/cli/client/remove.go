package client

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwantia/gofilestore/pkg/filestore"
)

func NewRemoveCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "rm <filter-json>",
		Short: "Delete files and their metadata",
		Long:  "Deletes every file matching the filter from disk together with its metadata. Nothing is deleted without --confirm.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(args)
			if err != nil {
				return err
			}
			if len(filter) == 0 {
				return fmt.Errorf("refusing to remove with an empty filter")
			}

			fs, err := connectStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer fs.Close()

			err = fs.RemoveDocs(cmd.Context(), filter, confirm)

			var confirmation *filestore.ConfirmationRequiredError
			if errors.As(err, &confirmation) {
				fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) would be deleted, run again with --confirm\n", confirmation.Count)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Removed")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirm, "confirm", "c", false, "Confirms the deletion of the matching files")

	return cmd
}
