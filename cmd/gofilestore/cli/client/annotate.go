package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwantia/gofilestore/pkg/filestore"
)

func NewAnnotateCommand() *cobra.Command {
	var fromName bool

	cmd := &cobra.Command{
		Use:   "annotate <filter-json> [key=value...]",
		Short: "Add metadata to file records",
		Long: `Merge metadata into every record matching the filter. The metadata is
kept in the side-car file of the root and requires --read-only=false.`,
		Example: `  gofilestore annotate --read-only=false '{"parent": "calculation1"}' experiment=e1 "tags=[\"dft\"]"
  gofilestore annotate --read-only=false --date-from-name '{}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(args[:1])
			if err != nil {
				return err
			}
			fields, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			if len(fields) == 0 && !fromName {
				return fmt.Errorf("nothing to annotate, pass key=value pairs or --date-from-name")
			}

			fs, err := connectStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer fs.Close()

			var auto filestore.AutoMetadataFunc
			if fromName {
				auto = dateFromName
			}

			count, err := fs.Count(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if err := fs.AddMetadata(cmd.Context(), filter, fields, auto); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Annotated %d record(s)\n", count)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromName, "date-from-name", false, "store a YYYY-MM-DD date found in the file name as 'date'")

	return cmd
}
