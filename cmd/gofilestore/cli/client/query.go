package client

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mwantia/gofilestore/pkg/filestore"
	"github.com/mwantia/gofilestore/pkg/query"
)

func NewQueryCommand() *cobra.Command {
	var properties []string
	var sort string
	var skip, limit int
	var contents, asJSON bool

	cmd := &cobra.Command{
		Use:   "query [filter-json]",
		Short: "Query file records",
		Long:  "Query the file records below the root with a Mongo-style filter, e.g. '{\"name\": {\"$regex\": \"\\\\.csv$\"}}'.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(args)
			if err != nil {
				return err
			}
			keys, err := query.ParseSort(sort)
			if err != nil {
				return err
			}

			fs, err := connectStore(cmd.Context(), contents || slices.Contains(properties, filestore.FieldContents))
			if err != nil {
				return err
			}
			defer fs.Close()

			docs, err := fs.Query(cmd.Context(), &query.Query{
				Filter:     filter,
				Properties: properties,
				Sort:       keys,
				Skip:       skip,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			if asJSON || len(properties) > 0 || contents {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(docs)
			}
			return printRecords(cmd.OutOrStdout(), docs)
		},
	}

	cmd.Flags().StringSliceVarP(&properties, "properties", "p", nil, "fields to return")
	cmd.Flags().StringVarP(&sort, "sort", "s", "", "sort keys, prefix with - for descending (e.g. -size,name)")
	cmd.Flags().IntVar(&skip, "skip", 0, "number of records to skip")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of records")
	cmd.Flags().BoolVar(&contents, "contents", false, "include file contents")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")

	return cmd
}

func printRecords(w io.Writer, docs []query.Document) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIZE\tUPDATED\tPATH\tMETADATA")

	for _, doc := range docs {
		size, updated := "-", "-"
		if value, ok := doc[filestore.FieldSize].(int64); ok {
			size = humanize.Bytes(uint64(value))
		}
		if value, ok := doc[filestore.FieldLastUpdated].(time.Time); ok {
			updated = humanize.Time(value)
		}

		fields := make(map[string]any)
		for key, value := range doc {
			if !filestore.IsReserved(key) {
				fields[key] = value
			}
		}
		metadata := ""
		if len(fields) > 0 {
			data, err := json.Marshal(fields)
			if err != nil {
				return err
			}
			metadata = string(data)
		}

		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", size, updated, doc[filestore.FieldPath], metadata)
	}
	return tw.Flush()
}

func NewDistinctCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distinct <field> [filter-json]",
		Short: "List the unique values of a field",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(args[1:])
			if err != nil {
				return err
			}

			fs, err := connectStore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer fs.Close()

			values, err := fs.Distinct(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}
			for _, value := range values {
				fmt.Fprintln(cmd.OutOrStdout(), value)
			}
			return nil
		},
	}

	return cmd
}
