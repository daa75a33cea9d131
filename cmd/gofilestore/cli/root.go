package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRootCommand(info VersionInfo) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:           "gofilestore",
		Short:         "Query a directory tree as a collection of records",
		Long:          "gofilestore exposes the files below a root directory as queryable records and keeps user metadata for them in a side-car file next to the data.",
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(path)
		},
	}

	cmd.PersistentFlags().StringVar(&path, "config", "", "config file (default is ./config.yaml)")
	cmd.PersistentFlags().String("root", ".", "root directory of the store")
	cmd.PersistentFlags().Bool("read-only", true, "refuse every write to the root directory")
	cmd.PersistentFlags().StringSlice("track", nil, "file name patterns to track (e.g. '*.csv')")
	cmd.PersistentFlags().Int("max-depth", -1, "maximum directory depth to scan, negative for unlimited")
	cmd.PersistentFlags().Bool("no-color", false, "Disables colored command output")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("root", cmd.PersistentFlags().Lookup("root"))
	viper.BindPFlag("read_only", cmd.PersistentFlags().Lookup("read-only"))
	viper.BindPFlag("track_files", cmd.PersistentFlags().Lookup("track"))
	viper.BindPFlag("max_depth", cmd.PersistentFlags().Lookup("max-depth"))
	viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.no_color", cmd.PersistentFlags().Lookup("no-color"))

	cmd.Version = fmt.Sprintf("%s.%s", info.Version, info.Commit)

	return cmd
}
