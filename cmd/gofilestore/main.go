package main

import (
	"fmt"
	"os"

	"github.com/mwantia/gofilestore/cmd/gofilestore/cli"
	"github.com/mwantia/gofilestore/cmd/gofilestore/cli/client"
	"github.com/mwantia/gofilestore/cmd/gofilestore/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	info := cli.VersionInfo{
		Version: version,
		Commit:  commit,
	}
	root := cli.NewRootCommand(info)

	root.AddCommand(cli.NewVersionCommand(info))

	root.AddCommand(client.NewQueryCommand())
	root.AddCommand(client.NewDistinctCommand())
	root.AddCommand(client.NewAnnotateCommand())
	root.AddCommand(client.NewRemoveCommand())
	root.AddCommand(client.NewStatusCommand())

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewMcpCommand(info.Version))
	root.AddCommand(server.NewConfigCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
