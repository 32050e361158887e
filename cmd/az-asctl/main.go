package main

import (
	"github.com/spf13/cobra"

	"github.com/tslight/azure-extras/pkg/cli"
)

func newCommand(root *cli.RootOpts) *cobra.Command {
	return newAsctl(root).Command()
}

func main() {
	cli.Main(newCommand)
}
