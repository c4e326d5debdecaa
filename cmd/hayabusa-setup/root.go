package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hayabusa-setup",
		Short:         "Convert Sigma detection rules into Hayabusa-normalized YAML",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newConvertCommand())
	return cmd
}
