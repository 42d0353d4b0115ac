package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Kosthi/openace/internal/output"
	"github.com/Kosthi/openace/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := output.New(cmd.OutOrStdout())
			w.Status("", version.String())
		},
	}
}
