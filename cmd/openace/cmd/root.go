// Package cmd provides the CLI commands for openace.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Kosthi/openace/internal/logging"
	"github.com/Kosthi/openace/pkg/version"
)

var (
	logLevel string
	logJSON  bool
)

// NewRootCmd creates the root command for the openace CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openace",
		Short: "Local multi-signal code search",
		Long: `openace indexes a source tree into a symbol graph, a BM25 full-text
index, and an HNSW vector index under .openace/, and serves fused
multi-signal search over them.

Run 'openace index' in a project directory, then 'openace search <query>'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupDefault(logging.Config{Level: logLevel, JSON: logJSON})
		},
	}

	cmd.SetVersionTemplate("openace version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit structured JSON logs")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
