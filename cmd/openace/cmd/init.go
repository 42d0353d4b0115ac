package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Kosthi/openace/configs"
	"github.com/Kosthi/openace/internal/config"
	"github.com/Kosthi/openace/internal/output"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a commented .openace.yaml config template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			path := filepath.Join(root, ".openace.yaml")
			w := output.New(cmd.OutOrStdout())

			if _, err := os.Stat(path); err == nil {
				if !force {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
				backup, err := config.BackupProjectConfig(root)
				if err != nil {
					return err
				}
				if backup != "" {
					w.Statusf("", "backed up existing config to %s", backup)
				}
			}

			if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			w.Successf("wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
