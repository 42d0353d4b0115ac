package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Kosthi/openace/internal/config"
	"github.com/Kosthi/openace/internal/output"
	"github.com/Kosthi/openace/internal/storage"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Show index status for a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			root, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve project root: %w", err)
			}

			w := output.New(cmd.OutOrStdout())

			dataDir := filepath.Join(root, ".openace")
			if _, err := os.Stat(dataDir); os.IsNotExist(err) {
				w.Statusf("", "%s is not indexed (no .openace/ directory)", root)
				w.Status("", "run 'openace index' to build one")
				return nil
			}

			cfg, err := config.Load(root)
			if err != nil {
				return err
			}

			mgr, err := storage.Open(root, cfg.Storage.EmbeddingDim)
			if err != nil {
				return err
			}
			defer mgr.Close()

			ctx := cmd.Context()
			symbols, err := mgr.Graph().CountSymbols(ctx)
			if err != nil {
				return err
			}
			relations, err := mgr.Graph().CountRelations(ctx)
			if err != nil {
				return err
			}
			files, err := mgr.Graph().CountFiles(ctx)
			if err != nil {
				return err
			}

			w.Statusf("", "index:      %s", mgr.DataDir())
			w.Statusf("", "files:      %d", files)
			w.Statusf("", "symbols:    %d", symbols)
			w.Statusf("", "relations:  %d", relations)
			w.Statusf("", "vectors:    %d (dimension %d)", mgr.Vector().Count(), mgr.EmbeddingDim())
			return nil
		},
	}
	return cmd
}
