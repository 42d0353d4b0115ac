package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kosthi/openace/internal/config"
	"github.com/Kosthi/openace/internal/output"
	"github.com/Kosthi/openace/internal/pipeline"
	"github.com/Kosthi/openace/internal/storage"
	"github.com/Kosthi/openace/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a project and keep its index up to date",
		Long: `Watch the project tree for file changes and apply debounced incremental
updates to the index. With --full, a complete index build runs first.

Stops on Ctrl+C; any buffered events are applied before exit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			root, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve project root: %w", err)
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

			w := output.New(cmd.OutOrStdout())
			repoID := repoIDFor(root)

			if full {
				report, err := pipeline.FullIndex(ctx, mgr, cfg, root, repoID, nil)
				if err != nil {
					return err
				}
				printReport(w, report)
			}

			fw := watcher.New(watcher.Options{
				DebounceWindow: time.Duration(cfg.Watcher.DebounceMillis) * time.Millisecond,
				ChannelCap:     cfg.Watcher.ChannelCap,
			})

			watchErr := make(chan error, 1)
			go func() {
				watchErr <- fw.Start(ctx, root)
			}()
			defer fw.Stop()

			w.Statusf("→", "watching %s", root)

			for {
				select {
				case <-ctx.Done():
					// Apply anything the debouncer flushed on shutdown,
					// outside the now-cancelled context.
					_ = fw.Stop()
					for batch := range fw.Events() {
						applyBatch(context.Background(), w, mgr, cfg, root, repoID, batch)
					}
					return nil
				case err := <-watchErr:
					if err != nil && ctx.Err() == nil {
						return err
					}
					return nil
				case batch, ok := <-fw.Events():
					if !ok {
						return nil
					}
					applyBatch(ctx, w, mgr, cfg, root, repoID, batch)
				case werr := <-fw.Errors():
					if werr != nil {
						w.Warningf("watcher: %v", werr)
					}
				}
			}
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Run a full index build before watching")
	return cmd
}

func applyBatch(ctx context.Context, w *output.Writer, mgr *storage.Manager, cfg *config.Config, root, repoID string, events []watcher.ChangeEvent) {
	reports, err := pipeline.ProcessEvents(ctx, mgr, cfg, root, repoID, events)
	if err != nil {
		w.Errorf("update failed: %v", err)
	}
	for _, r := range reports {
		if r.SkippedUnchangedHash {
			continue
		}
		w.Statusf("", "%s: +%d -%d ~%d", r.FilePath, r.Added, r.Removed, r.Modified)
	}
}
