package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kosthi/openace/internal/config"
	"github.com/Kosthi/openace/internal/errors"
	"github.com/Kosthi/openace/internal/output"
	"github.com/Kosthi/openace/internal/pipeline"
	"github.com/Kosthi/openace/internal/storage"
)

// timeRound is the display granularity for reported durations.
const timeRound = time.Millisecond

func newIndexCmd() *cobra.Command {
	var (
		embeddingDim int
		noChunks     bool
		workers      int
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build the full index for a project",
		Long: `Scan a project tree, parse every eligible source file, and rebuild the
symbol graph, full-text index, and vector index under .openace/ from
scratch. Existing index contents are cleared first.`,
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
			if workers > 0 {
				cfg.Storage.ParseWorkers = workers
			}
			if noChunks {
				cfg.Storage.EnableChunking = false
			}

			dim := cfg.Storage.EmbeddingDim
			if embeddingDim > 0 {
				dim = embeddingDim
			}

			mgr, err := storage.Open(root, dim)
			if err != nil {
				return err
			}
			defer mgr.Close()

			w := output.New(cmd.OutOrStdout())
			w.Statusf("→", "indexing %s", root)

			report, err := pipeline.FullIndex(ctx, mgr, cfg, root, repoIDFor(root), nil)
			if err != nil {
				return err
			}

			printReport(w, report)
			return nil
		},
	}

	cmd.Flags().IntVar(&embeddingDim, "dim", 0, "Embedding dimension (overrides config and meta.json)")
	cmd.Flags().BoolVar(&noChunks, "no-chunks", false, "Skip AST chunk extraction and chunk indexing")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parse workers (0 = number of CPUs)")

	return cmd
}

// repoIDFor derives a stable repository identifier from the project root's
// base name. SymbolIds embed it, so it must not vary between runs against
// the same tree.
func repoIDFor(root string) string {
	return filepath.Base(root)
}

func printReport(w *output.Writer, report *pipeline.IndexReport) {
	w.Successf("indexed %d of %d files in %s",
		report.FilesIndexed, report.TotalFilesScanned, report.Duration.Round(timeRound))
	w.Statusf("", "%d symbols, %d relations, %d chunks",
		report.TotalSymbols, report.TotalRelations, report.TotalChunks)

	for reason, n := range report.FilesSkipped {
		w.Statusf("", "skipped %d files: %s", n, skipLabel(reason))
	}
	if report.FilesFailed > 0 {
		w.Warningf("%d files failed to parse", report.FilesFailed)
		for _, f := range report.FailedDetails {
			w.Statusf("", "  %s: %s", f.Path, f.Err)
		}
	}
}

func skipLabel(kind errors.Kind) string {
	switch kind {
	case errors.KindFileTooLarge:
		return "too large"
	case errors.KindInvalidEncoding:
		return "binary"
	case errors.KindUnsupportedLanguage:
		return "unsupported language"
	default:
		return string(kind)
	}
}
