package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kosthi/openace/internal/config"
	"github.com/Kosthi/openace/internal/model"
	"github.com/Kosthi/openace/internal/output"
	"github.com/Kosthi/openace/internal/retrieval"
	"github.com/Kosthi/openace/internal/storage"
)

func newSearchCmd() *cobra.Command {
	var (
		root       string
		limit      int
		language   string
		pathPrefix string
		noGraph    bool
		graphDepth int
		noChunks   bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long: `Run a multi-signal query against the project's index: BM25 over symbol
and chunk documents, exact name lookup, and k-hop graph expansion, fused
with reciprocal rank fusion.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				return retrieval.ErrEmptyQuery
			}

			absRoot, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve project root: %w", err)
			}

			cfg, err := config.Load(absRoot)
			if err != nil {
				return err
			}

			mgr, err := storage.Open(absRoot, cfg.Storage.EmbeddingDim)
			if err != nil {
				return err
			}
			defer mgr.Close()

			q := retrieval.SearchQuery{
				Text:                 text,
				Limit:                limit,
				FilePathFilter:       pathPrefix,
				EnableGraphExpansion: cfg.Retrieval.EnableGraphExpansion && !noGraph,
				GraphDepth:           graphDepth,
				EnableChunkSearch:    cfg.Retrieval.EnableChunkSearch && !noChunks,
			}
			if language != "" {
				lang, ok := parseLanguage(language)
				if !ok {
					return fmt.Errorf("unknown language %q", language)
				}
				q.LanguageFilter = &lang
			}

			engine := retrieval.New(mgr, cfg)
			results, err := engine.Search(cmd.Context(), q)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			printResults(output.New(cmd.OutOrStdout()), results)
			return nil
		},
	}

	cmd.Flags().StringVarP(&root, "root", "r", ".", "Project root directory")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (0 = config default, capped at 200)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Filter by language (python, typescript, javascript, rust, go, java)")
	cmd.Flags().StringVarP(&pathPrefix, "path", "p", "", "Filter by file path prefix")
	cmd.Flags().BoolVar(&noGraph, "no-graph", false, "Disable graph expansion")
	cmd.Flags().IntVar(&graphDepth, "depth", 0, "Graph expansion depth (0 = config default, capped at 5)")
	cmd.Flags().BoolVar(&noChunks, "no-chunk-search", false, "Disable the chunk BM25 signal")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit results as JSON")

	return cmd
}

func parseLanguage(s string) (model.Language, bool) {
	switch strings.ToLower(s) {
	case "python", "py":
		return model.LanguagePython, true
	case "typescript", "ts":
		return model.LanguageTypeScript, true
	case "javascript", "js":
		return model.LanguageJavaScript, true
	case "rust", "rs":
		return model.LanguageRust, true
	case "go":
		return model.LanguageGo, true
	case "java":
		return model.LanguageJava, true
	default:
		return 0, false
	}
}

func printResults(w *output.Writer, results []retrieval.SymbolResult) {
	if len(results) == 0 {
		w.Status("", "no results")
		return
	}

	for i, r := range results {
		sym := r.Symbol
		w.Statusf("", "%2d. %s  (%s)", i+1, sym.DisplayQualifiedName, sym.Kind)
		w.Statusf("", "    %s:%d-%d  score=%.4f  signals=%s",
			sym.FilePath, sym.LineRange.Start+1, sym.LineRange.End+1,
			r.Score, strings.Join(r.Signals, ","))
		if len(r.RelatedSymbols) > 0 {
			w.Statusf("", "    %d related symbols within %d hops",
				len(r.RelatedSymbols), maxDepthOf(r.RelatedSymbols))
		}
	}
}

func maxDepthOf(related []retrieval.RelatedSymbol) int {
	max := 0
	for _, r := range related {
		if r.Depth > max {
			max = r.Depth
		}
	}
	return max
}
