package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Kosthi/openace/internal/chunker"
	"github.com/Kosthi/openace/internal/config"
	"github.com/Kosthi/openace/internal/errors"
	"github.com/Kosthi/openace/internal/lang"
	"github.com/Kosthi/openace/internal/model"
	"github.com/Kosthi/openace/internal/resolver"
	"github.com/Kosthi/openace/internal/scanner"
	"github.com/Kosthi/openace/internal/storage"
)

// Embedder produces a vector embedding for a symbol's body text. The engine
// treats the embedding model as an external collaborator; a nil
// Embedder simply means the pipeline skips vector indexing and the
// retrieval engine degrades that signal away.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// FailedFile records a file the pipeline could not index past gating.
type FailedFile struct {
	Path string
	Err  string
}

// IndexReport summarizes a full-index run.
type IndexReport struct {
	TotalFilesScanned int
	FilesIndexed      int
	FilesSkipped      map[errors.Kind]int
	FilesFailed       int
	FailedDetails     []FailedFile

	TotalSymbols   int
	TotalRelations int
	TotalChunks    int

	Duration time.Duration
}

// FullIndex rebuilds the symbol graph, full-text index, and vector index
// from a clean scan of projectRoot:
//  1. scan the project tree;
//  2. clear the graph, full-text, and vector stores;
//  3. parse files in parallel;
//  4. resolve cross-file phantom relation targets;
//  5. store symbols and relations in the graph, sequentially;
//  6. index symbols and chunks into the full-text store;
//  7. flush.
func FullIndex(ctx context.Context, mgr *storage.Manager, cfg *config.Config, projectRoot, repoID string, embedder Embedder) (*IndexReport, error) {
	start := time.Now()

	sc, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("pipeline: create scanner: %w", err)
	}
	results, err := sc.Scan(ctx, scanner.ScanOptions{RootDir: projectRoot, Workers: cfg.Storage.ParseWorkers})
	if err != nil {
		return nil, fmt.Errorf("pipeline: scan %s: %w", projectRoot, err)
	}

	if err := mgr.ClearAll(ctx); err != nil {
		return nil, err
	}

	var chunkCfg *chunker.Config
	if cfg.Storage.EnableChunking {
		c := chunker.Config{MaxChunkChars: cfg.Chunking.MaxChunkChars, OverlapNodes: cfg.Chunking.OverlapNodes}
		chunkCfg = &c
	}

	report := &IndexReport{FilesSkipped: make(map[errors.Kind]int)}

	workers := cfg.Storage.ParseWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var mu sync.Mutex
	var parsed []*fileParse

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for res := range results {
		if res.Err != nil {
			mu.Lock()
			report.FilesFailed++
			report.FailedDetails = append(report.FailedDetails, FailedFile{Path: res.Path, Err: res.Err.Error()})
			mu.Unlock()
			continue
		}

		res := res
		mu.Lock()
		report.TotalFilesScanned++
		mu.Unlock()

		g.Go(func() error {
			content, err := os.ReadFile(filepath.Join(projectRoot, res.Path))
			if err != nil {
				mu.Lock()
				report.FilesFailed++
				report.FailedDetails = append(report.FailedDetails, FailedFile{Path: res.Path, Err: err.Error()})
				mu.Unlock()
				return nil
			}

			parser := lang.NewParser()
			defer parser.Close()

			fp, err := parseFile(gctx, parser, repoID, res.Path, content, chunkCfg)
			if err != nil {
				mu.Lock()
				report.FilesFailed++
				report.FailedDetails = append(report.FailedDetails, FailedFile{Path: res.Path, Err: err.Error()})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			if fp.SkipReason != "" {
				report.FilesSkipped[fp.SkipReason]++
			} else {
				parsed = append(parsed, fp)
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline: parse phase: %w", err)
	}

	now := time.Now()
	var allSymbols []model.CodeSymbol
	var allRelations []model.CodeRelation
	var allChunks []model.CodeChunk
	known := make(map[model.SymbolId]bool)

	for _, fp := range parsed {
		for i := range fp.Symbols {
			fp.Symbols[i].CreatedAt = now
			fp.Symbols[i].UpdatedAt = now
			known[fp.Symbols[i].ID] = true
		}
		allSymbols = append(allSymbols, fp.Symbols...)
		allRelations = append(allRelations, fp.Relations...)
		allChunks = append(allChunks, fp.Chunks...)
	}

	relations := filterKnownSource(allRelations, known)
	resolver.ResolveRelations(relations, resolver.SymbolRefsFrom(allSymbols), known)
	recomputeRelationIDs(relations)

	if err := mgr.Graph().UpsertRepository(ctx, repoID, projectRoot, now.Unix()); err != nil {
		return nil, fmt.Errorf("pipeline: record repository: %w", err)
	}

	batchSize := cfg.Storage.FullIndexBatchSize
	if err := mgr.Graph().InsertSymbols(ctx, allSymbols, batchSize); err != nil {
		return nil, fmt.Errorf("pipeline: insert symbols: %w", err)
	}
	if err := mgr.Graph().InsertRelations(ctx, relations, batchSize); err != nil {
		return nil, fmt.Errorf("pipeline: insert relations: %w", err)
	}

	for _, fp := range parsed {
		meta := model.FileMetadata{
			Path:         fp.RelPath,
			ContentHash:  fp.ContentHash,
			Language:     fp.Language,
			SizeBytes:    fp.SizeBytes,
			SymbolCount:  len(fp.Symbols),
			LastIndexed:  now,
			LastModified: now,
		}
		if err := mgr.Graph().UpsertFile(ctx, meta); err != nil {
			return nil, fmt.Errorf("pipeline: upsert file %s: %w", fp.RelPath, err)
		}
	}

	for i := range allSymbols {
		_ = mgr.FullText().AddDocument(allSymbols[i])
		if embedder != nil {
			if vec, err := embedder.Embed(ctx, allSymbols[i].BodyText); err == nil {
				_ = mgr.Vector().AddVector(allSymbols[i].ID, vec)
			}
		}
	}
	for _, c := range allChunks {
		_ = mgr.FullText().AddChunkDocument(c)
	}

	if err := mgr.Flush(); err != nil {
		return nil, err
	}

	report.FilesIndexed = len(parsed)
	report.TotalSymbols = len(allSymbols)
	report.TotalRelations = len(relations)
	report.TotalChunks = len(allChunks)
	report.Duration = time.Since(start)
	return report, nil
}
