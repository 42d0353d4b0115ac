package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Kosthi/openace/internal/chunker"
	"github.com/Kosthi/openace/internal/config"
	"github.com/Kosthi/openace/internal/gate"
	"github.com/Kosthi/openace/internal/lang"
	"github.com/Kosthi/openace/internal/model"
	"github.com/Kosthi/openace/internal/storage"
	"github.com/Kosthi/openace/internal/watcher"
)

// FileReport summarizes a single incremental update or deletion.
type FileReport struct {
	FilePath             string
	Added                int
	Removed              int
	Modified             int
	Unchanged            int
	SkippedUnchangedHash bool
}

// UpdateFile re-indexes a single file: reparsing only if its content hash
// changed since the last successful index, diffing its symbol set against
// what's stored, and applying the diff in a fixed order so cross-file
// relation foreign keys survive an in-place edit.
func UpdateFile(ctx context.Context, mgr *storage.Manager, cfg *config.Config, projectRoot, repoID, relPath string) (*FileReport, error) {
	relPath, err := cleanRelPath(relPath)
	if err != nil {
		return nil, err
	}

	absPath := filepath.Join(projectRoot, relPath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DeleteFile(ctx, mgr, relPath)
		}
		return nil, fmt.Errorf("pipeline: read %s: %w", relPath, err)
	}

	existing, err := mgr.Graph().GetFile(ctx, relPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load file metadata for %s: %w", relPath, err)
	}
	if existing != nil && !ShouldReindex(content, existing.ContentHash) {
		return &FileReport{FilePath: relPath, Unchanged: existing.SymbolCount, SkippedUnchangedHash: true}, nil
	}

	if gErr := gate.Check(relPath, int64(len(content)), content); gErr != nil {
		// The file exists but is no longer eligible (e.g. it grew past the
		// size limit, or was rewritten as binary): treat it as a deletion.
		return DeleteFile(ctx, mgr, relPath)
	}

	var chunkCfg *chunker.Config
	if cfg.Storage.EnableChunking {
		c := chunker.Config{MaxChunkChars: cfg.Chunking.MaxChunkChars, OverlapNodes: cfg.Chunking.OverlapNodes}
		chunkCfg = &c
	}

	parser := lang.NewParser()
	defer parser.Close()

	fp, err := parseFile(ctx, parser, repoID, relPath, content, chunkCfg)
	if err != nil {
		return nil, err
	}
	if fp.SkipReason != "" {
		return DeleteFile(ctx, mgr, relPath)
	}

	now := time.Now()
	for i := range fp.Symbols {
		fp.Symbols[i].CreatedAt = now
		fp.Symbols[i].UpdatedAt = now
	}

	oldSymbols, err := mgr.Graph().GetSymbolsByFile(ctx, relPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load old symbols for %s: %w", relPath, err)
	}

	oldByID := make(map[model.SymbolId]model.CodeSymbol, len(oldSymbols))
	for _, s := range oldSymbols {
		oldByID[s.ID] = s
	}
	newByID := make(map[model.SymbolId]model.CodeSymbol, len(fp.Symbols))
	for _, s := range fp.Symbols {
		newByID[s.ID] = s
	}

	var added, removed, modified, unchanged []model.CodeSymbol
	for id, s := range newByID {
		if old, ok := oldByID[id]; ok {
			if old.BodyHash != s.BodyHash {
				modified = append(modified, s)
			} else {
				unchanged = append(unchanged, s)
			}
		} else {
			added = append(added, s)
		}
	}
	for id, old := range oldByID {
		if _, ok := newByID[id]; !ok {
			removed = append(removed, old)
		}
	}

	batchSize := cfg.Storage.IncrementalBatchSize

	for _, s := range removed {
		if err := mgr.Graph().DeleteSymbol(ctx, s.ID); err != nil {
			return nil, fmt.Errorf("pipeline: delete symbol %s: %w", s.ID, err)
		}
	}
	if len(added) > 0 {
		if err := mgr.Graph().InsertSymbols(ctx, added, batchSize); err != nil {
			return nil, fmt.Errorf("pipeline: insert added symbols for %s: %w", relPath, err)
		}
	}
	if len(modified) > 0 {
		if err := mgr.Graph().UpdateSymbols(ctx, modified, batchSize); err != nil {
			return nil, fmt.Errorf("pipeline: update modified symbols for %s: %w", relPath, err)
		}
	}

	if err := mgr.Graph().DeleteRelationsByFile(ctx, relPath); err != nil {
		return nil, fmt.Errorf("pipeline: clear relations for %s: %w", relPath, err)
	}

	relations := filterKnownSource(fp.Relations, unionIDs(newByID))
	if err := resolveAndRecompute(ctx, mgr.Graph(), relations); err != nil {
		return nil, err
	}
	if err := mgr.Graph().InsertRelations(ctx, relations, batchSize); err != nil {
		return nil, fmt.Errorf("pipeline: insert relations for %s: %w", relPath, err)
	}

	meta := model.FileMetadata{
		Path:         relPath,
		ContentHash:  fp.ContentHash,
		Language:     fp.Language,
		SizeBytes:    fp.SizeBytes,
		SymbolCount:  len(fp.Symbols),
		LastIndexed:  now,
		LastModified: now,
	}
	if err := mgr.Graph().UpsertFile(ctx, meta); err != nil {
		return nil, fmt.Errorf("pipeline: upsert file metadata for %s: %w", relPath, err)
	}

	for _, s := range removed {
		_ = mgr.FullText().DeleteDocument(s.ID)
	}
	for _, s := range modified {
		_ = mgr.FullText().DeleteDocument(s.ID)
		_ = mgr.FullText().AddDocument(s)
	}
	for _, s := range added {
		_ = mgr.FullText().AddDocument(s)
	}

	// Chunk documents are upserted by their deterministic IDs; a file whose
	// chunk count shrank can leave stale trailing chunk docs until the next
	// full reindex, since there's no per-file chunk-ID listing to diff
	// against cheaply.
	for _, c := range fp.Chunks {
		_ = mgr.FullText().AddChunkDocument(c)
	}

	return &FileReport{
		FilePath:  relPath,
		Added:     len(added),
		Removed:   len(removed),
		Modified:  len(modified),
		Unchanged: len(unchanged),
	}, nil
}

// DeleteFile removes every symbol and relation recorded for relPath from
// the graph and full-text stores, and drops its file metadata row.
func DeleteFile(ctx context.Context, mgr *storage.Manager, relPath string) (*FileReport, error) {
	relPath, err := cleanRelPath(relPath)
	if err != nil {
		return nil, err
	}

	symbols, err := mgr.Graph().GetSymbolsByFile(ctx, relPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load symbols for %s: %w", relPath, err)
	}
	for _, s := range symbols {
		_ = mgr.FullText().DeleteDocument(s.ID)
		mgr.Vector().RemoveVector(s.ID)
	}

	// DeleteSymbolsByFile cascades to relations this file's symbols
	// originate (FK ON DELETE CASCADE); DeleteRelationsByFile covers any
	// relation rows recorded under this file_path whose source survives
	// elsewhere.
	if err := mgr.Graph().DeleteSymbolsByFile(ctx, relPath); err != nil {
		return nil, fmt.Errorf("pipeline: delete symbols for %s: %w", relPath, err)
	}
	if err := mgr.Graph().DeleteRelationsByFile(ctx, relPath); err != nil {
		return nil, fmt.Errorf("pipeline: delete relations for %s: %w", relPath, err)
	}
	if err := mgr.Graph().DeleteFile(ctx, relPath); err != nil {
		return nil, fmt.Errorf("pipeline: delete file metadata for %s: %w", relPath, err)
	}

	return &FileReport{FilePath: relPath, Removed: len(symbols)}, nil
}

// ProcessEvents applies a batch of watcher change events, collapsing
// repeated events for the same path to the last one observed before
// applying any of them.
func ProcessEvents(ctx context.Context, mgr *storage.Manager, cfg *config.Config, projectRoot, repoID string, events []watcher.ChangeEvent) ([]*FileReport, error) {
	order := make([]string, 0, len(events))
	latest := make(map[string]watcher.ChangeEvent, len(events))
	for _, e := range events {
		if _, seen := latest[e.Path]; !seen {
			order = append(order, e.Path)
		}
		latest[e.Path] = e
	}

	reports := make([]*FileReport, 0, len(order))
	for _, path := range order {
		e := latest[path]

		var rep *FileReport
		var err error
		if e.Kind == watcher.Removed {
			rep, err = DeleteFile(ctx, mgr, path)
		} else {
			rep, err = UpdateFile(ctx, mgr, cfg, projectRoot, repoID, path)
		}
		if err != nil {
			return reports, fmt.Errorf("pipeline: process %s: %w", path, err)
		}
		reports = append(reports, rep)
	}

	if err := mgr.Flush(); err != nil {
		return reports, err
	}
	return reports, nil
}

func unionIDs(m map[model.SymbolId]model.CodeSymbol) map[model.SymbolId]bool {
	out := make(map[model.SymbolId]bool, len(m))
	for id := range m {
		out[id] = true
	}
	return out
}
