// Package pipeline implements the two ways files become symbols,
// relations, and chunks in the stores a storage.Manager owns: a
// from-scratch full index and a single-file incremental update, driven by
// the scanner and the watcher respectively.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Kosthi/openace/internal/chunker"
	"github.com/Kosthi/openace/internal/errors"
	"github.com/Kosthi/openace/internal/gate"
	"github.com/Kosthi/openace/internal/lang"
	"github.com/Kosthi/openace/internal/model"
	"github.com/Kosthi/openace/internal/resolver"
	"github.com/Kosthi/openace/internal/store"
	"github.com/Kosthi/openace/internal/visitor"
)

// fileParse is everything a single file's parse contributes, before the
// store phase stamps timestamps and runs cross-file resolution.
type fileParse struct {
	RelPath     string
	Language    model.Language
	Symbols     []model.CodeSymbol
	Relations   []model.CodeRelation
	Chunks      []model.CodeChunk
	ContentHash uint64
	SizeBytes   int64

	// SkipReason is non-empty when the gate rejected the file; in that case
	// every other field is zero.
	SkipReason errors.Kind
}

// parseFile runs the gate, parses the file with the language grammar, walks
// it with the visitor, and optionally chunks it. It never returns an error
// for gate rejections; those are reported via SkipReason so a batch parse
// can continue past ineligible files.
func parseFile(ctx context.Context, parser *lang.Parser, repoID, relPath string, content []byte, chunkCfg *chunker.Config) (*fileParse, error) {
	if gErr := gate.Check(relPath, int64(len(content)), content); gErr != nil {
		return &fileParse{RelPath: relPath, SkipReason: gErr.Kind}, nil
	}

	language, _ := gate.LanguageForPath(relPath)
	isTSX := gate.IsTSX(relPath)

	tree, err := parser.Parse(ctx, content, language, isTSX)
	if err != nil {
		return nil, errors.Wrap(errors.KindParseFailed, err).WithDetail("path", relPath)
	}

	result := visitor.Visit(tree, repoID, relPath)
	for i := range result.Symbols {
		result.Symbols[i].BodyText = bodyTextFor(content, result.Symbols[i].ByteRange)
	}

	var chunks []model.CodeChunk
	if chunkCfg != nil {
		chunks = chunker.ChunkFile(repoID, relPath, tree, *chunkCfg)
	}

	return &fileParse{
		RelPath:     relPath,
		Language:    language,
		Symbols:     result.Symbols,
		Relations:   result.Relations,
		Chunks:      chunks,
		ContentHash: model.ContentHash(content),
		SizeBytes:   int64(len(content)),
	}, nil
}

func bodyTextFor(content []byte, r model.ByteRange) string {
	if int(r.End) > len(content) || r.Start >= r.End {
		return ""
	}
	return string(model.TruncateUTF8(content[r.Start:r.End], model.MaxBodyTextBytes))
}

// recomputeRelationIDs refreshes each relation's ID from its (possibly
// resolver-rewritten) target, keeping it consistent with model.RelationID's
// definition as a hash over the full (source, target, kind, file, line)
// tuple.
func recomputeRelationIDs(relations []model.CodeRelation) {
	for i := range relations {
		r := &relations[i]
		r.ID = model.RelationID(r.SourceID, r.TargetID, r.Kind, r.FilePath, r.Line)
	}
}

// loadAllSymbols pages through the graph store's full symbol set, used to
// build the resolver's phantom-target lookup against the whole project
// rather than just the file(s) currently being parsed.
func loadAllSymbols(ctx context.Context, g *store.SQLiteGraphStore) ([]model.CodeSymbol, error) {
	const pageSize = 5000
	var all []model.CodeSymbol
	for offset := 0; ; offset += pageSize {
		page, err := g.ListSymbols(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// filterKnownSource keeps only relations whose source symbol is present in
// known, dropping anything the visitor attributed to a symbol that never
// made it into the store.
func filterKnownSource(relations []model.CodeRelation, known map[model.SymbolId]bool) []model.CodeRelation {
	out := make([]model.CodeRelation, 0, len(relations))
	for _, r := range relations {
		if known[r.SourceID] {
			out = append(out, r)
		}
	}
	return out
}

// ShouldReindex reports whether content differs from the hash recorded at
// the last successful index. Metadata-only changes (mtime, permissions)
// leave the content hash equal and never trigger a reparse.
func ShouldReindex(content []byte, storedHash uint64) bool {
	return model.ContentHash(content) != storedHash
}

// cleanRelPath validates and normalizes a path the incremental engine is
// asked to operate on, rejecting anything that would escape the project
// root.
func cleanRelPath(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("pipeline: path must be relative to the project root: %q", relPath)
	}
	cleaned := filepath.ToSlash(filepath.Clean(relPath))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("pipeline: path escapes the project root: %q", relPath)
	}
	return cleaned, nil
}

// resolveAndRecompute runs phantom-target resolution over relations against
// the project's full known-symbol set, then recomputes every relation's ID
// from its final target. relations is mutated in place.
func resolveAndRecompute(ctx context.Context, g *store.SQLiteGraphStore, relations []model.CodeRelation) error {
	allSymbols, err := loadAllSymbols(ctx, g)
	if err != nil {
		return fmt.Errorf("pipeline: load symbols for resolution: %w", err)
	}
	known := make(map[model.SymbolId]bool, len(allSymbols))
	for _, s := range allSymbols {
		known[s.ID] = true
	}
	resolver.ResolveRelations(relations, resolver.SymbolRefsFrom(allSymbols), known)
	recomputeRelationIDs(relations)
	return nil
}
