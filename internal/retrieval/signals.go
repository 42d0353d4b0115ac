package retrieval

import (
	"context"
	"strings"

	"github.com/Kosthi/openace/internal/model"
	"github.com/Kosthi/openace/internal/store"
)

// collectBM25 runs the bm25 signal: BM25 over symbol documents. Query
// errors degrade silently to no contribution.
func collectBM25(ctx context.Context, ft *store.BleveFullTextStore, q SearchQuery, acc *accumulator) {
	languageFilter := ""
	if q.LanguageFilter != nil {
		languageFilter = q.LanguageFilter.String()
	}

	results, err := ft.SearchBM25(ctx, q.Text, q.BM25PoolSize, q.FilePathFilter, languageFilter)
	if err != nil {
		return
	}
	for rank, r := range results {
		id, err := model.SymbolIdFromHex(r.ID)
		if err != nil {
			continue
		}
		acc.contribute(id, q.BM25Weight, rank, "bm25")
	}
}

// collectVector runs the vector signal: k-NN on query_vector. Skipped
// entirely when no query vector is supplied.
func collectVector(v *store.HNSWVectorStore, q SearchQuery, acc *accumulator) {
	if len(q.QueryVector) == 0 {
		return
	}
	results, err := v.SearchKNN(q.QueryVector, q.VectorPoolSize)
	if err != nil {
		return
	}
	for rank, r := range results {
		acc.contribute(r.ID, q.VectorWeight, rank, "vector")
	}
}

// collectExact runs the exact signal: the union of name-exact and
// qualified-name-exact graph lookups, deduplicated, filtered by language
// and file-path prefix, and truncated to the pool size.
func collectExact(ctx context.Context, g *store.SQLiteGraphStore, q SearchQuery, acc *accumulator) {
	if strings.TrimSpace(q.Text) == "" {
		return
	}

	byName, err := g.GetSymbolsByName(ctx, q.Text)
	if err != nil {
		byName = nil
	}
	byQName, err := g.GetSymbolsByQualifiedName(ctx, q.Text)
	if err != nil {
		byQName = nil
	}

	seen := make(map[model.SymbolId]bool)
	var matches []model.CodeSymbol
	for _, s := range append(byName, byQName...) {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		if !matchesFilters(s, q) {
			continue
		}
		matches = append(matches, s)
	}

	if q.ExactMatchPoolSize > 0 && len(matches) > q.ExactMatchPoolSize {
		matches = matches[:q.ExactMatchPoolSize]
	}
	for rank, s := range matches {
		acc.contribute(s.ID, q.ExactWeight, rank, "exact")
	}
}

// collectChunk runs the optional chunk_bm25 signal: BM25 over chunk
// documents, with each chunk hit mapped to the best symbol in its owning
// file.
func collectChunk(ctx context.Context, g *store.SQLiteGraphStore, ft *store.BleveFullTextStore, q SearchQuery, acc *accumulator) {
	if !q.EnableChunkSearch {
		return
	}

	results, err := ft.SearchBM25Chunks(ctx, q.Text, q.ChunkPoolSize, q.FilePathFilter)
	if err != nil {
		return
	}

	for rank, r := range results {
		if r.FilePath == "" {
			continue
		}
		candidates, err := g.GetSymbolsByFile(ctx, r.FilePath)
		if err != nil || len(candidates) == 0 {
			continue
		}
		best, ok := bestSymbolInFile(candidates)
		if !ok || !matchesFilters(best, q) {
			continue
		}
		acc.contribute(best.ID, q.ChunkWeight, rank, "chunk_bm25")
	}
}

func matchesFilters(s model.CodeSymbol, q SearchQuery) bool {
	if q.LanguageFilter != nil && s.Language != *q.LanguageFilter {
		return false
	}
	if q.FilePathFilter != "" && !strings.HasPrefix(s.FilePath, q.FilePathFilter) {
		return false
	}
	return true
}
