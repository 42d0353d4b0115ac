// Package retrieval implements the multi-signal retrieval engine: bm25,
// vector k-NN, exact-name, and chunk-bm25 signals fused by reciprocal rank
// fusion, optionally widened by a graph-expansion pass over the symbol
// graph.
package retrieval

import "github.com/Kosthi/openace/internal/model"

// SearchQuery is a single search request. Zero-valued pool sizes and
// weights fall back to the engine's configured defaults; a nil
// LanguageFilter applies no language restriction.
type SearchQuery struct {
	Text        string
	QueryVector []float32

	Limit int

	LanguageFilter *model.Language
	FilePathFilter string // prefix match

	EnableGraphExpansion bool
	GraphDepth           int

	EnableChunkSearch bool

	BM25PoolSize       int
	VectorPoolSize     int
	ExactMatchPoolSize int
	ChunkPoolSize      int

	BM25Weight   float64
	VectorWeight float64
	ExactWeight  float64
	ChunkWeight  float64
	GraphWeight  float64
}

// RelatedSymbol is a neighbor discovered by a post-hydration k-hop
// traversal from a surviving result.
type RelatedSymbol struct {
	SymbolID model.SymbolId
	Depth    int
	Kind     model.RelationKind
}

// SymbolResult is a single hydrated, scored search hit.
type SymbolResult struct {
	Symbol SymbolView
	Score  float64
	// Signals lists, in first-contribution order, every signal that
	// contributed to this hit's score.
	Signals []string

	// Snippet is up to 50 lines of the symbol's body text.
	Snippet string

	// RelatedSymbols is populated only for hits that were a direct-hit
	// seed (present in some signal's pool before graph expansion).
	RelatedSymbols []RelatedSymbol
}

// SymbolView is the display projection of a CodeSymbol: qualified_name is
// rendered back into the language's native notation.
type SymbolView struct {
	model.CodeSymbol
	DisplayQualifiedName string
}
