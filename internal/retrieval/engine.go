package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Kosthi/openace/internal/config"
	"github.com/Kosthi/openace/internal/model"
	"github.com/Kosthi/openace/internal/storage"
	"github.com/Kosthi/openace/internal/store"
)

// graphExpansionMaxFanout is the fixed fanout budget for the expansion
// pass's traversals.
const graphExpansionMaxFanout = 50

// defaultHydrationCacheSize bounds the hot-symbol row cache when the config
// leaves it unset.
const defaultHydrationCacheSize = 2048

// Engine runs search queries against a single project's storage manager.
type Engine struct {
	mgr *storage.Manager
	cfg *config.Config

	// hydrationCache holds recently hydrated symbol rows so repeated
	// queries over the same hot symbols skip the SQLite round-trip. Stale
	// entries are dropped via InvalidateHydration after index updates.
	hydrationCache *lru.Cache[model.SymbolId, model.CodeSymbol]
}

// New builds a retrieval Engine over mgr's stores, using cfg's retrieval
// defaults and graph-depth clamp.
func New(mgr *storage.Manager, cfg *config.Config) *Engine {
	size := cfg.Retrieval.HydrationCacheSize
	if size <= 0 {
		size = defaultHydrationCacheSize
	}
	cache, err := lru.New[model.SymbolId, model.CodeSymbol](size)
	if err != nil {
		cache = nil // nil cache degrades to a direct store read
	}
	return &Engine{mgr: mgr, cfg: cfg, hydrationCache: cache}
}

// InvalidateHydration clears the hydrated-row cache. Callers apply it after
// incremental updates or a re-index so queries never serve stale rows.
func (e *Engine) InvalidateHydration() {
	if e.hydrationCache != nil {
		e.hydrationCache.Purge()
	}
}

// getSymbol loads a symbol row through the hydration cache.
func (e *Engine) getSymbol(ctx context.Context, id model.SymbolId) (*model.CodeSymbol, error) {
	if e.hydrationCache != nil {
		if sym, ok := e.hydrationCache.Get(id); ok {
			return &sym, nil
		}
	}
	sym, err := e.mgr.Graph().GetSymbol(ctx, id)
	if err != nil || sym == nil {
		return sym, err
	}
	if e.hydrationCache != nil {
		e.hydrationCache.Add(id, *sym)
	}
	return sym, nil
}

// Search runs q against the symbol graph, full-text, and vector stores,
// fusing every signal with reciprocal rank fusion and (optionally)
// widening the result set with a k-hop graph expansion.
func (e *Engine) Search(ctx context.Context, q SearchQuery) ([]SymbolResult, error) {
	q = e.withDefaults(q)

	acc := newAccumulator(e.cfg.Retrieval.RRFConstant)

	collectBM25(ctx, e.mgr.FullText(), q, acc)
	collectVector(e.mgr.Vector(), q, acc)
	collectExact(ctx, e.mgr.Graph(), q, acc)
	collectChunk(ctx, e.mgr.Graph(), e.mgr.FullText(), q, acc)

	directHits := acc.directHitIDs()

	if q.EnableGraphExpansion && len(directHits) > 0 {
		e.expandGraph(ctx, directHits, q, acc)
	}

	fused := acc.fuseSortTruncate(q.Limit)

	results := make([]SymbolResult, 0, len(fused))
	for _, f := range fused {
		sym, err := e.getSymbol(ctx, f.ID)
		if err != nil || sym == nil {
			continue // row vanished mid-query; skip gracefully
		}
		if !matchesFilters(*sym, q) {
			continue
		}

		res := SymbolResult{
			Symbol: SymbolView{
				CodeSymbol:           *sym,
				DisplayQualifiedName: model.ToNativeQualifiedName(sym.QualifiedName, sym.Language),
			},
			Score:   f.Score,
			Signals: f.Signals,
			Snippet: snippet(sym.BodyText, 50),
		}

		if directHits[f.ID] {
			res.RelatedSymbols = e.relatedSymbols(ctx, f.ID, q)
		}

		results = append(results, res)
	}

	return results, nil
}

// withDefaults fills zero-valued query fields from the engine's configured
// retrieval defaults.
func (e *Engine) withDefaults(q SearchQuery) SearchQuery {
	r := e.cfg.Retrieval

	if q.Limit <= 0 {
		q.Limit = r.DefaultLimit
	}
	if q.Limit > r.MaxLimit {
		q.Limit = r.MaxLimit
	}

	if q.BM25PoolSize <= 0 {
		q.BM25PoolSize = r.BM25PoolSize
	}
	if q.VectorPoolSize <= 0 {
		q.VectorPoolSize = r.VectorPoolSize
	}
	if q.ExactMatchPoolSize <= 0 {
		q.ExactMatchPoolSize = r.ExactMatchPoolSize
	}
	if q.ChunkPoolSize <= 0 {
		q.ChunkPoolSize = r.ChunkPoolSize
	}

	if q.BM25Weight == 0 {
		q.BM25Weight = r.BM25Weight
	}
	if q.VectorWeight == 0 {
		q.VectorWeight = r.VectorWeight
	}
	if q.ExactWeight == 0 {
		q.ExactWeight = r.ExactWeight
	}
	if q.ChunkWeight == 0 {
		q.ChunkWeight = r.ChunkWeight
	}
	if q.GraphWeight == 0 {
		q.GraphWeight = r.GraphWeight
	}

	q.GraphDepth = e.cfg.EffectiveGraphDepth(q.GraphDepth)

	return q
}

// expandGraph runs the expansion pass: a k-hop traversal from every direct hit,
// merging discovered IDs at their smallest depth, excluding the seeds
// themselves, filtering by language/path, and fusing the merged,
// depth-sorted list as the graph signal.
func (e *Engine) expandGraph(ctx context.Context, directHits map[model.SymbolId]bool, q SearchQuery, acc *accumulator) {
	g := e.mgr.Graph()

	type discovery struct {
		id    model.SymbolId
		depth int
	}
	discovered := make(map[model.SymbolId]int)

	for seed := range directHits {
		hits, err := g.TraverseKHop(ctx, seed, q.GraphDepth, graphExpansionMaxFanout, store.DirectionBoth)
		if err != nil {
			continue
		}
		for _, h := range hits {
			if directHits[h.SymbolID] {
				continue
			}
			if prev, ok := discovered[h.SymbolID]; !ok || h.Depth < prev {
				discovered[h.SymbolID] = h.Depth
			}
		}
	}

	filtered := make([]discovery, 0, len(discovered))
	for id, depth := range discovered {
		sym, err := e.getSymbol(ctx, id)
		if err != nil || sym == nil {
			continue
		}
		if !matchesFilters(*sym, q) {
			continue
		}
		filtered = append(filtered, discovery{id: id, depth: depth})
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].depth != filtered[j].depth {
			return filtered[i].depth < filtered[j].depth
		}
		return bytes.Compare(filtered[i].id[:], filtered[j].id[:]) < 0
	})

	for rank, d := range filtered {
		acc.contribute(d.id, q.GraphWeight, rank, "graph")
	}
}

// relatedSymbols attaches a fresh k-hop traversal from id, used only for
// hits that were themselves a direct-hit seed.
func (e *Engine) relatedSymbols(ctx context.Context, id model.SymbolId, q SearchQuery) []RelatedSymbol {
	hits, err := e.mgr.Graph().TraverseKHop(ctx, id, q.GraphDepth, graphExpansionMaxFanout, store.DirectionBoth)
	if err != nil {
		return nil
	}
	out := make([]RelatedSymbol, 0, len(hits))
	for _, h := range hits {
		out = append(out, RelatedSymbol{SymbolID: h.SymbolID, Depth: h.Depth, Kind: h.Kind})
	}
	return out
}

// snippet returns at most maxLines lines of text.
func snippet(text string, maxLines int) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= maxLines {
		return text
	}
	return strings.Join(lines[:maxLines], "\n")
}

// ErrEmptyQuery is returned by validation helpers when a query has neither
// text nor a vector to search with.
var ErrEmptyQuery = fmt.Errorf("retrieval: query must supply text or a query vector")
