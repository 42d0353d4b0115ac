package retrieval

import (
	"bytes"
	"sort"

	"github.com/Kosthi/openace/internal/model"
)

// accumulator holds the running reciprocal-rank-fusion score and the set of
// signals that contributed to each candidate symbol.
type accumulator struct {
	entries map[model.SymbolId]*accEntry
	order   []model.SymbolId // first-seen order, for deterministic signal-list ordering
	k       int
}

type accEntry struct {
	score        float64
	signalsSeen  map[string]bool
	signalsOrder []string
}

func newAccumulator(k int) *accumulator {
	return &accumulator{entries: make(map[model.SymbolId]*accEntry), k: k}
}

// contribute adds weight × 1/(rank+1+K) to id's score and records signal in
// its contributing-signal set, in the order first observed.
func (a *accumulator) contribute(id model.SymbolId, weight float64, rank int, signal string) {
	if weight == 0 {
		return
	}
	e, ok := a.entries[id]
	if !ok {
		e = &accEntry{signalsSeen: make(map[string]bool)}
		a.entries[id] = e
		a.order = append(a.order, id)
	}
	e.score += weight * (1.0 / float64(rank+1+a.k))
	if !e.signalsSeen[signal] {
		e.signalsSeen[signal] = true
		e.signalsOrder = append(e.signalsOrder, signal)
	}
}

// directHitIDs snapshots every ID with a non-zero score at the moment it
// is called, taken before graph expansion runs.
func (a *accumulator) directHitIDs() map[model.SymbolId]bool {
	out := make(map[model.SymbolId]bool, len(a.order))
	for _, id := range a.order {
		out[id] = true
	}
	return out
}

// fusedResult is a candidate post-fusion, pre-hydration.
type fusedResult struct {
	ID      model.SymbolId
	Score   float64
	Signals []string
}

// fuseSortTruncate sorts every accumulated candidate by score descending,
// SymbolId ascending as a deterministic tie-break, and truncates to limit.
func (a *accumulator) fuseSortTruncate(limit int) []fusedResult {
	out := make([]fusedResult, 0, len(a.order))
	for _, id := range a.order {
		e := a.entries[id]
		out = append(out, fusedResult{ID: id, Score: e.score, Signals: e.signalsOrder})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// kindPriority orders a file's symbols for the chunk_bm25 signal's "best
// symbol in file" rule: containers first, then callables, then everything
// else.
func kindPriority(k model.SymbolKind) int {
	switch k {
	case model.SymbolKindClass, model.SymbolKindStruct, model.SymbolKindInterface, model.SymbolKindTrait:
		return 0
	case model.SymbolKindFunction, model.SymbolKindMethod:
		return 1
	default:
		return 2
	}
}

// bestSymbolInFile picks the highest-priority symbol among candidates,
// breaking ties by keeping the first one seen (candidates arrive in the
// graph store's deterministic id order).
func bestSymbolInFile(candidates []model.CodeSymbol) (model.CodeSymbol, bool) {
	if len(candidates) == 0 {
		return model.CodeSymbol{}, false
	}
	best := candidates[0]
	bestPrio := kindPriority(best.Kind)
	for _, c := range candidates[1:] {
		if p := kindPriority(c.Kind); p < bestPrio {
			best, bestPrio = c, p
		}
	}
	return best, true
}
