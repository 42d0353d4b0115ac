package retrieval

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kosthi/openace/internal/config"
	"github.com/Kosthi/openace/internal/model"
	"github.com/Kosthi/openace/internal/storage"
)

func testEngine(t *testing.T) (*Engine, *storage.Manager, *config.Config) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Storage.EmbeddingDim = 4

	mgr, err := storage.Open(t.TempDir(), cfg.Storage.EmbeddingDim)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	return New(mgr, cfg), mgr, cfg
}

func seedSymbol(t *testing.T, mgr *storage.Manager, path, qname string, start uint32) model.CodeSymbol {
	t.Helper()
	name := qname
	if idx := strings.LastIndexByte(qname, '.'); idx >= 0 {
		name = qname[idx+1:]
	}
	now := time.Unix(1700000000, 0)
	sym := model.CodeSymbol{
		ID:            model.GenerateSymbolId("repo", path, qname, start, start+50),
		Name:          name,
		QualifiedName: qname,
		Kind:          model.SymbolKindFunction,
		Language:      model.LanguagePython,
		FilePath:      path,
		ByteRange:     model.ByteRange{Start: start, End: start + 50},
		BodyText:      "def " + name + "():\n    pass",
		BodyHash:      model.BodyHash([]byte(name)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, mgr.Graph().InsertSymbols(context.Background(), []model.CodeSymbol{sym}, 10))
	require.NoError(t, mgr.FullText().AddDocument(sym))
	require.NoError(t, mgr.FullText().Commit())
	return sym
}

func TestSearch_EmptyIndexReturnsEmpty(t *testing.T) {
	e, _, _ := testEngine(t)

	results, err := e.Search(context.Background(), SearchQuery{Text: "anything"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_BM25SignalLabeled(t *testing.T) {
	e, mgr, _ := testEngine(t)
	sym := seedSymbol(t, mgr, "svc/user.py", "svc.UserService", 0)

	results, err := e.Search(context.Background(), SearchQuery{Text: "UserService"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, sym.ID, results[0].Symbol.ID)
	assert.Contains(t, results[0].Signals, "bm25")
}

func TestSearch_ExactNameBoostsFusedScore(t *testing.T) {
	e, mgr, _ := testEngine(t)

	// Both symbols mention "handler" in body text, but only one is named
	// exactly that; it gains the exact signal on top of bm25.
	exact := seedSymbol(t, mgr, "a.py", "pkg.handler", 0)
	other := seedSymbol(t, mgr, "b.py", "pkg.other_handler_thing", 0)

	results, err := e.Search(context.Background(), SearchQuery{Text: "handler"})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	var exactRes, otherRes *SymbolResult
	for i := range results {
		switch results[i].Symbol.ID {
		case exact.ID:
			exactRes = &results[i]
		case other.ID:
			otherRes = &results[i]
		}
	}
	require.NotNil(t, exactRes)
	assert.Contains(t, exactRes.Signals, "exact")
	if otherRes != nil {
		assert.Greater(t, exactRes.Score, otherRes.Score)
	}
}

func TestSearch_VectorSignal(t *testing.T) {
	e, mgr, _ := testEngine(t)

	sym := seedSymbol(t, mgr, "a.py", "pkg.embedded", 0)
	require.NoError(t, mgr.Vector().AddVector(sym.ID, []float32{1, 0, 0, 0}))

	results, err := e.Search(context.Background(), SearchQuery{
		Text:        "embedded",
		QueryVector: []float32{1, 0, 0, 0},
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Signals, "vector")
	assert.Contains(t, results[0].Signals, "bm25")
}

func TestSearch_VectorSkippedWithoutQueryVector(t *testing.T) {
	e, mgr, _ := testEngine(t)

	sym := seedSymbol(t, mgr, "a.py", "pkg.embedded", 0)
	require.NoError(t, mgr.Vector().AddVector(sym.ID, []float32{1, 0, 0, 0}))

	results, err := e.Search(context.Background(), SearchQuery{Text: "embedded"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.NotContains(t, results[0].Signals, "vector")
}

func TestSearch_WrongDimensionVectorDegradesSilently(t *testing.T) {
	e, mgr, _ := testEngine(t)
	seedSymbol(t, mgr, "a.py", "pkg.embedded", 0)

	results, err := e.Search(context.Background(), SearchQuery{
		Text:        "embedded",
		QueryVector: []float32{1, 0}, // wrong dimension: signal drops, query survives
	})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestSearch_LimitClampedTo200(t *testing.T) {
	e, _, _ := testEngine(t)

	q := e.withDefaults(SearchQuery{Text: "x", Limit: 500})
	assert.Equal(t, 200, q.Limit)
}

func TestSearch_GraphDepthClampedTo5(t *testing.T) {
	e, _, _ := testEngine(t)

	q := e.withDefaults(SearchQuery{Text: "x", GraphDepth: 10})
	assert.Equal(t, 5, q.GraphDepth)
}

func TestSearch_LanguageFilter(t *testing.T) {
	e, mgr, _ := testEngine(t)

	pySym := seedSymbol(t, mgr, "a.py", "pkg.shared", 0)
	_ = pySym

	goLang := model.LanguageGo
	results, err := e.Search(context.Background(), SearchQuery{Text: "shared", LanguageFilter: &goLang})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_FilePathPrefixFilter(t *testing.T) {
	e, mgr, _ := testEngine(t)

	inside := seedSymbol(t, mgr, "src/core/a.py", "core.target", 0)
	seedSymbol(t, mgr, "tests/a.py", "tests.target", 0)

	results, err := e.Search(context.Background(), SearchQuery{Text: "target", FilePathFilter: "src/"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, inside.ID, results[0].Symbol.ID)
}

func TestSearch_GraphExpansionAttachesNeighbors(t *testing.T) {
	e, mgr, _ := testEngine(t)
	ctx := context.Background()

	hit := seedSymbol(t, mgr, "a.py", "pkg.entrypoint", 0)
	neighbor := seedSymbol(t, mgr, "b.py", "pkg.downstream_dep", 0)
	rel := model.NewRelation(hit.ID, neighbor.ID, model.RelationCalls, "a.py", 3)
	require.NoError(t, mgr.Graph().InsertRelations(ctx, []model.CodeRelation{rel}, 10))

	results, err := e.Search(ctx, SearchQuery{Text: "entrypoint", EnableGraphExpansion: true, GraphDepth: 2})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	ids := map[model.SymbolId][]string{}
	for _, r := range results {
		ids[r.Symbol.ID] = r.Signals
	}
	require.Contains(t, ids, neighbor.ID)
	assert.Contains(t, ids[neighbor.ID], "graph")

	// The direct hit carries its neighbors; the expansion-only hit doesn't.
	for _, r := range results {
		if r.Symbol.ID == hit.ID {
			require.NotEmpty(t, r.RelatedSymbols)
			assert.Equal(t, neighbor.ID, r.RelatedSymbols[0].SymbolID)
		}
		if r.Symbol.ID == neighbor.ID {
			assert.Empty(t, r.RelatedSymbols)
		}
	}
}

func TestSearch_NoExpansionWithoutDirectHits(t *testing.T) {
	e, mgr, _ := testEngine(t)

	seedSymbol(t, mgr, "a.py", "pkg.unrelated", 0)

	results, err := e.Search(context.Background(), SearchQuery{Text: "zzzznomatch", EnableGraphExpansion: true})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_ResultsSortedScoreDescThenID(t *testing.T) {
	e, mgr, _ := testEngine(t)

	for i := 0; i < 5; i++ {
		seedSymbol(t, mgr, "dir/file"+string(rune('a'+i))+".py", "pkg.common_token", uint32(i*100))
	}

	results, err := e.Search(context.Background(), SearchQuery{Text: "common_token"})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	sorted := sort.SliceIsSorted(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return bytes.Compare(results[i].Symbol.ID[:], results[j].Symbol.ID[:]) < 0
	})
	assert.True(t, sorted)
}

func TestSearch_SnippetCappedAt50Lines(t *testing.T) {
	e, mgr, _ := testEngine(t)

	sym := seedSymbol(t, mgr, "a.py", "pkg.longbody", 0)
	sym.BodyText = strings.Repeat("line\n", 120)
	require.NoError(t, mgr.Graph().UpdateSymbols(context.Background(), []model.CodeSymbol{sym}, 10))

	results, err := e.Search(context.Background(), SearchQuery{Text: "longbody"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(strings.Split(results[0].Snippet, "\n")), 50)
}

func TestSearch_RustDisplayNameUsesNativeSeparators(t *testing.T) {
	e, mgr, _ := testEngine(t)

	sym := seedSymbol(t, mgr, "lib.rs", "collections.map.insert_entry", 0)
	sym.Language = model.LanguageRust
	require.NoError(t, mgr.Graph().UpdateSymbols(context.Background(), []model.CodeSymbol{sym}, 10))

	results, err := e.Search(context.Background(), SearchQuery{Text: "insert_entry"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "collections::map::insert_entry", results[0].Symbol.DisplayQualifiedName)
}

func TestAccumulator_RRFMonotonicUnderMultipleSignals(t *testing.T) {
	acc := newAccumulator(60)

	var a, b model.SymbolId
	a[0], b[0] = 1, 2

	acc.contribute(a, 1.0, 0, "bm25")
	acc.contribute(b, 1.0, 0, "bm25")
	acc.contribute(a, 1.0, 5, "exact") // any positive extra contribution wins ties

	fused := acc.fuseSortTruncate(10)
	require.Len(t, fused, 2)
	assert.Equal(t, a, fused[0].ID)
	assert.Greater(t, fused[0].Score, fused[1].Score)
	assert.Equal(t, []string{"bm25", "exact"}, fused[0].Signals)
}

func TestAccumulator_RRFFormula(t *testing.T) {
	acc := newAccumulator(60)
	var id model.SymbolId
	id[0] = 1

	acc.contribute(id, 2.0, 4, "bm25") // 2 × 1/(4+1+60)

	fused := acc.fuseSortTruncate(10)
	require.Len(t, fused, 1)
	assert.InDelta(t, 2.0/65.0, fused[0].Score, 1e-12)
}

func TestAccumulator_ZeroWeightContributesNothing(t *testing.T) {
	acc := newAccumulator(60)
	var id model.SymbolId
	id[0] = 1

	acc.contribute(id, 0, 0, "bm25")
	assert.Empty(t, acc.fuseSortTruncate(10))
}

func TestBestSymbolInFile_KindPriority(t *testing.T) {
	fn := model.CodeSymbol{Kind: model.SymbolKindFunction}
	cls := model.CodeSymbol{Kind: model.SymbolKindClass}
	vr := model.CodeSymbol{Kind: model.SymbolKindVariable}
	cls.ID[0] = 9

	best, ok := bestSymbolInFile([]model.CodeSymbol{vr, fn, cls})
	require.True(t, ok)
	assert.Equal(t, cls.ID, best.ID)

	_, ok = bestSymbolInFile(nil)
	assert.False(t, ok)
}
