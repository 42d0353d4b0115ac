package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Kosthi/openace/internal/errors"
	"github.com/Kosthi/openace/internal/model"
	"github.com/Kosthi/openace/internal/tokenize"
)

const (
	engineTokenizerName = "openace_code_tokenizer"
	engineAnalyzerName  = "openace_code_analyzer"

	// docNamespaceSymbol and docNamespaceChunk partition the single full-text
	// index into two document families sharing the same field schema.
	docNamespaceSymbol = "symbol"
	docNamespaceChunk  = "chunk"

	// ftsBatchOpThreshold and ftsBatchTimeThreshold are the two triggers for
	// an automatic commit of pending full-text operations.
	ftsBatchOpThreshold   = 500
	ftsBatchTimeThreshold = 500 * time.Millisecond
)

// ftsDocument is the schema shared by both the symbol and chunk namespaces.
type ftsDocument struct {
	Namespace     string `json:"namespace"`
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Content       string `json:"content"`
	FilePath      string `json:"file_path"`
	Language      string `json:"language"`
}

// FullTextResult is a single (id, score) hit from a BM25 query. FilePath is
// populated from the stored field so the chunk_bm25 retrieval signal can
// map a chunk hit back to its owning file without a second lookup.
type FullTextResult struct {
	ID       string
	Score    float64
	FilePath string
}

// codeTokenizer adapts the engine's tokenizer to Bleve's analysis.Tokenizer
// interface, so identifier splitting (camelCase/snake_case/digit runs) and
// lowercase folding happen identically at index and query time.
type codeTokenizer struct{}

func (codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	tokens := tokenize.Tokenize(string(input))
	stream := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	for _, t := range tokens {
		stream = append(stream, &analysis.Token{
			Term:     []byte(t),
			Start:    0,
			End:      len(t),
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
	}
	return stream
}

func init() {
	_ = registry.RegisterTokenizer(engineTokenizerName, func(_ map[string]any, _ *registry.Cache) (analysis.Tokenizer, error) {
		return codeTokenizer{}, nil
	})
}

// BleveFullTextStore is the inverted index over symbols and chunks, BM25
// ranked, with batched commits on an operation-count or time threshold.
type BleveFullTextStore struct {
	mu   sync.Mutex
	idx  bleve.Index
	path string

	pendingBatch *bleve.Batch
	pendingOps   int
	lastCommit   time.Time
	closed       bool
}

// OpenBleveFullTextStore opens (creating if absent) the full-text store at
// path. An empty path opens an in-memory index, used by tests.
func OpenBleveFullTextStore(path string) (*BleveFullTextStore, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("store: build fulltext mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("store: create fulltext dir: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, errors.New(errors.KindFullTextIndexUnavailable, "open fulltext index", err)
	}

	return &BleveFullTextStore{idx: idx, path: path, lastCommit: time.Time{}}, nil
}

func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(engineAnalyzerName, map[string]any{
		"type":      custom.Name,
		"tokenizer": engineTokenizerName,
	}); err != nil {
		return nil, err
	}
	m.DefaultAnalyzer = engineAnalyzerName

	// Text fields (name, qualified_name, content) go through the code
	// tokenizer; the filterable fields (namespace, file_path, language) use
	// the keyword analyzer so term/prefix filters see exact values.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = engineAnalyzerName

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name
	kw.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("qualified_name", text)
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("namespace", kw)
	doc.AddFieldMappingsAt("file_path", kw)
	doc.AddFieldMappingsAt("language", kw)
	m.DefaultMapping = doc

	return m, nil
}

func contentFor(filePath, docComment, bodyText string) string {
	pathTokens := tokenize.Tokenize(strings.NewReplacer("/", " ", "\\", " ").Replace(filePath))
	var b strings.Builder
	b.WriteString(strings.Join(pathTokens, " "))
	b.WriteByte(' ')
	b.WriteString(docComment)
	b.WriteByte(' ')
	b.WriteString(bodyText)
	return b.String()
}

// AddDocument indexes (or re-indexes) a symbol document.
func (s *BleveFullTextStore) AddDocument(sym model.CodeSymbol) error {
	doc := ftsDocument{
		Namespace:     docNamespaceSymbol,
		Name:          sym.Name,
		QualifiedName: sym.QualifiedName,
		Content:       contentFor(sym.FilePath, sym.DocComment, sym.BodyText),
		FilePath:      sym.FilePath,
		Language:      sym.Language.String(),
	}
	return s.enqueue(sym.ID.String(), doc)
}

// DeleteDocument removes a symbol document by ID.
func (s *BleveFullTextStore) DeleteDocument(id model.SymbolId) error {
	return s.enqueueDelete(id.String())
}

// AddChunkDocument indexes a chunk document into the chunk namespace.
// Chunk-pipeline failures never surface to callers.
func (s *BleveFullTextStore) AddChunkDocument(chunk model.CodeChunk) error {
	doc := ftsDocument{
		Namespace: docNamespaceChunk,
		Content:   contentFor(chunk.FilePath, "", chunk.Content),
		FilePath:  chunk.FilePath,
	}
	if err := s.enqueue(chunk.ID.String(), doc); err != nil {
		return nil
	}
	return nil
}

// DeleteChunkDocument removes a chunk document by ID. Failures never
// surface to callers.
func (s *BleveFullTextStore) DeleteChunkDocument(id model.ChunkId) error {
	_ = s.enqueueDelete(id.String())
	return nil
}

func (s *BleveFullTextStore) enqueue(id string, doc ftsDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store: fulltext index closed")
	}
	if s.pendingBatch == nil {
		s.pendingBatch = s.idx.NewBatch()
		s.lastCommit = time.Now()
	}
	if err := s.pendingBatch.Index(id, doc); err != nil {
		return err
	}
	s.pendingOps++
	return s.maybeCommitLocked()
}

func (s *BleveFullTextStore) enqueueDelete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store: fulltext index closed")
	}
	if s.pendingBatch == nil {
		s.pendingBatch = s.idx.NewBatch()
		s.lastCommit = time.Now()
	}
	s.pendingBatch.Delete(id)
	s.pendingOps++
	return s.maybeCommitLocked()
}

// maybeCommitLocked flushes the pending batch if either trigger threshold is
// met. Caller must hold s.mu.
func (s *BleveFullTextStore) maybeCommitLocked() error {
	if s.pendingOps >= ftsBatchOpThreshold || time.Since(s.lastCommit) >= ftsBatchTimeThreshold {
		return s.commitLocked()
	}
	return nil
}

func (s *BleveFullTextStore) commitLocked() error {
	if s.pendingBatch == nil || s.pendingOps == 0 {
		return nil
	}
	err := s.idx.Batch(s.pendingBatch)
	s.pendingBatch = nil
	s.pendingOps = 0
	s.lastCommit = time.Now()
	return err
}

// Commit forces a flush of any pending operations, regardless of threshold.
func (s *BleveFullTextStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked()
}

// SearchBM25 queries the symbol namespace, returning (symbol_id, score)
// pairs in descending score order. Query errors return an empty result.
func (s *BleveFullTextStore) SearchBM25(ctx context.Context, query string, limit int, filePathFilter, languageFilter string) ([]FullTextResult, error) {
	return s.search(ctx, docNamespaceSymbol, query, limit, filePathFilter, languageFilter)
}

// SearchBM25Chunks queries the chunk namespace analogously to SearchBM25.
func (s *BleveFullTextStore) SearchBM25Chunks(ctx context.Context, query string, limit int, filePathFilter string) ([]FullTextResult, error) {
	results, err := s.search(ctx, docNamespaceChunk, query, limit, filePathFilter, "")
	if err != nil {
		return nil, nil
	}
	return results, nil
}

func (s *BleveFullTextStore) search(ctx context.Context, namespace, query string, limit int, filePathFilter, languageFilter string) ([]FullTextResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("store: fulltext index closed")
	}
	if commitErr := s.commitLocked(); commitErr != nil {
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()

	nameQuery := bleve.NewMatchQuery(query)
	nameQuery.SetField("name")
	qnameQuery := bleve.NewMatchQuery(query)
	qnameQuery.SetField("qualified_name")
	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")
	textQuery := bleve.NewDisjunctionQuery(nameQuery, qnameQuery, contentQuery)

	namespaceQuery := bleve.NewTermQuery(namespace)
	namespaceQuery.SetField("namespace")

	conjuncts := []bleveQuery.Query{textQuery, namespaceQuery}
	if filePathFilter != "" {
		fpq := bleve.NewPrefixQuery(filePathFilter)
		fpq.SetField("file_path")
		conjuncts = append(conjuncts, fpq)
	}
	if languageFilter != "" {
		lq := bleve.NewTermQuery(languageFilter)
		lq.SetField("language")
		conjuncts = append(conjuncts, lq)
	}

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(conjuncts...))
	req.Size = limit
	req.Fields = []string{"file_path"}

	res, err := s.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, nil
	}

	out := make([]FullTextResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		fp, _ := hit.Fields["file_path"].(string)
		out = append(out, FullTextResult{ID: hit.ID, Score: hit.Score, FilePath: fp})
	}
	return out, nil
}

// Clear discards any pending batch, closes the index, and recreates it
// empty (removing the on-disk index first when it is file-backed), used
// before a full re-index.
func (s *BleveFullTextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store: fulltext index closed")
	}
	s.pendingBatch = nil
	s.pendingOps = 0

	if err := s.idx.Close(); err != nil {
		return err
	}

	indexMapping, err := buildIndexMapping()
	if err != nil {
		return err
	}

	if s.path == "" {
		s.idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.RemoveAll(s.path); err != nil {
			return err
		}
		s.idx, err = bleve.New(s.path, indexMapping)
	}
	return err
}

// Close flushes pending operations and releases the index.
func (s *BleveFullTextStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	_ = s.commitLocked()
	s.closed = true
	return s.idx.Close()
}
