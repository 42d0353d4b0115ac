package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/Kosthi/openace/internal/errors"
	"github.com/Kosthi/openace/internal/model"
)

// vectorSidecarMagic-less header: {next_key u64, count u64} followed by
// count records of {key u64, id_lo u64, id_hi u64}, all little-endian. A
// legacy v1 format omits next_key; its presence is inferred from file size
// (len % 24 == 0 vs the v2 16-byte header + 24-byte-record layout).
const (
	v2HeaderSize = 16 // next_key + count
	recordSize   = 24 // key + id_lo + id_hi
	initialHNSWM = 32
	hnswEfSearch = 100
)

// VectorResult is a single k-NN hit, ascending by distance.
type VectorResult struct {
	ID       model.SymbolId
	Distance float32
}

// HNSWVectorStore is the cosine-distance HNSW index, surrogate-keyed by a
// monotonically increasing uint64 because the underlying graph library
// only supports 64-bit keys while SymbolId is 128-bit.
type HNSWVectorStore struct {
	mu sync.RWMutex

	graph     *hnsw.Graph[uint64]
	dimension int

	idToKey map[model.SymbolId]uint64
	keyToID map[uint64]model.SymbolId
	nextKey uint64

	capacity int
	closed   bool
}

// NewHNSWVectorStore creates a vector store fixed to dimension d.
func NewHNSWVectorStore(d int) (*HNSWVectorStore, error) {
	if d <= 0 {
		return nil, fmt.Errorf("store: vector dimension must be positive")
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = initialHNSWM
	graph.EfSearch = hnswEfSearch
	graph.Ml = 0.25

	return &HNSWVectorStore{
		graph:     graph,
		dimension: d,
		idToKey:   make(map[model.SymbolId]uint64),
		keyToID:   make(map[uint64]model.SymbolId),
		capacity:  64,
	}, nil
}

// AddVector inserts or replaces the vector for id. Re-adding an existing ID
// removes its prior mapping and inserts the vector under a newly allocated
// surrogate key; the old key is not reused, and its node stays in the graph
// unmapped, as with RemoveVector.
func (s *HNSWVectorStore) AddVector(id model.SymbolId, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store: vector store closed")
	}
	if len(vec) != s.dimension {
		return errors.New(errors.KindDimensionMismatch,
			fmt.Sprintf("expected dimension %d, got %d", s.dimension, len(vec)), nil)
	}

	if oldKey, exists := s.idToKey[id]; exists {
		delete(s.keyToID, oldKey)
		delete(s.idToKey, id)
	}

	if len(s.idToKey)+1 > s.capacity {
		s.capacity *= 2
	}

	key := s.nextKey
	s.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	s.graph.Add(hnsw.MakeNode(key, normalized))
	s.idToKey[id] = key
	s.keyToID[key] = id
	return nil
}

// RemoveVector lazily deletes id's mapping; the underlying node stays in
// the graph (deleting the last node corrupts coder/hnsw) but will never be
// resolved back to a live SymbolId again.
func (s *HNSWVectorStore) RemoveVector(id model.SymbolId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.idToKey[id]; ok {
		delete(s.keyToID, key)
		delete(s.idToKey, id)
	}
}

// SearchKNN returns the k nearest neighbors to query, ascending by
// distance. An empty index returns an empty result, not an error.
func (s *HNSWVectorStore) SearchKNN(query []float32, k int) ([]VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store: vector store closed")
	}
	if len(query) != s.dimension {
		return nil, errors.New(errors.KindDimensionMismatch,
			fmt.Sprintf("expected dimension %d, got %d", s.dimension, len(query)), nil)
	}
	if s.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	nodes := s.graph.Search(normalized, k)
	out := make([]VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := s.keyToID[node.Key]
		if !ok {
			continue // orphaned (lazily deleted) node
		}
		dist := s.graph.Distance(normalized, node.Value)
		out = append(out, VectorResult{ID: id, Distance: dist})
	}
	return out, nil
}

func normalizeInPlace(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSq))
	for i := range v {
		v[i] *= inv
	}
}

// Save persists the HNSW graph to path and the surrogate-key sidecar
// alongside it.
func (s *HNSWVectorStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: create vector dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := s.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: export hnsw graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	return s.saveSidecar(sidecarPath(path))
}

// sidecarPath derives the surrogate-key sidecar's path from the index
// path: the same base name with a .keymap extension (vectors.usearch ->
// vectors.keymap).
func sidecarPath(indexPath string) string {
	ext := filepath.Ext(indexPath)
	return indexPath[:len(indexPath)-len(ext)] + ".keymap"
}

func (s *HNSWVectorStore) saveSidecar(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := make([]byte, v2HeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], s.nextKey)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(s.keyToID)))
	if _, err := w.Write(header); err != nil {
		return err
	}

	record := make([]byte, recordSize)
	for key, id := range s.keyToID {
		binary.LittleEndian.PutUint64(record[0:8], key)
		binary.LittleEndian.PutUint64(record[8:16], binary.LittleEndian.Uint64(id[:8]))
		binary.LittleEndian.PutUint64(record[16:24], binary.LittleEndian.Uint64(id[8:16]))
		if _, err := w.Write(record); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// OpenHNSWVectorStore loads the graph and id-mapping sidecar from path,
// fixed to dimension d.
func OpenHNSWVectorStore(path string, d int) (*HNSWVectorStore, error) {
	s, err := NewHNSWVectorStore(d)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, errors.New(errors.KindVectorIndexUnavailable, "open vector index", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := s.graph.Import(r); err != nil {
		return nil, errors.New(errors.KindVectorIndexUnavailable, "import hnsw graph", err)
	}

	if err := s.loadSidecar(sidecarPath(path)); err != nil {
		return nil, errors.New(errors.KindVectorIndexUnavailable, "load vector id sidecar", err)
	}

	return s, nil
}

func (s *HNSWVectorStore) loadSidecar(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var nextKey, count uint64
	var body []byte

	if len(data) >= v2HeaderSize && (len(data)-v2HeaderSize)%recordSize == 0 {
		nextKey = binary.LittleEndian.Uint64(data[0:8])
		count = binary.LittleEndian.Uint64(data[8:16])
		body = data[v2HeaderSize:]
		if uint64(len(body)/recordSize) != count {
			// Falls back to size-inferred v1 parsing below.
			body = data
			nextKey = 0
		} else {
			return s.applySidecarRecords(body, nextKey)
		}
	}

	// v1 format: no header, count inferred from file size.
	if len(data)%recordSize != 0 {
		return fmt.Errorf("store: corrupt vector id sidecar: size %d not a multiple of record size", len(data))
	}
	return s.applySidecarRecords(data, 0)
}

func (s *HNSWVectorStore) applySidecarRecords(body []byte, nextKey uint64) error {
	var maxKey uint64
	for off := 0; off+recordSize <= len(body); off += recordSize {
		key := binary.LittleEndian.Uint64(body[off : off+8])
		var id model.SymbolId
		binary.LittleEndian.PutUint64(id[0:8], binary.LittleEndian.Uint64(body[off+8:off+16]))
		binary.LittleEndian.PutUint64(id[8:16], binary.LittleEndian.Uint64(body[off+16:off+24]))

		s.keyToID[key] = id
		s.idToKey[id] = key
		if key > maxKey {
			maxKey = key
		}
	}

	if nextKey == 0 {
		s.nextKey = maxKey + 1
	} else {
		s.nextKey = nextKey
	}
	return nil
}

// Clear discards every vector and resets the surrogate-key sequence,
// keeping the store's dimension. Used by the full-index pipeline before it
// rebuilds the vector index from a clean scan.
func (s *HNSWVectorStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = initialHNSWM
	graph.EfSearch = hnswEfSearch
	graph.Ml = 0.25

	s.graph = graph
	s.idToKey = make(map[model.SymbolId]uint64)
	s.keyToID = make(map[uint64]model.SymbolId)
	s.nextKey = 0
	s.capacity = 64
}

// Close releases the store.
func (s *HNSWVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return nil
}

// Count returns the number of live (non-orphaned) vectors.
func (s *HNSWVectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idToKey)
}
