package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kosthi/openace/internal/errors"
	"github.com/Kosthi/openace/internal/model"
)

func idFor(n byte) model.SymbolId {
	var id model.SymbolId
	id[0] = n
	return id
}

func idForN(n int) model.SymbolId {
	var id model.SymbolId
	id[0] = byte(n)
	id[1] = byte(n >> 8)
	return id
}

func TestHNSWVectorStore_AddAndSearch(t *testing.T) {
	s, err := NewHNSWVectorStore(4)
	require.NoError(t, err)

	require.NoError(t, s.AddVector(idFor(1), []float32{1, 0, 0, 0}))
	require.NoError(t, s.AddVector(idFor(2), []float32{0, 1, 0, 0}))
	require.NoError(t, s.AddVector(idFor(3), []float32{0.9, 0.1, 0, 0}))

	results, err := s.SearchKNN([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, idFor(1), results[0].ID)
}

func TestHNSWVectorStore_DimensionMismatch(t *testing.T) {
	s, err := NewHNSWVectorStore(4)
	require.NoError(t, err)

	err = s.AddVector(idFor(1), []float32{1, 0})
	require.Error(t, err)
	var ee *errors.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, errors.KindDimensionMismatch, ee.Kind)

	_, err = s.SearchKNN([]float32{1, 0, 0}, 1)
	require.Error(t, err)
}

func TestHNSWVectorStore_EmptyIndexSearchReturnsEmptyNotError(t *testing.T) {
	s, err := NewHNSWVectorStore(8)
	require.NoError(t, err)

	results, err := s.SearchKNN(make([]float32, 8), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWVectorStore_AddOverwriteAllocatesFreshSurrogate(t *testing.T) {
	s, err := NewHNSWVectorStore(3)
	require.NoError(t, err)

	id := idFor(7)
	require.NoError(t, s.AddVector(id, []float32{1, 0, 0}))
	firstKey := s.idToKey[id]

	require.NoError(t, s.AddVector(id, []float32{0, 1, 0}))
	secondKey := s.idToKey[id]

	assert.NotEqual(t, firstKey, secondKey)
	assert.Equal(t, 1, s.Count())
	_, stillMapped := s.keyToID[firstKey]
	assert.False(t, stillMapped)
}

func TestHNSWVectorStore_RemoveVectorOrphansSurrogate(t *testing.T) {
	s, err := NewHNSWVectorStore(3)
	require.NoError(t, err)

	id := idFor(9)
	require.NoError(t, s.AddVector(id, []float32{1, 0, 0}))
	s.RemoveVector(id)

	assert.Equal(t, 0, s.Count())

	results, err := s.SearchKNN([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, id, r.ID)
	}
}

func TestHNSWVectorStore_SaveAndOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	s, err := NewHNSWVectorStore(3)
	require.NoError(t, err)
	require.NoError(t, s.AddVector(idFor(1), []float32{1, 0, 0}))
	require.NoError(t, s.AddVector(idFor(2), []float32{0, 1, 0}))
	require.NoError(t, s.Save(path))

	reopened, err := OpenHNSWVectorStore(path, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())
	assert.Equal(t, uint64(2), reopened.nextKey)

	results, err := reopened.SearchKNN([]float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, idFor(1), results[0].ID)
}

func TestHNSWVectorStore_OpenMissingFileReturnsEmptyStore(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenHNSWVectorStore(filepath.Join(dir, "absent.hnsw"), 5)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count())
}

func TestHNSWVectorStore_SidecarV1BackwardCompatible(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	s, err := NewHNSWVectorStore(3)
	require.NoError(t, err)
	require.NoError(t, s.AddVector(idFor(1), []float32{1, 0, 0}))
	require.NoError(t, s.AddVector(idFor(5), []float32{0, 1, 0}))
	require.NoError(t, s.Save(path))

	// Rewrite the sidecar in the legacy v1 layout: no 16-byte header, just
	// back-to-back 24-byte records.
	v2, err := os.ReadFile(sidecarPath(path))
	require.NoError(t, err)
	v1Body := v2[v2HeaderSize:]
	require.NoError(t, os.WriteFile(sidecarPath(path), v1Body, 0o644))

	reopened, err := OpenHNSWVectorStore(path, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())
	assert.Equal(t, uint64(2), reopened.nextKey) // max(key)+1, keys were 0 and 1
}

func TestHNSWVectorStore_CapacityDoublesFrom64(t *testing.T) {
	s, err := NewHNSWVectorStore(1)
	require.NoError(t, err)
	assert.Equal(t, 64, s.capacity)

	for i := 0; i < 65; i++ {
		require.NoError(t, s.AddVector(idForN(i), []float32{float32(i)}))
	}
	assert.Equal(t, 128, s.capacity)
}
