// Package storage provides the StorageManager: the sole owner of the
// .openace/ directory and the lifecycle of the three coupled indices (the
// symbol graph, the full-text index, and the vector index), including
// corruption recovery and cross-index flush ordering.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/Kosthi/openace/internal/errors"
	"github.com/Kosthi/openace/internal/store"
)

// DefaultEmbeddingDim is used when no meta.json exists and the caller
// supplies no override.
const DefaultEmbeddingDim = 384

const dataDirName = ".openace"

// lockFileName is the advisory lock inside .openace/ that enforces the
// single-writer contract across processes. It survives a corruption purge
// so the lock's file handle stays valid across the retry.
const lockFileName = ".lock"

type meta struct {
	EmbeddingDim int `json:"embedding_dim"`
}

// Manager owns the three stores backing a single project root. Callers
// access the backends through Graph/FullText/Vector; Manager itself only
// coordinates lifecycle, recovery, and flush ordering.
type Manager struct {
	mu sync.Mutex

	projectRoot string
	dataDir     string

	graph    *store.SQLiteGraphStore
	fullText *store.BleveFullTextStore
	vector   *store.HNSWVectorStore

	lock         *flock.Flock
	embeddingDim int
}

// Open opens (or creates) the .openace/ directory under projectRoot and
// the three stores within it:
//  1. read meta.json for D, falling back to embeddingDimOverride, then the
//     384 default;
//  2. try to open the three stores;
//  3. on a structural error, purge .openace/ (keeping only the writer lock
//     file) and retry exactly once; any other error propagates;
//  4. on success, rewrite meta.json.
func Open(projectRoot string, embeddingDimOverride int) (*Manager, error) {
	dataDir := filepath.Join(projectRoot, dataDirName)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dataDir, err)
	}
	lock := flock.New(filepath.Join(dataDir, lockFileName))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("storage: acquire writer lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("storage: %s is locked by another process", dataDir)
	}

	m, err := tryOpen(dataDir, embeddingDimOverride)
	if err != nil {
		if !errors.IsStructural(err) {
			_ = lock.Unlock()
			return nil, err
		}
		if rmErr := purgeDataDir(dataDir); rmErr != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("storage: purge %s: %w", dataDir, rmErr)
		}
		m, err = tryOpen(dataDir, embeddingDimOverride)
		if err != nil {
			_ = lock.Unlock()
			return nil, err
		}
	}

	m.projectRoot = projectRoot
	m.lock = lock
	if err := m.writeMeta(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return m, nil
}

// purgeDataDir empties .openace/ in place, keeping the lock file so the
// already-held writer lock remains valid through the retry.
func purgeDataDir(dataDir string) error {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == lockFileName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dataDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func tryOpen(dataDir string, embeddingDimOverride int) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dataDir, err)
	}

	dim := readMetaDim(dataDir)
	if dim <= 0 {
		dim = embeddingDimOverride
	}
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}

	g, err := store.OpenSQLiteGraphStore(filepath.Join(dataDir, "db.sqlite"))
	if err != nil {
		return nil, classifyOpenErr(errors.KindSchemaMismatch, err)
	}

	ft, err := store.OpenBleveFullTextStore(filepath.Join(dataDir, "tantivy"))
	if err != nil {
		_ = g.Close()
		return nil, classifyOpenErr(errors.KindFullTextIndexUnavailable, err)
	}

	vectorPath := filepath.Join(dataDir, "vectors.usearch")
	v, err := store.OpenHNSWVectorStore(vectorPath, dim)
	if err != nil {
		_ = g.Close()
		_ = ft.Close()
		return nil, classifyOpenErr(errors.KindVectorIndexUnavailable, err)
	}

	return &Manager{
		dataDir:      dataDir,
		graph:        g,
		fullText:     ft,
		vector:       v,
		embeddingDim: dim,
	}, nil
}

// classifyOpenErr wraps an opaque store-open failure as the structural kind
// the caller already knows applies, unless it's already a typed
// EngineError (in which case its own Kind/structural-ness is preserved).
func classifyOpenErr(kind errors.Kind, err error) error {
	if _, ok := err.(*errors.EngineError); ok {
		return err
	}
	return errors.New(kind, "open store", err)
}

func readMetaDim(dataDir string) int {
	data, err := os.ReadFile(filepath.Join(dataDir, "meta.json"))
	if err != nil {
		return 0
	}
	var m meta
	if json.Unmarshal(data, &m) != nil {
		return 0
	}
	return m.EmbeddingDim
}

func (m *Manager) writeMeta() error {
	data, err := json.MarshalIndent(meta{EmbeddingDim: m.embeddingDim}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.dataDir, "meta.json"), data, 0o644)
}

// Graph returns the symbol graph store.
func (m *Manager) Graph() *store.SQLiteGraphStore { return m.graph }

// FullText returns the full-text store.
func (m *Manager) FullText() *store.BleveFullTextStore { return m.fullText }

// Vector returns the vector store.
func (m *Manager) Vector() *store.HNSWVectorStore { return m.vector }

// EmbeddingDim returns D, the dimension recorded in meta.json.
func (m *Manager) EmbeddingDim() int { return m.embeddingDim }

// DataDir returns the .openace/ directory path.
func (m *Manager) DataDir() string { return m.dataDir }

// ProjectRoot returns the project root this manager was opened against.
func (m *Manager) ProjectRoot() string { return m.projectRoot }

// ClearAll empties all three stores, used by the full-index pipeline
// before it rebuilds the graph, full-text index, and vector index from a
// clean scan.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.graph.Clear(ctx); err != nil {
		return fmt.Errorf("storage: clear graph: %w", err)
	}
	if err := m.fullText.Clear(); err != nil {
		return fmt.Errorf("storage: clear fulltext: %w", err)
	}
	m.vector.Clear()
	return nil
}

// Flush commits pending full-text operations and saves the vector index.
// Vector writes are otherwise best-effort and not synchronously committed
// on every update; Flush is the explicit sync point a caller uses after a
// batch of updates.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fullText.Commit(); err != nil {
		return fmt.Errorf("storage: commit fulltext: %w", err)
	}
	if err := m.vector.Save(filepath.Join(m.dataDir, "vectors.usearch")); err != nil {
		return fmt.Errorf("storage: save vector index: %w", err)
	}
	return nil
}

// Close releases all three stores' resources, in reverse open order.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	note(m.vector.Close())
	note(m.fullText.Close())
	note(m.graph.Close())
	if m.lock != nil {
		note(m.lock.Unlock())
	}
	return firstErr
}
