package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/Kosthi/openace/internal/errors"
	"github.com/Kosthi/openace/internal/model"
)

// GraphSchemaVersion is the current on-disk schema version for the symbol
// graph database. Reopening a database stamped with a different version is
// a structural error: the caller should purge and rebuild.
const GraphSchemaVersion = 1

// TraverseDirection selects which edge direction traverse_khop follows.
type TraverseDirection int

const (
	DirectionOutgoing TraverseDirection = iota
	DirectionIncoming
	DirectionBoth
)

// maxTraverseDepth is the hard clamp on traverse_khop's max_depth parameter.
const maxTraverseDepth = 5

// GraphHit is a single node reached by traverse_khop, carrying the depth at
// which it was first visited and the relation kind that delivered it.
type GraphHit struct {
	SymbolID model.SymbolId
	Depth    int
	Kind     model.RelationKind
}

// SQLiteGraphStore is the relational symbol graph: symbols, relations,
// files, and repositories, backed by the pure-Go modernc.org/sqlite driver
// in WAL mode for single-writer/multi-reader concurrency.
type SQLiteGraphStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// OpenSQLiteGraphStore opens (creating if absent) the graph store at path.
// An empty path opens an in-memory database, used by tests.
func OpenSQLiteGraphStore(path string) (*SQLiteGraphStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create graph dir: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open graph db: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: set pragma %q: %w", p, err)
		}
	}

	g := &SQLiteGraphStore{db: db, path: path}
	if err := g.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return g, nil
}

func (g *SQLiteGraphStore) initSchema() error {
	var existing int
	row := g.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`)
	err := row.Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		// fresh database, fall through to create
	case err != nil:
		// schema_version table doesn't exist yet; create everything below.
	default:
		if existing != GraphSchemaVersion {
			return errors.New(errors.KindSchemaMismatch,
				fmt.Sprintf("graph store schema version %d, expected %d", existing, GraphSchemaVersion), nil)
		}
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

	CREATE TABLE IF NOT EXISTS repositories (
		id TEXT PRIMARY KEY,
		root_path TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		content_hash INTEGER NOT NULL,
		language INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		symbol_count INTEGER NOT NULL DEFAULT 0,
		last_indexed INTEGER NOT NULL,
		last_modified INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS symbols (
		id BLOB PRIMARY KEY,
		name TEXT NOT NULL,
		qualified_name TEXT NOT NULL,
		kind INTEGER NOT NULL,
		language INTEGER NOT NULL,
		file_path TEXT NOT NULL,
		byte_start INTEGER NOT NULL,
		byte_end INTEGER NOT NULL,
		line_start INTEGER NOT NULL,
		line_end INTEGER NOT NULL,
		signature TEXT,
		doc_comment TEXT,
		body_hash INTEGER NOT NULL,
		body_text TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_symbols_file_path ON symbols(file_path);
	CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
	CREATE INDEX IF NOT EXISTS idx_symbols_qualified_name ON symbols(qualified_name);
	CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);

	CREATE TABLE IF NOT EXISTS relations (
		id BLOB PRIMARY KEY,
		source_id BLOB NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
		target_id BLOB NOT NULL,
		kind INTEGER NOT NULL,
		file_path TEXT NOT NULL,
		line INTEGER NOT NULL,
		confidence REAL NOT NULL,
		UNIQUE(source_id, target_id, kind, file_path, line)
	);
	CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source_id);
	CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target_id);
	CREATE INDEX IF NOT EXISTS idx_relations_kind ON relations(kind);

	INSERT OR IGNORE INTO schema_version(version) VALUES (%d);
	`
	if _, err := g.db.Exec(fmt.Sprintf(schema, GraphSchemaVersion)); err != nil {
		return fmt.Errorf("store: init graph schema: %w", err)
	}
	return nil
}

// Close closes the underlying database, idempotently.
func (g *SQLiteGraphStore) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	_, _ = g.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return g.db.Close()
}

// InsertSymbols upserts symbols in transactions of at most batchSize rows.
func (g *SQLiteGraphStore) InsertSymbols(ctx context.Context, symbols []model.CodeSymbol, batchSize int) error {
	return g.writeBatched(ctx, len(symbols), batchSize, func(tx *sql.Tx, lo, hi int) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO symbols
				(id, name, qualified_name, kind, language, file_path, byte_start, byte_end,
				 line_start, line_end, signature, doc_comment, body_hash, body_text, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, s := range symbols[lo:hi] {
			if _, err := stmt.ExecContext(ctx,
				s.ID.Bytes(), s.Name, s.QualifiedName, int(s.Kind), int(s.Language), s.FilePath,
				s.ByteRange.Start, s.ByteRange.End, s.LineRange.Start, s.LineRange.End,
				s.Signature, s.DocComment, int64(s.BodyHash), s.BodyText,
				s.CreatedAt.Unix(), s.UpdatedAt.Unix(),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateSymbols performs a column-wise UPDATE that does not touch any
// cascading foreign key, preserving relations that reference these symbols.
func (g *SQLiteGraphStore) UpdateSymbols(ctx context.Context, symbols []model.CodeSymbol, batchSize int) error {
	return g.writeBatched(ctx, len(symbols), batchSize, func(tx *sql.Tx, lo, hi int) error {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE symbols SET
				name = ?, qualified_name = ?, kind = ?, language = ?, file_path = ?,
				byte_start = ?, byte_end = ?, line_start = ?, line_end = ?,
				signature = ?, doc_comment = ?, body_hash = ?, body_text = ?, updated_at = ?
			WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, s := range symbols[lo:hi] {
			if _, err := stmt.ExecContext(ctx,
				s.Name, s.QualifiedName, int(s.Kind), int(s.Language), s.FilePath,
				s.ByteRange.Start, s.ByteRange.End, s.LineRange.Start, s.LineRange.End,
				s.Signature, s.DocComment, int64(s.BodyHash), s.BodyText, s.UpdatedAt.Unix(),
				s.ID.Bytes(),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertRelations inserts relations, ignoring rows that already exist by
// primary key (relation IDs are idempotent by construction).
func (g *SQLiteGraphStore) InsertRelations(ctx context.Context, relations []model.CodeRelation, batchSize int) error {
	return g.writeBatched(ctx, len(relations), batchSize, func(tx *sql.Tx, lo, hi int) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO relations (id, source_id, target_id, kind, file_path, line, confidence)
			VALUES (?,?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range relations[lo:hi] {
			if _, err := stmt.ExecContext(ctx,
				r.ID[:], r.SourceID.Bytes(), r.TargetID.Bytes(), int(r.Kind), r.FilePath, r.Line, r.Confidence,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *SQLiteGraphStore) writeBatched(ctx context.Context, n, batchSize int, fn func(tx *sql.Tx, lo, hi int) error) error {
	if n == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = n
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for lo := 0; lo < n; lo += batchSize {
		hi := lo + batchSize
		if hi > n {
			hi = n
		}
		tx, err := g.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("store: begin tx: %w", err)
		}
		if err := fn(tx, lo, hi); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: batch write: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit: %w", err)
		}
	}
	return nil
}

// Clear removes every symbol, relation, and file row, used by the full
// reindex pipeline before it rebuilds the graph from a clean scan.
func (g *SQLiteGraphStore) Clear(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin clear tx: %w", err)
	}
	for _, stmt := range []string{
		`DELETE FROM relations`,
		`DELETE FROM symbols`,
		`DELETE FROM files`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: clear graph: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteSymbol removes a symbol by ID, cascading to its outgoing relations.
func (g *SQLiteGraphStore) DeleteSymbol(ctx context.Context, id model.SymbolId) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.db.ExecContext(ctx, `DELETE FROM symbols WHERE id = ?`, id.Bytes())
	return err
}

// DeleteSymbolsByFile removes all symbols recorded under path.
func (g *SQLiteGraphStore) DeleteSymbolsByFile(ctx context.Context, path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.db.ExecContext(ctx, `DELETE FROM symbols WHERE file_path = ?`, path)
	return err
}

// DeleteRelationsByFile removes all relations recorded as originating in path.
func (g *SQLiteGraphStore) DeleteRelationsByFile(ctx context.Context, path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.db.ExecContext(ctx, `DELETE FROM relations WHERE file_path = ?`, path)
	return err
}

// DeleteFile removes a file's metadata row.
func (g *SQLiteGraphStore) DeleteFile(ctx context.Context, path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path)
	return err
}

// UpsertRepository records the repository a project's symbols belong to.
func (g *SQLiteGraphStore) UpsertRepository(ctx context.Context, id, rootPath string, createdAt int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO repositories (id, root_path, created_at)
		VALUES (?,?,?)`, id, rootPath, createdAt)
	return err
}

// UpsertFile records a file's metadata.
func (g *SQLiteGraphStore) UpsertFile(ctx context.Context, m model.FileMetadata) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO files (path, content_hash, language, size_bytes, symbol_count, last_indexed, last_modified)
		VALUES (?,?,?,?,?,?,?)`,
		m.Path, int64(m.ContentHash), int(m.Language), m.SizeBytes, m.SymbolCount, m.LastIndexed.Unix(), m.LastModified.Unix())
	return err
}

// GetSymbol fetches a symbol by ID.
func (g *SQLiteGraphStore) GetSymbol(ctx context.Context, id model.SymbolId) (*model.CodeSymbol, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	row := g.db.QueryRowContext(ctx, symbolSelectColumns+`FROM symbols WHERE id = ?`, id.Bytes())
	return scanSymbol(row)
}

// GetSymbolsByFile returns all symbols recorded under path, ordered by id.
func (g *SQLiteGraphStore) GetSymbolsByFile(ctx context.Context, path string) ([]model.CodeSymbol, error) {
	return g.querySymbols(ctx, symbolSelectColumns+`FROM symbols WHERE file_path = ? ORDER BY id`, path)
}

// GetSymbolsByName returns all symbols with the given simple name.
func (g *SQLiteGraphStore) GetSymbolsByName(ctx context.Context, name string) ([]model.CodeSymbol, error) {
	return g.querySymbols(ctx, symbolSelectColumns+`FROM symbols WHERE name = ? ORDER BY id`, name)
}

// GetSymbolsByQualifiedName returns all symbols with the given qualified name.
func (g *SQLiteGraphStore) GetSymbolsByQualifiedName(ctx context.Context, qualifiedName string) ([]model.CodeSymbol, error) {
	return g.querySymbols(ctx, symbolSelectColumns+`FROM symbols WHERE qualified_name = ? ORDER BY id`, qualifiedName)
}

// ListSymbols returns a deterministically ordered page of symbols.
func (g *SQLiteGraphStore) ListSymbols(ctx context.Context, limit, offset int) ([]model.CodeSymbol, error) {
	return g.querySymbols(ctx, symbolSelectColumns+`FROM symbols ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
}

// CountSymbols returns the total number of symbols stored.
func (g *SQLiteGraphStore) CountSymbols(ctx context.Context) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var n int
	err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbols`).Scan(&n)
	return n, err
}

// CountRelations returns the total number of relation rows stored.
func (g *SQLiteGraphStore) CountRelations(ctx context.Context) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var n int
	err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relations`).Scan(&n)
	return n, err
}

// CountFiles returns the number of files recorded as indexed.
func (g *SQLiteGraphStore) CountFiles(ctx context.Context) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var n int
	err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n)
	return n, err
}

// GetFile returns a file's metadata, or nil if not recorded.
func (g *SQLiteGraphStore) GetFile(ctx context.Context, path string) (*model.FileMetadata, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	row := g.db.QueryRowContext(ctx, fileSelectColumns+`FROM files WHERE path = ?`, path)
	return scanFile(row)
}

// GetFileByContentHash returns the first file recorded with the given hash.
func (g *SQLiteGraphStore) GetFileByContentHash(ctx context.Context, hash uint64) (*model.FileMetadata, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	row := g.db.QueryRowContext(ctx, fileSelectColumns+`FROM files WHERE content_hash = ? LIMIT 1`, int64(hash))
	return scanFile(row)
}

const symbolSelectColumns = `SELECT id, name, qualified_name, kind, language, file_path, byte_start, byte_end,
	line_start, line_end, signature, doc_comment, body_hash, body_text, created_at, updated_at `

const fileSelectColumns = `SELECT path, content_hash, language, size_bytes, symbol_count, last_indexed, last_modified `

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSymbol(row rowScanner) (*model.CodeSymbol, error) {
	var s model.CodeSymbol
	var idBytes []byte
	var kind, language int
	var signature, docComment, bodyText sql.NullString
	var createdAt, updatedAt, bodyHash int64

	err := row.Scan(&idBytes, &s.Name, &s.QualifiedName, &kind, &language, &s.FilePath,
		&s.ByteRange.Start, &s.ByteRange.End, &s.LineRange.Start, &s.LineRange.End,
		&signature, &docComment, &bodyHash, &bodyText, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	id, err := model.SymbolIdFromBytes(idBytes)
	if err != nil {
		return nil, err
	}
	s.ID = id
	s.Kind = model.SymbolKind(kind)
	s.Language = model.Language(language)
	s.Signature = signature.String
	s.DocComment = docComment.String
	s.BodyHash = uint64(bodyHash)
	s.BodyText = bodyText.String
	return &s, nil
}

func scanFile(row rowScanner) (*model.FileMetadata, error) {
	var m model.FileMetadata
	var language int
	var lastIndexed, lastModified, contentHash int64

	err := row.Scan(&m.Path, &contentHash, &language, &m.SizeBytes, &m.SymbolCount, &lastIndexed, &lastModified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Language = model.Language(language)
	m.ContentHash = uint64(contentHash)
	return &m, nil
}

func (g *SQLiteGraphStore) querySymbols(ctx context.Context, query string, args ...any) ([]model.CodeSymbol, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CodeSymbol
	for rows.Next() {
		s, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, rows.Err()
}

// TraverseKHop performs an iterative, cycle-safe BFS from seed up to
// maxDepth hops (clamped to 5), visiting each symbol at most once and
// contributing at most maxFanout neighbors per expansion step. When
// direction is Both, outgoing neighbors are drawn before incoming ones and
// share the fanout budget.
func (g *SQLiteGraphStore) TraverseKHop(ctx context.Context, seed model.SymbolId, maxDepth, maxFanout int, direction TraverseDirection) ([]GraphHit, error) {
	if maxDepth > maxTraverseDepth {
		maxDepth = maxTraverseDepth
	}
	if maxDepth < 0 {
		maxDepth = 0
	}

	visited := map[model.SymbolId]bool{seed: true}
	frontier := []model.SymbolId{seed}
	var hits []GraphHit

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []model.SymbolId

		for _, node := range frontier {
			neighbors, err := g.fetchNeighbors(ctx, node, direction, maxFanout)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				if visited[n.id] {
					continue
				}
				visited[n.id] = true
				hits = append(hits, GraphHit{SymbolID: n.id, Depth: depth, Kind: n.kind})
				next = append(next, n.id)
			}
		}

		frontier = next
	}

	return hits, nil
}

type neighbor struct {
	id   model.SymbolId
	kind model.RelationKind
}

func (g *SQLiteGraphStore) fetchNeighbors(ctx context.Context, node model.SymbolId, direction TraverseDirection, maxFanout int) ([]neighbor, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []neighbor

	fetch := func(query string) error {
		remaining := maxFanout - len(out)
		if remaining <= 0 {
			return nil
		}
		rows, err := g.db.QueryContext(ctx, query+` LIMIT ?`, node.Bytes(), remaining)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var idBytes []byte
			var kind int
			if err := rows.Scan(&idBytes, &kind); err != nil {
				return err
			}
			id, err := model.SymbolIdFromBytes(idBytes)
			if err != nil {
				return err
			}
			out = append(out, neighbor{id: id, kind: model.RelationKind(kind)})
		}
		return rows.Err()
	}

	const outgoingQuery = `SELECT target_id, kind FROM relations WHERE source_id = ?`
	const incomingQuery = `SELECT source_id, kind FROM relations WHERE target_id = ?`

	switch direction {
	case DirectionOutgoing:
		if err := fetch(outgoingQuery); err != nil {
			return nil, err
		}
	case DirectionIncoming:
		if err := fetch(incomingQuery); err != nil {
			return nil, err
		}
	case DirectionBoth:
		if err := fetch(outgoingQuery); err != nil {
			return nil, err
		}
		if err := fetch(incomingQuery); err != nil {
			return nil, err
		}
	}

	if maxFanout > 0 && len(out) > maxFanout {
		out = out[:maxFanout]
	}
	return out, nil
}
