// Package store provides durable persistence for files, chunks, the FTS5
// lexical index, embeddings, and metadata. All writes for a single file
// update commit inside one transaction. The database runs in WAL mode, so
// other connections can read while this one writes; within one Store all
// statements share a single connection and run one at a time.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/riffluxdb/rifflux/internal/errs"
)

// File is a tracked source file.
type File struct {
	ID       int64
	Path     string
	MtimeNs  int64
	SizeBytes int64
	SHA256   string
}

// Chunk is a retrievable text unit belonging to a file.
type Chunk struct {
	ID          int64
	ChunkID     string
	FileID      int64
	ChunkIndex  int
	HeadingPath string
	Content     string
	TokenCount  int
}

// LexicalHit is one row returned by a FTS MATCH query, joined against the
// owning chunk and file so the caller does not need a second round trip.
type LexicalHit struct {
	ChunkID     string
	Path        string
	HeadingPath string
	ChunkIndex  int
	Content     string
	BM25Score   float64
}

// EmbeddingRow is a stored vector ready for cosine scoring.
type EmbeddingRow struct {
	ChunkID string
	Model   string
	Dim     int
	Vec     []float32
}

// SemanticHit is one embedding scored against a query vector.
type SemanticHit struct {
	ChunkID     string
	Path        string
	HeadingPath string
	ChunkIndex  int
	Content     string
	CosineScore float64
}

// Store is the SQLite-backed persistence layer.
type Store struct {
	db     *sql.DB
	path   string
	lock   *flock.Flock
}

const schema = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT UNIQUE NOT NULL,
	mtime_ns INTEGER NOT NULL,
	size_bytes INTEGER NOT NULL,
	sha256 TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id TEXT UNIQUE NOT NULL,
	file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	heading_path TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	token_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_chunks_file_index ON chunks(file_id, chunk_index);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	content,
	heading_path,
	chunk_id UNINDEXED,
	content='chunks',
	content_rowid='id',
	tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
	INSERT INTO chunks_fts(rowid, content, heading_path, chunk_id)
	VALUES (new.id, new.content, new.heading_path, new.chunk_id);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content, heading_path, chunk_id)
	VALUES ('delete', old.id, old.content, old.heading_path, old.chunk_id);
END;

CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content, heading_path, chunk_id)
	VALUES ('delete', old.id, old.content, old.heading_path, old.chunk_id);
	INSERT INTO chunks_fts(rowid, content, heading_path, chunk_id)
	VALUES (new.id, new.content, new.heading_path, new.chunk_id);
END;

CREATE TABLE IF NOT EXISTS embeddings (
	chunk_id TEXT PRIMARY KEY REFERENCES chunks(chunk_id) ON DELETE CASCADE,
	model TEXT NOT NULL,
	dim INTEGER NOT NULL,
	vec BLOB NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS index_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// validateIntegrity runs PRAGMA integrity_check against an existing database
// file before it is opened for writing. Corruption is reported as a Schema
// kind error rather than silently deleted; the operator decides on rebuild.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return errs.Wrap(errs.Schema, "cannot open database for integrity check", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return errs.Wrap(errs.Schema, "integrity check query failed", err)
	}
	if result != "ok" {
		return errs.New(errs.Schema, fmt.Sprintf("database corrupted: %s", result))
	}
	return nil
}

// Open creates or opens the store's SQLite database at path, applying WAL
// pragmas and bootstrapping the schema. An empty path opens an in-memory
// database, useful for tests. A sibling ".lock" file guards the path against
// a second process opening it concurrently for writes, enforcing a
// single-writer discipline.
func Open(path string) (*Store, error) {
	var dsn string
	var lock *flock.Flock

	if path == "" {
		dsn = ":memory:"
	} else {
		if err := validateIntegrity(path); err != nil {
			return nil, err
		}

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(errs.Internal, "failed to create database directory", err)
		}

		lock = flock.New(path + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, errs.Wrap(errs.Internal, "failed to acquire database lock", err)
		}
		if !locked {
			return nil, errs.New(errs.Transient, "database is locked by another process")
		}

		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, errs.Wrap(errs.Internal, "failed to open database", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			if lock != nil {
				_ = lock.Unlock()
			}
			return nil, errs.Wrap(errs.Internal, "failed to set pragma "+p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, errs.Wrap(errs.Schema, "failed to initialize schema", err)
	}

	return &Store{db: db, path: path, lock: lock}, nil
}

// Close checkpoints the WAL into the main database file, closes the
// connection, and releases the advisory lock on all exit paths.
func (s *Store) Close() error {
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		if err := s.db.Close(); err != nil {
			return errs.Wrap(errs.Internal, "failed to close database", err)
		}
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return nil
}

func classifySQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return errs.Wrap(errs.Transient, "database busy", err)
	}
	if strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column") {
		return errs.Wrap(errs.Schema, "schema mismatch", err)
	}
	return errs.Wrap(errs.Internal, "store operation failed", err)
}

// GetFile fetches a tracked file by its relative path.
func (s *Store) GetFile(ctx context.Context, path string) (*File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path, mtime_ns, size_bytes, sha256 FROM files WHERE path = ?`, path)
	var f File
	if err := row.Scan(&f.ID, &f.Path, &f.MtimeNs, &f.SizeBytes, &f.SHA256); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "file not indexed: "+path)
		}
		return nil, classifySQLiteErr(err)
	}
	return &f, nil
}

// GetChunk fetches a single chunk by its chunk_id, joined against its file
// for the path.
func (s *Store) GetChunk(ctx context.Context, chunkID string) (*Chunk, string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.chunk_id, c.file_id, c.chunk_index, c.heading_path, c.content, c.token_count, f.path
		FROM chunks c JOIN files f ON f.id = c.file_id
		WHERE c.chunk_id = ?`, chunkID)
	var c Chunk
	var path string
	if err := row.Scan(&c.ID, &c.ChunkID, &c.FileID, &c.ChunkIndex, &c.HeadingPath, &c.Content, &c.TokenCount, &path); err != nil {
		if err == sql.ErrNoRows {
			return nil, "", errs.New(errs.NotFound, "chunk not found: "+chunkID)
		}
		return nil, "", classifySQLiteErr(err)
	}
	return &c, path, nil
}

// ChunksForPath returns every chunk belonging to path, ordered by chunk_index.
func (s *Store) ChunksForPath(ctx context.Context, path string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.chunk_id, c.file_id, c.chunk_index, c.heading_path, c.content, c.token_count
		FROM chunks c JOIN files f ON f.id = c.file_id
		WHERE f.path = ? ORDER BY c.chunk_index`, path)
	if err != nil {
		return nil, classifySQLiteErr(err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.ChunkID, &c.FileID, &c.ChunkIndex, &c.HeadingPath, &c.Content, &c.TokenCount); err != nil {
			return nil, classifySQLiteErr(err)
		}
		out = append(out, c)
	}
	return out, classifySQLiteErr(rows.Err())
}

// DeleteFile removes a file record, cascading to its chunks, FTS rows, and
// embeddings.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path)
	if err != nil {
		return classifySQLiteErr(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.New(errs.NotFound, "file not indexed: "+path)
	}
	return nil
}

// ReplaceFileChunks performs the per-file rebuild transaction: upsert the
// file row, delete its prior chunks (cascading FTS + embeddings), insert the
// new chunk set, and upsert an embedding for each. vectors must align 1:1
// with chunks by index; a nil entry skips that chunk's embedding (used when
// the embedder is unavailable).
func (s *Store) ReplaceFileChunks(ctx context.Context, f File, chunks []Chunk, vectors [][]float32, model string) (fileID int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classifySQLiteErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO files(path, mtime_ns, size_bytes, sha256) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET mtime_ns = excluded.mtime_ns, size_bytes = excluded.size_bytes, sha256 = excluded.sha256
	`, f.Path, f.MtimeNs, f.SizeBytes, f.SHA256)
	if err != nil {
		return 0, classifySQLiteErr(err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, f.Path).Scan(&id); err != nil {
		return 0, classifySQLiteErr(err)
	}
	_ = res

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, id); err != nil {
		return 0, classifySQLiteErr(err)
	}

	insertChunk, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks(chunk_id, file_id, chunk_index, heading_path, content, token_count)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, classifySQLiteErr(err)
	}
	defer insertChunk.Close()

	upsertEmbed, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings(chunk_id, model, dim, vec, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET model = excluded.model, dim = excluded.dim, vec = excluded.vec, updated_at = excluded.updated_at`)
	if err != nil {
		return 0, classifySQLiteErr(err)
	}
	defer upsertEmbed.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, c := range chunks {
		if _, err := insertChunk.ExecContext(ctx, c.ChunkID, id, c.ChunkIndex, c.HeadingPath, c.Content, c.TokenCount); err != nil {
			return 0, classifySQLiteErr(err)
		}
		if i < len(vectors) && vectors[i] != nil {
			blob := encodeVector(vectors[i])
			if _, err := upsertEmbed.ExecContext(ctx, c.ChunkID, model, len(vectors[i]), blob, now); err != nil {
				return 0, classifySQLiteErr(err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, classifySQLiteErr(err)
	}
	return id, nil
}

// TouchFile updates only (mtime_ns, size_bytes) without touching chunks —
// used on the hash short-circuit path where bytes are unchanged.
func (s *Store) TouchFile(ctx context.Context, path string, mtimeNs, sizeBytes int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET mtime_ns = ?, size_bytes = ? WHERE path = ?`, mtimeNs, sizeBytes, path)
	if err != nil {
		return classifySQLiteErr(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.New(errs.NotFound, "file not indexed: "+path)
	}
	return nil
}

// AllPaths returns every tracked file path, used by the indexer's prune pass.
func (s *Store) AllPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM files`)
	if err != nil {
		return nil, classifySQLiteErr(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, classifySQLiteErr(err)
		}
		out = append(out, p)
	}
	return out, classifySQLiteErr(rows.Err())
}

// Lexical runs an FTS MATCH query ordered by BM25 score (negated so higher
// is better), returning at most limit hits. Empty or unparseable queries
// yield an empty list rather than an error.
func (s *Store) Lexical(ctx context.Context, query string, limit int) ([]LexicalHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []LexicalHit{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, f.path, c.heading_path, c.chunk_index, c.content, bm25(chunks_fts) AS score
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		JOIN files f ON f.id = c.file_id
		WHERE chunks_fts MATCH ?
		ORDER BY score
		LIMIT ?`, query, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return []LexicalHit{}, nil
		}
		return nil, classifySQLiteErr(err)
	}
	defer rows.Close()

	var out []LexicalHit
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.ChunkID, &h.Path, &h.HeadingPath, &h.ChunkIndex, &h.Content, &h.BM25Score); err != nil {
			return nil, classifySQLiteErr(err)
		}
		h.BM25Score = -h.BM25Score
		out = append(out, h)
	}
	return out, classifySQLiteErr(rows.Err())
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Semantic scores every stored embedding against queryVector by cosine
// similarity and returns the top limit hits, descending. A dimension
// mismatch against a stored row yields similarity 0.0 rather than an error,
// per the embedding_model invalidation rule: a stale row from a prior model
// simply never wins the ranking instead of crashing the query.
func (s *Store) Semantic(ctx context.Context, queryVector []float32, limit int) ([]SemanticHit, error) {
	if len(queryVector) == 0 {
		return []SemanticHit{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.chunk_id, f.path, c.heading_path, c.chunk_index, c.content, e.vec
		FROM embeddings e
		JOIN chunks c ON c.chunk_id = e.chunk_id
		JOIN files f ON f.id = c.file_id`)
	if err != nil {
		return nil, classifySQLiteErr(err)
	}
	defer rows.Close()

	var hits []SemanticHit
	for rows.Next() {
		var h SemanticHit
		var blob []byte
		if err := rows.Scan(&h.ChunkID, &h.Path, &h.HeadingPath, &h.ChunkIndex, &h.Content, &blob); err != nil {
			return nil, classifySQLiteErr(err)
		}
		vec := decodeVector(blob)
		h.CosineScore = cosine(queryVector, vec)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLiteErr(err)
	}

	sortSemanticDesc(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func sortSemanticDesc(hits []SemanticHit) {
	for i := 1; i < len(hits); i++ {
		j := i
		for j > 0 && hits[j-1].CosineScore < hits[j].CosineScore {
			hits[j-1], hits[j] = hits[j], hits[j-1]
			j--
		}
	}
}

// SetMetadata upserts a key/value pair in index_metadata.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_metadata(key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, key, value, now)
	return classifySQLiteErr(err)
}

// GetMetadata fetches a single metadata value. Returns NotFound if absent.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", errs.New(errs.NotFound, "metadata key not set: "+key)
	}
	if err != nil {
		return "", classifySQLiteErr(err)
	}
	return value, nil
}

// AllMetadata returns every stored key/value pair, used by index_status.
func (s *Store) AllMetadata(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM index_metadata`)
	if err != nil {
		return nil, classifySQLiteErr(err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, classifySQLiteErr(err)
		}
		out[k] = v
	}
	return out, classifySQLiteErr(rows.Err())
}

// Stats reports coarse index size, used by index_status.
type Stats struct {
	FileCount  int
	ChunkCount int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&st.FileCount); err != nil {
		return st, classifySQLiteErr(err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.ChunkCount); err != nil {
		return st, classifySQLiteErr(err)
	}
	return st, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	n := len(buf) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}
