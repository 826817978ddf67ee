package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/kittclouds/textloom/pkg/buffer"
	"github.com/kittclouds/textloom/pkg/provenance"
	"github.com/kittclouds/textloom/pkg/textutil"
)

// SQLiteStore is the SQLite-backed persistence adapter. Origin, quality
// metrics, and chain operations are stored as JSON columns; embeddings
// additionally go into a vec0 virtual table for nearest-neighbor search.
// Thread-safe.
type SQLiteStore struct {
	mu      sync.RWMutex
	db      *sql.DB
	vecDims int // 0 until the first embedding fixes the dimension
}

const schema = `
CREATE TABLE IF NOT EXISTS buffers (
    id TEXT PRIMARY KEY,
    content_hash TEXT NOT NULL,
    text TEXT NOT NULL,
    word_count INTEGER NOT NULL,
    format TEXT NOT NULL,
    state TEXT NOT NULL,
    origin TEXT NOT NULL,
    chain_id TEXT,
    quality TEXT,
    embedding TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_buffers_hash ON buffers(content_hash);
CREATE INDEX IF NOT EXISTS idx_buffers_chain ON buffers(chain_id);

CREATE TABLE IF NOT EXISTS chains (
    id TEXT PRIMARY KEY,
    root_buffer_id TEXT NOT NULL,
    branch_name TEXT NOT NULL,
    is_main INTEGER NOT NULL DEFAULT 1,
    branch_description TEXT,
    operations TEXT NOT NULL,
    transformation_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_chains_root ON chains(root_buffer_id);

CREATE TABLE IF NOT EXISTS personas (
    id TEXT PRIMARY KEY,
    profile TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS styles (
    id TEXT PRIMARY KEY,
    profile TEXT NOT NULL
);
`

// NewSQLiteStore creates an in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store against a specific data source.
/// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to create schema: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.recoverVectorDims(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// recoverVectorDims rediscovers an existing vec0 table after a reopen,
// so search and vector cleanup keep working on a database file written
// by a previous process. The fixed dimension comes from the stored DDL.
func (s *SQLiteStore) recoverVectorDims() error {
	var ddl string
	err := s.db.QueryRow(`
		SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'buffer_vectors'
	`).Scan(&ddl)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: inspect vector table: %w", err)
	}
	dims, err := parseVectorDims(ddl)
	if err != nil {
		return err
	}
	s.vecDims = dims
	return nil
}

// parseVectorDims extracts N from the FLOAT[N] column in a vec0 DDL.
func parseVectorDims(ddl string) (int, error) {
	idx := strings.Index(strings.ToUpper(ddl), "FLOAT[")
	if idx < 0 {
		return 0, fmt.Errorf("store: vector table DDL has no dimension: %s", ddl)
	}
	rest := ddl[idx+len("FLOAT["):]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return 0, fmt.Errorf("store: vector table DDL has no dimension: %s", ddl)
	}
	dims, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil || dims <= 0 {
		return 0, fmt.Errorf("store: bad vector dimension %q in table DDL", rest[:end])
	}
	return dims, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveContentBuffer upserts a buffer row and, when the buffer carries an
// embedding, mirrors the vector into the vec0 table.
func (s *SQLiteStore) SaveContentBuffer(ctx context.Context, buf *buffer.ContentBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	originJSON, err := json.Marshal(buf.Origin)
	if err != nil {
		return fmt.Errorf("store: marshal origin: %w", err)
	}
	var qualityJSON any
	if buf.Quality != nil {
		raw, err := json.Marshal(buf.Quality)
		if err != nil {
			return fmt.Errorf("store: marshal quality: %w", err)
		}
		qualityJSON = string(raw)
	}
	var embeddingJSON any
	if len(buf.Embedding) > 0 {
		raw, err := json.Marshal(buf.Embedding)
		if err != nil {
			return fmt.Errorf("store: marshal embedding: %w", err)
		}
		embeddingJSON = string(raw)
	}
	var chainID any
	if buf.Chain != nil {
		chainID = buf.Chain.ID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO buffers (id, content_hash, text, word_count, format, state,
			origin, chain_id, quality, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_hash = excluded.content_hash,
			text = excluded.text,
			word_count = excluded.word_count,
			format = excluded.format,
			state = excluded.state,
			origin = excluded.origin,
			chain_id = excluded.chain_id,
			quality = excluded.quality,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`, buf.ID, buf.ContentHash, buf.Text, buf.WordCount, string(buf.Format), string(buf.State),
		string(originJSON), chainID, qualityJSON, embeddingJSON, buf.CreatedAt, buf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: save buffer %s: %w", buf.ID, err)
	}

	if len(buf.Embedding) > 0 {
		if err := s.saveVectorLocked(ctx, buf.ID, buf.Embedding); err != nil {
			return err
		}
	}
	return nil
}

// saveVectorLocked creates the vec0 table on first use, fixing the
// vector dimension to the first embedding seen.
func (s *SQLiteStore) saveVectorLocked(ctx context.Context, id string, embedding []float32) error {
	if s.vecDims == 0 {
		ddl := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS buffer_vectors USING vec0(
			buffer_id TEXT PRIMARY KEY,
			embedding FLOAT[%d] distance_metric=cosine
		)`, len(embedding))
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("store: create vector table: %w", err)
		}
		s.vecDims = len(embedding)
	}
	if len(embedding) != s.vecDims {
		return fmt.Errorf("store: embedding has %d dims, index expects %d", len(embedding), s.vecDims)
	}

	vec, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("store: marshal vector: %w", err)
	}
	// vec0 has no upsert; delete-then-insert keeps the row fresh.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM buffer_vectors WHERE buffer_id = ?`, id); err != nil {
		return fmt.Errorf("store: clear vector %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO buffer_vectors (buffer_id, embedding) VALUES (?, ?)`, id, string(vec)); err != nil {
		return fmt.Errorf("store: save vector %s: %w", id, err)
	}
	return nil
}

// LoadContentBuffer returns a stored buffer with its chain re-attached,
// or nil if absent.
func (s *SQLiteStore) LoadContentBuffer(ctx context.Context, id string) (*buffer.ContentBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadBufferLocked(ctx, id)
}

func (s *SQLiteStore) loadBufferLocked(ctx context.Context, id string) (*buffer.ContentBuffer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content_hash, text, word_count, format, state,
			origin, chain_id, quality, embedding, created_at, updated_at
		FROM buffers WHERE id = ?
	`, id)
	buf, err := scanBuffer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load buffer %s: %w", id, err)
	}
	if err := s.attachChainLocked(ctx, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuffer(row rowScanner) (*buffer.ContentBuffer, error) {
	var buf buffer.ContentBuffer
	var format, state, originJSON string
	var chainID, qualityJSON, embeddingJSON sql.NullString

	err := row.Scan(&buf.ID, &buf.ContentHash, &buf.Text, &buf.WordCount, &format, &state,
		&originJSON, &chainID, &qualityJSON, &embeddingJSON, &buf.CreatedAt, &buf.UpdatedAt)
	if err != nil {
		return nil, err
	}

	buf.Format = textutil.Format(format)
	buf.State = buffer.State(state)
	if err := json.Unmarshal([]byte(originJSON), &buf.Origin); err != nil {
		return nil, fmt.Errorf("unmarshal origin: %w", err)
	}
	if qualityJSON.Valid {
		if err := json.Unmarshal([]byte(qualityJSON.String), &buf.Quality); err != nil {
			return nil, fmt.Errorf("unmarshal quality: %w", err)
		}
	}
	if embeddingJSON.Valid {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &buf.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
	}
	if chainID.Valid {
		// Chain body attached by the caller.
		buf.Chain = &provenance.Chain{ID: chainID.String}
	}
	return &buf, nil
}

func (s *SQLiteStore) attachChainLocked(ctx context.Context, buf *buffer.ContentBuffer) error {
	if buf.Chain == nil || buf.Chain.ID == "" {
		return nil
	}
	chain, err := s.loadChainLocked(ctx, buf.Chain.ID)
	if err != nil {
		return err
	}
	buf.Chain = chain
	return nil
}

// FindContentBuffersByHash returns every stored buffer sharing an exact
// digest, oldest first.
func (s *SQLiteStore) FindContentBuffersByHash(ctx context.Context, hash string) ([]*buffer.ContentBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content_hash, text, word_count, format, state,
			origin, chain_id, quality, embedding, created_at, updated_at
		FROM buffers WHERE content_hash = ?
		ORDER BY created_at, id
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("store: find by hash: %w", err)
	}
	defer rows.Close()

	var out []*buffer.ContentBuffer
	for rows.Next() {
		buf, err := scanBuffer(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan buffer: %w", err)
		}
		if err := s.attachChainLocked(ctx, buf); err != nil {
			return nil, err
		}
		out = append(out, buf)
	}
	return out, rows.Err()
}

// DeleteContentBuffer removes a buffer row and its vector, if any.
func (s *SQLiteStore) DeleteContentBuffer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vecDims > 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM buffer_vectors WHERE buffer_id = ?`, id); err != nil {
			return fmt.Errorf("store: delete vector %s: %w", id, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM buffers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete buffer %s: %w", id, err)
	}
	return nil
}

// SaveProvenanceChain upserts a chain row.
func (s *SQLiteStore) SaveProvenanceChain(ctx context.Context, chain *provenance.Chain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops, err := json.Marshal(chain.Operations)
	if err != nil {
		return fmt.Errorf("store: marshal operations: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chains (id, root_buffer_id, branch_name, is_main, branch_description, operations, transformation_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			root_buffer_id = excluded.root_buffer_id,
			branch_name = excluded.branch_name,
			is_main = excluded.is_main,
			branch_description = excluded.branch_description,
			operations = excluded.operations,
			transformation_count = excluded.transformation_count
	`, chain.ID, chain.RootBufferID, chain.Branch.Name, boolToInt(chain.Branch.IsMain),
		chain.Branch.Description, string(ops), chain.TransformationCount)
	if err != nil {
		return fmt.Errorf("store: save chain %s: %w", chain.ID, err)
	}
	return nil
}

// LoadProvenanceChain returns a stored chain, or nil if absent.
func (s *SQLiteStore) LoadProvenanceChain(ctx context.Context, id string) (*provenance.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadChainLocked(ctx, id)
}

func (s *SQLiteStore) loadChainLocked(ctx context.Context, id string) (*provenance.Chain, error) {
	var chain provenance.Chain
	var isMain int
	var description sql.NullString
	var opsJSON string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, root_buffer_id, branch_name, is_main, branch_description, operations, transformation_count
		FROM chains WHERE id = ?
	`, id).Scan(&chain.ID, &chain.RootBufferID, &chain.Branch.Name, &isMain,
		&description, &opsJSON, &chain.TransformationCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load chain %s: %w", id, err)
	}

	chain.Branch.IsMain = isMain != 0
	if description.Valid {
		chain.Branch.Description = description.String
	}
	if err := json.Unmarshal([]byte(opsJSON), &chain.Operations); err != nil {
		return nil, fmt.Errorf("store: unmarshal operations: %w", err)
	}
	return &chain, nil
}

// FindDerivedBuffers returns the ids of every stored buffer on the same
// chain as bufferID, oldest first.
func (s *SQLiteStore) FindDerivedBuffers(ctx context.Context, bufferID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id FROM buffers b
		WHERE b.chain_id = (SELECT chain_id FROM buffers WHERE id = ?)
		  AND b.chain_id IS NOT NULL
		ORDER BY b.created_at, b.id
	`, bufferID)
	if err != nil {
		return nil, fmt.Errorf("store: find derived: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SavePersonaProfile upserts a persona profile.
func (s *SQLiteStore) SavePersonaProfile(ctx context.Context, p *buffer.PersonaProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("store: marshal persona: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO personas (id, profile) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET profile = excluded.profile
	`, p.ID, string(raw))
	if err != nil {
		return fmt.Errorf("store: save persona %s: %w", p.ID, err)
	}
	return nil
}

// GetPersonaProfile returns a stored persona, or nil if absent.
func (s *SQLiteStore) GetPersonaProfile(ctx context.Context, id string) (*buffer.PersonaProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT profile FROM personas WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load persona %s: %w", id, err)
	}
	var p buffer.PersonaProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("store: unmarshal persona: %w", err)
	}
	return &p, nil
}

// SaveStyleProfile upserts a style profile.
func (s *SQLiteStore) SaveStyleProfile(ctx context.Context, st *buffer.StyleProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("store: marshal style: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO styles (id, profile) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET profile = excluded.profile
	`, st.ID, string(raw))
	if err != nil {
		return fmt.Errorf("store: save style %s: %w", st.ID, err)
	}
	return nil
}

// GetStyleProfile returns a stored style profile, or nil if absent.
func (s *SQLiteStore) GetStyleProfile(ctx context.Context, id string) (*buffer.StyleProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT profile FROM styles WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load style %s: %w", id, err)
	}
	var st buffer.StyleProfile
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("store: unmarshal style: %w", err)
	}
	return &st, nil
}

// FindSimilarContentBuffers runs a vec0 KNN query and maps cosine
// distance into similarity. Returns nothing before the first embedding
// has been indexed.
func (s *SQLiteStore) FindSimilarContentBuffers(ctx context.Context, embedding []float32, limit int) ([]buffer.SimilarBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vecDims == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	vec, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("store: marshal query vector: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT buffer_id, distance FROM buffer_vectors
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, string(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("store: vector search: %w", err)
	}
	defer rows.Close()

	type hit struct {
		id       string
		distance float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.id, &h.distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]buffer.SimilarBuffer, 0, len(hits))
	for _, h := range hits {
		buf, err := s.loadBufferLocked(ctx, h.id)
		if err != nil {
			return nil, err
		}
		if buf == nil {
			continue
		}
		out = append(out, buffer.SimilarBuffer{Buffer: buf, Similarity: 1 - h.distance})
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time interface checks
var (
	_ buffer.Store              = (*SQLiteStore)(nil)
	_ buffer.ProfileStore       = (*SQLiteStore)(nil)
	_ buffer.SimilaritySearcher = (*SQLiteStore)(nil)
)
