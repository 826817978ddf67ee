package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kittclouds/textloom/pkg/buffer"
	"github.com/kittclouds/textloom/pkg/provenance"
)

// exportData is the portable JSON snapshot shape shared by Export and
// Import.
type exportData struct {
	Buffers  []*buffer.ContentBuffer  `json:"buffers"`
	Chains   []*provenance.Chain      `json:"chains"`
	Personas []*buffer.PersonaProfile `json:"personas,omitempty"`
	Styles   []*buffer.StyleProfile   `json:"styles,omitempty"`
}

// Export serializes every table to JSON bytes. The snapshot is
// portable across database files and store versions; the vector index
// is rebuilt from buffer embeddings on import rather than exported.
func (s *SQLiteStore) Export(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data exportData

	bufRows, err := s.db.QueryContext(ctx, `
		SELECT id, content_hash, text, word_count, format, state,
			origin, chain_id, quality, embedding, created_at, updated_at
		FROM buffers ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("store: export buffers: %w", err)
	}
	defer bufRows.Close()
	for bufRows.Next() {
		buf, err := scanBuffer(bufRows)
		if err != nil {
			return nil, fmt.Errorf("store: export scan buffer: %w", err)
		}
		data.Buffers = append(data.Buffers, buf)
	}
	if err := bufRows.Err(); err != nil {
		return nil, err
	}

	chainRows, err := s.db.QueryContext(ctx, `
		SELECT id, root_buffer_id, branch_name, is_main, branch_description, operations, transformation_count
		FROM chains
	`)
	if err != nil {
		return nil, fmt.Errorf("store: export chains: %w", err)
	}
	defer chainRows.Close()
	for chainRows.Next() {
		var chain provenance.Chain
		var isMain int
		var description sql.NullString
		var opsJSON string
		if err := chainRows.Scan(&chain.ID, &chain.RootBufferID, &chain.Branch.Name,
			&isMain, &description, &opsJSON, &chain.TransformationCount); err != nil {
			return nil, fmt.Errorf("store: export scan chain: %w", err)
		}
		chain.Branch.IsMain = isMain != 0
		chain.Branch.Description = description.String
		if err := json.Unmarshal([]byte(opsJSON), &chain.Operations); err != nil {
			return nil, fmt.Errorf("store: export unmarshal operations: %w", err)
		}
		data.Chains = append(data.Chains, &chain)
	}
	if err := chainRows.Err(); err != nil {
		return nil, err
	}

	if err := s.exportProfiles(ctx, &data); err != nil {
		return nil, err
	}
	return json.Marshal(data)
}

func (s *SQLiteStore) exportProfiles(ctx context.Context, data *exportData) error {
	personaRows, err := s.db.QueryContext(ctx, `SELECT profile FROM personas`)
	if err != nil {
		return fmt.Errorf("store: export personas: %w", err)
	}
	defer personaRows.Close()
	for personaRows.Next() {
		var raw string
		if err := personaRows.Scan(&raw); err != nil {
			return err
		}
		var p buffer.PersonaProfile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return fmt.Errorf("store: export unmarshal persona: %w", err)
		}
		data.Personas = append(data.Personas, &p)
	}
	if err := personaRows.Err(); err != nil {
		return err
	}

	styleRows, err := s.db.QueryContext(ctx, `SELECT profile FROM styles`)
	if err != nil {
		return fmt.Errorf("store: export styles: %w", err)
	}
	defer styleRows.Close()
	for styleRows.Next() {
		var raw string
		if err := styleRows.Scan(&raw); err != nil {
			return err
		}
		var st buffer.StyleProfile
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return fmt.Errorf("store: export unmarshal style: %w", err)
		}
		data.Styles = append(data.Styles, &st)
	}
	return styleRows.Err()
}

// Import restores store state from an exported JSON snapshot. Existing
// data is cleared first; an empty snapshot is a no-op.
func (s *SQLiteStore) Import(ctx context.Context, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}

	var data exportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("store: import unmarshal: %w", err)
	}

	s.mu.Lock()
	tables := []string{"buffers", "chains", "personas", "styles"}
	if s.vecDims > 0 {
		tables = append(tables, "buffer_vectors")
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("store: import clear %s: %w", table, err)
		}
	}
	s.mu.Unlock()

	// Re-insert through the normal save paths so JSON encoding and the
	// vector index stay consistent with live writes.
	for _, chain := range data.Chains {
		if err := s.SaveProvenanceChain(ctx, chain); err != nil {
			return fmt.Errorf("store: import chain %s: %w", chain.ID, err)
		}
	}
	for _, buf := range data.Buffers {
		if err := s.SaveContentBuffer(ctx, buf); err != nil {
			return fmt.Errorf("store: import buffer %s: %w", buf.ID, err)
		}
	}
	for _, p := range data.Personas {
		if err := s.SavePersonaProfile(ctx, p); err != nil {
			return fmt.Errorf("store: import persona %s: %w", p.ID, err)
		}
	}
	for _, st := range data.Styles {
		if err := s.SaveStyleProfile(ctx, st); err != nil {
			return fmt.Errorf("store: import style %s: %w", st.ID, err)
		}
	}
	return nil
}
