package store

import (
	"context"
	"testing"

	"github.com/kittclouds/textloom/pkg/buffer"
	"github.com/kittclouds/textloom/pkg/provenance"
	"github.com/kittclouds/textloom/pkg/textutil"
)

func TestExportImport(t *testing.T) {
	s, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()

	buf := testBuffer("snapshot me")
	chain := &provenance.Chain{
		ID:           textutil.NewID(),
		RootBufferID: buf.ID,
		Branch:       provenance.Branch{Name: "main", IsMain: true},
		Operations: []provenance.Operation{
			{Type: provenance.OpCreateManual, AfterHash: buf.ContentHash, Timestamp: buf.CreatedAt},
		},
		TransformationCount: 1,
	}
	buf.Chain = chain
	buf.Embedding = []float32{0.5, 0.5, 0}

	if err := s.SaveProvenanceChain(ctx, chain); err != nil {
		t.Fatalf("save chain: %v", err)
	}
	if err := s.SaveContentBuffer(ctx, buf); err != nil {
		t.Fatalf("save buffer: %v", err)
	}
	if err := s.SavePersonaProfile(ctx, &buffer.PersonaProfile{ID: "p1", Name: "Narrator"}); err != nil {
		t.Fatalf("save persona: %v", err)
	}

	data, err := s.Export(ctx)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("exported data is empty")
	}

	// A new store simulates a fresh start
	s2, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("failed to create second store: %v", err)
	}
	if err := s2.Import(ctx, data); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	restored, err := s2.LoadContentBuffer(ctx, buf.ID)
	if err != nil {
		t.Fatalf("load restored buffer: %v", err)
	}
	if restored == nil {
		t.Fatal("buffer missing after import")
	}
	if restored.Text != buf.Text || restored.ContentHash != buf.ContentHash {
		t.Errorf("buffer content changed: %+v", restored)
	}
	if restored.Chain == nil || len(restored.Chain.Operations) != 1 {
		t.Errorf("chain not restored: %+v", restored.Chain)
	}
	if len(restored.Embedding) != 3 {
		t.Errorf("embedding not restored: %v", restored.Embedding)
	}

	// Vector index must be rebuilt from imported embeddings
	hits, err := s2.FindSimilarContentBuffers(ctx, []float32{0.5, 0.5, 0}, 5)
	if err != nil {
		t.Fatalf("vector search after import: %v", err)
	}
	if len(hits) != 1 || hits[0].Buffer.ID != buf.ID {
		t.Errorf("expected imported buffer in vector search, got %+v", hits)
	}

	persona, err := s2.GetPersonaProfile(ctx, "p1")
	if err != nil {
		t.Fatalf("load persona: %v", err)
	}
	if persona == nil || persona.Name != "Narrator" {
		t.Errorf("persona not restored: %+v", persona)
	}
}

func TestImportEmptySnapshot(t *testing.T) {
	s, err := NewSQLiteStore()
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Import(context.Background(), nil); err != nil {
		t.Fatalf("empty import errored: %v", err)
	}
}
