package store

import (
	"context"
	"testing"

	"github.com/kittclouds/textloom/pkg/buffer"
	"github.com/kittclouds/textloom/pkg/provenance"
	"github.com/kittclouds/textloom/pkg/textutil"
)

func TestMemStoreRoundTrip(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	buf := testBuffer("hello memstore")
	chain := &provenance.Chain{
		ID:           textutil.NewID(),
		RootBufferID: buf.ID,
		Branch:       provenance.Branch{Name: "main", IsMain: true},
	}
	buf.Chain = chain

	if err := s.SaveContentBuffer(ctx, buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveProvenanceChain(ctx, chain); err != nil {
		t.Fatalf("save chain: %v", err)
	}

	got, err := s.LoadContentBuffer(ctx, buf.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.Text != "hello memstore" {
		t.Fatalf("round trip lost buffer: %+v", got)
	}

	// The stored copy must not alias the caller's value
	got.Text = "mutated"
	again, _ := s.LoadContentBuffer(ctx, buf.ID)
	if again.Text != "hello memstore" {
		t.Error("caller mutation leaked into store")
	}

	gotChain, err := s.LoadProvenanceChain(ctx, chain.ID)
	if err != nil {
		t.Fatalf("load chain: %v", err)
	}
	if gotChain == nil || gotChain.RootBufferID != buf.ID {
		t.Errorf("chain lost: %+v", gotChain)
	}
}

func TestMemStoreFindByHashOrder(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	a := testBuffer("same text")
	b := testBuffer("same text")
	if err := s.SaveContentBuffer(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveContentBuffer(ctx, b); err != nil {
		t.Fatal(err)
	}

	found, err := s.FindContentBuffersByHash(ctx, a.ContentHash)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2, got %d", len(found))
	}
	if found[0].ID != a.ID || found[1].ID != b.ID {
		t.Errorf("save order not preserved: %s, %s", found[0].ID, found[1].ID)
	}
}

func TestMemStoreDelete(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	buf := testBuffer("to delete")
	s.SaveContentBuffer(ctx, buf)
	if err := s.DeleteContentBuffer(ctx, buf.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := s.LoadContentBuffer(ctx, buf.ID)
	if got != nil {
		t.Error("buffer still present after delete")
	}
	// Deleting again is a no-op
	if err := s.DeleteContentBuffer(ctx, buf.ID); err != nil {
		t.Errorf("second delete errored: %v", err)
	}
}

func TestMemStoreSimilarity(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	near := testBuffer("near")
	near.Embedding = []float32{1, 0}
	mid := testBuffer("mid")
	mid.Embedding = []float32{0.7, 0.7}
	far := testBuffer("far")
	far.Embedding = []float32{0, 1}
	noVec := testBuffer("no vector")

	for _, buf := range []*buffer.ContentBuffer{near, mid, far, noVec} {
		s.SaveContentBuffer(ctx, buf)
	}

	results, err := s.FindSimilarContentBuffers(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Buffer.ID != near.ID {
		t.Errorf("expected nearest first, got %s", results[0].Buffer.ID)
	}
	if results[0].Similarity < 0.99 {
		t.Errorf("identical direction should score ~1, got %f", results[0].Similarity)
	}
}

func TestMemStoreFindDerived(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	chain := &provenance.Chain{ID: "c1", RootBufferID: "a", Branch: provenance.Branch{Name: "main", IsMain: true}}
	a := testBuffer("a text")
	a.Chain = chain
	b := testBuffer("b text")
	b.Chain = chain
	s.SaveContentBuffer(ctx, a)
	s.SaveContentBuffer(ctx, b)

	derived, err := s.FindDerivedBuffers(ctx, a.ID)
	if err != nil {
		t.Fatalf("find derived: %v", err)
	}
	if len(derived) != 2 || derived[0] != a.ID || derived[1] != b.ID {
		t.Errorf("unexpected derived ids: %v", derived)
	}
}
