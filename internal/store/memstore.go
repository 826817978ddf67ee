// Package store provides persistence adapters for the buffer service:
// an in-memory store for tests and adapter-free hosts, and a
// SQLite-backed store with vector similarity search.
package store

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/kittclouds/textloom/pkg/buffer"
	"github.com/kittclouds/textloom/pkg/provenance"
)

// MemStore keeps buffers, chains, and profiles in Go memory.
// Thread-safe for concurrent service calls.
type MemStore struct {
	mu       sync.RWMutex
	buffers  map[string]*buffer.ContentBuffer
	order    []string // buffer ids in save order
	chains   map[string]*provenance.Chain
	personas map[string]*buffer.PersonaProfile
	styles   map[string]*buffer.StyleProfile
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		buffers:  make(map[string]*buffer.ContentBuffer),
		chains:   make(map[string]*provenance.Chain),
		personas: make(map[string]*buffer.PersonaProfile),
		styles:   make(map[string]*buffer.StyleProfile),
	}
}

// SaveContentBuffer stores a deep copy of the buffer.
func (s *MemStore) SaveContentBuffer(_ context.Context, buf *buffer.ContentBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.buffers[buf.ID]; !exists {
		s.order = append(s.order, buf.ID)
	}
	s.buffers[buf.ID] = buf.Clone()
	return nil
}

// LoadContentBuffer returns a copy of a stored buffer, or nil if absent.
func (s *MemStore) LoadContentBuffer(_ context.Context, id string) (*buffer.ContentBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.buffers[id]
	if !ok {
		return nil, nil
	}
	return buf.Clone(), nil
}

// FindContentBuffersByHash returns every stored buffer with an exact
// digest match, in save order.
func (s *MemStore) FindContentBuffersByHash(_ context.Context, hash string) ([]*buffer.ContentBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*buffer.ContentBuffer
	for _, id := range s.order {
		if buf := s.buffers[id]; buf != nil && buf.ContentHash == hash {
			out = append(out, buf.Clone())
		}
	}
	return out, nil
}

// DeleteContentBuffer removes a stored buffer.
func (s *MemStore) DeleteContentBuffer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buffers[id]; ok {
		delete(s.buffers, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

// SaveProvenanceChain stores a deep copy of the chain.
func (s *MemStore) SaveProvenanceChain(_ context.Context, chain *provenance.Chain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chains[chain.ID] = chain.Clone()
	return nil
}

// LoadProvenanceChain returns a copy of a stored chain, or nil.
func (s *MemStore) LoadProvenanceChain(_ context.Context, id string) (*provenance.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain, ok := s.chains[id]
	if !ok {
		return nil, nil
	}
	return chain.Clone(), nil
}

// FindDerivedBuffers returns the ids of every stored buffer registered
// against the same chain as bufferID, in save order.
func (s *MemStore) FindDerivedBuffers(_ context.Context, bufferID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.buffers[bufferID]
	if !ok || buf.Chain == nil {
		return nil, nil
	}
	chainID := buf.Chain.ID

	var out []string
	for _, id := range s.order {
		other := s.buffers[id]
		if other != nil && other.Chain != nil && other.Chain.ID == chainID {
			out = append(out, id)
		}
	}
	return out, nil
}

// SavePersonaProfile stores a persona for rewrite lookups.
func (s *MemStore) SavePersonaProfile(_ context.Context, p *buffer.PersonaProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.personas[p.ID] = &cp
	return nil
}

// GetPersonaProfile returns a stored persona, or nil.
func (s *MemStore) GetPersonaProfile(_ context.Context, id string) (*buffer.PersonaProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.personas[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// SaveStyleProfile stores a style profile.
func (s *MemStore) SaveStyleProfile(_ context.Context, st *buffer.StyleProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *st
	s.styles[st.ID] = &cp
	return nil
}

// GetStyleProfile returns a stored style profile, or nil.
func (s *MemStore) GetStyleProfile(_ context.Context, id string) (*buffer.StyleProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.styles[id]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

// FindSimilarContentBuffers ranks stored buffers that carry embeddings
// by cosine similarity against the query vector.
func (s *MemStore) FindSimilarContentBuffers(_ context.Context, embedding []float32, limit int) ([]buffer.SimilarBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []buffer.SimilarBuffer
	for _, id := range s.order {
		buf := s.buffers[id]
		if buf == nil || len(buf.Embedding) == 0 || len(buf.Embedding) != len(embedding) {
			continue
		}
		out = append(out, buffer.SimilarBuffer{
			Buffer:     buf.Clone(),
			Similarity: cosineSimilarity(embedding, buf.Embedding),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Compile-time interface checks
var (
	_ buffer.Store              = (*MemStore)(nil)
	_ buffer.ProfileStore       = (*MemStore)(nil)
	_ buffer.SimilaritySearcher = (*MemStore)(nil)
)
