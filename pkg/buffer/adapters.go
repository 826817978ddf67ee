package buffer

import (
	"context"

	"github.com/kittclouds/textloom/pkg/provenance"
)

// Adapter contracts consumed by the service. Implementations live
// elsewhere (internal/store, pkg/rewrite, host applications) and are
// injected once at construction; the service treats them as opaque,
// thread-safe collaborators.
//
// Lookup methods return (nil, nil) when the record is absent; the
// service maps that to ErrNotFound. Errors mean the adapter itself
// failed.

// ArchiveNode is a node in the external archive store.
type ArchiveNode struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Platform string         `json:"platform,omitempty"`
	Author   string         `json:"author,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chapter is a chapter in the external book store.
type Chapter struct {
	ID      string `json:"id"`
	BookID  string `json:"bookId"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// ArchiveStore is the archive adapter contract.
type ArchiveStore interface {
	GetNode(ctx context.Context, id string) (*ArchiveNode, error)
	CreateNode(ctx context.Context, node *ArchiveNode) (*ArchiveNode, error)
	UpdateNode(ctx context.Context, id string, patch map[string]any) (*ArchiveNode, error)
}

// BooksStore is the book store adapter contract.
type BooksStore interface {
	GetChapter(ctx context.Context, id string) (*Chapter, error)
	UpdateChapter(ctx context.Context, id, content string) (*Chapter, error)
	AddToChapter(ctx context.Context, bookID, chapterID, content string, position int) (*Chapter, error)
}

// Store is the persistence adapter contract: buffers and chains are
// saved together so provenance survives a round trip.
type Store interface {
	SaveContentBuffer(ctx context.Context, buf *ContentBuffer) error
	LoadContentBuffer(ctx context.Context, id string) (*ContentBuffer, error)
	FindContentBuffersByHash(ctx context.Context, hash string) ([]*ContentBuffer, error)
	DeleteContentBuffer(ctx context.Context, id string) error
	SaveProvenanceChain(ctx context.Context, chain *provenance.Chain) error
	LoadProvenanceChain(ctx context.Context, id string) (*provenance.Chain, error)
	FindDerivedBuffers(ctx context.Context, bufferID string) ([]string, error)
}

// PersonaProfile describes a rewrite persona.
type PersonaProfile struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Tone         string   `json:"tone,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Traits       []string `json:"traits,omitempty"`
}

// StyleProfile refines a persona with style guidance.
type StyleProfile struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Guidelines string   `json:"guidelines,omitempty"`
	Samples    []string `json:"samples,omitempty"`
}

// ProfileStore is an optional Store capability for persona/style lookup.
type ProfileStore interface {
	GetPersonaProfile(ctx context.Context, id string) (*PersonaProfile, error)
	GetStyleProfile(ctx context.Context, id string) (*StyleProfile, error)
}

// SimilarBuffer is one nearest-neighbor search result.
type SimilarBuffer struct {
	Buffer     *ContentBuffer `json:"buffer"`
	Similarity float64        `json:"similarity"`
}

// SimilaritySearcher is an optional Store capability for vector search.
type SimilaritySearcher interface {
	FindSimilarContentBuffers(ctx context.Context, embedding []float32, limit int) ([]SimilarBuffer, error)
}

// EmbedFn turns text into an embedding vector.
type EmbedFn func(ctx context.Context, text string) ([]float32, error)

// RewriteRequest is the input to the external rewrite engine.
type RewriteRequest struct {
	Text       string          `json:"text"`
	Persona    *PersonaProfile `json:"persona"`
	Style      *StyleProfile   `json:"style,omitempty"`
	SourceType string          `json:"sourceType,omitempty"`
}

// RewriteResult is the rewrite engine's output.
type RewriteResult struct {
	Rewritten       string   `json:"rewritten"`
	ChangesApplied  []string `json:"changesApplied"`
	ConfidenceScore float64  `json:"confidenceScore"`
}

// RewriteEngine is the persona rewrite adapter contract. Implementations
// own their retry policy; RewriteWithRetry returns only after retries
// are exhausted or the call succeeded.
type RewriteEngine interface {
	RewriteWithRetry(ctx context.Context, req RewriteRequest) (*RewriteResult, error)
}
