// Package buffer implements the content buffer service: immutable,
// content-addressed text snapshots moved through load, rewrite, merge,
// split, analyze, and commit steps, with full provenance for every
// derived buffer.
package buffer

import (
	"github.com/kittclouds/textloom/pkg/provenance"
	"github.com/kittclouds/textloom/pkg/quality"
	"github.com/kittclouds/textloom/pkg/textutil"
)

// State is the buffer lifecycle state. Transitions only move forward:
// transient → staged → committed | archived. Nothing returns a buffer
// to transient.
type State string

const (
	StateTransient State = "transient"
	StateStaged    State = "staged"
	StateCommitted State = "committed"
	StateArchived  State = "archived"
)

// OriginKind tags where a buffer's initial content came from.
type OriginKind string

const (
	OriginArchive   OriginKind = "archive"
	OriginBook      OriginKind = "book"
	OriginManual    OriginKind = "manual"
	OriginGenerated OriginKind = "generated"
)

// ArchiveOrigin records content pulled from an archive node.
type ArchiveOrigin struct {
	SourceNodeID   string `json:"sourceNodeId"`
	SourcePlatform string `json:"sourcePlatform,omitempty"`
	Author         string `json:"author,omitempty"`
}

// BookOrigin records content pulled from a book chapter.
type BookOrigin struct {
	ChapterID string `json:"chapterId"`
	BookID    string `json:"bookId"`
}

// ManualOrigin records directly entered content.
type ManualOrigin struct {
	Author         string `json:"author"`
	SourcePlatform string `json:"sourcePlatform,omitempty"`
}

// GeneratedOrigin records content composed by the service itself
// (merge results, split chunks). Cross-buffer ancestry lives in
// Metadata: mergedFrom id lists, splitFrom/splitIndex/splitTotal.
type GeneratedOrigin struct {
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Origin is a tagged union over the four origin kinds. Exactly the
// field matching Kind is set.
type Origin struct {
	Kind      OriginKind       `json:"kind"`
	Archive   *ArchiveOrigin   `json:"archive,omitempty"`
	Book      *BookOrigin      `json:"book,omitempty"`
	Manual    *ManualOrigin    `json:"manual,omitempty"`
	Generated *GeneratedOrigin `json:"generated,omitempty"`
}

// ContentBuffer is an immutable, content-addressed text snapshot.
// Buffers are never mutated after construction; every transformation
// yields a new value with a new id. ContentHash is always the digest
// of Text.
type ContentBuffer struct {
	ID          string            `json:"id"`
	ContentHash string            `json:"contentHash"`
	Text        string            `json:"text"`
	WordCount   int               `json:"wordCount"`
	Format      textutil.Format   `json:"format"`
	State       State             `json:"state"`
	Origin      Origin            `json:"origin"`
	Chain       *provenance.Chain `json:"provenanceChain,omitempty"`
	Quality     *quality.Metrics  `json:"qualityMetrics,omitempty"`
	Embedding   []float32         `json:"embedding,omitempty"`
	CreatedAt   int64             `json:"createdAt"` // epoch milliseconds
	UpdatedAt   int64             `json:"updatedAt"`
}

// Clone returns a deep copy of the buffer. The copy keeps the same id;
// use Service methods to derive new buffers.
func (b *ContentBuffer) Clone() *ContentBuffer {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Chain = b.Chain.Clone()
	cp.Quality = b.Quality.Clone()
	if b.Embedding != nil {
		cp.Embedding = append([]float32(nil), b.Embedding...)
	}
	cp.Origin = b.Origin.clone()
	return &cp
}

func (o Origin) clone() Origin {
	cp := o
	if o.Archive != nil {
		a := *o.Archive
		cp.Archive = &a
	}
	if o.Book != nil {
		b := *o.Book
		cp.Book = &b
	}
	if o.Manual != nil {
		m := *o.Manual
		cp.Manual = &m
	}
	if o.Generated != nil {
		g := GeneratedOrigin{}
		if o.Generated.Metadata != nil {
			g.Metadata = make(map[string]any, len(o.Generated.Metadata))
			for k, v := range o.Generated.Metadata {
				g.Metadata[k] = v
			}
		}
		cp.Generated = &g
	}
	return cp
}
