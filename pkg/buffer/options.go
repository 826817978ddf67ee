package buffer

import "github.com/kittclouds/textloom/pkg/provenance"

// LoadOptions controls loadFromArchive / loadFromBook.
type LoadOptions struct {
	// Embed chains an embed() call onto the freshly loaded buffer.
	Embed bool
	// AnalyzeQuality chains an analyzeQuality() call onto the buffer.
	AnalyzeQuality bool
	Actor          provenance.Actor
}

// CreateOptions controls createFromText.
type CreateOptions struct {
	Author         string // defaults to "unknown"
	SourcePlatform string
}

// TransformRequest drives the generic transform extension point.
type TransformRequest struct {
	Type        string // recorded operation type; defaults to transform_custom
	Description string
	Parameters  map[string]any
	Actor       provenance.Actor
}

// MergeOptions controls merge.
type MergeOptions struct {
	JoinWith string // separator, defaults to "\n\n"
	Actor    provenance.Actor
}

// SplitStrategy selects how split divides a buffer.
type SplitStrategy string

const (
	SplitSentences   SplitStrategy = "sentences"
	SplitParagraphs  SplitStrategy = "paragraphs"
	SplitFixedLength SplitStrategy = "fixed_length"
	// SplitSemantic falls back to paragraph splitting; true
	// embedding-based boundary detection is not implemented.
	SplitSemantic SplitStrategy = "semantic"
)

// SplitOptions controls split.
type SplitOptions struct {
	Strategy     SplitStrategy
	MaxChunkSize int // fixed_length window size in words, defaults to 500
	Overlap      int // words re-included from the prior window
	Actor        provenance.Actor
}

// CommitOptions controls commitToBook.
type CommitOptions struct {
	Position int // insertion position within the chapter, -1 appends
	Actor    provenance.Actor
}

// ExportOptions controls exportToArchive.
type ExportOptions struct {
	Platform string
	Actor    provenance.Actor
}

func systemActor(a provenance.Actor) provenance.Actor {
	if a.Kind == "" {
		return provenance.Actor{Kind: provenance.ActorSystem, ID: "buffer-service"}
	}
	return a
}
