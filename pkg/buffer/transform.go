package buffer

import (
	"context"
	"fmt"
	"time"

	"github.com/kittclouds/textloom/pkg/provenance"
)

// Transform is the generic extension point: it derives a new buffer
// and records an operation of the requested type without changing the
// text. Concrete domain transforms below produce real hash changes.
func (s *Service) Transform(ctx context.Context, buf *ContentBuffer, req TransformRequest) (*ContentBuffer, error) {
	opType := provenance.OpTransformCustom
	if req.Type != "" {
		opType = provenance.OperationType(req.Type)
	}
	out := s.derive(buf)
	op := s.operation(opType, req.Actor,
		buf.ContentHash, out.ContentHash, req.Description, req.Parameters)
	s.record(buf, out, op)
	return out, nil
}

// RewriteForPersona rewrites the buffer's text in the voice of a stored
// persona, optionally refined by a style profile, through the external
// rewrite engine. Nothing is recorded if the rewrite fails.
func (s *Service) RewriteForPersona(ctx context.Context, buf *ContentBuffer, personaID, styleID string) (*ContentBuffer, error) {
	if s.store == nil {
		return nil, fmt.Errorf("buffer: persistence %w", ErrMisconfigured)
	}
	profiles, ok := s.store.(ProfileStore)
	if !ok {
		return nil, fmt.Errorf("buffer: persistence adapter has no profile support: %w", ErrMisconfigured)
	}
	if s.rewriter == nil {
		return nil, fmt.Errorf("buffer: rewrite engine %w", ErrMisconfigured)
	}

	persona, err := profiles.GetPersonaProfile(ctx, personaID)
	if err != nil {
		return nil, fmt.Errorf("buffer: load persona %s: %w", personaID, err)
	}
	if persona == nil {
		return nil, fmt.Errorf("buffer: persona %s: %w", personaID, ErrNotFound)
	}
	var style *StyleProfile
	if styleID != "" {
		style, err = profiles.GetStyleProfile(ctx, styleID)
		if err != nil {
			return nil, fmt.Errorf("buffer: load style %s: %w", styleID, err)
		}
		if style == nil {
			return nil, fmt.Errorf("buffer: style %s: %w", styleID, ErrNotFound)
		}
	}

	start := time.Now()
	result, err := s.rewriter.RewriteWithRetry(ctx, RewriteRequest{
		Text:       buf.Text,
		Persona:    persona,
		Style:      style,
		SourceType: string(buf.Format),
	})
	if err != nil {
		return nil, fmt.Errorf("buffer: persona rewrite: %w: %w", ErrExternalService, err)
	}
	duration := time.Since(start)

	out := s.derive(buf)
	setText(out, result.Rewritten)

	params := map[string]any{
		"personaId":       personaID,
		"changesApplied":  result.ChangesApplied,
		"confidenceScore": result.ConfidenceScore,
		"durationMs":      duration.Milliseconds(),
	}
	if styleID != "" {
		params["styleId"] = styleID
	}
	op := s.operation(provenance.OpRewritePersona,
		provenance.Actor{Kind: provenance.ActorAgent, ID: "rewrite-engine"},
		buf.ContentHash, out.ContentHash,
		fmt.Sprintf("rewritten as persona %s", persona.Name), params)
	s.record(buf, out, op)

	s.log.Debug("persona rewrite complete",
		"buffer_id", out.ID, "persona", personaID, "duration_ms", duration.Milliseconds())
	return out, nil
}

// AnalyzeQuality attaches heuristic readability and voice metrics to a
// derived buffer.
func (s *Service) AnalyzeQuality(ctx context.Context, buf *ContentBuffer) (*ContentBuffer, error) {
	metrics := s.analyzer.Analyze(buf.Text)
	out := s.derive(buf)
	if out.Quality != nil {
		// Preserve a previously attached detection result.
		metrics.AIDetection = out.Quality.AIDetection
	}
	out.Quality = &metrics

	op := s.operation(provenance.OpAnalyzeQuality,
		provenance.Actor{Kind: provenance.ActorSystem, ID: "quality-analyzer"},
		buf.ContentHash, out.ContentHash, "quality metrics computed",
		map[string]any{
			"gradeLevel":    metrics.Readability.GradeLevel,
			"sentenceCount": metrics.Readability.SentenceCount,
		})
	s.record(buf, out, op)
	return out, nil
}

// DetectAI attaches or extends qualityMetrics.aiDetection. The contract
// is independent of whether the detector is a heuristic or a model.
func (s *Service) DetectAI(ctx context.Context, buf *ContentBuffer) (*ContentBuffer, error) {
	detection := s.detector.Detect(buf.Text)
	out := s.derive(buf)
	if out.Quality == nil {
		metrics := s.analyzer.Analyze(buf.Text)
		out.Quality = &metrics
	}
	out.Quality.AIDetection = &detection

	op := s.operation(provenance.OpDetectAI,
		provenance.Actor{Kind: provenance.ActorSystem, ID: "ai-detector"},
		buf.ContentHash, out.ContentHash, "AI generation likelihood estimated",
		map[string]any{
			"probability": detection.Probability,
			"tellCount":   len(detection.Tells),
		})
	s.record(buf, out, op)
	return out, nil
}

// Embed attaches an embedding vector computed by the configured
// embedding function. No operation is recorded on failure.
func (s *Service) Embed(ctx context.Context, buf *ContentBuffer) (*ContentBuffer, error) {
	if s.embed == nil {
		return nil, fmt.Errorf("buffer: embedding function not configured: %w", ErrMisconfigured)
	}
	start := time.Now()
	vector, err := s.embed(ctx, buf.Text)
	if err != nil {
		return nil, fmt.Errorf("buffer: embed: %w: %w", ErrExternalService, err)
	}
	duration := time.Since(start)

	out := s.derive(buf)
	out.Embedding = vector

	op := s.operation(provenance.OpEmbed,
		provenance.Actor{Kind: provenance.ActorSystem, ID: "embedder"},
		buf.ContentHash, out.ContentHash, "embedding attached",
		map[string]any{
			"dimensions": len(vector),
			"durationMs": duration.Milliseconds(),
		})
	s.record(buf, out, op)
	return out, nil
}

// FindSimilar performs nearest-neighbor search against the persistence
// adapter. The buffer must already carry an embedding.
func (s *Service) FindSimilar(ctx context.Context, buf *ContentBuffer, limit int, minSimilarity float64) ([]SimilarBuffer, error) {
	if len(buf.Embedding) == 0 {
		return nil, fmt.Errorf("buffer: %w: buffer has no embedding, call Embed first", ErrPreconditionFailed)
	}
	if s.store == nil {
		return nil, fmt.Errorf("buffer: persistence %w", ErrMisconfigured)
	}
	searcher, ok := s.store.(SimilaritySearcher)
	if !ok {
		return nil, fmt.Errorf("buffer: persistence adapter has no similarity search: %w", ErrMisconfigured)
	}
	results, err := searcher.FindSimilarContentBuffers(ctx, buf.Embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("buffer: similarity search: %w", err)
	}
	if minSimilarity <= 0 {
		return results, nil
	}
	filtered := results[:0]
	for _, r := range results {
		if r.Similarity >= minSimilarity {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// Branch forks the buffer's lineage onto a named branch chain. The
// returned buffer has a new id, identical text and hash, and points at
// the new chain; the original buffer and its chain are untouched.
func (s *Service) Branch(ctx context.Context, buf *ContentBuffer, name, description string) (*ContentBuffer, error) {
	chain, ok := s.tracker.GetChainForBuffer(buf.ID)
	if !ok {
		return nil, fmt.Errorf("buffer: %w: buffer %s has no provenance chain", ErrPreconditionFailed, buf.ID)
	}

	branched, err := s.tracker.CreateBranch(chain.ID, name, description)
	if err != nil {
		return nil, fmt.Errorf("buffer: create branch: %w", err)
	}

	out := s.derive(buf)

	op := s.operation(provenance.OpBranch,
		provenance.Actor{Kind: provenance.ActorSystem, ID: "buffer-service"},
		buf.ContentHash, out.ContentHash,
		fmt.Sprintf("branched to %s", name),
		map[string]any{"name": name, "sourceChainId": chain.ID})
	if err := s.tracker.RecordOperation(branched.ID, op, out.ID); err != nil {
		return nil, fmt.Errorf("buffer: record branch: %w", err)
	}
	out.Chain, _ = s.tracker.GetChain(branched.ID)
	return out, nil
}

// CommitToBook appends the buffer's text to a chapter and moves the
// derived buffer to the committed state.
func (s *Service) CommitToBook(ctx context.Context, buf *ContentBuffer, bookID, chapterID string, opts CommitOptions) (*ContentBuffer, error) {
	if s.books == nil {
		return nil, fmt.Errorf("buffer: book store %w", ErrMisconfigured)
	}
	if _, err := s.books.AddToChapter(ctx, bookID, chapterID, buf.Text, opts.Position); err != nil {
		return nil, fmt.Errorf("buffer: addToChapter %s/%s: %w", bookID, chapterID, err)
	}

	out := s.derive(buf)
	out.State = StateCommitted

	op := s.operation(provenance.OpCommitToBook, opts.Actor,
		buf.ContentHash, out.ContentHash, "committed to book",
		map[string]any{"bookId": bookID, "chapterId": chapterID, "position": opts.Position})
	s.record(buf, out, op)

	s.log.Info("buffer committed to book", "buffer_id", out.ID, "book_id", bookID, "chapter_id", chapterID)
	return out, nil
}

// ExportToArchive writes the buffer into the archive store as a new
// node carrying origin and chain id in its metadata, and moves the
// derived buffer to the archived state.
func (s *Service) ExportToArchive(ctx context.Context, buf *ContentBuffer, opts ExportOptions) (*ContentBuffer, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("buffer: archive store %w", ErrMisconfigured)
	}

	meta := map[string]any{"originKind": string(buf.Origin.Kind)}
	if buf.Chain != nil {
		meta["provenanceChainId"] = buf.Chain.ID
	}
	node, err := s.archive.CreateNode(ctx, &ArchiveNode{
		Content:  buf.Text,
		Platform: opts.Platform,
		Metadata: meta,
	})
	if err != nil {
		return nil, fmt.Errorf("buffer: archive createNode: %w", err)
	}

	out := s.derive(buf)
	out.State = StateArchived

	params := map[string]any{}
	if node != nil {
		params["nodeId"] = node.ID
	}
	op := s.operation(provenance.OpExportToArchive, opts.Actor,
		buf.ContentHash, out.ContentHash, "exported to archive", params)
	s.record(buf, out, op)

	s.log.Info("buffer exported to archive", "buffer_id", out.ID)
	return out, nil
}
