package buffer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kittclouds/textloom/pkg/provenance"
	"github.com/kittclouds/textloom/pkg/quality"
	"github.com/kittclouds/textloom/pkg/textutil"
)

// Options carries the adapters injected into a Service. Only the
// adapters a host actually uses need to be set; calls that require a
// missing adapter fail with ErrMisconfigured.
type Options struct {
	Archive  ArchiveStore
	Books    BooksStore
	Store    Store
	Embed    EmbedFn
	Rewriter RewriteEngine
	Logger   *slog.Logger
}

// Service is the public buffer API. All methods derive new buffers;
// none mutates its input. Safe for concurrent use.
type Service struct {
	tracker  *provenance.Tracker
	archive  ArchiveStore
	books    BooksStore
	store    Store
	embed    EmbedFn
	rewriter RewriteEngine
	analyzer *quality.Analyzer
	detector *quality.Detector
	log      *slog.Logger
	now      func() int64
}

// NewService creates a buffer service with its own provenance tracker.
func NewService(opts Options) (*Service, error) {
	detector, err := quality.NewDetector()
	if err != nil {
		return nil, fmt.Errorf("buffer: failed to build AI detector: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tracker:  provenance.NewTracker(),
		archive:  opts.Archive,
		books:    opts.Books,
		store:    opts.Store,
		embed:    opts.Embed,
		rewriter: opts.Rewriter,
		analyzer: quality.NewAnalyzer(),
		detector: detector,
		log:      logger,
		now:      func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Tracker exposes the service's provenance tracker for read-side hosts.
func (s *Service) Tracker() *provenance.Tracker {
	return s.tracker
}

// newBuffer builds a fresh transient buffer around text.
func (s *Service) newBuffer(text string, origin Origin) *ContentBuffer {
	now := s.now()
	return &ContentBuffer{
		ID:          textutil.NewID(),
		ContentHash: textutil.Hash(text),
		Text:        text,
		WordCount:   textutil.WordCount(text),
		Format:      textutil.DetectFormat(text),
		State:       StateTransient,
		Origin:      origin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// derive copies a buffer under a new id with a fresh updatedAt. State,
// origin, metrics, and embedding carry forward; callers overwrite what
// their operation changes.
func (s *Service) derive(buf *ContentBuffer) *ContentBuffer {
	out := buf.Clone()
	out.ID = textutil.NewID()
	out.UpdatedAt = s.now()
	return out
}

// setText recomputes the content-addressed fields after a text change.
func setText(buf *ContentBuffer, text string) {
	buf.Text = text
	buf.ContentHash = textutil.Hash(text)
	buf.WordCount = textutil.WordCount(text)
	buf.Format = textutil.DetectFormat(text)
}

// record appends an operation to the chain buf belongs to and attaches
// the refreshed chain snapshot to derived. A buffer without a tracked
// chain is treated as untracked: the operation is skipped, never an
// error.
func (s *Service) record(buf, derived *ContentBuffer, op provenance.Operation) {
	chain, ok := s.tracker.GetChainForBuffer(buf.ID)
	if !ok {
		s.log.Debug("skipping provenance for untracked buffer", "buffer_id", buf.ID, "op", op.Type)
		derived.Chain = buf.Chain.Clone()
		return
	}
	if err := s.tracker.RecordOperation(chain.ID, op, derived.ID); err != nil {
		// Unknown chain means untracked; continue without raising.
		s.log.Debug("provenance record skipped", "chain_id", chain.ID, "error", err)
		derived.Chain = buf.Chain.Clone()
		return
	}
	if refreshed, ok := s.tracker.GetChain(chain.ID); ok {
		derived.Chain = refreshed
	}
}

func (s *Service) operation(typ provenance.OperationType, actor provenance.Actor, before, after, description string, params map[string]any) provenance.Operation {
	return provenance.Operation{
		Type:        typ,
		Actor:       systemActor(actor),
		BeforeHash:  before,
		AfterHash:   after,
		Timestamp:   s.now(),
		Description: description,
		Parameters:  params,
	}
}

// CreateFromText builds a buffer from directly supplied text with a
// manual origin and records create_manual.
func (s *Service) CreateFromText(text string, opts CreateOptions) (*ContentBuffer, error) {
	author := opts.Author
	if author == "" {
		author = "unknown"
	}
	buf := s.newBuffer(text, Origin{
		Kind:   OriginManual,
		Manual: &ManualOrigin{Author: author, SourcePlatform: opts.SourcePlatform},
	})

	chain := s.tracker.CreateChain(buf.ID)
	op := s.operation(provenance.OpCreateManual,
		provenance.Actor{Kind: provenance.ActorUser, ID: author},
		"", buf.ContentHash, "manual buffer created",
		map[string]any{"author": author})
	if err := s.tracker.RecordOperation(chain.ID, op, buf.ID); err != nil {
		return nil, fmt.Errorf("buffer: record create_manual: %w", err)
	}
	buf.Chain, _ = s.tracker.GetChain(chain.ID)

	s.log.Debug("buffer created from text", "buffer_id", buf.ID, "words", buf.WordCount)
	return buf, nil
}

// LoadFromArchive fetches an archive node and builds a tracked buffer
// from its content.
func (s *Service) LoadFromArchive(ctx context.Context, nodeID string, opts LoadOptions) (*ContentBuffer, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("buffer: archive store %w", ErrMisconfigured)
	}
	node, err := s.archive.GetNode(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("buffer: archive getNode %s: %w", nodeID, err)
	}
	if node == nil {
		return nil, fmt.Errorf("buffer: archive node %s: %w", nodeID, ErrNotFound)
	}

	buf := s.newBuffer(node.Content, Origin{
		Kind: OriginArchive,
		Archive: &ArchiveOrigin{
			SourceNodeID:   nodeID,
			SourcePlatform: node.Platform,
			Author:         node.Author,
		},
	})
	chain := s.tracker.CreateChain(buf.ID)
	op := s.operation(provenance.OpLoadArchive, opts.Actor,
		"", buf.ContentHash, "loaded from archive",
		map[string]any{"sourceNodeId": nodeID, "platform": node.Platform})
	if err := s.tracker.RecordOperation(chain.ID, op, buf.ID); err != nil {
		return nil, fmt.Errorf("buffer: record load_archive: %w", err)
	}
	buf.Chain, _ = s.tracker.GetChain(chain.ID)

	return s.postLoad(ctx, buf, opts)
}

// LoadFromBook fetches a chapter and builds a tracked buffer from it.
func (s *Service) LoadFromBook(ctx context.Context, chapterID string, opts LoadOptions) (*ContentBuffer, error) {
	if s.books == nil {
		return nil, fmt.Errorf("buffer: book store %w", ErrMisconfigured)
	}
	chapter, err := s.books.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("buffer: book getChapter %s: %w", chapterID, err)
	}
	if chapter == nil {
		return nil, fmt.Errorf("buffer: chapter %s: %w", chapterID, ErrNotFound)
	}

	buf := s.newBuffer(chapter.Content, Origin{
		Kind: OriginBook,
		Book: &BookOrigin{ChapterID: chapterID, BookID: chapter.BookID},
	})
	chain := s.tracker.CreateChain(buf.ID)
	op := s.operation(provenance.OpLoadBook, opts.Actor,
		"", buf.ContentHash, "loaded from book",
		map[string]any{"chapterId": chapterID, "bookId": chapter.BookID})
	if err := s.tracker.RecordOperation(chain.ID, op, buf.ID); err != nil {
		return nil, fmt.Errorf("buffer: record load_book: %w", err)
	}
	buf.Chain, _ = s.tracker.GetChain(chain.ID)

	return s.postLoad(ctx, buf, opts)
}

// postLoad chains optional side computations after a load. Failures
// propagate rather than returning a silently incomplete buffer.
func (s *Service) postLoad(ctx context.Context, buf *ContentBuffer, opts LoadOptions) (*ContentBuffer, error) {
	var err error
	if opts.Embed {
		buf, err = s.Embed(ctx, buf)
		if err != nil {
			return nil, err
		}
	}
	if opts.AnalyzeQuality {
		buf, err = s.AnalyzeQuality(ctx, buf)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// Save persists a buffer and its chain together.
func (s *Service) Save(ctx context.Context, buf *ContentBuffer) error {
	if s.store == nil {
		return fmt.Errorf("buffer: persistence %w", ErrMisconfigured)
	}
	if err := s.store.SaveContentBuffer(ctx, buf); err != nil {
		return fmt.Errorf("buffer: save buffer %s: %w", buf.ID, err)
	}
	if buf.Chain != nil {
		if err := s.store.SaveProvenanceChain(ctx, buf.Chain); err != nil {
			return fmt.Errorf("buffer: save chain %s: %w", buf.Chain.ID, err)
		}
	}
	return nil
}

// Load retrieves a persisted buffer and restores its chain into the
// tracker so later operations keep the lineage going.
func (s *Service) Load(ctx context.Context, id string) (*ContentBuffer, error) {
	if s.store == nil {
		return nil, fmt.Errorf("buffer: persistence %w", ErrMisconfigured)
	}
	buf, err := s.store.LoadContentBuffer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("buffer: load buffer %s: %w", id, err)
	}
	if buf == nil {
		return nil, fmt.Errorf("buffer: buffer %s: %w", id, ErrNotFound)
	}
	if buf.Chain != nil {
		if _, tracked := s.tracker.GetChainForBuffer(buf.ID); !tracked {
			s.tracker.Restore(buf.Chain, []string{buf.ID})
		}
	}
	return buf, nil
}

// FindByContentHash returns every saved buffer sharing an exact digest,
// across origins and authors.
func (s *Service) FindByContentHash(ctx context.Context, hash string) ([]*ContentBuffer, error) {
	if s.store == nil {
		return nil, fmt.Errorf("buffer: persistence %w", ErrMisconfigured)
	}
	bufs, err := s.store.FindContentBuffersByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("buffer: find by hash: %w", err)
	}
	return bufs, nil
}

// Delete removes a persisted buffer. In-memory values are unaffected.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.store == nil {
		return fmt.Errorf("buffer: persistence %w", ErrMisconfigured)
	}
	if err := s.store.DeleteContentBuffer(ctx, id); err != nil {
		return fmt.Errorf("buffer: delete buffer %s: %w", id, err)
	}
	return nil
}

// GetProvenance returns the buffer's chain snapshot.
func (s *Service) GetProvenance(buf *ContentBuffer) *provenance.Chain {
	return buf.Chain
}

// TraceToOrigin resolves the buffer's chain to its root buffer. When the
// root is a different buffer it is loaded from persistence; if that is
// unavailable the input buffer itself is returned.
func (s *Service) TraceToOrigin(ctx context.Context, buf *ContentBuffer) (*ContentBuffer, error) {
	chain := buf.Chain
	if chain == nil {
		if tracked, ok := s.tracker.GetChainForBuffer(buf.ID); ok {
			chain = tracked
		} else {
			return buf, nil
		}
	}
	rootID := chain.RootBufferID
	if rootID == "" || rootID == buf.ID {
		return buf, nil
	}
	if s.store == nil {
		return buf, nil
	}
	root, err := s.store.LoadContentBuffer(ctx, rootID)
	if err != nil || root == nil {
		return buf, nil
	}
	return root, nil
}
