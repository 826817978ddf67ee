package buffer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kittclouds/textloom/pkg/provenance"
	"github.com/kittclouds/textloom/pkg/quality"
)

const defaultJoin = "\n\n"
const defaultChunkSize = 500

var paragraphBoundary = regexp.MustCompile(`\n[ \t]*\n`)

// Merge concatenates the buffers' text into one generated buffer.
// A single-element input returns that same buffer unchanged; an empty
// input is a precondition failure. The merged buffer starts a new
// chain, since a merge has multiple parents and cannot reuse any single
// parent's chain identity. Ancestry is kept in origin metadata.
func (s *Service) Merge(ctx context.Context, bufs []*ContentBuffer, opts MergeOptions) (*ContentBuffer, error) {
	if len(bufs) == 0 {
		return nil, fmt.Errorf("buffer: %w: cannot merge empty buffer array", ErrPreconditionFailed)
	}
	if len(bufs) == 1 {
		return bufs[0], nil
	}

	join := opts.JoinWith
	if join == "" {
		join = defaultJoin
	}

	parts := make([]string, len(bufs))
	parentIDs := make([]string, len(bufs))
	parentHashes := make([]string, len(bufs))
	for i, b := range bufs {
		parts[i] = b.Text
		parentIDs[i] = b.ID
		parentHashes[i] = b.ContentHash
	}

	merged := s.newBuffer(strings.Join(parts, join), Origin{
		Kind: OriginGenerated,
		Generated: &GeneratedOrigin{
			Metadata: map[string]any{"mergedFrom": parentIDs},
		},
	})

	chain := s.tracker.CreateChain(merged.ID)
	op := s.operation(provenance.OpMerge, opts.Actor,
		"", merged.ContentHash,
		fmt.Sprintf("merged %d buffers", len(bufs)),
		map[string]any{
			"mergedFrom":   parentIDs,
			"parentHashes": parentHashes,
			"separator":    join,
		})
	if err := s.tracker.RecordOperation(chain.ID, op, merged.ID); err != nil {
		return nil, fmt.Errorf("buffer: record merge: %w", err)
	}
	merged.Chain, _ = s.tracker.GetChain(chain.ID)

	s.log.Debug("buffers merged", "buffer_id", merged.ID, "parents", len(bufs))
	return merged, nil
}

// Split divides a buffer into independent chunk buffers. Each chunk
// gets a generated origin with splitFrom/splitIndex/splitTotal metadata
// and its own fresh chain, since chunks are independent lineages going
// forward. A split operation listing the resulting hashes is recorded
// on the original buffer's existing chain; the original buffer itself
// is not altered.
func (s *Service) Split(ctx context.Context, buf *ContentBuffer, opts SplitOptions) ([]*ContentBuffer, error) {
	parts, err := splitText(buf.Text, opts)
	if err != nil {
		return nil, err
	}

	chunks := make([]*ContentBuffer, len(parts))
	hashes := make([]string, len(parts))
	for i, part := range parts {
		chunk := s.newBuffer(part, Origin{
			Kind: OriginGenerated,
			Generated: &GeneratedOrigin{
				Metadata: map[string]any{
					"splitFrom":  buf.ID,
					"splitIndex": i,
					"splitTotal": len(parts),
				},
			},
		})
		chunk.Chain = s.tracker.CreateChain(chunk.ID)
		chunks[i] = chunk
		hashes[i] = chunk.ContentHash
	}

	// Document the division on the original chain without altering the
	// original buffer. An untracked original stays untracked.
	if chain, ok := s.tracker.GetChainForBuffer(buf.ID); ok {
		op := s.operation(provenance.OpSplit, opts.Actor,
			buf.ContentHash, "",
			fmt.Sprintf("split into %d chunks (%s)", len(parts), effectiveStrategy(opts.Strategy)),
			map[string]any{
				"strategy":    string(effectiveStrategy(opts.Strategy)),
				"chunkHashes": hashes,
			})
		if err := s.tracker.RecordOperation(chain.ID, op, ""); err != nil {
			return nil, fmt.Errorf("buffer: record split: %w", err)
		}
	}

	s.log.Debug("buffer split", "buffer_id", buf.ID, "chunks", len(chunks), "strategy", string(opts.Strategy))
	return chunks, nil
}

func effectiveStrategy(st SplitStrategy) SplitStrategy {
	switch st {
	case SplitSemantic, "":
		// Semantic chunking falls back to paragraph boundaries.
		return SplitParagraphs
	default:
		return st
	}
}

func splitText(text string, opts SplitOptions) ([]string, error) {
	switch effectiveStrategy(opts.Strategy) {
	case SplitSentences:
		return quality.SplitSentences(text), nil
	case SplitParagraphs:
		return splitParagraphs(text), nil
	case SplitFixedLength:
		return splitFixedLength(text, opts.MaxChunkSize, opts.Overlap)
	default:
		return nil, fmt.Errorf("buffer: %w: unknown split strategy %q", ErrPreconditionFailed, opts.Strategy)
	}
}

// splitParagraphs splits on blank-line boundaries, dropping empties.
func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphBoundary.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitFixedLength yields word windows of size max, re-including overlap
// words from the prior window. The window start always advances by at
// least one word and the loop stops once a window reaches the end of
// the text, so termination is guaranteed even with a large overlap.
func splitFixedLength(text string, max, overlap int) ([]string, error) {
	if max <= 0 {
		max = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= max {
		return nil, fmt.Errorf("buffer: %w: overlap %d must be smaller than chunk size %d", ErrPreconditionFailed, overlap, max)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	var out []string
	for start := 0; start < len(words); {
		end := start + max
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
		start = end - overlap
	}
	return out, nil
}
