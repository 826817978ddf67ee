// Package provenance records the lineage of content buffers: which
// operations produced them, in what order, and from which root.
// Chains are append-only; the tracker never removes history.
package provenance

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kittclouds/textloom/pkg/textutil"
)

// ErrChainNotFound is returned when a chain id is not registered.
// Callers treat a missing chain as "untracked" and continue.
var ErrChainNotFound = errors.New("provenance: chain not found")

// OperationType identifies what a recorded operation did.
type OperationType string

const (
	OpCreateManual    OperationType = "create_manual"
	OpLoadArchive     OperationType = "load_archive"
	OpLoadBook        OperationType = "load_book"
	OpTransformCustom OperationType = "transform_custom"
	OpRewritePersona  OperationType = "rewrite_persona"
	OpMerge           OperationType = "merge"
	OpSplit           OperationType = "split"
	OpAnalyzeQuality  OperationType = "analyze_quality"
	OpDetectAI        OperationType = "detect_ai"
	OpCommitToBook    OperationType = "commit_to_book"
	OpExportToArchive OperationType = "export_to_archive"
	OpEmbed           OperationType = "embed"
	OpBranch          OperationType = "branch"
)

// ActorKind distinguishes who performed an operation.
type ActorKind string

const (
	ActorSystem ActorKind = "system"
	ActorUser   ActorKind = "user"
	ActorAgent  ActorKind = "agent"
)

// Actor identifies the entity that performed an operation.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id"`
}

// Operation is one recorded step in a chain.
// Operations are recorded after their effect succeeds, never before.
type Operation struct {
	Type        OperationType  `json:"type"`
	Actor       Actor          `json:"actor"`
	BeforeHash  string         `json:"beforeHash,omitempty"`
	AfterHash   string         `json:"afterHash,omitempty"`
	Timestamp   int64          `json:"timestamp"` // epoch milliseconds
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Branch names a line of history within a chain lineage.
type Branch struct {
	Name        string `json:"name"`
	IsMain      bool   `json:"isMain"`
	Description string `json:"description,omitempty"`
}

// Chain is the ordered, append-only operation log for one buffer lineage.
type Chain struct {
	ID                  string      `json:"id"`
	RootBufferID        string      `json:"rootBufferId"`
	Branch              Branch      `json:"branch"`
	Operations          []Operation `json:"operations"`
	TransformationCount int         `json:"transformationCount"`
}

// Clone returns a deep copy of the chain.
func (c *Chain) Clone() *Chain {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Operations = make([]Operation, len(c.Operations))
	copy(cp.Operations, c.Operations)
	for i, op := range cp.Operations {
		if op.Parameters != nil {
			params := make(map[string]any, len(op.Parameters))
			for k, v := range op.Parameters {
				params[k] = v
			}
			cp.Operations[i].Parameters = params
		}
	}
	return &cp
}

// Tracker owns the buffer→chain registry and every chain's operation log.
// Thread-safe: RecordOperation is read-then-append and hosts may call
// concurrently. Under concurrent use, operation order reflects completion
// order of the callers, not submission order.
type Tracker struct {
	mu       sync.RWMutex
	chains   map[string]*Chain   // chain id → chain
	byBuffer map[string]string   // buffer id → chain id
	members  map[string][]string // chain id → buffer ids in registration order
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		chains:   make(map[string]*Chain),
		byBuffer: make(map[string]string),
		members:  make(map[string][]string),
	}
}

// CreateChain starts a new lineage rooted at bufferID, on the main branch,
// and registers bufferID against it.
func (t *Tracker) CreateChain(bufferID string) *Chain {
	t.mu.Lock()
	defer t.mu.Unlock()

	chain := &Chain{
		ID:           textutil.NewID(),
		RootBufferID: bufferID,
		Branch:       Branch{Name: "main", IsMain: true},
		Operations:   []Operation{},
	}
	t.chains[chain.ID] = chain
	t.byBuffer[bufferID] = chain.ID
	t.members[chain.ID] = []string{bufferID}

	return chain.Clone()
}

// RecordOperation appends op to the chain and re-registers newBufferID
// against the same chain, so simple transform chains keep one identity
// across successive derived buffers. Returns ErrChainNotFound for an
// unknown chain id; nothing is recorded in that case.
func (t *Tracker) RecordOperation(chainID string, op Operation, newBufferID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	chain, ok := t.chains[chainID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChainNotFound, chainID)
	}

	chain.Operations = append(chain.Operations, op)
	chain.TransformationCount++

	if newBufferID != "" {
		if _, registered := t.byBuffer[newBufferID]; !registered {
			t.members[chainID] = append(t.members[chainID], newBufferID)
		}
		t.byBuffer[newBufferID] = chainID
	}
	return nil
}

// GetChainForBuffer returns a copy of the chain a buffer is registered
// against, or false if the buffer is untracked.
func (t *Tracker) GetChainForBuffer(bufferID string) (*Chain, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	chainID, ok := t.byBuffer[bufferID]
	if !ok {
		return nil, false
	}
	chain, ok := t.chains[chainID]
	if !ok {
		return nil, false
	}
	return chain.Clone(), true
}

// GetChain returns a copy of a chain by id.
func (t *Tracker) GetChain(chainID string) (*Chain, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	chain, ok := t.chains[chainID]
	if !ok {
		return nil, false
	}
	return chain.Clone(), true
}

// TraceToRoot resolves a chain to its original root buffer id.
func (t *Tracker) TraceToRoot(chainID string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	chain, ok := t.chains[chainID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrChainNotFound, chainID)
	}
	return chain.RootBufferID, nil
}

// FindDerived returns every buffer id ever registered against the chain
// that bufferID belongs to, in registration order. Ids are appended and
// never removed, so this is the buffer's full forward lineage.
func (t *Tracker) FindDerived(bufferID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	chainID, ok := t.byBuffer[bufferID]
	if !ok {
		return nil
	}
	ids := t.members[chainID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// CreateBranch copies the operations recorded so far into a new chain with
// the same root but a non-main branch. The source chain is not mutated and
// subsequent operations on either chain stay independent.
func (t *Tracker) CreateBranch(chainID, name, description string) (*Chain, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	src, ok := t.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChainNotFound, chainID)
	}

	branched := src.Clone()
	branched.ID = textutil.NewID()
	branched.Branch = Branch{Name: name, IsMain: false, Description: description}
	t.chains[branched.ID] = branched
	t.members[branched.ID] = []string{}

	return branched.Clone(), nil
}

// RegisterBuffer attaches a buffer id to an existing chain without
// recording an operation. Used when a branch chain gets its first buffer.
func (t *Tracker) RegisterBuffer(chainID, bufferID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.chains[chainID]; !ok {
		return fmt.Errorf("%w: %s", ErrChainNotFound, chainID)
	}
	if _, registered := t.byBuffer[bufferID]; !registered {
		t.members[chainID] = append(t.members[chainID], bufferID)
	}
	t.byBuffer[bufferID] = chainID
	return nil
}

// Restore re-registers a previously persisted chain and its buffer ids.
// Used when a host loads buffers back from a persistence adapter.
func (t *Tracker) Restore(chain *Chain, bufferIDs []string) {
	if chain == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := chain.Clone()
	t.chains[cp.ID] = cp
	if _, ok := t.members[cp.ID]; !ok {
		t.members[cp.ID] = []string{}
	}
	for _, id := range bufferIDs {
		if _, registered := t.byBuffer[id]; !registered {
			t.members[cp.ID] = append(t.members[cp.ID], id)
		}
		t.byBuffer[id] = cp.ID
	}
}
