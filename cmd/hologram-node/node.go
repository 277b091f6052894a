package main

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dreamware/hologram/internal/archive"
	"github.com/dreamware/hologram/internal/lattice"
	"github.com/dreamware/hologram/internal/projection"
	"github.com/dreamware/hologram/internal/reconstruct"
	"github.com/dreamware/hologram/internal/resonance"
	"github.com/dreamware/hologram/internal/shard"
	"github.com/dreamware/hologram/internal/witness"
)

var errNotFound = errors.New("not found")

// Node is the runtime state of one hologram node: the projections it
// has built, the reconstruction contexts it is driving, and the shard
// archive between them. Projections are immutable once built, so the
// maps need only guard membership, not contents.
type Node struct {
	ID string

	classifier resonance.Classifier
	archive    archive.Store
	witness    witness.Service

	// witnessSeq is the explicit witness sequence counter owned by
	// this process, passed into every Generate call.
	witnessSeq atomic.Uint64

	mu          sync.RWMutex
	projections map[string]*projection.Projection
	contexts    map[string]*reconstruct.Context
}

// NewNode creates a node with an empty projection set.
func NewNode(id string, store archive.Store) *Node {
	return &Node{
		ID:          id,
		classifier:  resonance.Mod96{},
		archive:     store,
		witness:     witness.Blake3{},
		projections: make(map[string]*projection.Projection),
		contexts:    make(map[string]*reconstruct.Context),
	}
}

// BuildProjection builds a projection of the buffer and registers it
// under a fresh ID.
func (n *Node) BuildProjection(buf *lattice.Buffer, kind projection.Kind) (string, *projection.Projection, error) {
	p, err := projection.Build(buf, kind, n.classifier, projection.WithPositionMap())
	if err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	n.mu.Lock()
	n.projections[id] = p
	n.mu.Unlock()
	return id, p, nil
}

// Projection returns the registered projection, or errNotFound.
func (n *Node) Projection(id string) (*projection.Projection, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.projections[id]
	if !ok {
		return nil, fmt.Errorf("%w: projection %s", errNotFound, id)
	}
	return p, nil
}

// ExtractShard extracts the region from a registered projection and
// archives the shard.
func (n *Node) ExtractShard(projectionID string, r lattice.Region) (*shard.Shard, error) {
	p, err := n.Projection(projectionID)
	if err != nil {
		return nil, err
	}
	s, err := shard.Extract(p, r)
	if err != nil {
		return nil, err
	}
	if err := n.archive.Put(projectionID, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ArchivedShard fetches a previously archived shard.
func (n *Node) ArchivedShard(projectionID string, r lattice.Region) (*shard.Shard, error) {
	return n.archive.Get(projectionID, r)
}

// NewReconstruction creates a reconstruction context for a source range
// of the given size and registers it under a fresh ID.
func (n *Node) NewReconstruction(size uint32) (string, error) {
	ctx, err := reconstruct.New(size)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	n.mu.Lock()
	n.contexts[id] = ctx
	n.mu.Unlock()
	return id, nil
}

// Reconstruction returns the registered context, or errNotFound.
func (n *Node) Reconstruction(id string) (*reconstruct.Context, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ctx, ok := n.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: reconstruction %s", errNotFound, id)
	}
	return ctx, nil
}

// WitnessPayload produces an advisory witness token for payload under
// the node's own sequence counter. Failures are reported but must not
// halt the operation being witnessed.
func (n *Node) WitnessPayload(payload []byte) (witness.Token, error) {
	return n.witness.Generate(n.witnessSeq.Add(1), payload)
}
