package reconstruct

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dreamware/hologram/internal/lattice"
	"github.com/dreamware/hologram/internal/projection"
	"github.com/dreamware/hologram/internal/shard"
)

// State is the lifecycle phase of a reconstruction context.
type State int

const (
	// Accumulating is the initial state: shards are being collected.
	Accumulating State = iota
	// Complete means the accumulated regions exactly tile the declared
	// source range; Finalize may be called.
	Complete
	// Finalized is the terminal success state: Finalize has consumed
	// the context and produced a projection.
	Finalized
	// Aborted is the terminal failure state entered when Finalize
	// detects a conservation violation. The context cannot be retried.
	Aborted
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case Complete:
		return "complete"
	case Finalized:
		return "finalized"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrDuplicateShard is returned when a shard for an already-seen
	// region is added again.
	ErrDuplicateShard = errors.New("duplicate shard region")

	// ErrOverlappingRegion is returned when a shard's region overlaps
	// one already accumulated. Precedence between overlapping shards
	// is ambiguous, so this is treated as a caller bug, never silently
	// resolved.
	ErrOverlappingRegion = errors.New("overlapping shard region")

	// ErrShardVerification is returned when an added shard fails its
	// own Verify check.
	ErrShardVerification = errors.New("shard failed verification")

	// ErrShardMismatch is returned when a shard disagrees with the
	// context's established projection kind or declared global
	// checksum.
	ErrShardMismatch = errors.New("shard disagrees with accumulated set")

	// ErrNotComplete is returned when Finalize is called before the
	// shard set covers the whole declared range.
	ErrNotComplete = errors.New("reconstruction is not complete")

	// ErrContextClosed is returned when a terminal context (Finalized
	// or Aborted) is used again.
	ErrContextClosed = errors.New("reconstruction context is closed")

	// ErrConservationFailure is the fatal Finalize error: the
	// reassembled payload does not satisfy the invariant the shards
	// declared. The context moves to Aborted.
	ErrConservationFailure = errors.New("reconstruction conservation failure")
)

// Context accumulates shards toward a reconstruction. All methods are
// safe for concurrent use: shard producers may call AddShard from
// multiple goroutines, and the coverage check is atomic with each
// addition.
type Context struct {
	mu      sync.Mutex
	size    uint32 // declared source range, [0, size)
	state   State
	shards  map[uint32]*shard.Shard // keyed by region start
	kind    projection.Kind         // established by the first shard
	global  uint8                   // declared checksum, established by the first shard
	seeded  bool                    // whether kind/global are established
	covered uint32                  // total bytes the accumulated regions span
}

// New creates a context expecting shards that together tile [0, size).
// The size must be page-aligned, nonzero, and at most the buffer size.
func New(size uint32) (*Context, error) {
	if size == 0 || size > lattice.BufferSize || size%lattice.PageSize != 0 {
		return nil, fmt.Errorf("%w: size %d", lattice.ErrInvalidRegion, size)
	}
	return &Context{
		size:   size,
		state:  Accumulating,
		shards: make(map[uint32]*shard.Shard),
	}, nil
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsComplete reports whether the accumulated regions exactly tile the
// declared range.
func (c *Context) IsComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Complete
}

// ShardCount returns the number of accumulated shards.
func (c *Context) ShardCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.shards)
}

// AddShard records one shard. It rejects, leaving the context in
// Accumulating, when the shard fails verification, lies outside the
// declared range, duplicates or overlaps an accumulated region, or
// disagrees with the established kind or declared global checksum.
// When the accumulated regions exactly tile the declared range the
// context transitions to Complete.
func (c *Context) AddShard(s *shard.Shard) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Accumulating:
	case Complete:
		// A complete tiling has no room for another shard.
		return fmt.Errorf("%w: tiling already complete", ErrOverlappingRegion)
	default:
		return fmt.Errorf("%w: state %s", ErrContextClosed, c.state)
	}

	if s == nil || !s.Verify() {
		return ErrShardVerification
	}
	if s.Region.End > c.size {
		return fmt.Errorf("%w: %s beyond declared range [0,%d)", lattice.ErrInvalidRegion, s.Region, c.size)
	}

	if c.seeded {
		if s.Kind != c.kind {
			return fmt.Errorf("%w: kind %s, expected %s", ErrShardMismatch, s.Kind, c.kind)
		}
		if s.GlobalChecksum != c.global {
			return fmt.Errorf("%w: declared checksum %d, expected %d", ErrShardMismatch, s.GlobalChecksum, c.global)
		}
	}

	if _, ok := c.shards[s.Region.Start]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateShard, s.Region)
	}
	for _, existing := range c.shards {
		if existing.Region.Overlaps(s.Region) {
			if existing.Region == s.Region {
				return fmt.Errorf("%w: %s", ErrDuplicateShard, s.Region)
			}
			return fmt.Errorf("%w: %s overlaps %s", ErrOverlappingRegion, s.Region, existing.Region)
		}
	}

	if !c.seeded {
		c.kind = s.Kind
		c.global = s.GlobalChecksum
		c.seeded = true
	}
	c.shards[s.Region.Start] = s
	c.covered += s.Region.Size()

	// Non-overlapping regions inside [0, size): covering exactly size
	// bytes means the tiling is exact, with no gaps.
	if c.covered == c.size {
		c.state = Complete
	}
	return nil
}

// Finalize reassembles the accumulated shards in region order into a
// single projection, re-applies their correction deltas, and runs a
// final conservation pass over the reassembled payload. Callable only
// from Complete.
//
// On success the context moves to Finalized and ownership of the
// returned projection passes to the caller. If the reassembled payload
// violates the invariant the shards declared, Finalize fails with
// ErrConservationFailure and the context moves to Aborted: the attempt
// cannot be retried, though other contexts are unaffected.
func (c *Context) Finalize() (*projection.Projection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Complete:
	case Finalized, Aborted:
		return nil, fmt.Errorf("%w: state %s", ErrContextClosed, c.state)
	default:
		return nil, fmt.Errorf("%w: covered %d of %d bytes", ErrNotComplete, c.covered, c.size)
	}

	starts := make([]uint32, 0, len(c.shards))
	for start := range c.shards {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	payload := make([]byte, 0, c.size)
	var deltas []projection.BlockDelta
	for _, start := range starts {
		s := c.shards[start]
		payload = append(payload, s.Payload...)
		deltas = append(deltas, s.Deltas...)
	}

	p, err := projection.Reassemble(c.kind, payload, deltas, c.global)
	if err != nil {
		var cerr *lattice.ConservationError
		if errors.As(err, &cerr) {
			c.state = Aborted
			return nil, fmt.Errorf("%w: %v", ErrConservationFailure, err)
		}
		return nil, err
	}

	c.state = Finalized
	c.shards = nil
	return p, nil
}
