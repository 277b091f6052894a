package shard

import (
	"errors"
	"fmt"

	"github.com/dreamware/hologram/internal/lattice"
	"github.com/dreamware/hologram/internal/projection"
	"github.com/dreamware/hologram/internal/resonance"
)

// ErrRegionOutOfBounds is returned when a requested region extends
// beyond the source projection.
var ErrRegionOutOfBounds = errors.New("region exceeds projection bounds")

// Shard is a self-contained extract of a projection covering one
// page-aligned sub-region. It is immutable once created and does not
// require the source projection to be inspected or verified.
type Shard struct {
	// Region is the half-open, page-aligned byte range the shard
	// covers within the source.
	Region lattice.Region

	// Kind is the representation kind of the source projection.
	Kind projection.Kind

	// Payload is the covered slice of the projection payload: source
	// bytes for Linear, class stream for R96Fourier.
	Payload []byte

	// Deltas are the correction deltas from the source projection
	// whose blocks fall inside the region.
	Deltas []projection.BlockDelta

	// RegionClass is a classifier-derived tag for the region: the most
	// frequent class in the covered class stream, lowest index on
	// ties. Only meaningful for R96Fourier shards; zero for Linear.
	RegionClass uint8

	// GlobalChecksum is the conserved checksum the whole source
	// projection declared. Every shard of one projection carries the
	// same value; reconstruction rejects disagreeing shards.
	GlobalChecksum uint8

	// Checksum is the shard payload's own sum reduced mod 96, used to
	// detect transport corruption.
	Checksum uint8
}

// Extract copies the region's slice of the projection into a new shard.
// The region must be page-aligned at both ends and lie inside the
// projection; misaligned regions fail with lattice.ErrUnalignedRegion
// and empty or reversed ones with lattice.ErrInvalidRegion. Extraction
// is read-only on the projection, so concurrent extracts over disjoint
// regions need no coordination.
//
// Verify on the returned shard succeeds immediately after extraction.
func Extract(p *projection.Projection, r lattice.Region) (*Shard, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.End > p.SourceSize() {
		return nil, fmt.Errorf("%w: %s beyond %d", ErrRegionOutOfBounds, r, p.SourceSize())
	}

	payload, err := p.PayloadSlice(r)
	if err != nil {
		return nil, err
	}

	s := &Shard{
		Region:         r,
		Kind:           p.Kind(),
		Payload:        payload,
		Deltas:         p.DeltasWithin(r),
		GlobalChecksum: p.ConservedChecksum(),
		Checksum:       lattice.Checksum(payload),
	}
	if s.Kind == projection.R96Fourier {
		s.RegionClass = dominantClass(payload)
	}
	return s, nil
}

// Verify recomputes the payload checksum and re-validates the region.
// It returns false on any mismatch and never raises: a shard that fails
// verification is simply unusable, which the caller may treat as
// transport corruption.
func (s *Shard) Verify() bool {
	if s.Region.Validate() != nil {
		return false
	}
	if uint32(len(s.Payload)) != s.Region.Size() {
		return false
	}
	if s.Region.Pages() != uint16(len(s.Payload)/lattice.PageSize) {
		return false
	}
	return lattice.Checksum(s.Payload) == s.Checksum
}

// dominantClass returns the most frequent class id in a class stream,
// preferring the lowest index on ties.
func dominantClass(classes []byte) uint8 {
	var counts [resonance.NumClasses]uint32
	for _, c := range classes {
		if c < resonance.NumClasses {
			counts[c]++
		}
	}
	best := 0
	for i, n := range counts {
		if n > counts[best] {
			best = i
		}
	}
	return uint8(best)
}
