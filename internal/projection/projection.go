package projection

import (
	"errors"
	"fmt"

	"github.com/dreamware/hologram/internal/lattice"
	"github.com/dreamware/hologram/internal/resonance"
)

// Kind identifies a projection representation. The numeric values are
// wire constants shared with the shard format; changing them breaks
// compatibility with archived shards.
type Kind uint8

const (
	// Linear is a byte-for-byte positional copy of the source buffer
	// plus per-block correction deltas.
	Linear Kind = 0

	// R96Fourier is a resonance-classified representation: a 96-bin
	// histogram with its per-position class stream and a normal-form
	// tag that disambiguates histogram ties during reconstruction.
	R96Fourier Kind = 1
)

// String returns the human-readable name of a projection kind.
func (k Kind) String() string {
	switch k {
	case Linear:
		return "linear"
	case R96Fourier:
		return "r96-fourier"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

var (
	// ErrUnknownKind is returned for a kind this implementation does
	// not recognize. Unknown kinds are rejected, never misinterpreted.
	ErrUnknownKind = errors.New("unknown projection kind")

	// ErrIrreversibleProjection is returned when a transform or
	// materialization needs byte positions the projection did not
	// retain. Caller-recoverable: keep a Linear projection alongside
	// instead of converting back.
	ErrIrreversibleProjection = errors.New("projection does not retain position data")
)

// BlockDelta is a correction applied to one 256-byte block during
// conservation-facing operations. Deltas are metadata: the visible
// payload always reflects the true source bytes, and a delta is only
// added into checksum computations, never written into the payload.
type BlockDelta struct {
	Block uint16 // page index within the source buffer
	Delta uint8  // additive correction, in [0, 96)
}

// Projection is a derived representation of a source buffer. It owns a
// copy of the data in representation-specific form and never aliases
// the buffer it was built from, so later transforms and extractions are
// free of external mutation hazards. A projection is immutable once
// built.
type Projection struct {
	kind       Kind
	payload    []byte // Linear: source bytes; R96Fourier: per-position class stream
	deltas     []BlockDelta
	histogram  [resonance.NumClasses]uint32 // R96Fourier only
	normalForm uint8                        // R96Fourier only
	positions  []byte                       // R96Fourier only: optional raw source copy
	checksum   uint8                        // raw conservation invariant of the source
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	positionMap bool
}

// WithPositionMap makes an R96Fourier projection retain a copy of the
// raw source bytes, enabling the otherwise-lossy transform back to
// Linear. Ignored for Linear builds, which are positional already.
func WithPositionMap() Option {
	return func(o *buildOptions) { o.positionMap = true }
}

// Build creates a projection of buf in the requested kind.
//
// Linear builds copy the bytes verbatim and, when the global checksum
// is nonzero, record a single corrective delta on the last block that
// brings the conservation view to zero. R96Fourier builds classify
// every byte through cls, tally the 96-bin histogram, and keep the
// per-position class stream so page-aligned shards can later be
// extracted.
//
// Build verifies that the representation's invariant matches the source
// buffer's checksum before returning; on disagreement it fails with a
// *lattice.ConservationError and exposes no partial projection.
func Build(buf *lattice.Buffer, kind Kind, cls resonance.Classifier, opts ...Option) (*Projection, error) {
	if buf == nil {
		return nil, lattice.ErrInvalidSize
	}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	src := buf.Bytes()
	checksum := lattice.Checksum(src)

	switch kind {
	case Linear:
		p := &Projection{
			kind:     Linear,
			payload:  src,
			checksum: checksum,
		}
		if checksum != 0 {
			p.deltas = []BlockDelta{{
				Block: lattice.PageCount - 1,
				Delta: uint8((lattice.Modulus - int(checksum)) % lattice.Modulus),
			}}
		}
		// The raw copy trivially carries the source invariant, but the
		// contract is verify-not-assume.
		if got := lattice.Checksum(p.payload); got != checksum {
			return nil, &lattice.ConservationError{Want: checksum, Got: got}
		}
		return p, nil

	case R96Fourier:
		if cls == nil {
			return nil, resonance.ErrClassifierUnavailable
		}
		classes := make([]byte, len(src))
		var hist [resonance.NumClasses]uint32
		for i, b := range src {
			c, err := cls.Classify(b)
			if err != nil {
				return nil, fmt.Errorf("classify byte %d: %w", i, err)
			}
			if c >= resonance.NumClasses {
				return nil, fmt.Errorf("%w: class %d out of range", resonance.ErrClassifierUnavailable, c)
			}
			classes[i] = c
			hist[c]++
		}
		// The classifier's conservation contract: the index-weighted
		// histogram sum must agree with the raw byte-sum checksum.
		if got := resonance.WeightedSum(hist); got != checksum {
			return nil, &lattice.ConservationError{Want: checksum, Got: got}
		}
		p := &Projection{
			kind:       R96Fourier,
			payload:    classes,
			histogram:  hist,
			normalForm: normalForm(hist),
			checksum:   checksum,
		}
		if o.positionMap {
			p.positions = src
		}
		return p, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}
}

// normalForm selects the deterministic tie-break tag for a histogram:
// the lowest class index whose count is not divisible by 96, or zero
// when every count is.
func normalForm(hist [resonance.NumClasses]uint32) uint8 {
	for i, n := range hist {
		if n%lattice.Modulus != 0 {
			return uint8(i)
		}
	}
	return 0
}

// Kind returns the projection's representation kind.
func (p *Projection) Kind() Kind { return p.kind }

// SourceSize returns the size of the projected source buffer. Always
// lattice.BufferSize for projections built from a full buffer.
func (p *Projection) SourceSize() uint32 { return uint32(len(p.payload)) }

// Checksum returns the raw conservation invariant of the source the
// projection was built from, in [0, 96).
func (p *Projection) Checksum() uint8 { return p.checksum }

// ConservedChecksum returns the conservation-facing view of the
// invariant: the raw checksum with all correction deltas applied. For a
// Linear projection this is always zero; for R96Fourier it equals the
// raw checksum, since histogram representations carry no deltas.
func (p *Projection) ConservedChecksum() uint8 {
	sum := int(p.checksum)
	for _, d := range p.deltas {
		sum += int(d.Delta)
	}
	return uint8(sum % lattice.Modulus)
}

// NormalForm returns the R96Fourier normal-form tag. Zero for Linear.
func (p *Projection) NormalForm() uint8 { return p.normalForm }

// Histogram returns the 96-bin class histogram of an R96Fourier
// projection. The zero histogram for Linear.
func (p *Projection) Histogram() [resonance.NumClasses]uint32 { return p.histogram }

// HasPositionMap reports whether the projection retains the raw source
// bytes needed for a lossless transform back to Linear.
func (p *Projection) HasPositionMap() bool {
	return p.kind == Linear || p.positions != nil
}

// PayloadSlice returns a copy of the projection payload covering the
// given region. For Linear the payload is source bytes; for R96Fourier
// it is the per-position class stream.
func (p *Projection) PayloadSlice(r lattice.Region) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.End > uint32(len(p.payload)) {
		return nil, fmt.Errorf("%w: region %s beyond payload", lattice.ErrInvalidRegion, r)
	}
	out := make([]byte, r.Size())
	copy(out, p.payload[r.Start:r.End])
	return out, nil
}

// DeltasWithin returns copies of the correction deltas whose block
// falls inside the region.
func (p *Projection) DeltasWithin(r lattice.Region) []BlockDelta {
	var out []BlockDelta
	for _, d := range p.deltas {
		off := uint32(d.Block) * lattice.PageSize
		if off >= r.Start && off < r.End {
			out = append(out, d)
		}
	}
	return out
}

// Deltas returns a copy of all correction deltas.
func (p *Projection) Deltas() []BlockDelta {
	return append([]BlockDelta(nil), p.deltas...)
}
