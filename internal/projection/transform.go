package projection

import (
	"fmt"

	"github.com/dreamware/hologram/internal/lattice"
	"github.com/dreamware/hologram/internal/resonance"
)

// Transform converts the projection to the target kind, returning a new
// projection; the receiver is never mutated.
//
// Linear to R96Fourier re-runs classification over the payload and
// retains a position map, so the result can be transformed back.
// R96Fourier to Linear requires the position map recorded at build
// time; without it the histogram does not determine byte positions and
// the transform fails with ErrIrreversibleProjection.
//
// A successful transform preserves the conservation invariant by
// construction: the output carries the input's checksum, and Build's
// verification runs again on the new representation.
func (p *Projection) Transform(target Kind, cls resonance.Classifier) (*Projection, error) {
	switch {
	case target == p.kind:
		return p.clone(), nil

	case p.kind == Linear && target == R96Fourier:
		buf, err := lattice.NewBuffer(p.payload)
		if err != nil {
			return nil, err
		}
		return Build(buf, R96Fourier, cls, WithPositionMap())

	case p.kind == R96Fourier && target == Linear:
		if p.positions == nil {
			return nil, fmt.Errorf("%w: r96-fourier built without position map", ErrIrreversibleProjection)
		}
		buf, err := lattice.NewBuffer(p.positions)
		if err != nil {
			return nil, err
		}
		return Build(buf, Linear, cls)

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(target))
	}
}

// Materialize recovers the source buffer from the projection. The
// returned bytes are the true source: correction deltas are a derived
// conservation view and are never applied to materialized output.
//
// R96Fourier projections materialize only when they retain a position
// map; a reconstructed class stream does not determine the original
// bytes.
func (p *Projection) Materialize() (*lattice.Buffer, error) {
	switch p.kind {
	case Linear:
		return lattice.NewBuffer(p.payload)
	case R96Fourier:
		if p.positions == nil {
			return nil, fmt.Errorf("%w: cannot materialize histogram representation", ErrIrreversibleProjection)
		}
		return lattice.NewBuffer(p.positions)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(p.kind))
	}
}

func (p *Projection) clone() *Projection {
	out := &Projection{
		kind:       p.kind,
		payload:    append([]byte(nil), p.payload...),
		deltas:     append([]BlockDelta(nil), p.deltas...),
		histogram:  p.histogram,
		normalForm: p.normalForm,
		checksum:   p.checksum,
	}
	if p.positions != nil {
		out.positions = append([]byte(nil), p.positions...)
	}
	return out
}

// Reassemble rebuilds a projection from a reconstructed payload and its
// correction deltas, as produced by a completed shard set. The global
// checksum declared by the shards is re-verified against the payload:
// on disagreement Reassemble fails with a *lattice.ConservationError
// and exposes no partial projection.
//
// Reassembled R96Fourier projections recompute their histogram and
// normal form from the class stream but carry no position map, so they
// cannot be transformed back to Linear.
func Reassemble(kind Kind, payload []byte, deltas []BlockDelta, global uint8) (*Projection, error) {
	if len(payload) == 0 {
		return nil, lattice.ErrInvalidRegion
	}

	raw := lattice.Checksum(payload)
	conserved := int(raw)
	for _, d := range deltas {
		conserved += int(d.Delta)
	}
	if uint8(conserved%lattice.Modulus) != global {
		return nil, &lattice.ConservationError{Want: global, Got: uint8(conserved % lattice.Modulus)}
	}

	p := &Projection{
		kind:     kind,
		payload:  append([]byte(nil), payload...),
		deltas:   append([]BlockDelta(nil), deltas...),
		checksum: raw,
	}

	switch kind {
	case Linear:
		return p, nil
	case R96Fourier:
		var hist [resonance.NumClasses]uint32
		for i, c := range payload {
			if c >= resonance.NumClasses {
				return nil, fmt.Errorf("class %d at position %d out of range", c, i)
			}
			hist[c]++
		}
		p.histogram = hist
		p.normalForm = normalForm(hist)
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}
}
