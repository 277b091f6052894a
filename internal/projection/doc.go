// Package projection builds conserved representations of the fixed
// 12,288-byte lattice buffer and converts between them.
//
// # Representations
//
// Two kinds exist:
//
//	┌────────────────────────────────────────────────┐
//	│               LINEAR (kind 0)                  │
//	├────────────────────────────────────────────────┤
//	│ payload:   byte-for-byte copy of the source    │
//	│ deltas:    at most one corrective delta on the │
//	│            last block, forcing the conserved   │
//	│            view of the checksum to zero        │
//	└────────────────────────────────────────────────┘
//
//	┌────────────────────────────────────────────────┐
//	│             R96_FOURIER (kind 1)               │
//	├────────────────────────────────────────────────┤
//	│ payload:    per-position class stream          │
//	│ histogram:  96-bin class tally                 │
//	│ normalForm: deterministic tie-break tag        │
//	│ positions:  optional raw source copy enabling  │
//	│             the lossless inverse to LINEAR     │
//	└────────────────────────────────────────────────┘
//
// The Linear payload always reflects the true source bytes; the
// corrective delta is inspectable metadata applied only inside
// conservation checks, never written into the payload. This keeps
// projections byte-identical to their source for inspection while still
// supporting a provable zero-checksum view for shards and
// reconstruction.
//
// # Conservation
//
// Every constructor verifies, rather than assumes, that the
// representation's invariant equals the source checksum: the raw byte
// sum mod 96 for Linear, the index-weighted histogram sum mod 96 for
// R96_FOURIER. The equivalence of the latter to the byte sum is a
// contract the external classifier must satisfy; a classifier that
// breaks it causes Build to fail with a conservation error and return
// no partial object.
//
// # Immutability
//
// A projection owns a private copy of its representation and exposes
// only copying accessors, so concurrent shard extraction over disjoint
// regions needs no coordination.
package projection
