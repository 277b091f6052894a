// Package lattice defines the fixed 12,288-byte buffer that every other
// component operates on, together with the conservation arithmetic that
// certifies transformations over it.
//
// # Geometry
//
// The buffer is a flat byte array with a logical page view:
//
//	linear index:   0 ........................... 12287
//	page view:      page 0   page 1   ...   page 47
//	                [0,256)  [256,512) ...  [12032,12288)
//
// A (page, offset) coordinate maps to the linear index page*256+offset.
// No richer structure is represented at runtime; the page view exists
// because regions, correction deltas, and shards are all page-granular.
//
// # Conservation
//
// The conservation invariant is the sum of byte values reduced modulo
// 96. A buffer or representation is "conserved" when its checksum is
// zero. Checks are pure functions of a snapshot: nothing in this
// package holds mutable conservation state, and a check can never fail
// with an error, only classify.
//
// Sub-region checksums are tracked separately and are not individually
// required to be zero; block deltas (see the projection package) exist
// to reconcile sub-region sums against the whole-buffer invariant.
package lattice
