// Package reconstruct accumulates shards and rebuilds a conserved
// projection from a complete set, without ever seeing the original
// source buffer.
//
// # State machine
//
//	         AddShard (coverage incomplete)
//	        ┌──────────┐
//	        ▼          │
//	  Accumulating ────┘
//	        │ AddShard completes the tiling
//	        ▼
//	     Complete
//	        │ Finalize
//	        ├── conservation holds ──► Finalized (terminal)
//	        └── conservation fails ──► Aborted   (terminal)
//
// AddShard failures (duplicate, overlap, verification, disagreement
// with the first shard's kind or declared checksum) are recoverable:
// the context stays in Accumulating and the caller may retry with a
// corrected shard. A Finalize conservation failure is fatal to the
// attempt; the context moves to Aborted and a fresh context must be
// created to retry.
//
// Completeness requires the accumulated regions to exactly tile the
// declared source range with no gaps and no overlaps. Because overlaps
// are rejected on entry and every region lies inside the range, the
// tiling is exact precisely when the covered byte count reaches the
// declared size.
package reconstruct
