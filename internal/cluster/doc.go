// Package cluster provides the shared plumbing for the hologram
// services: node identity, the request and response types exchanged
// between node and coordinator, and small JSON/CBOR HTTP helpers.
//
// The topology is hub-and-spoke. A coordinator tracks registered nodes,
// monitors their health, and assigns page-aligned lattice regions;
// nodes build projections, extract shards for their assigned regions,
// and serve them for reconstruction.
//
//	              ┌──────────────┐
//	              │ Coordinator  │
//	              │ - registry   │
//	              │ - health mon │
//	              └──────┬───────┘
//	                     │
//	      ┌──────────────┼──────────────┐
//	┌─────▼─────┐  ┌─────▼─────┐  ┌─────▼─────┐
//	│  node 1   │  │  node 2   │  │  node 3   │
//	│ regions:  │  │ regions:  │  │ regions:  │
//	│ [0,4096)  │  │[4096,8192)│  │[8192,12K) │
//	└───────────┘  └───────────┘  └───────────┘
//
// Control-plane messages (registration, listings, assignments) travel
// as JSON; shard records travel as CBOR because they are binary
// payloads.
package cluster
