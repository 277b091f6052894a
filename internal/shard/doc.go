// Package shard extracts self-describing, independently verifiable
// extracts of a projection and defines their wire format.
//
// A shard covers one page-aligned sub-region of a projection and
// carries everything needed to verify it in isolation and later merge
// it: region bounds, source projection kind, the payload slice in the
// projection's own representation, any correction deltas falling inside
// the region, the declared whole-projection checksum, and the payload's
// own checksum.
//
// # Wire format
//
// Shards serialize to a self-describing binary record, little-endian:
//
//	kind        u8      projection kind tag (0=linear, 1=r96-fourier)
//	start       u32     region start offset
//	end         u32     region end offset
//	pages       u16     page count of the region
//	payloadLen  u32     payload length in bytes
//	payload     []byte
//	deltaCount  u16     number of correction deltas
//	deltas      []      (block u16, delta u8) per entry
//	global      u8      declared whole-projection checksum, 0..95
//	checksum    u8      payload checksum, 0..95
//
// Readers reject unrecognized kind tags rather than misinterpreting
// them; new projection kinds can be added without breaking old readers.
package shard
