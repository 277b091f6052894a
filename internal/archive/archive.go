// Package archive stores wire-marshaled shards at rest between
// extraction and reconstruction. Records are wrapped in a deterministic
// CBOR envelope carrying addressing and compression metadata, and are
// keyed by projection ID and region.
package archive

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/dreamware/hologram/internal/lattice"
	"github.com/dreamware/hologram/internal/shard"
)

// ErrShardNotFound is returned when no shard is archived under the
// given projection and region.
var ErrShardNotFound = errors.New("shard not found")

// Stats describes the contents of a store.
type Stats struct {
	Shards        int // number of archived shards
	PayloadBytes  int // total wire-record bytes before compression
	ArchivedBytes int // total stored bytes after envelope + compression
}

// Store is the interface for shard-at-rest storage. Implementations
// must be safe for concurrent use.
type Store interface {
	// Put archives a shard under the given projection ID. Overwrites
	// any shard already archived for the same region.
	Put(projectionID string, s *shard.Shard) error

	// Get retrieves and unmarshals the shard archived for the region.
	// Returns ErrShardNotFound if absent and ErrCorruptArchive if the
	// stored record no longer verifies.
	Get(projectionID string, r lattice.Region) (*shard.Shard, error)

	// Regions lists the regions archived for a projection, ordered by
	// start offset.
	Regions(projectionID string) []lattice.Region

	// Delete removes an archived shard. No error if absent.
	Delete(projectionID string, r lattice.Region) error

	// Stats returns storage statistics.
	Stats() Stats
}

// ErrCorruptArchive is returned when an archived record fails to
// decode or its shard no longer passes verification.
var ErrCorruptArchive = errors.New("corrupt archived shard")

// MemoryStore is the in-memory Store implementation. Envelopes are
// kept as encoded bytes so Get always re-parses and re-verifies,
// catching corruption of the stored record itself.
type MemoryStore struct {
	mu          sync.RWMutex
	data        map[string][]byte // projectionID/regionKey -> encoded envelope
	compression Compression
	rawBytes    int
}

// NewMemoryStore creates an empty store using the given compression
// mode for new records.
func NewMemoryStore(mode Compression) *MemoryStore {
	return &MemoryStore{
		data:        make(map[string][]byte),
		compression: mode,
	}
}

func storeKey(projectionID string, r lattice.Region) string {
	return projectionID + "/" + r.Key()
}

// Put archives the shard's wire record under projectionID.
func (m *MemoryStore) Put(projectionID string, s *shard.Shard) error {
	record, err := s.Marshal()
	if err != nil {
		return err
	}
	compressed, err := compress(record, m.compression)
	if err != nil {
		return err
	}
	encoded, err := encMode.Marshal(envelope{
		ProjectionID: projectionID,
		RegionKey:    s.Region.Key(),
		Compression:  m.compression,
		Data:         compressed,
	})
	if err != nil {
		return err
	}

	key := storeKey(projectionID, s.Region)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		m.rawBytes -= m.recordLenLocked(key)
	}
	m.data[key] = encoded
	m.rawBytes += len(record)
	return nil
}

// recordLenLocked returns the uncompressed record length of the
// envelope stored under key. Called with the lock held.
func (m *MemoryStore) recordLenLocked(key string) int {
	var env envelope
	if cbor.Unmarshal(m.data[key], &env) != nil {
		return 0
	}
	record, err := decompress(env.Data, env.Compression)
	if err != nil {
		return 0
	}
	return len(record)
}

// Get retrieves, decompresses, and re-verifies the archived shard.
func (m *MemoryStore) Get(projectionID string, r lattice.Region) (*shard.Shard, error) {
	m.mu.RLock()
	encoded, ok := m.data[storeKey(projectionID, r)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrShardNotFound, projectionID, r)
	}

	var env envelope
	if err := cbor.Unmarshal(encoded, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	record, err := decompress(env.Data, env.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	s, err := shard.Unmarshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	if !s.Verify() {
		return nil, fmt.Errorf("%w: checksum mismatch for %s", ErrCorruptArchive, r)
	}
	return s, nil
}

// Regions lists archived regions for a projection, ordered by start.
func (m *MemoryStore) Regions(projectionID string) []lattice.Region {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var regions []lattice.Region
	prefix := projectionID + "/"
	for key, encoded := range m.data {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		var env envelope
		if cbor.Unmarshal(encoded, &env) != nil {
			continue
		}
		var start, end uint32
		if _, err := fmt.Sscanf(env.RegionKey, "r%d-%d", &start, &end); err != nil {
			continue
		}
		regions = append(regions, lattice.Region{Start: start, End: end})
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start })
	return regions
}

// Delete removes an archived shard. Idempotent.
func (m *MemoryStore) Delete(projectionID string, r lattice.Region) error {
	key := storeKey(projectionID, r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		m.rawBytes -= m.recordLenLocked(key)
		delete(m.data, key)
	}
	return nil
}

// Stats returns storage statistics.
func (m *MemoryStore) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	archived := 0
	for _, encoded := range m.data {
		archived += len(encoded)
	}
	return Stats{
		Shards:        len(m.data),
		PayloadBytes:  m.rawBytes,
		ArchivedBytes: archived,
	}
}
