// Package coordinator implements the orchestration layer for the
// hologram cluster: the region registry that assigns page-aligned
// lattice regions to nodes, and the health monitor that probes them.
package coordinator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dreamware/hologram/internal/lattice"
)

// RegionAssignment records the assignment of one lattice region to a
// node. Assignments are immutable once created; the registry returns
// copies to prevent external modification.
type RegionAssignment struct {
	// Region is the page-aligned byte range the node is responsible
	// for extracting, archiving, and serving.
	Region lattice.Region

	// NodeID identifies the owning node. Must match a registered
	// node's ID.
	NodeID string
}

// RegionRegistry manages region-to-node assignments. The lattice is
// partitioned once, at registry creation, into equal page-aligned
// regions; the partition is fixed for the registry's lifetime, while
// the node owning each region may change as nodes join and fail.
//
// Concurrency: read operations take a shared lock, mutations an
// exclusive one, and all returned data is copied.
type RegionRegistry struct {
	mu          sync.RWMutex
	regions     []lattice.Region             // the fixed partition, ordered by start
	assignments map[uint32]*RegionAssignment // region start -> assignment
}

// NewRegionRegistry partitions the lattice into regionCount equal
// page-aligned regions. regionCount must be a positive divisor of the
// 48-page count.
func NewRegionRegistry(regionCount int) (*RegionRegistry, error) {
	regions, err := lattice.Partition(regionCount)
	if err != nil {
		return nil, err
	}
	return &RegionRegistry{
		regions:     regions,
		assignments: make(map[uint32]*RegionAssignment),
	}, nil
}

// Regions returns the fixed partition, ordered by start offset.
func (r *RegionRegistry) Regions() []lattice.Region {
	return append([]lattice.Region(nil), r.regions...)
}

// Assign gives the region starting at start to nodeID, replacing any
// previous assignment. The start must identify one of the partition's
// regions and the node ID must be non-empty.
func (r *RegionRegistry) Assign(start uint32, nodeID string) error {
	if nodeID == "" {
		return errors.New("node ID cannot be empty")
	}
	region, ok := r.regionAt(start)
	if !ok {
		return fmt.Errorf("%w: no partition region starts at %d", lattice.ErrInvalidRegion, start)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments[start] = &RegionAssignment{Region: region, NodeID: nodeID}
	return nil
}

// Unassign removes the assignment for the region starting at start.
// No error if the region was unassigned.
func (r *RegionRegistry) Unassign(start uint32) error {
	if _, ok := r.regionAt(start); !ok {
		return fmt.Errorf("%w: no partition region starts at %d", lattice.ErrInvalidRegion, start)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.assignments, start)
	return nil
}

// AssignmentFor returns the assignment covering the given byte offset,
// or nil if that region is unassigned.
func (r *RegionRegistry) AssignmentFor(offset uint32) *RegionAssignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.assignments {
		if offset >= a.Region.Start && offset < a.Region.End {
			cp := *a
			return &cp
		}
	}
	return nil
}

// NodeRegions returns the regions assigned to nodeID, ordered by start.
func (r *RegionRegistry) NodeRegions(nodeID string) []lattice.Region {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []lattice.Region
	for _, region := range r.regions {
		if a, ok := r.assignments[region.Start]; ok && a.NodeID == nodeID {
			out = append(out, region)
		}
	}
	return out
}

// AllAssignments returns copies of every current assignment, ordered by
// region start. Unassigned regions are not included.
func (r *RegionRegistry) AllAssignments() []*RegionAssignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RegionAssignment, 0, len(r.assignments))
	for _, region := range r.regions {
		if a, ok := r.assignments[region.Start]; ok {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

// Rebalance assigns every region across the given nodes round-robin,
// in region order. Existing assignments are replaced. No-op when nodes
// is empty.
func (r *RegionRegistry) Rebalance(nodeIDs []string) {
	if len(nodeIDs) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, region := range r.regions {
		r.assignments[region.Start] = &RegionAssignment{
			Region: region,
			NodeID: nodeIDs[i%len(nodeIDs)],
		}
	}
}

// ReassignNode moves every region owned by failedID onto the surviving
// nodes round-robin and returns the regions that moved. Used by the
// health monitor's unhealthy callback. When no survivors exist the
// regions become unassigned.
func (r *RegionRegistry) ReassignNode(failedID string, survivors []string) []lattice.Region {
	r.mu.Lock()
	defer r.mu.Unlock()

	var moved []lattice.Region
	i := 0
	for _, region := range r.regions {
		a, ok := r.assignments[region.Start]
		if !ok || a.NodeID != failedID {
			continue
		}
		moved = append(moved, region)
		if len(survivors) == 0 {
			delete(r.assignments, region.Start)
			continue
		}
		r.assignments[region.Start] = &RegionAssignment{
			Region: region,
			NodeID: survivors[i%len(survivors)],
		}
		i++
	}
	return moved
}

func (r *RegionRegistry) regionAt(start uint32) (lattice.Region, bool) {
	for _, region := range r.regions {
		if region.Start == start {
			return region, true
		}
	}
	return lattice.Region{}, false
}
