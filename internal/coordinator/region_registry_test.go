package coordinator

import (
	"testing"

	"github.com/dreamware/hologram/internal/lattice"
)

func TestNewRegionRegistry(t *testing.T) {
	t.Run("valid partition counts", func(t *testing.T) {
		for _, n := range []int{1, 2, 4, 12, 48} {
			reg, err := NewRegionRegistry(n)
			if err != nil {
				t.Fatalf("NewRegionRegistry(%d): %v", n, err)
			}
			if got := len(reg.Regions()); got != n {
				t.Errorf("Expected %d regions, got %d", n, got)
			}
		}
	})

	t.Run("rejects non-divisors", func(t *testing.T) {
		for _, n := range []int{0, -2, 5, 7, 50} {
			if _, err := NewRegionRegistry(n); err == nil {
				t.Errorf("Expected error for %d regions", n)
			}
		}
	})
}

func TestAssignAndLookup(t *testing.T) {
	reg, err := NewRegionRegistry(4)
	if err != nil {
		t.Fatalf("NewRegionRegistry: %v", err)
	}

	t.Run("assign and look up by offset", func(t *testing.T) {
		if err := reg.Assign(0, "node1"); err != nil {
			t.Fatalf("Assign: %v", err)
		}
		a := reg.AssignmentFor(100)
		if a == nil || a.NodeID != "node1" {
			t.Fatalf("Expected node1 for offset 100, got %+v", a)
		}
		if a.Region.Start != 0 || a.Region.End != 3072 {
			t.Errorf("Unexpected region %s", a.Region)
		}
	})

	t.Run("unassigned offset returns nil", func(t *testing.T) {
		if a := reg.AssignmentFor(9000); a != nil {
			t.Errorf("Expected nil, got %+v", a)
		}
	})

	t.Run("rejects unknown start", func(t *testing.T) {
		if err := reg.Assign(100, "node1"); err == nil {
			t.Error("Expected error for non-partition start")
		}
	})

	t.Run("rejects empty node id", func(t *testing.T) {
		if err := reg.Assign(0, ""); err == nil {
			t.Error("Expected error for empty node ID")
		}
	})

	t.Run("reassign replaces owner", func(t *testing.T) {
		if err := reg.Assign(0, "node2"); err != nil {
			t.Fatalf("Assign: %v", err)
		}
		if a := reg.AssignmentFor(0); a == nil || a.NodeID != "node2" {
			t.Errorf("Expected node2, got %+v", a)
		}
	})

	t.Run("unassign", func(t *testing.T) {
		if err := reg.Unassign(0); err != nil {
			t.Fatalf("Unassign: %v", err)
		}
		if a := reg.AssignmentFor(0); a != nil {
			t.Errorf("Expected nil after unassign, got %+v", a)
		}
		// Unassigning again is fine; an unknown start is not.
		if err := reg.Unassign(0); err != nil {
			t.Errorf("Repeat unassign: %v", err)
		}
		if err := reg.Unassign(77); err == nil {
			t.Error("Expected error for non-partition start")
		}
	})

	t.Run("returned assignment is a copy", func(t *testing.T) {
		if err := reg.Assign(0, "node1"); err != nil {
			t.Fatalf("Assign: %v", err)
		}
		a := reg.AssignmentFor(0)
		a.NodeID = "mutated"
		if b := reg.AssignmentFor(0); b.NodeID != "node1" {
			t.Error("External mutation leaked into the registry")
		}
	})
}

func TestRebalance(t *testing.T) {
	reg, err := NewRegionRegistry(4)
	if err != nil {
		t.Fatalf("NewRegionRegistry: %v", err)
	}

	t.Run("round robin across nodes", func(t *testing.T) {
		reg.Rebalance([]string{"node1", "node2"})
		all := reg.AllAssignments()
		if len(all) != 4 {
			t.Fatalf("Expected 4 assignments, got %d", len(all))
		}
		want := []string{"node1", "node2", "node1", "node2"}
		for i, a := range all {
			if a.NodeID != want[i] {
				t.Errorf("Region %d assigned to %s, want %s", i, a.NodeID, want[i])
			}
		}
	})

	t.Run("node regions", func(t *testing.T) {
		regions := reg.NodeRegions("node1")
		if len(regions) != 2 {
			t.Fatalf("Expected 2 regions for node1, got %d", len(regions))
		}
		if regions[0].Start != 0 || regions[1].Start != 6144 {
			t.Errorf("Unexpected regions %v", regions)
		}
	})

	t.Run("empty node list is a no-op", func(t *testing.T) {
		reg.Rebalance(nil)
		if len(reg.AllAssignments()) != 4 {
			t.Error("Rebalance(nil) changed assignments")
		}
	})
}

func TestReassignNode(t *testing.T) {
	newBalanced := func(t *testing.T) *RegionRegistry {
		t.Helper()
		reg, err := NewRegionRegistry(4)
		if err != nil {
			t.Fatalf("NewRegionRegistry: %v", err)
		}
		reg.Rebalance([]string{"node1", "node2"})
		return reg
	}

	t.Run("moves failed node's regions to survivors", func(t *testing.T) {
		reg := newBalanced(t)
		moved := reg.ReassignNode("node1", []string{"node2", "node3"})
		if len(moved) != 2 {
			t.Fatalf("Expected 2 moved regions, got %d", len(moved))
		}
		if len(reg.NodeRegions("node1")) != 0 {
			t.Error("Failed node still owns regions")
		}
		if len(reg.NodeRegions("node2")) != 3 || len(reg.NodeRegions("node3")) != 1 {
			t.Errorf("Unexpected distribution: node2=%d node3=%d",
				len(reg.NodeRegions("node2")), len(reg.NodeRegions("node3")))
		}
	})

	t.Run("no survivors leaves regions unassigned", func(t *testing.T) {
		reg := newBalanced(t)
		moved := reg.ReassignNode("node1", nil)
		if len(moved) != 2 {
			t.Fatalf("Expected 2 moved regions, got %d", len(moved))
		}
		if got := len(reg.AllAssignments()); got != 2 {
			t.Errorf("Expected 2 remaining assignments, got %d", got)
		}
	})

	t.Run("unknown node moves nothing", func(t *testing.T) {
		reg := newBalanced(t)
		if moved := reg.ReassignNode("ghost", []string{"node1"}); len(moved) != 0 {
			t.Errorf("Expected no moves, got %v", moved)
		}
	})
}

func TestPartitionGeometry(t *testing.T) {
	reg, err := NewRegionRegistry(4)
	if err != nil {
		t.Fatalf("NewRegionRegistry: %v", err)
	}
	regions := reg.Regions()
	var covered uint32
	for i, r := range regions {
		if r.Validate() != nil {
			t.Errorf("Region %d invalid: %s", i, r)
		}
		covered += r.Size()
	}
	if covered != lattice.BufferSize {
		t.Errorf("Partition covers %d bytes, want %d", covered, lattice.BufferSize)
	}
}
