package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/dreamware/hologram/internal/cluster"
	"github.com/dreamware/hologram/internal/coordinator"
)

// server holds coordinator state: the registered node list and the
// region registry.
type server struct {
	mu       sync.RWMutex
	nodes    []cluster.NodeInfo
	registry *coordinator.RegionRegistry
	logger   *slog.Logger
}

func newServer(regionCount int, logger *slog.Logger) (*server, error) {
	registry, err := coordinator.NewRegionRegistry(regionCount)
	if err != nil {
		return nil, err
	}
	return &server{registry: registry, logger: logger}, nil
}

// nodeList returns a copy of the registered nodes; the health monitor
// calls it on every tick.
func (s *server) nodeList() []cluster.NodeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]cluster.NodeInfo(nil), s.nodes...)
}

func (s *server) nodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.nodes))
	for i, n := range s.nodes {
		ids[i] = n.ID
	}
	return ids
}

// handleRegister records a node and rebalances the region partition
// across the current membership. Re-registration with a changed
// address updates the record without rebalancing.
func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req cluster.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Node.ID == "" || req.Node.Addr == "" {
		http.Error(w, "missing id/addr", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	idx := slices.IndexFunc(s.nodes, func(n cluster.NodeInfo) bool { return n.ID == req.Node.ID })
	rebalance := idx < 0
	if idx >= 0 {
		s.nodes[idx] = req.Node
	} else {
		s.nodes = append(s.nodes, req.Node)
	}
	ids := make([]string, len(s.nodes))
	for i, n := range s.nodes {
		ids[i] = n.ID
	}
	s.mu.Unlock()

	if rebalance {
		s.registry.Rebalance(ids)
		s.logger.Info("node registered", "node", req.Node.ID, "addr", req.Node.Addr, "nodes", len(ids))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Nodes []cluster.NodeInfo `json:"nodes"`
	}{Nodes: s.nodes})
}

func (s *server) handleListRegions(w http.ResponseWriter, _ *http.Request) {
	assignments := s.registry.AllAssignments()
	out := make([]cluster.RegionAssignmentInfo, len(assignments))
	for i, a := range assignments {
		out[i] = cluster.RegionAssignmentInfo{
			Start:  a.Region.Start,
			End:    a.Region.End,
			NodeID: a.NodeID,
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Regions []cluster.RegionAssignmentInfo `json:"regions"`
	}{Regions: out})
}

// handleRegionAssign serves manual assignment:
// POST /regions/assign {"start": ..., "node_id": ...}.
func (s *server) handleRegionAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Start  uint32 `json:"start"`
		NodeID string `json:"node_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.registry.Assign(req.Start, req.NodeID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reassignFrom moves an unhealthy node's regions to the survivors. The
// failed node stays in the node list so it can recover and re-register
// its health; only its regions move.
func (s *server) reassignFrom(failedID string) {
	survivors := make([]string, 0)
	for _, id := range s.nodeIDs() {
		if id != failedID {
			survivors = append(survivors, id)
		}
	}
	moved := s.registry.ReassignNode(failedID, survivors)
	if len(moved) > 0 {
		s.logger.Warn("regions reassigned from unhealthy node",
			"node", failedID,
			"moved", len(moved),
			"survivors", len(survivors))
	}
}
