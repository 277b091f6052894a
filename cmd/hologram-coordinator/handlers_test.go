package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dreamware/hologram/internal/cluster"
)

func testServer(t *testing.T, regionCount int) *server {
	t.Helper()
	srv, err := newServer(regionCount, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	return srv
}

func register(t *testing.T, srv *server, id, addr string) {
	t.Helper()
	body, err := json.Marshal(cluster.RegisterRequest{Node: cluster.NodeInfo{ID: id, Addr: addr}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	srv.handleRegister(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Register %s: status %d %s", id, w.Code, w.Body.String())
	}
}

func listRegions(t *testing.T, srv *server) []cluster.RegionAssignmentInfo {
	t.Helper()
	w := httptest.NewRecorder()
	srv.handleListRegions(w, httptest.NewRequest(http.MethodGet, "/regions", nil))
	var out struct {
		Regions []cluster.RegionAssignmentInfo `json:"regions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Decode regions: %v", err)
	}
	return out.Regions
}

func TestHandleRegister(t *testing.T) {
	t.Run("registration assigns regions", func(t *testing.T) {
		srv := testServer(t, 4)
		register(t, srv, "node1", "127.0.0.1:8081")

		regions := listRegions(t, srv)
		if len(regions) != 4 {
			t.Fatalf("Expected 4 assignments, got %d", len(regions))
		}
		for _, r := range regions {
			if r.NodeID != "node1" {
				t.Errorf("Region [%d,%d) assigned to %s", r.Start, r.End, r.NodeID)
			}
		}
	})

	t.Run("second node rebalances", func(t *testing.T) {
		srv := testServer(t, 4)
		register(t, srv, "node1", "127.0.0.1:8081")
		register(t, srv, "node2", "127.0.0.1:8082")

		counts := map[string]int{}
		for _, r := range listRegions(t, srv) {
			counts[r.NodeID]++
		}
		if counts["node1"] != 2 || counts["node2"] != 2 {
			t.Errorf("Expected even split, got %v", counts)
		}
	})

	t.Run("re-registration updates address without rebalancing", func(t *testing.T) {
		srv := testServer(t, 4)
		register(t, srv, "node1", "127.0.0.1:8081")
		register(t, srv, "node2", "127.0.0.1:8082")
		before := listRegions(t, srv)

		register(t, srv, "node1", "127.0.0.1:9999")

		nodes := srv.nodeList()
		if len(nodes) != 2 {
			t.Fatalf("Expected 2 nodes, got %d", len(nodes))
		}
		for _, n := range nodes {
			if n.ID == "node1" && n.Addr != "127.0.0.1:9999" {
				t.Errorf("Address not updated: %s", n.Addr)
			}
		}
		after := listRegions(t, srv)
		for i := range before {
			if before[i] != after[i] {
				t.Errorf("Re-registration moved region %d: %+v -> %+v", i, before[i], after[i])
			}
		}
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		srv := testServer(t, 4)
		req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"node": {"id": ""}}`))
		w := httptest.NewRecorder()
		srv.handleRegister(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("bad json rejected", func(t *testing.T) {
		srv := testServer(t, 4)
		req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("{"))
		w := httptest.NewRecorder()
		srv.handleRegister(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})
}

func TestHandleListNodes(t *testing.T) {
	srv := testServer(t, 4)
	register(t, srv, "node1", "127.0.0.1:8081")
	register(t, srv, "node2", "127.0.0.1:8082")

	w := httptest.NewRecorder()
	srv.handleListNodes(w, httptest.NewRequest(http.MethodGet, "/nodes", nil))
	var out struct {
		Nodes []cluster.NodeInfo `json:"nodes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out.Nodes) != 2 {
		t.Errorf("Expected 2 nodes, got %v", out.Nodes)
	}
}

func TestHandleRegionAssign(t *testing.T) {
	srv := testServer(t, 4)
	register(t, srv, "node1", "127.0.0.1:8081")
	register(t, srv, "node2", "127.0.0.1:8082")

	t.Run("manual override", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/regions/assign",
			strings.NewReader(`{"start": 0, "node_id": "node2"}`))
		w := httptest.NewRecorder()
		srv.handleRegionAssign(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("Status %d: %s", w.Code, w.Body.String())
		}
		regions := listRegions(t, srv)
		if regions[0].NodeID != "node2" {
			t.Errorf("Region 0 assigned to %s", regions[0].NodeID)
		}
	})

	t.Run("unknown region start", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/regions/assign",
			strings.NewReader(`{"start": 100, "node_id": "node1"}`))
		w := httptest.NewRecorder()
		srv.handleRegionAssign(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("get rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/regions/assign", nil)
		w := httptest.NewRecorder()
		srv.handleRegionAssign(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", w.Code)
		}
	})
}

func TestReassignFrom(t *testing.T) {
	srv := testServer(t, 4)
	register(t, srv, "node1", "127.0.0.1:8081")
	register(t, srv, "node2", "127.0.0.1:8082")

	srv.reassignFrom("node1")

	for _, r := range listRegions(t, srv) {
		if r.NodeID == "node1" {
			t.Errorf("Region [%d,%d) still assigned to failed node", r.Start, r.End)
		}
	}
	// The failed node stays registered so it can recover.
	if len(srv.nodeList()) != 2 {
		t.Errorf("Failed node dropped from membership")
	}
}
