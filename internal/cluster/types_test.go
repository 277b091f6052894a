package cluster

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func TestPostJSON(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Unexpected content type %q", ct)
			}
			var req RegisterRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("Decode: %v", err)
			}
			if req.Node.ID != "node1" {
				t.Errorf("Unexpected node ID %q", req.Node.ID)
			}
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}))
		defer srv.Close()

		var out map[string]string
		err := PostJSON(context.Background(), srv.URL, RegisterRequest{
			Node: NodeInfo{ID: "node1", Addr: "127.0.0.1:8081"},
		}, &out)
		if err != nil {
			t.Fatalf("PostJSON: %v", err)
		}
		if out["status"] != "ok" {
			t.Errorf("Unexpected response %v", out)
		}
	})

	t.Run("nil out skips decoding", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		if err := PostJSON(context.Background(), srv.URL, struct{}{}, nil); err != nil {
			t.Errorf("PostJSON: %v", err)
		}
	})

	t.Run("error status surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad request", http.StatusBadRequest)
		}))
		defer srv.Close()

		if err := PostJSON(context.Background(), srv.URL, struct{}{}, nil); err == nil {
			t.Error("Expected error for 400 response")
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if err := PostJSON(ctx, srv.URL, struct{}{}, nil); err == nil {
			t.Error("Expected error from canceled context")
		}
	})
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(struct {
			Nodes []NodeInfo `json:"nodes"`
		}{Nodes: []NodeInfo{{ID: "node1", Addr: "a"}, {ID: "node2", Addr: "b"}}})
	}))
	defer srv.Close()

	var out struct {
		Nodes []NodeInfo `json:"nodes"`
	}
	if err := GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(out.Nodes) != 2 || out.Nodes[0].ID != "node1" {
		t.Errorf("Unexpected nodes %v", out.Nodes)
	}
}

func TestPostCBOR(t *testing.T) {
	t.Run("binary record survives intact", func(t *testing.T) {
		record := []byte{0x00, 0xFF, 0x80, 0x01, 0x02}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ct := r.Header.Get("Content-Type"); ct != cborContentType {
				t.Errorf("Unexpected content type %q", ct)
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				t.Errorf("ReadAll: %v", err)
			}
			var push ShardPush
			if err := cbor.Unmarshal(body, &push); err != nil {
				t.Errorf("Unmarshal: %v", err)
			}
			// Echo the record back as a pull response.
			w.Header().Set("Content-Type", cborContentType)
			out, _ := cbor.Marshal(ShardPull{ProjectionID: push.ProjectionID, Record: push.Record})
			w.Write(out)
		}))
		defer srv.Close()

		var pull ShardPull
		err := PostCBOR(context.Background(), srv.URL, ShardPush{
			ProjectionID: "proj-a",
			Record:       record,
		}, &pull)
		if err != nil {
			t.Fatalf("PostCBOR: %v", err)
		}
		if pull.ProjectionID != "proj-a" {
			t.Errorf("Unexpected projection ID %q", pull.ProjectionID)
		}
		if string(pull.Record) != string(record) {
			t.Errorf("Record changed in transit: %v", pull.Record)
		}
	})

	t.Run("error status surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "conflict", http.StatusConflict)
		}))
		defer srv.Close()

		if err := PostCBOR(context.Background(), srv.URL, ShardPush{}, nil); err == nil {
			t.Error("Expected error for 409 response")
		}
	})
}
