package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// NodeInfo identifies one node in the lattice cluster.
type NodeInfo struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// RegisterRequest is sent by a node to the coordinator on startup.
type RegisterRequest struct {
	Node NodeInfo `json:"node"`
}

// RegionAssignmentInfo describes one region-to-node assignment as
// reported by the coordinator.
type RegionAssignmentInfo struct {
	Start  uint32 `json:"start"`
	End    uint32 `json:"end"`
	NodeID string `json:"node_id"`
}

// ShardPush carries one wire-marshaled shard record between processes.
// The record travels opaque inside a CBOR body; the receiving side
// parses and verifies it with the shard package.
type ShardPush struct {
	ProjectionID string `cbor:"projection_id"`
	Record       []byte `cbor:"record"`
}

// ShardPull is the response to a shard fetch.
type ShardPull struct {
	ProjectionID string `cbor:"projection_id"`
	Record       []byte `cbor:"record"`
}

const cborContentType = "application/cbor"

var httpClient = &http.Client{Timeout: 5 * time.Second}

// PostJSON posts body as JSON to url and decodes the response into out
// when out is non-nil. Control-plane messages (registration, listings,
// assignments) travel as JSON.
func PostJSON(ctx context.Context, url string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetJSON fetches url and decodes the JSON response into out.
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PostCBOR posts body as CBOR to url and decodes the CBOR response into
// out when out is non-nil. Shard records travel as CBOR: they are
// binary payloads, and base64-in-JSON would inflate every transfer.
func PostCBOR(ctx context.Context, url string, body any, out any) error {
	reqBody, err := cbor.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", cborContentType)
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return cbor.NewDecoder(resp.Body).Decode(out)
}
