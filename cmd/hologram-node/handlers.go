package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/dreamware/hologram/internal/cluster"
	"github.com/dreamware/hologram/internal/lattice"
	"github.com/dreamware/hologram/internal/projection"
	"github.com/dreamware/hologram/internal/reconstruct"
	"github.com/dreamware/hologram/internal/resonance"
	"github.com/dreamware/hologram/internal/shard"
	"github.com/dreamware/hologram/internal/witness"
)

// projectionInfo is the JSON view of a registered projection.
type projectionInfo struct {
	ID                string         `json:"id"`
	Kind              string         `json:"kind"`
	Checksum          uint8          `json:"checksum"`
	ConservedChecksum uint8          `json:"conserved_checksum"`
	NormalForm        uint8          `json:"normal_form,omitempty"`
	Witness           *witness.Token `json:"witness,omitempty"`
}

// shardInfo is the JSON view of an extracted shard.
type shardInfo struct {
	Start          uint32 `json:"start"`
	End            uint32 `json:"end"`
	Pages          uint16 `json:"pages"`
	Kind           string `json:"kind"`
	Checksum       uint8  `json:"checksum"`
	GlobalChecksum uint8  `json:"global_checksum"`
	RegionClass    uint8  `json:"region_class,omitempty"`
}

// reconstructionInfo is the JSON view of a reconstruction context.
type reconstructionInfo struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Shards int    `json:"shards"`
}

// handleProjections serves POST /projections: the request body is the
// raw 12,288-byte source buffer, the kind query parameter selects the
// representation, and witness=1 requests an advisory token over the
// source bytes.
func (n *Node) handleProjections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, lattice.BufferSize+1))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	buf, err := lattice.NewBuffer(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	kind, err := parseKind(r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, p, err := n.BuildProjection(buf, kind)
	if err != nil {
		writeProjectionError(w, err)
		return
	}
	projectionsBuilt.WithLabelValues(kind.String()).Inc()

	info := projectionInfo{
		ID:                id,
		Kind:              p.Kind().String(),
		Checksum:          p.Checksum(),
		ConservedChecksum: p.ConservedChecksum(),
		NormalForm:        p.NormalForm(),
	}
	if r.URL.Query().Get("witness") == "1" {
		tok, err := n.WitnessPayload(body)
		if err != nil {
			// Witnessing is advisory; log and continue.
			slog.Warn("witness generation failed", "projection", id, "error", err)
		} else {
			info.Witness = &tok
		}
	}
	writeJSON(w, http.StatusCreated, info)
}

// handleProjectionRequest routes /projections/{id} and
// /projections/{id}/shards.
func (n *Node) handleProjectionRequest(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/projections/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		http.Error(w, "missing projection id", http.StatusBadRequest)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		n.handleProjectionInfo(id, w)
	case sub == "shards" && r.Method == http.MethodPost:
		n.handleShardExtract(id, w, r)
	case sub == "shards" && r.Method == http.MethodGet:
		n.handleShardPull(id, w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (n *Node) handleProjectionInfo(id string, w http.ResponseWriter) {
	p, err := n.Projection(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, projectionInfo{
		ID:                id,
		Kind:              p.Kind().String(),
		Checksum:          p.Checksum(),
		ConservedChecksum: p.ConservedChecksum(),
		NormalForm:        p.NormalForm(),
	})
}

// handleShardExtract serves POST /projections/{id}/shards with a JSON
// {"start": ..., "end": ...} region. The shard is archived and its
// metadata returned.
func (n *Node) handleShardExtract(id string, w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start uint32 `json:"start"`
		End   uint32 `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	s, err := n.ExtractShard(id, lattice.Region{Start: req.Start, End: req.End})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	shardsExtracted.Inc()

	writeJSON(w, http.StatusCreated, shardInfo{
		Start:          s.Region.Start,
		End:            s.Region.End,
		Pages:          s.Region.Pages(),
		Kind:           s.Kind.String(),
		Checksum:       s.Checksum,
		GlobalChecksum: s.GlobalChecksum,
		RegionClass:    s.RegionClass,
	})
}

// handleShardPull serves GET /projections/{id}/shards?start=&end=,
// returning the archived wire record in a CBOR body.
func (n *Node) handleShardPull(id string, w http.ResponseWriter, r *http.Request) {
	region, err := parseRegionQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s, err := n.ArchivedShard(id, region)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	record, err := s.Marshal()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	shardsServed.Inc()
	writeCBOR(w, http.StatusOK, cluster.ShardPull{ProjectionID: id, Record: record})
}

// handleReconstructions serves POST /reconstructions with a JSON
// {"size": ...} declaring the source range to rebuild.
func (n *Node) handleReconstructions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Size uint32 `json:"size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	id, err := n.NewReconstruction(req.Size)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, reconstructionInfo{ID: id, State: reconstruct.Accumulating.String()})
}

// handleReconstructionRequest routes /reconstructions/{id},
// /reconstructions/{id}/shards, and /reconstructions/{id}/finalize.
func (n *Node) handleReconstructionRequest(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/reconstructions/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		http.Error(w, "missing reconstruction id", http.StatusBadRequest)
		return
	}
	ctx, err := n.Reconstruction(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, reconstructionInfo{ID: id, State: ctx.State().String(), Shards: ctx.ShardCount()})
	case sub == "shards" && r.Method == http.MethodPost:
		n.handleShardPush(id, ctx, w, r)
	case sub == "finalize" && r.Method == http.MethodPost:
		n.handleFinalize(id, ctx, w)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// handleShardPush accepts one wire-marshaled shard in a CBOR body and
// feeds it to the reconstruction context.
func (n *Node) handleShardPush(id string, ctx *reconstruct.Context, w http.ResponseWriter, r *http.Request) {
	var push cluster.ShardPush
	if err := cbor.NewDecoder(r.Body).Decode(&push); err != nil {
		http.Error(w, "bad cbor", http.StatusBadRequest)
		return
	}
	s, err := shard.Unmarshal(push.Record)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := ctx.AddShard(s); err != nil {
		status := http.StatusConflict
		if errors.Is(err, reconstruct.ErrShardVerification) || errors.Is(err, lattice.ErrInvalidRegion) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusAccepted, reconstructionInfo{ID: id, State: ctx.State().String(), Shards: ctx.ShardCount()})
}

// handleFinalize reassembles a complete context into a projection.
func (n *Node) handleFinalize(id string, ctx *reconstruct.Context, w http.ResponseWriter) {
	p, err := ctx.Finalize()
	if err != nil {
		if errors.Is(err, reconstruct.ErrConservationFailure) {
			conservationViolations.Inc()
			reconstructions.WithLabelValues("aborted").Inc()
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	reconstructions.WithLabelValues("finalized").Inc()

	writeJSON(w, http.StatusOK, projectionInfo{
		ID:                id,
		Kind:              p.Kind().String(),
		Checksum:          p.Checksum(),
		ConservedChecksum: p.ConservedChecksum(),
		NormalForm:        p.NormalForm(),
	})
}

// handleNodeInfo serves GET /info for debugging and monitoring.
func (n *Node) handleNodeInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	n.mu.RLock()
	projections := len(n.projections)
	contexts := len(n.contexts)
	n.mu.RUnlock()
	stats := n.archive.Stats()

	writeJSON(w, http.StatusOK, map[string]any{
		"id":              n.ID,
		"projections":     projections,
		"reconstructions": contexts,
		"archive": map[string]int{
			"shards":         stats.Shards,
			"payload_bytes":  stats.PayloadBytes,
			"archived_bytes": stats.ArchivedBytes,
		},
	})
}

func parseKind(s string) (projection.Kind, error) {
	switch s {
	case "", "linear":
		return projection.Linear, nil
	case "r96-fourier":
		return projection.R96Fourier, nil
	default:
		return 0, errors.New("kind must be linear or r96-fourier")
	}
}

func parseRegionQuery(r *http.Request) (lattice.Region, error) {
	start, err := strconv.ParseUint(r.URL.Query().Get("start"), 10, 32)
	if err != nil {
		return lattice.Region{}, errors.New("bad start offset")
	}
	end, err := strconv.ParseUint(r.URL.Query().Get("end"), 10, 32)
	if err != nil {
		return lattice.Region{}, errors.New("bad end offset")
	}
	return lattice.Region{Start: uint32(start), End: uint32(end)}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeCBOR(w http.ResponseWriter, status int, v any) {
	data, err := cbor.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeProjectionError maps build failures onto HTTP statuses:
// conservation violations are unprocessable, classifier failures are a
// bad gateway (external collaborator), the rest are caller errors.
func writeProjectionError(w http.ResponseWriter, err error) {
	var cerr *lattice.ConservationError
	switch {
	case errors.As(err, &cerr):
		conservationViolations.Inc()
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, resonance.ErrClassifierUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
