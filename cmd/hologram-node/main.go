// The hologram-node service builds projections of 12,288-byte lattice
// buffers, extracts and archives page-aligned shards, serves them for
// pull, and drives reconstruction contexts. It registers with the
// coordinator on startup and answers its health probes.
//
// HTTP API:
//
//	GET  /health                          health probe
//	GET  /metrics                         prometheus metrics
//	GET  /info                            node state summary
//	POST /projections?kind=K&witness=1    build a projection (body: raw buffer)
//	GET  /projections/{id}                projection metadata
//	POST /projections/{id}/shards         extract + archive a shard (JSON region)
//	GET  /projections/{id}/shards?...     pull an archived shard (CBOR)
//	POST /reconstructions                 open a reconstruction context
//	GET  /reconstructions/{id}            context state
//	POST /reconstructions/{id}/shards     push a shard (CBOR)
//	POST /reconstructions/{id}/finalize   reassemble and verify
//
// Configuration: an optional YAML file (-config), overridden by
// NODE_ID, NODE_LISTEN, NODE_ADDR, COORDINATOR_ADDR, NODE_COMPRESSION.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/dreamware/hologram/internal/archive"
	"github.com/dreamware/hologram/internal/cluster"
)

// logFatal allows tests to intercept fatal exits.
var logFatal = func(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

func main() {
	configPath := pflag.String("config", "", "path to YAML config file")
	listen := pflag.String("listen", "", "listen address (overrides config)")
	pflag.Parse()

	cfg := defaultConfig()
	if err := loadConfig(*configPath, &cfg); err != nil {
		logFatal("config error", "error", err)
	}
	applyEnv(&cfg)
	if *listen != "" {
		cfg.Listen = *listen
	}
	if cfg.NodeID == "" {
		logFatal("NODE_ID is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("node", cfg.NodeID)
	slog.SetDefault(logger)

	compression := archive.CompressionZstd
	if cfg.Compression == "none" {
		compression = archive.CompressionNone
	}
	node := NewNode(cfg.NodeID, archive.NewMemoryStore(compression))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/info", node.handleNodeInfo)
	mux.HandleFunc("/projections", node.handleProjections)
	mux.HandleFunc("/projections/", node.handleProjectionRequest)
	mux.HandleFunc("/reconstructions", node.handleReconstructions)
	mux.HandleFunc("/reconstructions/", node.handleReconstructionRequest)

	s := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("node listening", "listen", cfg.Listen, "public", cfg.PublicAddr)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen failed", "error", err)
		}
	}()

	if cfg.CoordinatorAddr != "" {
		register(context.Background(), logger, cfg.CoordinatorAddr, cfg.NodeID, cfg.PublicAddr)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("node stopped")
}

// register announces the node to the coordinator, retrying to ride out
// coordinator startup delays. Persistent failure is fatal: an
// unregistered node never receives region assignments.
func register(ctx context.Context, logger *slog.Logger, coord, id, addr string) {
	body := cluster.RegisterRequest{Node: cluster.NodeInfo{ID: id, Addr: addr}}
	var lastErr error
	for i := 0; i < 10; i++ {
		lastErr = cluster.PostJSON(ctx, coord+"/register", body, nil)
		if lastErr == nil {
			logger.Info("registered with coordinator", "coordinator", coord)
			return
		}
		logger.Warn("register retry", "attempt", i+1, "error", lastErr)
		time.Sleep(400 * time.Millisecond)
	}
	logFatal("failed to register with coordinator", "error", lastErr)
}
