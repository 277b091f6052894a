// The hologram-coordinator service is the cluster control plane: it
// tracks registered nodes, monitors their health, and assigns
// page-aligned lattice regions to them. Nodes that fail health checks
// have their regions reassigned to the survivors.
//
// HTTP API:
//
//	POST /register        node registration
//	GET  /nodes           registered nodes
//	GET  /regions         current region assignments
//	POST /regions/assign  manual region assignment
//	GET  /health          health probe
//
// Configuration: COORDINATOR_ADDR (listen address, default ":8080"),
// COORDINATOR_REGIONS (partition size, default 4), and the
// -health-interval flag.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/dreamware/hologram/internal/coordinator"
)

var logFatal = func(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

func main() {
	healthInterval := pflag.Duration("health-interval", 5*time.Second, "node health check interval")
	pflag.Parse()

	addr := getenv("COORDINATOR_ADDR", ":8080")
	regionCount := 4
	if v := os.Getenv("COORDINATOR_REGIONS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			logFatal("bad COORDINATOR_REGIONS", "value", v)
		}
		regionCount = parsed
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	srv, err := newServer(regionCount, logger)
	if err != nil {
		logFatal("server setup failed", "error", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/register", srv.handleRegister)
	mux.HandleFunc("/nodes", srv.handleListNodes)
	mux.HandleFunc("/regions", srv.handleListRegions)
	mux.HandleFunc("/regions/assign", srv.handleRegionAssign)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Health monitoring reassigns a failed node's regions to the
	// survivors.
	monitor := coordinator.NewHealthMonitor(*healthInterval, logger)
	monitor.SetOnUnhealthy(srv.reassignFrom)
	monitorCtx, cancelMonitor := context.WithCancel(context.Background())
	go monitor.Start(monitorCtx, srv.nodeList)

	go func() {
		logger.Info("coordinator listening", "addr", addr, "regions", regionCount)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	cancelMonitor()
	monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	logger.Info("coordinator stopped")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
