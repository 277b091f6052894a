package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dreamware/hologram/internal/cluster"
)

// NodeHealth tracks the health status of one registered node.
// Protected by the monitor's mutex when accessed.
type NodeHealth struct {
	LastCheck        time.Time // timestamp of the last check attempt
	LastHealthy      time.Time // timestamp of the last successful check
	NodeID           string    // node identifier
	Status           string    // "healthy", "unhealthy", or "unknown"
	ConsecutiveFails int       // consecutive failed checks
}

// HealthMonitor periodically probes every registered node's /health
// endpoint. A node that fails maxFailures consecutive checks is marked
// unhealthy and the onUnhealthy callback fires, which the coordinator
// uses to reassign the node's lattice regions. All methods are safe for
// concurrent use.
type HealthMonitor struct {
	nodes       map[string]*NodeHealth
	httpClient  *http.Client
	checkFunc   func(addr string) error // overridable in tests
	onUnhealthy func(nodeID string)
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	interval    time.Duration
	mu          sync.RWMutex
	wg          sync.WaitGroup
	maxFailures int
}

// NewHealthMonitor creates a monitor that probes each node every
// interval and marks it unhealthy after three consecutive failures.
func NewHealthMonitor(interval time.Duration, logger *slog.Logger) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{
		interval:    interval,
		maxFailures: 3,
		nodes:       make(map[string]*NodeHealth),
		httpClient:  &http.Client{Timeout: 2 * time.Second},
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetOnUnhealthy sets the callback invoked (in its own goroutine, once
// per transition) when a node becomes unhealthy.
func (h *HealthMonitor) SetOnUnhealthy(callback func(nodeID string)) {
	h.onUnhealthy = callback
}

// Start runs the monitoring loop in the calling goroutine until the
// context is canceled. nodeProvider returns the current node list on
// every tick, so newly registered nodes are picked up automatically.
func (h *HealthMonitor) Start(ctx context.Context, nodeProvider func() []cluster.NodeInfo) {
	h.wg.Add(1)
	defer h.wg.Done()

	if ctx == nil {
		ctx = h.ctx
	}
	if h.checkFunc == nil {
		h.checkFunc = h.defaultHealthCheck
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("health monitor started", "interval", h.interval)
	h.checkAllNodes(nodeProvider())

	for {
		select {
		case <-ticker.C:
			h.checkAllNodes(nodeProvider())
		case <-ctx.Done():
			h.logger.Info("health monitor stopping")
			return
		case <-h.ctx.Done():
			h.logger.Info("health monitor stopping")
			return
		}
	}
}

// Stop cancels the monitoring loop and waits for it to exit.
func (h *HealthMonitor) Stop() {
	h.cancel()
	h.wg.Wait()
}

// Status returns a copy of the current health record for a node, or nil
// if the node is not being monitored.
func (h *HealthMonitor) Status(nodeID string) *NodeHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if health, ok := h.nodes[nodeID]; ok {
		cp := *health
		return &cp
	}
	return nil
}

func (h *HealthMonitor) checkAllNodes(nodes []cluster.NodeInfo) {
	current := make(map[string]bool)
	for _, node := range nodes {
		current[node.ID] = true
		h.checkNode(node)
	}

	// Drop nodes that are no longer registered.
	h.mu.Lock()
	for nodeID := range h.nodes {
		if !current[nodeID] {
			delete(h.nodes, nodeID)
			h.logger.Info("node removed from health monitoring", "node", nodeID)
		}
	}
	h.mu.Unlock()
}

func (h *HealthMonitor) checkNode(node cluster.NodeInfo) {
	h.mu.Lock()
	health, exists := h.nodes[node.ID]
	if !exists {
		health = &NodeHealth{
			NodeID:      node.ID,
			Status:      "unknown",
			LastCheck:   time.Now(),
			LastHealthy: time.Now(),
		}
		h.nodes[node.ID] = health
	}
	h.mu.Unlock()

	err := h.checkFunc(node.Addr)

	h.mu.Lock()
	defer h.mu.Unlock()

	health.LastCheck = time.Now()

	if err != nil {
		health.ConsecutiveFails++
		h.logger.Warn("health check failed",
			"node", node.ID,
			"attempt", health.ConsecutiveFails,
			"max", h.maxFailures,
			"error", err)

		if health.ConsecutiveFails >= h.maxFailures {
			previous := health.Status
			health.Status = "unhealthy"
			if previous != "unhealthy" && h.onUnhealthy != nil {
				h.logger.Error("node marked unhealthy",
					"node", node.ID,
					"failures", health.ConsecutiveFails)
				// Callback runs without the lock held.
				go h.onUnhealthy(node.ID)
			}
		}
		return
	}

	if health.Status == "unhealthy" {
		h.logger.Info("node recovered", "node", node.ID)
	}
	health.Status = "healthy"
	health.ConsecutiveFails = 0
	health.LastHealthy = time.Now()
}

func (h *HealthMonitor) defaultHealthCheck(addr string) error {
	url := addr
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	resp, err := h.httpClient.Get(url + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}
