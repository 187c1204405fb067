package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/opendlt/aptos-toolkit/internal/metrics"
	"github.com/opendlt/aptos-toolkit/types"
)

// Node is the part of the node client probed by health checks
type Node interface {
	GetChainInfo(ctx context.Context) (*types.ChainInfo, error)
}

// Monitor reports the state of the event monitor feeding the relay
type Monitor interface {
	IsRunning() bool
	StreamCount() int
}

// HealthStatus represents the health status response
type HealthStatus struct {
	OK               bool      `json:"ok"`
	Height           uint64    `json:"height"`
	LedgerVersion    uint64    `json:"ledger_version"`
	ChainID          uint8     `json:"chain_id"`
	Mode             string    `json:"mode"`
	Timestamp        time.Time `json:"timestamp"`
	Uptime           string    `json:"uptime"`
	Streams          int       `json:"streams"`
	EventsDelivered  int64     `json:"events_delivered"`
	ConfirmationRate *float64  `json:"confirmation_rate,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	node      Node
	monitor   Monitor
	mode      string
	timeout   time.Duration
	startTime time.Time
}

// NewHealthChecker creates a health checker for the relay. monitor may be nil
// when the relay only serves externally published hubs.
func NewHealthChecker(node Node, monitor Monitor) *HealthChecker {
	return &HealthChecker{
		node:      node,
		monitor:   monitor,
		mode:      "relay",
		timeout:   5 * time.Second,
		startTime: time.Now(),
	}
}

// NewClientHealthChecker creates a health checker that only probes the node
func NewClientHealthChecker(node Node) *HealthChecker {
	hc := NewHealthChecker(node, nil)
	hc.mode = "client"
	return hc
}

// SetTimeout bounds the node probe
func (hc *HealthChecker) SetTimeout(d time.Duration) {
	if d > 0 {
		hc.timeout = d
	}
}

// Handler returns an HTTP handler for /healthz endpoint
func (hc *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := hc.GetStatus(r.Context())
		writeJSON(w, status.OK, status)
	}
}

// GetStatus returns the current health status
func (hc *HealthChecker) GetStatus(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Mode:            hc.mode,
		Timestamp:       time.Now().UTC(),
		Uptime:          time.Since(hc.startTime).String(),
		EventsDelivered: metrics.EventsDelivered.Value(),
	}

	hc.getNodeStatus(ctx, status)
	if status.OK && hc.monitor != nil {
		hc.getMonitorStatus(status)
	}

	if rate := metrics.ConfirmationRate(); rate > 0 {
		status.ConfirmationRate = &rate
	}
	return status
}

// getNodeStatus populates chain fields from the node ledger info
func (hc *HealthChecker) getNodeStatus(ctx context.Context, status *HealthStatus) {
	if hc.node == nil {
		status.Error = "no node configured"
		return
	}

	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	info, err := hc.node.GetChainInfo(ctx)
	if err != nil {
		status.Error = err.Error()
		return
	}
	status.OK = true
	status.Height = info.BlockHeight.Uint64()
	status.LedgerVersion = info.LedgerVersion.Uint64()
	status.ChainID = info.ChainID
}

// getMonitorStatus marks the relay unhealthy when no event stream is running
func (hc *HealthChecker) getMonitorStatus(status *HealthStatus) {
	status.Streams = hc.monitor.StreamCount()
	if !hc.monitor.IsRunning() {
		status.OK = false
		status.Error = "event monitor not running"
	}
}

// ReadinessHandler returns a readiness check handler. The relay is ready
// once the monitor has streams running.
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready := hc.monitor == nil || (hc.monitor.IsRunning() && hc.monitor.StreamCount() > 0)

		response := map[string]interface{}{
			"ready":     ready,
			"mode":      hc.mode,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		writeJSON(w, ready, response)
	}
}

// LivenessHandler returns a liveness check handler
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"alive":     true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		writeJSON(w, true, response)
	}
}

// DetailedStatusHandler returns the health status together with a metrics snapshot
func (hc *HealthChecker) DetailedStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := hc.GetStatus(r.Context())
		snapshot := metrics.GetSnapshot()

		response := map[string]interface{}{
			"status":    "healthy",
			"health":    status,
			"timestamp": snapshot.SnapshotTime.UTC().Format(time.RFC3339),
			"uptime":    metrics.Uptime().String(),
			"metrics":   snapshot,
		}
		if !status.OK {
			response["status"] = "unhealthy"
		}
		writeJSON(w, status.OK, response)
	}
}

func writeJSON(w http.ResponseWriter, ok bool, body any) {
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(body)
}
