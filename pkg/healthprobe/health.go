package healthprobe

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// HealthChecker provides health and readiness checks. Readiness is the
// startup flag plus any registered components: the probe reports 503
// until every registered component is up.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool

	mu         sync.Mutex
	components map[string]bool
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime:  time.Now(),
		components: make(map[string]bool),
	}
}

// SetReady marks the application as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// SetComponent registers or updates one component's readiness, e.g.
// the market feed's connection state.
func (h *HealthChecker) SetComponent(name string, up bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = up
}

// waiting returns the registered components that are not up, sorted.
func (h *HealthChecker) waiting() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []string
	for name, up := range h.components {
		if !up {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string   `json:"status"`
	Uptime  string   `json:"uptime"`
	Message string   `json:"message,omitempty"`
	Waiting []string `json:"waiting,omitempty"`
}

// Health returns an HTTP handler for liveness checks. Always 200 while
// the process runs.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Ready returns an HTTP handler for readiness checks. 503 until the
// application has started and every registered component is up.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		waiting := h.waiting()
		if !h.ready.Load() || len(waiting) > 0 {
			msg := "engine is starting"
			if len(waiting) > 0 {
				msg = "waiting on " + strings.Join(waiting, ", ")
			}
			resp := HealthResponse{
				Status:  "not_ready",
				Message: msg,
				Waiting: waiting,
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		resp := HealthResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
