// Package http provides the worker's operational HTTP surface: liveness
// and readiness probes, the resilience snapshot endpoint, and the
// middleware in front of them. The surface is internal to operators;
// it never serves application data.
package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"
)

// HealthResponse represents the JSON response for the readiness endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`    // "healthy", "degraded" or "unhealthy"
	Timestamp string                 `json:"timestamp"` // ISO 8601 format
	Checks    map[string]CheckStatus `json:"checks"`    // Status of each registered check
	Version   string                 `json:"version"`   // Application version
}

// CheckStatus represents the status of a single readiness check.
type CheckStatus struct {
	Status  string         `json:"status"`            // "healthy", "degraded" or "unhealthy"
	Message string         `json:"message,omitempty"` // Optional status message
	Details map[string]any `json:"details,omitempty"` // Optional additional details
}

// CheckFunc evaluates one readiness concern. Implementations should
// respect the context deadline; the handler caps the whole evaluation
// at a few seconds.
type CheckFunc func(ctx context.Context) CheckStatus

// ReadyHandler handles readiness probe requests. Components register
// named checks at startup; the handler evaluates all of them per
// request and reports 503 when any check is unhealthy. A "degraded"
// check is a warning, not a failure: the worker keeps receiving
// traffic while it recovers on its own.
type ReadyHandler struct {
	Version string

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewReadyHandler creates a readiness handler with no checks
// registered. A checkless handler reports healthy.
func NewReadyHandler(version string) *ReadyHandler {
	return &ReadyHandler{
		Version: version,
		checks:  make(map[string]CheckFunc),
	}
}

// AddCheck registers a named readiness check. Registering the same
// name twice replaces the earlier check.
func (h *ReadyHandler) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// ServeHTTP evaluates every registered check and returns the
// aggregated readiness status. Returns 200 OK when ready (healthy or
// degraded), or 503 Service Unavailable when any check fails.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	h.mu.RUnlock()

	results := make(map[string]CheckStatus, len(checks))
	status := "healthy"
	statusCode := http.StatusOK

	for name, check := range checks {
		result := check(ctx)
		results[name] = result

		switch result.Status {
		case "unhealthy":
			status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		case "degraded":
			if status == "healthy" {
				status = "degraded"
			}
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    results,
		Version:   h.Version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("ready: failed to encode response: %v", err)
	}
}

// LiveHandler handles liveness probe requests.
// It performs a lightweight check to verify the process is responsive.
type LiveHandler struct{}

// ServeHTTP performs a simple liveness check and always returns 200 OK
// if the process is running and able to respond.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("alive")); err != nil {
		log.Printf("alive: failed to write response: %v", err)
	}
}
