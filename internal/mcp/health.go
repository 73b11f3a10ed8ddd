package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Ready     bool   `json:"ready"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker is implemented by the vector store.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ReadinessChecker is implemented by the retrieval service.
type ReadinessChecker interface {
	Ready() bool
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// It returns 200 only when the store is reachable and the retrieval service
// has finished initializing, and 503 otherwise.
func NewHealthHandler(store HealthChecker, svc ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Store:     "connected",
			Ready:     svc.Ready(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		healthy := response.Ready
		if err := store.Health(ctx); err != nil {
			response.Store = "disconnected"
			healthy = false
		}

		w.Header().Set("Content-Type", "application/json")
		if healthy {
			response.Status = "healthy"
			w.WriteHeader(http.StatusOK)
		} else {
			response.Status = "unhealthy"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response)
	}
}
