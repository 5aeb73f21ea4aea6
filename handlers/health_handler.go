package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/chat-relay/utils"
	"go.uber.org/zap"
)

// readinessTimeout bounds each dependency check
const readinessTimeout = 5 * time.Second

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	cache  Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. A nil cache is reported as
// not configured and does not fail readiness.
func NewHealthHandler(cache Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		cache:  cache,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only: returns 200 while the process is serving.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := utils.WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("failed to write health response", zap.Error(err))
	}
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	switch {
	case h.cache == nil:
		checks["cache"] = "not_configured"
	case h.cache.Ping(ctx) != nil:
		h.logger.Warn("cache readiness check failed")
		checks["cache"] = "unavailable"
		ready = false
	default:
		checks["cache"] = "ok"
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
