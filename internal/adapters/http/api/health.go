package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/fairway/pkg/metrics"
)

// HealthChecker reports whether the service can reach its store.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health and metrics requests.
type HealthHandler struct {
	checker HealthChecker
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz. A healthy service answers with its
// Prometheus exposition; an unreachable store yields 503.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.Health(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unhealthy", err)
		return
	}
	h.metrics.ServeHTTP(w, r)
}

// HandleMetrics handles GET /metrics.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
