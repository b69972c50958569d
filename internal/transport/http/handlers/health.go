package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck checks one dependency.
type ReadinessCheck func(ctx context.Context) error

// HealthOption configures a HealthHandler.
type HealthOption func(*HealthHandler)

// WithReadinessCheck adds a named dependency check to /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) HealthOption {
	return func(h *HealthHandler) {
		if name != "" && check != nil {
			h.names = append(h.names, name)
			h.checks[name] = check
		}
	}
}

// HealthHandler exposes liveness and readiness information.
type HealthHandler struct {
	startedAt time.Time
	names     []string
	checks    map[string]ReadinessCheck
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{
		startedAt: time.Now().UTC(),
		checks:    make(map[string]ReadinessCheck),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Status reports liveness.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: h.startedAt,
		Timestamp: time.Now().UTC(),
	})
}

// Readiness runs every dependency check and answers 503 if any fails.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(h.names))}
	status := http.StatusOK
	for _, name := range h.names {
		if err := h.checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	resp.Timestamp = time.Now().UTC()
	c.JSON(status, resp)
}
