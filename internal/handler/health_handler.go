package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/upgrade-events/Upgrade-Events/internal/worker"
	"github.com/upgrade-events/Upgrade-Events/pkg/response"
)

// HealthChecker is a dependency that can report whether it is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports liveness and readiness
type HealthHandler struct {
	checks map[string]HealthChecker
	expiry *worker.ExpiryWorker
}

// NewHealthHandler creates a new HealthHandler. Nil checkers are ignored.
func NewHealthHandler(checks map[string]HealthChecker, expiry *worker.ExpiryWorker) *HealthHandler {
	live := make(map[string]HealthChecker, len(checks))
	for name, check := range checks {
		if check != nil {
			live[name] = check
		}
	}
	return &HealthHandler{checks: live, expiry: expiry}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(gin.H{"status": "ok"}))
}

// Ready handles GET /ready - pings every dependency
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := gin.H{"checks": checks}
	if h.expiry != nil {
		body["expiry_worker"] = h.expiry.GetStats()
	}

	if status != http.StatusOK {
		resp := response.ServiceUnavailable("One or more dependencies are unavailable")
		resp.Data = body
		c.JSON(status, resp)
		return
	}
	c.JSON(status, response.Success(body))
}
