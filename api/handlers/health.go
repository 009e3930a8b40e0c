package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/cloudpulse/internal/storage"
	"github.com/OldStager01/cloudpulse/pkg/database"
)

const healthTimeout = 5 * time.Second

// HealthChecker is satisfied by *database.DB and *storage.Store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

var (
	_ HealthChecker = (*database.DB)(nil)
	_ HealthChecker = (*storage.Store)(nil)
)

// HealthHandler runs named dependency checks. Every check gates readiness.
type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler registers db as the "database" check.
func NewHealthHandler(db HealthChecker) *HealthHandler {
	h := &HealthHandler{checks: make(map[string]HealthChecker)}
	if db != nil {
		h.checks["database"] = db
	}
	return h
}

// AddCheck registers another dependency, e.g. the cost tables.
func (h *HealthHandler) AddCheck(name string, c HealthChecker) *HealthHandler {
	h.checks[name] = c
	return h
}

type HealthResponse struct {
	Status    string            `json:"status" example:"healthy"`
	Timestamp string            `json:"timestamp" example:"2024-03-31T12:00:00Z"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// run executes every check and reports per-check results.
func (h *HealthHandler) run(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	ok := true
	for _, name := range names {
		if err := h.checks[name].HealthCheck(ctx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			ok = false
			continue
		}
		results[name] = "healthy"
	}
	return results, ok
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Health godoc
// @Summary Service health
// @Description Reports database and cost table availability
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	checks, ok := h.run(c.Request.Context())
	if !ok {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Timestamp: now(), Checks: checks})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Timestamp: now(), Checks: checks})
}

// Ready godoc
// @Summary Readiness probe
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health/ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	if _, ok := h.run(c.Request.Context()); !ok {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "not ready", Timestamp: now()})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ready", Timestamp: now()})
}

// Live godoc
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health/live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "alive", Timestamp: now()})
}
