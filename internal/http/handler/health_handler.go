package handler

import (
	"context"
	"net/http"

	"github.com/alaraf/fleet-finance/internal/database"
	"github.com/alaraf/fleet-finance/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Pinger is an optional dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type HealthHandler struct {
	db     *gorm.DB
	checks map[string]Pinger
	logger *zap.Logger
}

// NewHealthHandler creates the health handler. checks are extra named
// dependencies (redis, warehouse) included in the readiness probe.
func NewHealthHandler(db *gorm.DB, checks map[string]Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, checks: checks, logger: logger}
}

// Live godoc
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} domain.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, domain.HealthResponse{Status: "healthy"})
}

// Database godoc
// @Summary Database health with pool statistics
// @Tags Health
// @Produce json
// @Success 200 {object} domain.HealthResponse
// @Failure 503 {object} domain.HealthResponse
// @Router /health/db [get]
func (h *HealthHandler) Database(w http.ResponseWriter, r *http.Request) {
	stats, err := database.HealthCheckWithStats(r.Context(), h.db)
	if err != nil {
		h.logger.Error("database health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, domain.HealthResponse{
			Status: "unhealthy",
			Checks: map[string]string{"database": err.Error()},
		})
		return
	}
	respondJSON(w, http.StatusOK, domain.HealthResponse{Status: "healthy", Database: stats})
}

// Ready godoc
// @Summary Readiness probe
// @Description Checks the database and every optional dependency that is configured
// @Tags Health
// @Produce json
// @Success 200 {object} domain.HealthResponse
// @Failure 503 {object} domain.HealthResponse
// @Router /health/ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "healthy"}
	healthy := true

	if err := database.HealthCheck(r.Context(), h.db); err != nil {
		h.logger.Error("database health check failed", zap.Error(err))
		checks["database"] = err.Error()
		healthy = false
	}
	for name, dep := range h.checks {
		if err := dep.Ping(r.Context()); err != nil {
			h.logger.Warn("dependency health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "healthy"
	}

	if !healthy {
		respondJSON(w, http.StatusServiceUnavailable, domain.HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}
	respondJSON(w, http.StatusOK, domain.HealthResponse{Status: "healthy", Checks: checks})
}
