package handler

import (
	"net/http"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/fleet"
	"github.com/alaraf/fleet-finance/internal/service"
	"go.uber.org/zap"
)

// FleetSyncResponse carries the occupancy plan and what was done with it
type FleetSyncResponse struct {
	Plan   fleet.SyncPlan      `json:"plan"`
	Report *domain.BatchReport `json:"report"`
}

type FleetHandler struct {
	occupancyService *service.OccupancyService
	logger           *zap.Logger
}

func NewFleetHandler(occupancyService *service.OccupancyService, logger *zap.Logger) *FleetHandler {
	return &FleetHandler{
		occupancyService: occupancyService,
		logger:           logger,
	}
}

// Sync godoc
// @Summary Synchronise vehicle occupancy
// @Description Repairs contract to vehicle links by license plate and sets vehicle status from today's active contracts. With dryRun=true only the plan is computed.
// @Tags Fleet
// @Produce json
// @Param dryRun query bool false "Plan without writing"
// @Success 200 {object} FleetSyncResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /fleet/sync [post]
func (h *FleetHandler) Sync(w http.ResponseWriter, r *http.Request) {
	dryRun := parseBoolQuery(r, "dryRun")

	report, plan := h.occupancyService.Sync(r.Context(), dryRun)
	if report.HasFailures() {
		h.logger.Warn("fleet sync finished with failures", zap.Bool("dry_run", dryRun))
	}

	respondJSON(w, http.StatusOK, FleetSyncResponse{Plan: plan, Report: report})
}
