package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/jobs"
	"github.com/alaraf/fleet-finance/internal/mapper"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// JobRunner runs registered batch jobs on demand
type JobRunner interface {
	RunNow(ctx context.Context, name string, dryRun bool) (*domain.BatchReport, error)
	Names() []string
}

// JobRunLister reads the recorded job runs
type JobRunLister interface {
	ListRecent(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error)
}

type JobHandler struct {
	runner JobRunner
	runs   JobRunLister
	logger *zap.Logger
}

func NewJobHandler(runner JobRunner, runs JobRunLister, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		runner: runner,
		runs:   runs,
		logger: logger,
	}
}

// List godoc
// @Summary List batch jobs
// @Tags Jobs
// @Produce json
// @Success 200 {array} string
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /jobs [get]
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.runner.Names())
}

// Run godoc
// @Summary Run a batch job now
// @Description Runs the named job synchronously and returns its report. Requires an admin role.
// @Tags Jobs
// @Produce json
// @Param name path string true "Job name" Enums(invoice_cadence, invoice_reconcile, vehicle_occupancy, contract_notifications)
// @Param dryRun query bool false "Report without writing"
// @Success 200 {object} domain.BatchReport
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Job already running"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /jobs/{name}/run [post]
func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	report, err := h.runner.RunNow(r.Context(), name, parseBoolQuery(r, "dryRun"))
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrJobRunning):
		respondWithError(w, http.StatusConflict, err.Error())
	case err != nil:
		h.logger.Error("failed to run job", zap.String("job", name), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to run job")
	default:
		respondJSON(w, http.StatusOK, report)
	}
}

// ListRuns godoc
// @Summary List recent job runs
// @Tags Jobs
// @Produce json
// @Param job query string false "Filter by job name"
// @Param limit query int false "Maximum runs (max 200)" default(20)
// @Success 200 {array} domain.JobRunDTO
// @Failure 500 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /jobs/runs [get]
func (h *JobHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.runs.ListRecent(r.Context(), r.URL.Query().Get("job"), limit)
	if err != nil {
		h.logger.Error("failed to list job runs", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list job runs")
		return
	}

	dtos := make([]domain.JobRunDTO, len(runs))
	for i := range runs {
		dtos[i] = mapper.ToJobRunDTO(&runs[i])
	}
	respondJSON(w, http.StatusOK, dtos)
}
