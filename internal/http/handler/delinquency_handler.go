package handler

import (
	"net/http"

	"github.com/alaraf/fleet-finance/internal/auth"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/mapper"
	"github.com/alaraf/fleet-finance/internal/service"
	"go.uber.org/zap"
)

type DelinquencyHandler struct {
	delinquencyService *service.DelinquencyService
	logger             *zap.Logger
}

func NewDelinquencyHandler(delinquencyService *service.DelinquencyService, logger *zap.Logger) *DelinquencyHandler {
	return &DelinquencyHandler{
		delinquencyService: delinquencyService,
		logger:             logger,
	}
}

// GetContractAssessment godoc
// @Summary Assess a contract
// @Description Days overdue, overdue amount, per-invoice penalties, risk factors, score, level and recommended action for one contract
// @Tags Delinquency
// @Produce json
// @Param id path string true "Contract ID"
// @Success 200 {object} domain.DelinquencyAssessmentDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contracts/{id}/delinquency [get]
func (h *DelinquencyHandler) GetContractAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	assessment, err := h.delinquencyService.AssessContract(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "assess contract")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToDelinquencyAssessmentDTO(assessment))
}

// List godoc
// @Summary List delinquent contracts
// @Description Contracts at least minDaysOverdue days late, highest risk score first
// @Tags Delinquency
// @Produce json
// @Param minDaysOverdue query int false "Minimum days overdue" default(1)
// @Success 200 {array} domain.DelinquencyAssessmentDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /delinquency [get]
func (h *DelinquencyHandler) List(w http.ResponseWriter, r *http.Request) {
	minDays, err := parseIntQuery(r, "minDaysOverdue", 1)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	assessments, err := h.delinquencyService.ListDelinquent(r.Context(), minDays)
	if err != nil {
		respondServiceError(w, h.logger, err, "list delinquent contracts")
		return
	}

	dtos := make([]domain.DelinquencyAssessmentDTO, len(assessments))
	for i, a := range assessments {
		dtos[i] = mapper.ToDelinquencyAssessmentDTO(a)
	}
	respondJSON(w, http.StatusOK, dtos)
}

// PreviewPenalty godoc
// @Summary Preview a late penalty
// @Description Penalty breakdown the caller's company policy yields for a number of overdue days
// @Tags Delinquency
// @Produce json
// @Param daysOverdue query int true "Days overdue"
// @Success 200 {object} delinquency.PenaltyBreakdown
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /penalties/preview [get]
func (h *DelinquencyHandler) PreviewPenalty(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("daysOverdue") == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'daysOverdue' is required")
		return
	}
	days, err := parseIntQuery(r, "daysOverdue", 0)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var companyID domain.CompanyID
	if filter := auth.GetEffectiveCompanyFilter(r.Context()); filter != nil {
		companyID = *filter
	}

	breakdown, err := h.delinquencyService.PreviewPenalty(companyID, days)
	if err != nil {
		respondServiceError(w, h.logger, err, "preview penalty")
		return
	}
	respondJSON(w, http.StatusOK, breakdown)
}
