package handler

import (
	"net/http"

	"github.com/alaraf/fleet-finance/internal/mapper"
	"github.com/alaraf/fleet-finance/internal/service"
	"go.uber.org/zap"
)

type InvoiceHandler struct {
	cadenceService        *service.CadenceService
	reconciliationService *service.ReconciliationService
	logger                *zap.Logger
}

func NewInvoiceHandler(cadenceService *service.CadenceService, reconciliationService *service.ReconciliationService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		cadenceService:        cadenceService,
		reconciliationService: reconciliationService,
		logger:                logger,
	}
}

// Generate godoc
// @Summary Generate missing recurring invoices
// @Description Creates one unpaid rental invoice for every billing period of the contract that has none. Running it twice creates nothing the second time.
// @Tags Invoices
// @Produce json
// @Param id path string true "Contract ID"
// @Success 201 {array} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Contract status is not billable"
// @Failure 422 {object} domain.APIError "Contract has no positive monthly amount"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contracts/{id}/invoices/generate [post]
func (h *InvoiceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	created, err := h.cadenceService.GenerateForContract(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "generate invoices")
		return
	}

	status := http.StatusCreated
	if len(created) == 0 {
		status = http.StatusOK
	}
	respondJSON(w, status, mapper.ToInvoiceDTOs(created))
}

// Missing godoc
// @Summary List missing recurring invoices
// @Description Billing periods of the contract that have no recurring invoice. Nothing is written.
// @Tags Invoices
// @Produce json
// @Param id path string true "Contract ID"
// @Success 200 {array} billing.InvoiceCandidate
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contracts/{id}/invoices/missing [get]
func (h *InvoiceHandler) Missing(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	candidates, err := h.cadenceService.MissingForContract(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "compute missing invoices")
		return
	}
	respondJSON(w, http.StatusOK, candidates)
}

// Reconcile godoc
// @Summary Reconcile duplicate invoices
// @Description Merges recurring invoices that share a billing period into the earliest one, moving their payments and cancelling the rest
// @Tags Invoices
// @Produce json
// @Param id path string true "Contract ID"
// @Param dryRun query bool false "Report the merge without writing"
// @Success 200 {object} domain.BatchReport
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /contracts/{id}/invoices/reconcile [post]
func (h *InvoiceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	report, err := h.reconciliationService.ReconcileContract(r.Context(), id, parseBoolQuery(r, "dryRun"))
	if err != nil {
		respondServiceError(w, h.logger, err, "reconcile invoices")
		return
	}
	respondJSON(w, http.StatusOK, report)
}
