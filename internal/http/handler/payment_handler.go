package handler

import (
	"errors"
	"net/http"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/mapper"
	"github.com/alaraf/fleet-finance/internal/payment"
	"github.com/alaraf/fleet-finance/internal/service"
	"go.uber.org/zap"
)

// RecordPaymentResponse is returned when a payment is written
type RecordPaymentResponse struct {
	Payment    domain.PaymentDTO `json:"payment"`
	Validation payment.Result    `json:"validation"`
}

type PaymentHandler struct {
	paymentService *service.PaymentService
	logger         *zap.Logger
}

func NewPaymentHandler(paymentService *service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// Validate godoc
// @Summary Validate a payment
// @Description Runs the payment checks against the contract without recording anything. A blocked payment is returned with 200 and isBlocked=true.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body domain.PaymentRequest true "Proposed payment"
// @Success 200 {object} payment.Result
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /payments/validate [post]
func (h *PaymentHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.paymentService.Validate(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "validate payment")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Record godoc
// @Summary Record a payment
// @Description Validates and records a payment, then recomputes the linked invoice and the contract's total paid. Blocked payments are rejected with 422 and the validation result.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body domain.PaymentRequest true "Payment"
// @Success 201 {object} RecordPaymentResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 422 {object} payment.Result
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /payments [post]
func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	created, result, err := h.paymentService.Record(r.Context(), &req)
	if err != nil {
		var blocked *domain.ValidationError
		if errors.As(err, &blocked) {
			respondJSON(w, http.StatusUnprocessableEntity, result)
			return
		}
		respondServiceError(w, h.logger, err, "record payment")
		return
	}

	respondJSON(w, http.StatusCreated, RecordPaymentResponse{
		Payment:    mapper.ToPaymentDTO(created),
		Validation: result,
	})
}
