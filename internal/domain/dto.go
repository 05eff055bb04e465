package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs for API requests and responses

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// PaymentRequest is the body of both payment validation and payment recording
type PaymentRequest struct {
	ContractID    uuid.UUID       `json:"contractId" validate:"required"`
	InvoiceID     *uuid.UUID      `json:"invoiceId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   string          `json:"paymentDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PaymentStatus PaymentStatus   `json:"paymentStatus,omitempty" validate:"omitempty,oneof=completed pending failed"`
	PaymentNumber string          `json:"paymentNumber,omitempty" validate:"max=50"`
	Notes         string          `json:"notes,omitempty" validate:"max=500"`
}

type PaymentDTO struct {
	ID            uuid.UUID       `json:"id"`
	PaymentNumber string          `json:"paymentNumber,omitempty"`
	ContractID    uuid.UUID       `json:"contractId"`
	InvoiceID     *uuid.UUID      `json:"invoiceId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   string          `json:"paymentDate"` // YYYY-MM-DD
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	CreatedAt     string          `json:"createdAt"` // ISO 8601
}

type InvoiceDTO struct {
	ID            uuid.UUID            `json:"id"`
	InvoiceNumber string               `json:"invoiceNumber"`
	ContractID    *uuid.UUID           `json:"contractId,omitempty"`
	CustomerID    uuid.UUID            `json:"customerId"`
	InvoiceType   InvoiceType          `json:"invoiceType"`
	InvoiceDate   string               `json:"invoiceDate"`       // YYYY-MM-DD
	DueDate       string               `json:"dueDate,omitempty"` // YYYY-MM-DD
	BillingPeriod string               `json:"billingPeriod"`     // YYYY-MM
	TotalAmount   decimal.Decimal      `json:"totalAmount"`
	PaidAmount    decimal.Decimal      `json:"paidAmount"`
	BalanceDue    decimal.Decimal      `json:"balanceDue"`
	PaymentStatus InvoicePaymentStatus `json:"paymentStatus"`
	Status        InvoiceStatus        `json:"status"`
	Notes         string               `json:"notes,omitempty"`
	CreatedAt     string               `json:"createdAt"` // ISO 8601
}

// InvoicePenaltyDTO is the capped late fee accrued on one overdue invoice
type InvoicePenaltyDTO struct {
	InvoiceID      string          `json:"invoiceId"`
	InvoiceNumber  string          `json:"invoiceNumber"`
	BalanceDue     decimal.Decimal `json:"balanceDue"`
	DaysOverdue    int             `json:"daysOverdue"`
	ChargeableDays int             `json:"chargeableDays"`
	Penalty        decimal.Decimal `json:"penalty"`
	CapApplied     bool            `json:"capApplied"`
}

type DelinquencyAssessmentDTO struct {
	ContractID        uuid.UUID           `json:"contractId"`
	ContractNumber    string              `json:"contractNumber"`
	CustomerID        uuid.UUID           `json:"customerId"`
	CustomerName      string              `json:"customerName,omitempty"`
	IsDelinquent      bool                `json:"isDelinquent"`
	DaysOverdue       int                 `json:"daysOverdue"`
	OverdueAmount     decimal.Decimal     `json:"overdueAmount"`
	OverdueInvoices   int                 `json:"overdueInvoices"`
	TotalPenalty      decimal.Decimal     `json:"totalPenalty"`
	EscalationLevel   int                 `json:"escalationLevel"`
	Factors           RiskFactors         `json:"factors"`
	RiskScore         int                 `json:"riskScore"`
	RiskLevel         RiskLevel           `json:"riskLevel"`
	RecommendedAction RecommendedAction   `json:"recommendedAction"`
	Penalties         []InvoicePenaltyDTO `json:"penalties"`
	AssessedOn        string              `json:"assessedOn"` // YYYY-MM-DD
}

type JobRunDTO struct {
	ID         uuid.UUID `json:"id"`
	JobName    string    `json:"jobName"`
	StartedAt  string    `json:"startedAt"`  // ISO 8601
	FinishedAt string    `json:"finishedAt"` // ISO 8601
	Succeeded  int       `json:"succeeded"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	ReportPath string    `json:"reportPath,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// HealthResponse is returned by the health endpoints
type HealthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks,omitempty"`
	Database interface{}       `json:"database,omitempty"`
}
