package mapper

import (
	"github.com/alaraf/fleet-finance/internal/delinquency"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/service"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05Z"
)

// ToPaymentDTO converts Payment to PaymentDTO
func ToPaymentDTO(p *domain.Payment) domain.PaymentDTO {
	return domain.PaymentDTO{
		ID:            p.ID,
		PaymentNumber: p.PaymentNumber,
		ContractID:    p.ContractID,
		InvoiceID:     p.InvoiceID,
		Amount:        p.Amount,
		PaymentDate:   p.PaymentDate.Format(dateLayout),
		PaymentStatus: p.PaymentStatus,
		CreatedAt:     p.CreatedAt.UTC().Format(timestampLayout),
	}
}

// ToInvoiceDTO converts Invoice to InvoiceDTO
func ToInvoiceDTO(inv *domain.Invoice) domain.InvoiceDTO {
	dto := domain.InvoiceDTO{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ContractID:    inv.ContractID,
		CustomerID:    inv.CustomerID,
		InvoiceType:   inv.InvoiceType,
		InvoiceDate:   inv.InvoiceDate.Format(dateLayout),
		BillingPeriod: inv.BillingPeriod().String(),
		TotalAmount:   inv.TotalAmount,
		PaidAmount:    inv.PaidAmount,
		BalanceDue:    inv.BalanceDue,
		PaymentStatus: inv.PaymentStatus,
		Status:        inv.Status,
		Notes:         inv.Notes,
		CreatedAt:     inv.CreatedAt.UTC().Format(timestampLayout),
	}
	if inv.DueDate != nil {
		dto.DueDate = inv.DueDate.Format(dateLayout)
	}
	return dto
}

// ToInvoiceDTOs converts a slice of invoices
func ToInvoiceDTOs(invoices []domain.Invoice) []domain.InvoiceDTO {
	dtos := make([]domain.InvoiceDTO, len(invoices))
	for i := range invoices {
		dtos[i] = ToInvoiceDTO(&invoices[i])
	}
	return dtos
}

// ToInvoicePenaltyDTO flattens a per-invoice penalty
func ToInvoicePenaltyDTO(p delinquency.InvoicePenalty) domain.InvoicePenaltyDTO {
	return domain.InvoicePenaltyDTO{
		InvoiceID:      p.InvoiceID,
		InvoiceNumber:  p.InvoiceNumber,
		BalanceDue:     p.BalanceDue,
		DaysOverdue:    p.Breakdown.DaysOverdue,
		ChargeableDays: p.Breakdown.ChargeableDays,
		Penalty:        p.Breakdown.FinalPenalty,
		CapApplied:     p.Breakdown.CapApplied,
	}
}

// ToDelinquencyAssessmentDTO converts a contract assessment
func ToDelinquencyAssessmentDTO(a *service.ContractAssessment) domain.DelinquencyAssessmentDTO {
	dto := domain.DelinquencyAssessmentDTO{
		ContractID:        a.Contract.ID,
		ContractNumber:    a.Contract.ContractNumber,
		CustomerID:        a.Contract.CustomerID,
		IsDelinquent:      a.Assessment.IsDelinquent(),
		DaysOverdue:       a.Assessment.DaysOverdue,
		OverdueAmount:     a.Assessment.OverdueAmount,
		OverdueInvoices:   a.Assessment.OverdueInvoices,
		TotalPenalty:      a.Assessment.TotalPenalty,
		EscalationLevel:   a.EscalationLevel,
		Factors:           a.Assessment.Factors,
		RiskScore:         a.Assessment.RiskScore,
		RiskLevel:         a.Assessment.RiskLevel,
		RecommendedAction: a.Assessment.RecommendedAction,
		Penalties:         make([]domain.InvoicePenaltyDTO, len(a.Penalties)),
		AssessedOn:        a.Today,
	}
	if a.Customer != nil {
		dto.CustomerName = a.Customer.Name
	}
	for i, p := range a.Penalties {
		dto.Penalties[i] = ToInvoicePenaltyDTO(p)
	}
	return dto
}

// ToJobRunDTO converts JobRun to JobRunDTO
func ToJobRunDTO(run *domain.JobRun) domain.JobRunDTO {
	return domain.JobRunDTO{
		ID:         run.ID,
		JobName:    run.JobName,
		StartedAt:  run.StartedAt.UTC().Format(timestampLayout),
		FinishedAt: run.FinishedAt.UTC().Format(timestampLayout),
		Succeeded:  run.Succeeded,
		Skipped:    run.Skipped,
		Failed:     run.Failed,
		ReportPath: run.ReportPath,
		Error:      run.Error,
	}
}
