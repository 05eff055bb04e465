package delinquency

import (
	"sort"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/shopspring/decimal"
)

// AssessmentInput is everything Assess needs about one contract
type AssessmentInput struct {
	Today                 time.Time
	Invoices              []domain.Invoice
	CreditLimit           decimal.Decimal
	ViolationsCount       int
	HasPreviousLegalCases bool
}

// InvoicePenalty is the capped late fee accrued on one overdue invoice
type InvoicePenalty struct {
	InvoiceID     string           `json:"invoiceId"`
	InvoiceNumber string           `json:"invoiceNumber"`
	BalanceDue    decimal.Decimal  `json:"balanceDue"`
	Breakdown     PenaltyBreakdown `json:"breakdown"`
}

// OverdueInvoices returns the open invoices whose due date is before today,
// oldest first, with the number of days each is overdue.
func OverdueInvoices(invoices []domain.Invoice, today time.Time) ([]domain.Invoice, []int) {
	var overdue []domain.Invoice
	for _, inv := range invoices {
		if isOverdue(&inv, today) {
			overdue = append(overdue, inv)
		}
	}
	sort.SliceStable(overdue, func(i, j int) bool {
		return overdue[i].ReferenceDate().Before(overdue[j].ReferenceDate())
	})

	days := make([]int, len(overdue))
	for i := range overdue {
		days[i] = domain.DaysBetween(overdue[i].ReferenceDate(), today)
	}
	return overdue, days
}

// PaymentHistory counts the invoices that have fallen due and how many of those
// are still not settled.
func PaymentHistory(invoices []domain.Invoice, today time.Time) (missed, expected int) {
	for _, inv := range invoices {
		if inv.Status == domain.InvoiceStatusCancelled || inv.Status == domain.InvoiceStatusDraft {
			continue
		}
		if !domain.DateOnly(inv.ReferenceDate()).Before(domain.DateOnly(today)) {
			continue
		}
		expected++
		if inv.BalanceDue.IsPositive() {
			missed++
		}
	}
	return missed, expected
}

// Assess computes the delinquency state of a contract from its invoice history
// and auxiliary signals.
func Assess(p domain.Policy, in AssessmentInput) domain.DelinquencyAssessment {
	overdue, days := OverdueInvoices(in.Invoices, in.Today)

	a := domain.DelinquencyAssessment{
		OverdueAmount: decimal.Zero,
		TotalPenalty:  decimal.Zero,
	}
	for i, inv := range overdue {
		if days[i] > a.DaysOverdue {
			a.DaysOverdue = days[i]
		}
		a.OverdueAmount = a.OverdueAmount.Add(inv.BalanceDue)
		a.TotalPenalty = a.TotalPenalty.Add(CalculatePenalty(p.Penalty, days[i]))
	}
	a.OverdueInvoices = len(overdue)

	missed, expected := PaymentHistory(in.Invoices, in.Today)
	a.Factors = CalculateRiskFactors(p.Risk, RiskFeatures{
		DaysOverdue:           a.DaysOverdue,
		OverdueAmount:         a.OverdueAmount,
		CreditLimit:           in.CreditLimit,
		ViolationsCount:       in.ViolationsCount,
		MissedPayments:        missed,
		TotalExpectedPayments: expected,
		HasPreviousLegalCases: in.HasPreviousLegalCases,
	})
	a.RiskScore = ScoreFactors(a.Factors)
	a.RiskLevel = GetRiskLevel(p.Risk.Bands, a.RiskScore)
	a.RecommendedAction = GetRecommendedAction(p.Risk, a.DaysOverdue, a.RiskScore)
	return a
}

// PenaltiesFor returns the per-invoice penalty breakdowns of the overdue invoices
func PenaltiesFor(p domain.PenaltyPolicy, invoices []domain.Invoice, today time.Time) []InvoicePenalty {
	overdue, days := OverdueInvoices(invoices, today)
	out := make([]InvoicePenalty, 0, len(overdue))
	for i, inv := range overdue {
		out = append(out, InvoicePenalty{
			InvoiceID:     inv.ID.String(),
			InvoiceNumber: inv.InvoiceNumber,
			BalanceDue:    inv.BalanceDue,
			Breakdown:     CalculatePenaltyBreakdown(p, days[i]),
		})
	}
	return out
}

// EscalationLevelFor returns how many reminder levels have been reached after the
// given number of overdue days (0 when none).
func EscalationLevelFor(levels []int, daysOverdue int) int {
	sorted := append([]int(nil), levels...)
	sort.Ints(sorted)
	level := 0
	for _, threshold := range sorted {
		if daysOverdue >= threshold {
			level++
		}
	}
	return level
}

func isOverdue(inv *domain.Invoice, today time.Time) bool {
	if inv.Status == domain.InvoiceStatusCancelled || inv.Status == domain.InvoiceStatusDraft {
		return false
	}
	if !inv.BalanceDue.IsPositive() {
		return false
	}
	return domain.DateOnly(inv.ReferenceDate()).Before(domain.DateOnly(today))
}
