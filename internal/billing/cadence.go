// Package billing plans recurring invoice generation and duplicate invoice
// reconciliation. The planners are pure; internal/service applies their output
// inside database transactions.
package billing

import (
	"fmt"
	"sort"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceCandidate is a recurring invoice that should exist but does not
type InvoiceCandidate struct {
	ContractID  uuid.UUID            `json:"contractId"`
	CompanyID   domain.CompanyID     `json:"companyId"`
	CustomerID  uuid.UUID            `json:"customerId"`
	Period      domain.BillingPeriod `json:"period"`
	InvoiceDate time.Time            `json:"invoiceDate"`
	DueDate     time.Time            `json:"dueDate"`
	Amount      decimal.Decimal      `json:"amount"`
}

// ToInvoice builds the unpaid rental invoice for the candidate
func (c InvoiceCandidate) ToInvoice(number string) domain.Invoice {
	contractID := c.ContractID
	due := c.DueDate
	inv := domain.Invoice{
		CompanyID:     c.CompanyID,
		InvoiceNumber: number,
		ContractID:    &contractID,
		CustomerID:    c.CustomerID,
		InvoiceType:   domain.InvoiceTypeRental,
		InvoiceDate:   c.InvoiceDate,
		DueDate:       &due,
		TotalAmount:   c.Amount,
		Status:        domain.InvoiceStatusIssued,
		Notes:         fmt.Sprintf("Recurring rental invoice for %s", c.Period),
	}
	inv.ApplyPaidAmount(decimal.Zero)
	return inv
}

// CoveredPeriods returns the billing periods of the contract that already hold a
// recurring invoice.
func CoveredPeriods(contractID uuid.UUID, invoices []domain.Invoice) map[domain.BillingPeriod]bool {
	covered := make(map[domain.BillingPeriod]bool, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		if !inv.CountsForPeriod() || *inv.ContractID != contractID {
			continue
		}
		covered[inv.BillingPeriod()] = true
	}
	return covered
}

// ExpectedPeriods lists the periods a contract bills for, from the month of its
// start date through the month of min(end date, today), stepping by the billing
// interval.
func ExpectedPeriods(c *domain.Contract, today time.Time) []domain.BillingPeriod {
	last := domain.DateOnly(today)
	if c.EndDate != nil && c.EndDate.Before(last) {
		last = domain.DateOnly(*c.EndDate)
	}
	start := domain.DateOnly(c.StartDate)
	if start.After(last) {
		return nil
	}

	lastPeriod := domain.PeriodOf(last)
	step := c.BillingInterval()
	var periods []domain.BillingPeriod
	for p := domain.PeriodOf(start); !p.After(lastPeriod); p = p.AddMonths(step) {
		periods = append(periods, p)
	}
	return periods
}

// ComputeMissingPeriods returns one candidate per uncovered billing period in
// ascending order. A contract without a positive monthly amount yields no
// candidates and a *domain.ConfigurationError.
func ComputeMissingPeriods(c domain.Contract, existing []domain.Invoice, today time.Time) ([]InvoiceCandidate, error) {
	if !c.MonthlyAmount.IsPositive() {
		return nil, domain.NewConfigurationError("contract.monthlyAmount",
			fmt.Sprintf("must be positive for contract %s (got %s)", c.ContractNumber, c.MonthlyAmount))
	}

	covered := CoveredPeriods(c.ID, existing)
	day := c.StartDate.Day()

	var candidates []InvoiceCandidate
	for _, p := range ExpectedPeriods(&c, today) {
		if covered[p] {
			continue
		}
		issued := p.DayClipped(day)
		candidates = append(candidates, InvoiceCandidate{
			ContractID:  c.ID,
			CompanyID:   c.CompanyID,
			CustomerID:  c.CustomerID,
			Period:      p,
			InvoiceDate: issued,
			DueDate:     issued,
			Amount:      c.MonthlyAmount,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Period.Before(candidates[j].Period)
	})
	return candidates, nil
}
