// Package payment decides whether a proposed payment may be written.
package payment

import (
	"fmt"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/shopspring/decimal"
)

// ContractContext is the contract read-state the validator needs
type ContractContext struct {
	MonthlyAmount  decimal.Decimal
	ContractAmount decimal.Decimal
	TotalPaid      decimal.Decimal
}

// InvoiceContext is the linked invoice read-state, if any
type InvoiceContext struct {
	TotalAmount decimal.Decimal
}

// Severity of a validation issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes
const (
	CodeNonPositiveAmount = "non_positive_amount"
	CodeSuspiciousAmount  = "suspicious_amount"
	CodeOverpayment       = "overpayment"
	CodeInvoiceMismatch   = "invoice_mismatch"
)

// Issue is one failed check
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Details carries the values behind each tripped check
type Details struct {
	Issues              []Issue          `json:"issues"`
	SuspiciousThreshold *decimal.Decimal `json:"suspiciousThreshold,omitempty"`
	Overpayment         *decimal.Decimal `json:"overpayment,omitempty"`
	InvoiceDifference   *decimal.Decimal `json:"invoiceDifference,omitempty"`
}

// Result is the validator decision
type Result struct {
	IsValid   bool    `json:"isValid"`
	IsWarning bool    `json:"isWarning"`
	IsBlocked bool    `json:"isBlocked"`
	Message   string  `json:"message,omitempty"`
	Details   Details `json:"details"`
}

// Err returns a *domain.ValidationError for a blocked result and nil otherwise
func (r Result) Err() error {
	if !r.IsBlocked {
		return nil
	}
	details := make(map[string]string, len(r.Details.Issues))
	for _, issue := range r.Details.Issues {
		details[issue.Code] = issue.Message
	}
	return &domain.ValidationError{Message: r.Message, Details: details}
}

// Validate runs every check independently. Any error-level issue blocks the
// payment; the invoice mismatch check only warns. c and inv may be nil.
func Validate(p domain.PaymentPolicy, c *ContractContext, inv *InvoiceContext, amount decimal.Decimal) Result {
	details := Details{Issues: []Issue{}}

	if !amount.IsPositive() {
		details.Issues = append(details.Issues, Issue{
			Code:     CodeNonPositiveAmount,
			Severity: SeverityError,
			Message:  "Payment amount must be greater than zero",
		})
	}

	if c != nil && c.MonthlyAmount.IsPositive() {
		threshold := decimal.Max(c.MonthlyAmount.Mul(p.SuspiciousMultiplier), p.SuspiciousFloor)
		if amount.GreaterThan(threshold) {
			details.SuspiciousThreshold = &threshold
			details.Issues = append(details.Issues, Issue{
				Code:     CodeSuspiciousAmount,
				Severity: SeverityError,
				Message: fmt.Sprintf("Suspiciously large payment: %s exceeds the threshold of %s",
					amount.StringFixed(2), threshold.StringFixed(2)),
			})
		}
	}

	if c != nil && c.ContractAmount.IsPositive() {
		allowed := c.ContractAmount.Mul(decimal.NewFromInt(1).Add(p.OverpaymentTolerance))
		after := c.TotalPaid.Add(amount)
		if after.GreaterThan(allowed) {
			over := after.Sub(c.ContractAmount)
			details.Overpayment = &over
			details.Issues = append(details.Issues, Issue{
				Code:     CodeOverpayment,
				Severity: SeverityError,
				Message: fmt.Sprintf("Payment would overpay the contract by %s (contract amount %s, already paid %s)",
					over.StringFixed(2), c.ContractAmount.StringFixed(2), c.TotalPaid.StringFixed(2)),
			})
		}
	}

	if inv != nil && inv.TotalAmount.IsPositive() {
		diff := amount.Sub(inv.TotalAmount).Abs()
		if diff.GreaterThan(inv.TotalAmount.Mul(p.MismatchTolerance)) {
			details.InvoiceDifference = &diff
			details.Issues = append(details.Issues, Issue{
				Code:     CodeInvoiceMismatch,
				Severity: SeverityWarning,
				Message: fmt.Sprintf("Payment differs from the invoice amount %s by %s",
					inv.TotalAmount.StringFixed(2), diff.StringFixed(2)),
			})
		}
	}

	return decide(details)
}

func decide(details Details) Result {
	res := Result{Details: details}
	var firstError, firstWarning string
	for _, issue := range details.Issues {
		switch issue.Severity {
		case SeverityError:
			if firstError == "" {
				firstError = issue.Message
			}
		case SeverityWarning:
			if firstWarning == "" {
				firstWarning = issue.Message
			}
		}
	}

	switch {
	case firstError != "":
		res.IsBlocked = true
		res.Message = firstError
	case firstWarning != "":
		res.IsValid = true
		res.IsWarning = true
		res.Message = firstWarning
	default:
		res.IsValid = true
	}
	return res
}
