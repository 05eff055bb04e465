package domain

import "github.com/shopspring/decimal"

// BalanceDue is max(0, total - paid)
func BalanceDue(total, paid decimal.Decimal) decimal.Decimal {
	balance := total.Sub(paid)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// DerivePaymentStatus classifies an invoice from its paid amount and balance
func DerivePaymentStatus(paid, balance decimal.Decimal) InvoicePaymentStatus {
	switch {
	case !paid.IsPositive():
		return InvoicePaymentUnpaid
	case !balance.IsPositive():
		return InvoicePaymentPaid
	default:
		return InvoicePaymentPartial
	}
}
