// Package delinquency contains the pure late-fee, risk and collection-action
// calculators. Nothing here performs I/O; every function takes its policy
// explicitly so tenants can run with different constants.
package delinquency

import (
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/shopspring/decimal"
)

// DaysPerMonth is the divisor used to express overdue days as whole months
const DaysPerMonth = 30

// PenaltyBreakdown exposes the intermediate values of a penalty calculation
type PenaltyBreakdown struct {
	DaysOverdue    int             `json:"daysOverdue"`
	GracePeriod    int             `json:"gracePeriodDays"`
	ChargeableDays int             `json:"chargeableDays"`
	MonthsOverdue  int             `json:"monthsOverdue"`
	DailyRate      decimal.Decimal `json:"dailyRate"`
	RawPenalty     decimal.Decimal `json:"rawPenalty"`
	MaxPenalty     decimal.Decimal `json:"maxPenalty"`
	FinalPenalty   decimal.Decimal `json:"finalPenalty"`
	CapApplied     bool            `json:"capApplied"`
}

// CalculatePenalty returns the capped late fee for one invoice
func CalculatePenalty(p domain.PenaltyPolicy, daysOverdue int) decimal.Decimal {
	return CalculatePenaltyBreakdown(p, daysOverdue).FinalPenalty
}

// CalculatePenaltyBreakdown computes the late fee for one invoice and returns every
// intermediate value. The cap is the lifetime maximum for the invoice: once reached,
// additional overdue months add nothing.
func CalculatePenaltyBreakdown(p domain.PenaltyPolicy, daysOverdue int) PenaltyBreakdown {
	if daysOverdue < 0 {
		daysOverdue = 0
	}
	grace := p.GracePeriodDays
	if grace < 0 {
		grace = 0
	}

	chargeable := daysOverdue - grace
	if chargeable < 0 {
		chargeable = 0
	}

	raw := p.DailyRate.Mul(decimal.NewFromInt(int64(chargeable)))
	if raw.IsNegative() {
		raw = decimal.Zero
	}
	final := decimal.Min(raw, p.MaxPenaltyPerInvoice)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return PenaltyBreakdown{
		DaysOverdue:    daysOverdue,
		GracePeriod:    grace,
		ChargeableDays: chargeable,
		MonthsOverdue:  daysOverdue / DaysPerMonth,
		DailyRate:      p.DailyRate,
		RawPenalty:     raw,
		MaxPenalty:     p.MaxPenaltyPerInvoice,
		FinalPenalty:   final,
		CapApplied:     raw.GreaterThan(final),
	}
}
