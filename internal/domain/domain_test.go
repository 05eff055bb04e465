package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Plate normalisation
// =============================================================================

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"123 ABC", "123ABC"},
		{"123ABC", "123ABC"},
		{" 12\t3 abc\n", "123ABC"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, domain.NormalizePlate(tt.in), tt.in)
	}
}

// =============================================================================
// Billing periods
// =============================================================================

func TestBillingPeriod_Arithmetic(t *testing.T) {
	p := domain.PeriodOf(time.Date(2024, time.November, 30, 15, 0, 0, 0, time.UTC))

	assert.Equal(t, "2024-11", p.String())
	assert.Equal(t, "2025-02", p.AddMonths(3).String())
	assert.Equal(t, "2024-08", p.AddMonths(-3).String())
	assert.True(t, p.Before(p.AddMonths(1)))
	assert.True(t, p.AddMonths(12).After(p))
	assert.False(t, p.Before(p))
	assert.Equal(t, 29, domain.PeriodOf(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)).DaysInMonth())
}

func TestBillingPeriod_DayClipped(t *testing.T) {
	feb := domain.BillingPeriod{Year: 2025, Month: time.February}

	assert.Equal(t, 28, feb.DayClipped(31).Day())
	assert.Equal(t, 15, feb.DayClipped(15).Day())
	assert.Equal(t, 1, feb.DayClipped(0).Day())
}

func TestBillingPeriod_Text(t *testing.T) {
	var p domain.BillingPeriod
	require.NoError(t, p.UnmarshalText([]byte("2025-03")))
	assert.Equal(t, domain.BillingPeriod{Year: 2025, Month: time.March}, p)

	text, err := p.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2025-03", string(text))

	_, err = domain.ParsePeriod("March 2025")
	assert.Error(t, err)
}

func TestDaysBetween_IgnoresClock(t *testing.T) {
	a := time.Date(2025, time.May, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2025, time.May, 15, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 14, domain.DaysBetween(a, b))
	assert.Equal(t, -14, domain.DaysBetween(b, a))
}

// =============================================================================
// Invoice amounts
// =============================================================================

func TestInvoice_ApplyPaidAmount(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		paid    string
		balance string
		status  domain.InvoicePaymentStatus
	}{
		{"unpaid", "500", "0", "500", domain.InvoicePaymentUnpaid},
		{"partial", "500", "200", "300", domain.InvoicePaymentPartial},
		{"paid", "500", "500", "0", domain.InvoicePaymentPaid},
		{"overpaid clamps balance", "500", "650", "0", domain.InvoicePaymentPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := domain.Invoice{TotalAmount: decimal.RequireFromString(tt.total)}
			inv.ApplyPaidAmount(decimal.RequireFromString(tt.paid))

			assert.True(t, inv.BalanceDue.Equal(decimal.RequireFromString(tt.balance)), "balance = %s", inv.BalanceDue)
			assert.Equal(t, tt.status, inv.PaymentStatus)
		})
	}
}

func TestInvoice_BillingPeriodPrefersDueDate(t *testing.T) {
	due := time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC)
	inv := domain.Invoice{InvoiceDate: time.Date(2025, time.March, 28, 0, 0, 0, 0, time.UTC), DueDate: &due}
	assert.Equal(t, "2025-04", inv.BillingPeriod().String())

	inv.DueDate = nil
	assert.Equal(t, "2025-03", inv.BillingPeriod().String())
}

func TestInvoice_CountsForPeriod(t *testing.T) {
	contractID := uuid.New()
	base := domain.Invoice{ContractID: &contractID, InvoiceType: domain.InvoiceTypeRental, Status: domain.InvoiceStatusIssued}
	assert.True(t, base.CountsForPeriod())

	cancelled := base
	cancelled.Status = domain.InvoiceStatusCancelled
	assert.False(t, cancelled.CountsForPeriod())

	for _, typ := range []domain.InvoiceType{domain.InvoiceTypeSale, domain.InvoiceTypeService, domain.InvoiceTypePenalty} {
		other := base
		other.InvoiceType = typ
		assert.True(t, other.CountsForPeriod(), typ)
	}

	orphan := base
	orphan.ContractID = nil
	assert.False(t, orphan.CountsForPeriod())
}

// =============================================================================
// Statuses
// =============================================================================

func TestVehicleStatus_IsProtected(t *testing.T) {
	assert.False(t, domain.VehicleStatusAvailable.IsProtected())
	assert.False(t, domain.VehicleStatusRented.IsProtected())
	assert.False(t, domain.VehicleStatusReserved.IsProtected())
	assert.True(t, domain.VehicleStatusMaintenance.IsProtected())
	assert.True(t, domain.VehicleStatusStolen.IsProtected())
	assert.True(t, domain.VehicleStatusStreet52.IsProtected())
}

func TestContractStatus_IsBillable(t *testing.T) {
	assert.True(t, domain.ContractStatusActive.IsBillable())
	assert.True(t, domain.ContractStatusUnderLegalProcedure.IsBillable())
	assert.False(t, domain.ContractStatusDraft.IsBillable())
	assert.False(t, domain.ContractStatusCancelled.IsBillable())
}

// =============================================================================
// Policy
// =============================================================================

func TestDefaultPolicy_IsValid(t *testing.T) {
	assert.NoError(t, domain.DefaultPolicy().Validate())
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *domain.Policy)
		field  string
	}{
		{"negative grace", func(p *domain.Policy) { p.Penalty.GracePeriodDays = -1 }, "penalty.gracePeriodDays"},
		{"zero daily rate", func(p *domain.Policy) { p.Penalty.DailyRate = decimal.Zero }, "penalty.dailyRate"},
		{"zero cap", func(p *domain.Policy) { p.Penalty.MaxPenaltyPerInvoice = decimal.Zero }, "penalty.maxPenaltyPerInvoice"},
		{"zero max days", func(p *domain.Policy) { p.Risk.MaxDaysOverdue = 0 }, "risk.maxDaysOverdue"},
		{"overlapping bands", func(p *domain.Policy) { p.Risk.Bands.High = p.Risk.Bands.Medium }, "risk.bands"},
		{"band above 100", func(p *domain.Policy) { p.Risk.Bands.Critical = 101 }, "risk.bands"},
		{"no tiers", func(p *domain.Policy) { p.Risk.ActionTiers = nil }, "risk.actionTiers"},
		{"tier days out of order", func(p *domain.Policy) {
			p.Risk.ActionTiers[1].DaysOverdueAbove = 150
		}, "risk.actionTiers[1]"},
		{"tier score out of order", func(p *domain.Policy) {
			p.Risk.ActionTiers[3].MinScore = 65
		}, "risk.actionTiers[3]"},
		{"negative tolerance", func(p *domain.Policy) { p.Payment.OverpaymentTolerance = decimal.NewFromInt(-1) }, "payment.overpaymentTolerance"},
		{"zero escalation day", func(p *domain.Policy) { p.Notification.OverdueEscalationDays = []int{0} }, "notification.overdueEscalationDays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.DefaultPolicy()
			tt.mutate(&p)

			err := p.Validate()

			var cfgErr *domain.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected configuration error, got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

// =============================================================================
// Batch report
// =============================================================================

func TestBatchReport_Counts(t *testing.T) {
	r := domain.NewBatchReport("invoice_cadence", time.Now())
	r.Success("a", 2, "")
	r.Success("b", 1, "")
	r.Skip("c", "nothing to do")
	r.Fail("d", errors.New("boom"))
	r.ClassifyUnitError("e", &domain.ReconciliationConflict{Reason: "tie"})
	r.ClassifyUnitError("f", &domain.ConfigurationError{Field: "x", Reason: "bad"})

	succeeded, skipped, failed := r.Counts()
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, 2, failed)
	assert.Equal(t, 3, r.Total())
	assert.True(t, r.HasFailures())
	assert.Equal(t, "boom", r.Results[3].Error)
}
