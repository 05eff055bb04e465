package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultGracePeriodDays is the number of overdue days before penalties accrue
const DefaultGracePeriodDays = 0

// PenaltyPolicy configures late-fee accrual. The cap applies to the whole
// lifetime of an invoice, not per month.
type PenaltyPolicy struct {
	GracePeriodDays      int
	DailyRate            decimal.Decimal
	MaxPenaltyPerInvoice decimal.Decimal
}

// RiskBands holds the inclusive lower bounds of each risk level.
// Scores below Low map to Monitor.
type RiskBands struct {
	Critical int
	High     int
	Medium   int
	Low      int
}

// ActionTier trips when days overdue exceed DaysOverdueAbove or the score reaches MinScore
type ActionTier struct {
	Action           RecommendedAction
	DaysOverdueAbove int
	MinScore         int
}

// RiskPolicy configures the risk score normalisation and action cascade
type RiskPolicy struct {
	MaxDaysOverdue int
	MaxViolations  int
	Bands          RiskBands
	// ActionTiers are evaluated in order; the first tier that trips wins.
	ActionTiers []ActionTier
}

// PaymentPolicy configures the payment validator thresholds
type PaymentPolicy struct {
	SuspiciousMultiplier decimal.Decimal
	SuspiciousFloor      decimal.Decimal
	OverpaymentTolerance decimal.Decimal
	MismatchTolerance    decimal.Decimal
}

// NotificationPolicy configures the day thresholds of the daily notifier
type NotificationPolicy struct {
	RenewalReminderDays   []int
	OverdueEscalationDays []int
}

// Policy is the complete set of tenant-level financial policy constants
type Policy struct {
	Penalty      PenaltyPolicy
	Risk         RiskPolicy
	Payment      PaymentPolicy
	Notification NotificationPolicy
}

// DefaultActionTiers returns the standard collection cascade, most severe first
func DefaultActionTiers() []ActionTier {
	return []ActionTier{
		{Action: ActionBlacklistAndFileCase, DaysOverdueAbove: 120, MinScore: 85},
		{Action: ActionFileLegalCase, DaysOverdueAbove: 90, MinScore: 70},
		{Action: ActionSendFormalNotice, DaysOverdueAbove: 60, MinScore: 60},
		{Action: ActionSendWarning, DaysOverdueAbove: 30, MinScore: 50},
	}
}

// DefaultPolicy returns the documented defaults
func DefaultPolicy() Policy {
	return Policy{
		Penalty: PenaltyPolicy{
			GracePeriodDays:      DefaultGracePeriodDays,
			DailyRate:            decimal.NewFromInt(120),
			MaxPenaltyPerInvoice: decimal.NewFromInt(3000),
		},
		Risk: RiskPolicy{
			MaxDaysOverdue: 120,
			MaxViolations:  5,
			Bands:          RiskBands{Critical: 85, High: 70, Medium: 60, Low: 40},
			ActionTiers:    DefaultActionTiers(),
		},
		Payment: PaymentPolicy{
			SuspiciousMultiplier: decimal.NewFromInt(10),
			SuspiciousFloor:      decimal.NewFromInt(50000),
			OverpaymentTolerance: decimal.RequireFromString("0.10"),
			MismatchTolerance:    decimal.RequireFromString("0.20"),
		},
		Notification: NotificationPolicy{
			RenewalReminderDays:   []int{90, 60, 30, 7, 0},
			OverdueEscalationDays: []int{7, 15, 30},
		},
	}
}

// Validate checks every constant and returns a *ConfigurationError for the first bad one
func (p Policy) Validate() error {
	if p.Penalty.GracePeriodDays < 0 {
		return NewConfigurationError("penalty.gracePeriodDays", "must not be negative")
	}
	if !p.Penalty.DailyRate.IsPositive() {
		return NewConfigurationError("penalty.dailyRate", "must be positive")
	}
	if !p.Penalty.MaxPenaltyPerInvoice.IsPositive() {
		return NewConfigurationError("penalty.maxPenaltyPerInvoice", "must be positive")
	}

	if p.Risk.MaxDaysOverdue <= 0 {
		return NewConfigurationError("risk.maxDaysOverdue", "must be positive")
	}
	if p.Risk.MaxViolations <= 0 {
		return NewConfigurationError("risk.maxViolations", "must be positive")
	}
	b := p.Risk.Bands
	if !(0 < b.Low && b.Low < b.Medium && b.Medium < b.High && b.High < b.Critical && b.Critical <= 100) {
		return NewConfigurationError("risk.bands",
			fmt.Sprintf("must satisfy 0 < low < medium < high < critical <= 100, got %d/%d/%d/%d", b.Low, b.Medium, b.High, b.Critical))
	}
	if len(p.Risk.ActionTiers) == 0 {
		return NewConfigurationError("risk.actionTiers", "at least one tier is required")
	}
	for i, tier := range p.Risk.ActionTiers {
		if tier.Action == "" || tier.DaysOverdueAbove < 0 || tier.MinScore < 0 || tier.MinScore > 100 {
			return NewConfigurationError(fmt.Sprintf("risk.actionTiers[%d]", i), "invalid tier")
		}
		if i > 0 {
			prev := p.Risk.ActionTiers[i-1]
			if tier.DaysOverdueAbove > prev.DaysOverdueAbove || tier.MinScore > prev.MinScore {
				return NewConfigurationError(fmt.Sprintf("risk.actionTiers[%d]", i), "tiers must be ordered most severe first")
			}
		}
	}

	if !p.Payment.SuspiciousMultiplier.IsPositive() {
		return NewConfigurationError("payment.suspiciousMultiplier", "must be positive")
	}
	if p.Payment.SuspiciousFloor.IsNegative() {
		return NewConfigurationError("payment.suspiciousFloor", "must not be negative")
	}
	if p.Payment.OverpaymentTolerance.IsNegative() {
		return NewConfigurationError("payment.overpaymentTolerance", "must not be negative")
	}
	if p.Payment.MismatchTolerance.IsNegative() {
		return NewConfigurationError("payment.mismatchTolerance", "must not be negative")
	}

	for _, d := range p.Notification.RenewalReminderDays {
		if d < 0 {
			return NewConfigurationError("notification.renewalReminderDays", "must not be negative")
		}
	}
	for _, d := range p.Notification.OverdueEscalationDays {
		if d <= 0 {
			return NewConfigurationError("notification.overdueEscalationDays", "must be positive")
		}
	}
	return nil
}
