package config

import (
	"fmt"
	"strings"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// PolicyConfig is the configuration surface of the financial policy. Every
// value has a documented default; per-company overrides replace individual
// values for one tenant.
type PolicyConfig struct {
	Penalty      PenaltyPolicyConfig
	Risk         RiskPolicyConfig
	Payment      PaymentPolicyConfig
	Notification NotificationPolicyConfig
	// Overrides is keyed by company id (case-insensitive)
	Overrides map[string]PolicyOverride
}

type PenaltyPolicyConfig struct {
	GracePeriodDays      int
	DailyRate            float64
	MaxPenaltyPerInvoice float64
}

type RiskPolicyConfig struct {
	MaxDaysOverdue int
	MaxViolations  int
	Bands          RiskBandsConfig
}

type RiskBandsConfig struct {
	Critical int
	High     int
	Medium   int
	Low      int
}

type PaymentPolicyConfig struct {
	SuspiciousMultiplier float64
	SuspiciousFloor      float64
	OverpaymentTolerance float64
	MismatchTolerance    float64
}

type NotificationPolicyConfig struct {
	RenewalReminderDays   []int
	OverdueEscalationDays []int
}

// PolicyOverride holds the tenant-specific values; nil fields keep the default
type PolicyOverride struct {
	GracePeriodDays      *int
	DailyRate            *float64
	MaxPenaltyPerInvoice *float64
	SuspiciousFloor      *float64
	OverpaymentTolerance *float64
	MismatchTolerance    *float64
	Bands                *RiskBandsConfig
}

// ToPolicy builds the domain policy from the base values
func (c *PolicyConfig) ToPolicy() domain.Policy {
	p := domain.DefaultPolicy()

	p.Penalty.GracePeriodDays = c.Penalty.GracePeriodDays
	p.Penalty.DailyRate = decimal.NewFromFloat(c.Penalty.DailyRate)
	p.Penalty.MaxPenaltyPerInvoice = decimal.NewFromFloat(c.Penalty.MaxPenaltyPerInvoice)

	p.Risk.MaxDaysOverdue = c.Risk.MaxDaysOverdue
	p.Risk.MaxViolations = c.Risk.MaxViolations
	p.Risk.Bands = c.Risk.Bands.toDomain()

	p.Payment.SuspiciousMultiplier = decimal.NewFromFloat(c.Payment.SuspiciousMultiplier)
	p.Payment.SuspiciousFloor = decimal.NewFromFloat(c.Payment.SuspiciousFloor)
	p.Payment.OverpaymentTolerance = decimal.NewFromFloat(c.Payment.OverpaymentTolerance)
	p.Payment.MismatchTolerance = decimal.NewFromFloat(c.Payment.MismatchTolerance)

	if c.Notification.RenewalReminderDays != nil {
		p.Notification.RenewalReminderDays = append([]int(nil), c.Notification.RenewalReminderDays...)
	}
	if c.Notification.OverdueEscalationDays != nil {
		p.Notification.OverdueEscalationDays = append([]int(nil), c.Notification.OverdueEscalationDays...)
	}
	return p
}

// Apply returns base with the override's non-nil values replaced
func (o PolicyOverride) Apply(base domain.Policy) domain.Policy {
	p := base
	if o.GracePeriodDays != nil {
		p.Penalty.GracePeriodDays = *o.GracePeriodDays
	}
	if o.DailyRate != nil {
		p.Penalty.DailyRate = decimal.NewFromFloat(*o.DailyRate)
	}
	if o.MaxPenaltyPerInvoice != nil {
		p.Penalty.MaxPenaltyPerInvoice = decimal.NewFromFloat(*o.MaxPenaltyPerInvoice)
	}
	if o.SuspiciousFloor != nil {
		p.Payment.SuspiciousFloor = decimal.NewFromFloat(*o.SuspiciousFloor)
	}
	if o.OverpaymentTolerance != nil {
		p.Payment.OverpaymentTolerance = decimal.NewFromFloat(*o.OverpaymentTolerance)
	}
	if o.MismatchTolerance != nil {
		p.Payment.MismatchTolerance = decimal.NewFromFloat(*o.MismatchTolerance)
	}
	if o.Bands != nil {
		p.Risk.Bands = o.Bands.toDomain()
	}
	return p
}

func (b RiskBandsConfig) toDomain() domain.RiskBands {
	return domain.RiskBands{Critical: b.Critical, High: b.High, Medium: b.Medium, Low: b.Low}
}

// PolicyProvider resolves the policy in force for a company
type PolicyProvider struct {
	base      domain.Policy
	overrides map[string]domain.Policy
}

// NewPolicyProvider validates the base policy and every override up front
func NewPolicyProvider(cfg *PolicyConfig) (*PolicyProvider, error) {
	base := cfg.ToPolicy()
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	overrides := make(map[string]domain.Policy, len(cfg.Overrides))
	for company, o := range cfg.Overrides {
		p := o.Apply(base)
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid policy override for company %s: %w", company, err)
		}
		overrides[strings.ToLower(company)] = p
	}

	return &PolicyProvider{base: base, overrides: overrides}, nil
}

// NewStaticPolicyProvider serves one policy for every company
func NewStaticPolicyProvider(p domain.Policy) *PolicyProvider {
	return &PolicyProvider{base: p, overrides: map[string]domain.Policy{}}
}

// For returns the policy for the company, falling back to the base policy
func (p *PolicyProvider) For(companyID domain.CompanyID) domain.Policy {
	if o, ok := p.overrides[strings.ToLower(string(companyID))]; ok {
		return o
	}
	return p.base
}

// Default returns the base policy
func (p *PolicyProvider) Default() domain.Policy {
	return p.base
}

func setPolicyDefaults(v *viper.Viper) {
	d := domain.DefaultPolicy()

	v.SetDefault("policy.penalty.gracePeriodDays", d.Penalty.GracePeriodDays)
	v.SetDefault("policy.penalty.dailyRate", d.Penalty.DailyRate.InexactFloat64())
	v.SetDefault("policy.penalty.maxPenaltyPerInvoice", d.Penalty.MaxPenaltyPerInvoice.InexactFloat64())

	v.SetDefault("policy.risk.maxDaysOverdue", d.Risk.MaxDaysOverdue)
	v.SetDefault("policy.risk.maxViolations", d.Risk.MaxViolations)
	v.SetDefault("policy.risk.bands.critical", d.Risk.Bands.Critical)
	v.SetDefault("policy.risk.bands.high", d.Risk.Bands.High)
	v.SetDefault("policy.risk.bands.medium", d.Risk.Bands.Medium)
	v.SetDefault("policy.risk.bands.low", d.Risk.Bands.Low)

	v.SetDefault("policy.payment.suspiciousMultiplier", d.Payment.SuspiciousMultiplier.InexactFloat64())
	v.SetDefault("policy.payment.suspiciousFloor", d.Payment.SuspiciousFloor.InexactFloat64())
	v.SetDefault("policy.payment.overpaymentTolerance", d.Payment.OverpaymentTolerance.InexactFloat64())
	v.SetDefault("policy.payment.mismatchTolerance", d.Payment.MismatchTolerance.InexactFloat64())

	v.SetDefault("policy.notification.renewalReminderDays", d.Notification.RenewalReminderDays)
	v.SetDefault("policy.notification.overdueEscalationDays", d.Notification.OverdueEscalationDays)
}
