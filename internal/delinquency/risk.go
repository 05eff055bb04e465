package delinquency

import (
	"math"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/shopspring/decimal"
)

// Factor weights. They sum to 1.0.
const (
	WeightDaysOverdue    = 0.40
	WeightAmount         = 0.30
	WeightViolations     = 0.15
	WeightPaymentHistory = 0.10
	WeightLegalHistory   = 0.05
)

// RiskFeatures is the raw input vector of the risk score
type RiskFeatures struct {
	DaysOverdue           int
	OverdueAmount         decimal.Decimal
	CreditLimit           decimal.Decimal
	ViolationsCount       int
	MissedPayments        int
	TotalExpectedPayments int
	HasPreviousLegalCases bool
}

// CalculateRiskFactors normalises each feature to [0,100]. Out-of-range input is
// clamped; a zero credit limit is treated as maximal exposure.
func CalculateRiskFactors(p domain.RiskPolicy, f RiskFeatures) domain.RiskFactors {
	var factors domain.RiskFactors

	if p.MaxDaysOverdue > 0 {
		factors.DaysOverdue = ratio(float64(f.DaysOverdue), float64(p.MaxDaysOverdue))
	}

	if f.CreditLimit.IsPositive() {
		amount, _ := f.OverdueAmount.Div(f.CreditLimit).Float64()
		factors.Amount = clampPercent(amount * 100)
	} else {
		factors.Amount = 100
	}

	if p.MaxViolations > 0 {
		factors.Violations = ratio(float64(f.ViolationsCount), float64(p.MaxViolations))
	}

	if f.TotalExpectedPayments > 0 {
		factors.PaymentHistory = ratio(float64(f.MissedPayments), float64(f.TotalExpectedPayments))
	}

	if f.HasPreviousLegalCases {
		factors.LegalHistory = 100
	}

	return factors
}

// CalculateRiskScore returns the weighted factor sum, rounded and clamped to [0,100]
func CalculateRiskScore(p domain.RiskPolicy, f RiskFeatures) int {
	return ScoreFactors(CalculateRiskFactors(p, f))
}

// ScoreFactors combines already normalised factors into a score
func ScoreFactors(factors domain.RiskFactors) int {
	sum := factors.DaysOverdue*WeightDaysOverdue +
		factors.Amount*WeightAmount +
		factors.Violations*WeightViolations +
		factors.PaymentHistory*WeightPaymentHistory +
		factors.LegalHistory*WeightLegalHistory
	return int(clampPercent(math.Round(sum)))
}

// GetRiskLevel maps a score to its band using inclusive lower bounds
func GetRiskLevel(b domain.RiskBands, score int) domain.RiskLevel {
	switch {
	case score >= b.Critical:
		return domain.RiskLevelCritical
	case score >= b.High:
		return domain.RiskLevelHigh
	case score >= b.Medium:
		return domain.RiskLevelMedium
	case score >= b.Low:
		return domain.RiskLevelLow
	default:
		return domain.RiskLevelMonitor
	}
}

// GetRecommendedAction walks the tiers from most to least severe and returns the
// first one whose day threshold or score threshold trips.
func GetRecommendedAction(p domain.RiskPolicy, daysOverdue, riskScore int) domain.RecommendedAction {
	for _, tier := range p.ActionTiers {
		if daysOverdue > tier.DaysOverdueAbove || riskScore >= tier.MinScore {
			return tier.Action
		}
	}
	return domain.ActionMonitor
}

func ratio(value, max float64) float64 {
	if value <= 0 {
		return 0
	}
	return clampPercent(math.Min(value/max, 1) * 100)
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
