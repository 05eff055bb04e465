package domain

import "github.com/shopspring/decimal"

// RiskLevel is the band a risk score falls into
type RiskLevel string

const (
	RiskLevelMonitor  RiskLevel = "Monitor"
	RiskLevelLow      RiskLevel = "Low"
	RiskLevelMedium   RiskLevel = "Medium"
	RiskLevelHigh     RiskLevel = "High"
	RiskLevelCritical RiskLevel = "Critical"
)

// RecommendedAction is the collection step suggested for a delinquent contract
type RecommendedAction string

const (
	ActionMonitor              RecommendedAction = "Monitor"
	ActionSendWarning          RecommendedAction = "SendWarning"
	ActionSendFormalNotice     RecommendedAction = "SendFormalNotice"
	ActionFileLegalCase        RecommendedAction = "FileLegalCase"
	ActionBlacklistAndFileCase RecommendedAction = "BlacklistAndFileCase"
)

// RiskFactors holds the five normalised [0,100] inputs of the risk score
type RiskFactors struct {
	DaysOverdue    float64 `json:"daysOverdue"`
	Amount         float64 `json:"amount"`
	Violations     float64 `json:"violations"`
	PaymentHistory float64 `json:"paymentHistory"`
	LegalHistory   float64 `json:"legalHistory"`
}

// DelinquencyAssessment is the computed delinquency state of a contract
type DelinquencyAssessment struct {
	DaysOverdue       int
	OverdueAmount     decimal.Decimal
	OverdueInvoices   int
	TotalPenalty      decimal.Decimal
	Factors           RiskFactors
	RiskScore         int
	RiskLevel         RiskLevel
	RecommendedAction RecommendedAction
}

// IsDelinquent reports whether anything is overdue
func (a *DelinquencyAssessment) IsDelinquent() bool {
	return a.DaysOverdue > 0 && a.OverdueAmount.IsPositive()
}
