package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alaraf/fleet-finance/internal/delinquency"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ViolationCounter reports traffic violations recorded outside the local database
type ViolationCounter interface {
	CountViolations(ctx context.Context, companyID, customerID string) (int, error)
}

// ContractAssessment is the delinquency state of one contract on a given day
type ContractAssessment struct {
	Contract        domain.Contract
	Customer        *domain.Customer
	Assessment      domain.DelinquencyAssessment
	Penalties       []delinquency.InvoicePenalty
	EscalationLevel int
	Today           string
}

// DelinquencyService computes penalties, risk scores and recommended actions
type DelinquencyService struct {
	clock
	contractRepo  *repository.ContractRepository
	invoiceRepo   *repository.InvoiceRepository
	customerRepo  *repository.CustomerRepository
	violationRepo *repository.ViolationRepository
	legalRepo     *repository.LegalCaseRepository
	warehouse     ViolationCounter
	policies      PolicySource
	logger        *zap.Logger
}

func NewDelinquencyService(
	contractRepo *repository.ContractRepository,
	invoiceRepo *repository.InvoiceRepository,
	customerRepo *repository.CustomerRepository,
	violationRepo *repository.ViolationRepository,
	legalRepo *repository.LegalCaseRepository,
	warehouse ViolationCounter,
	policies PolicySource,
	logger *zap.Logger,
) *DelinquencyService {
	return &DelinquencyService{
		clock:         newClock(),
		contractRepo:  contractRepo,
		invoiceRepo:   invoiceRepo,
		customerRepo:  customerRepo,
		violationRepo: violationRepo,
		legalRepo:     legalRepo,
		warehouse:     warehouse,
		policies:      policies,
		logger:        logger,
	}
}

// PreviewPenalty returns the penalty breakdown a company's policy yields for
// the given number of overdue days
func (s *DelinquencyService) PreviewPenalty(companyID domain.CompanyID, daysOverdue int) (delinquency.PenaltyBreakdown, error) {
	if daysOverdue < 0 {
		return delinquency.PenaltyBreakdown{}, fmt.Errorf("%w: daysOverdue must not be negative", ErrInvalidInput)
	}
	policy := s.policies.For(companyID)
	return delinquency.CalculatePenaltyBreakdown(policy.Penalty, daysOverdue), nil
}

// AssessContract computes the delinquency assessment of one contract
func (s *DelinquencyService) AssessContract(ctx context.Context, id uuid.UUID) (*ContractAssessment, error) {
	contract, err := s.contractRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "contract")
	}
	return s.assessOn(ctx, contract, s.today())
}

// ListDelinquent assesses every contract with an open balance and returns those
// at least minDaysOverdue days late, highest risk first
func (s *DelinquencyService) ListDelinquent(ctx context.Context, minDaysOverdue int) ([]*ContractAssessment, error) {
	if minDaysOverdue < 0 {
		return nil, fmt.Errorf("%w: minDaysOverdue must not be negative", ErrInvalidInput)
	}

	ids, err := s.invoiceRepo.ListContractIDsWithOpenBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts with open balance: %w", err)
	}
	contracts, err := s.contractRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load contracts: %w", err)
	}

	today := s.today()
	results := make([]*ContractAssessment, 0, len(contracts))
	for i := range contracts {
		a, err := s.assessOn(ctx, &contracts[i], today)
		if err != nil {
			return nil, err
		}
		if !a.Assessment.IsDelinquent() || a.Assessment.DaysOverdue < minDaysOverdue {
			continue
		}
		results = append(results, a)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Assessment, results[j].Assessment
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		if a.DaysOverdue != b.DaysOverdue {
			return a.DaysOverdue > b.DaysOverdue
		}
		return results[i].Contract.ContractNumber < results[j].Contract.ContractNumber
	})
	return results, nil
}

func (s *DelinquencyService) assessOn(ctx context.Context, contract *domain.Contract, today time.Time) (*ContractAssessment, error) {
	policy := s.policies.For(contract.CompanyID)

	invoices, err := s.invoiceRepo.ListByContract(ctx, contract.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	// A missing customer leaves the credit limit at zero, which scores the
	// amount factor at its maximum.
	creditLimit := decimal.Zero
	customer, err := s.customerRepo.GetByID(ctx, contract.CustomerID)
	switch {
	case err == nil:
		creditLimit = customer.CreditLimit
	case errors.Is(err, gorm.ErrRecordNotFound):
		customer = nil
		s.logger.Warn("contract customer not found",
			zap.String("contract_id", contract.ID.String()),
			zap.String("customer_id", contract.CustomerID.String()),
		)
	default:
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	violations, err := s.violationCount(ctx, contract)
	if err != nil {
		return nil, err
	}

	hasLegal, err := s.legalRepo.HasAnyForCustomer(ctx, contract.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check legal history: %w", err)
	}

	assessment := delinquency.Assess(policy, delinquency.AssessmentInput{
		Today:                 today,
		Invoices:              invoices,
		CreditLimit:           creditLimit,
		ViolationsCount:       violations,
		HasPreviousLegalCases: hasLegal,
	})

	return &ContractAssessment{
		Contract:        *contract,
		Customer:        customer,
		Assessment:      assessment,
		Penalties:       delinquency.PenaltiesFor(policy.Penalty, invoices, today),
		EscalationLevel: delinquency.EscalationLevelFor(policy.Notification.OverdueEscalationDays, assessment.DaysOverdue),
		Today:           today.Format("2006-01-02"),
	}, nil
}

// violationCount adds the warehouse count to the local unpaid violations. A
// warehouse failure is logged and the local count used alone.
func (s *DelinquencyService) violationCount(ctx context.Context, contract *domain.Contract) (int, error) {
	local, err := s.violationRepo.CountUnpaidByCustomer(ctx, contract.CustomerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count violations: %w", err)
	}
	if s.warehouse == nil {
		return local, nil
	}

	external, err := s.warehouse.CountViolations(ctx, string(contract.CompanyID), contract.CustomerID.String())
	if err != nil {
		s.logger.Warn("warehouse violation count unavailable",
			zap.String("customer_id", contract.CustomerID.String()),
			zap.Error(err),
		)
		return local, nil
	}
	return local + external, nil
}
