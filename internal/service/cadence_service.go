package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/alaraf/fleet-finance/internal/billing"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CadenceService creates the recurring invoices contracts are missing
type CadenceService struct {
	clock
	db           *gorm.DB
	contractRepo *repository.ContractRepository
	invoiceRepo  *repository.InvoiceRepository
	numbers      *NumberSequenceService
	logger       *zap.Logger
}

func NewCadenceService(
	db *gorm.DB,
	contractRepo *repository.ContractRepository,
	invoiceRepo *repository.InvoiceRepository,
	sequenceRepo *repository.NumberSequenceRepository,
	logger *zap.Logger,
) *CadenceService {
	return &CadenceService{
		clock:        newClock(),
		db:           db,
		contractRepo: contractRepo,
		invoiceRepo:  invoiceRepo,
		numbers:      NewNumberSequenceService(sequenceRepo, logger),
		logger:       logger,
	}
}

// MissingForContract returns the invoices GenerateForContract would create,
// without writing anything
func (s *CadenceService) MissingForContract(ctx context.Context, id uuid.UUID) ([]billing.InvoiceCandidate, error) {
	contract, err := s.contractRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "contract")
	}
	if !contract.Status.IsBillable() {
		return []billing.InvoiceCandidate{}, nil
	}

	existing, err := s.invoiceRepo.ListByContract(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	candidates, err := billing.ComputeMissingPeriods(*contract, existing, s.today())
	if err != nil {
		return nil, err
	}
	if candidates == nil {
		candidates = []billing.InvoiceCandidate{}
	}
	return candidates, nil
}

// GenerateForContract creates the missing recurring invoices of one contract in
// a single transaction. The contract row is locked and coverage re-read under
// the lock, so a concurrent run either waits or finds the periods covered.
func (s *CadenceService) GenerateForContract(ctx context.Context, id uuid.UUID) ([]domain.Invoice, error) {
	today := s.today()
	var created []domain.Invoice

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contract, err := s.contractRepo.WithTx(tx).LockByID(ctx, id)
		if err != nil {
			return notFound(err, "contract")
		}
		if !contract.Status.IsBillable() {
			return fmt.Errorf("%w: contract %s is %s", ErrNotBillable, contract.ContractNumber, contract.Status)
		}

		invoices := s.invoiceRepo.WithTx(tx)
		existing, err := invoices.ListByContract(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list invoices: %w", err)
		}

		candidates, err := billing.ComputeMissingPeriods(*contract, existing, today)
		if err != nil {
			return err
		}

		numbers := s.numbers.WithTx(tx)
		for _, candidate := range candidates {
			number, err := numbers.Next(ctx, candidate.CompanyID, InvoiceNumberPrefix, candidate.InvoiceDate)
			if err != nil {
				return err
			}
			invoice := candidate.ToInvoice(number)
			if err := invoices.Create(ctx, &invoice); err != nil {
				return fmt.Errorf("failed to create invoice for %s: %w", candidate.Period, err)
			}
			created = append(created, invoice)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(created) > 0 {
		s.logger.Info("recurring invoices generated",
			zap.String("contract_id", id.String()),
			zap.Int("count", len(created)),
		)
	}
	return created, nil
}

// GenerateAll runs the cadence over every billable contract. A failing contract
// is recorded and the batch moves on. With dryRun the missing periods are
// reported but nothing is written.
func (s *CadenceService) GenerateAll(ctx context.Context, dryRun bool) *domain.BatchReport {
	report := domain.NewBatchReport("invoice_cadence", s.now())
	report.DryRun = dryRun

	contracts, err := s.contractRepo.ListBillable(ctx)
	if err != nil {
		report.Fail("list_contracts", err)
		report.Finish(s.now())
		return report
	}

	for _, contract := range contracts {
		if ctx.Err() != nil {
			report.Fail(contract.ContractNumber, ctx.Err())
			continue
		}
		s.generateUnit(ctx, &contract, dryRun, report)
	}

	report.Finish(s.now())
	succeeded, skipped, failed := report.Counts()
	s.logger.Info("invoice cadence finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("contracts", len(contracts)),
		zap.Int("invoices", report.Total()),
		zap.Int("succeeded", succeeded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return report
}

func (s *CadenceService) generateUnit(ctx context.Context, contract *domain.Contract, dryRun bool, report *domain.BatchReport) {
	key := contract.ContractNumber

	if dryRun {
		candidates, err := s.MissingForContract(ctx, contract.ID)
		if err != nil {
			s.recordError(report, key, contract, err)
			return
		}
		if len(candidates) == 0 {
			report.Skip(key, "all periods covered")
			return
		}
		report.Success(key, len(candidates), fmt.Sprintf("would create %d invoice(s)", len(candidates)))
		return
	}

	created, err := s.GenerateForContract(ctx, contract.ID)
	if err != nil {
		s.recordError(report, key, contract, err)
		return
	}
	if len(created) == 0 {
		report.Skip(key, "all periods covered")
		return
	}
	report.Success(key, len(created), fmt.Sprintf("created %d invoice(s)", len(created)))
}

// recordError fails the unit. A contract with a bad monthly amount is logged
// as a configuration problem rather than a processing error.
func (s *CadenceService) recordError(report *domain.BatchReport, key string, contract *domain.Contract, err error) {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		s.logger.Warn("contract misconfigured for invoice cadence",
			zap.String("contract_id", contract.ID.String()),
			zap.String("field", cfgErr.Field),
			zap.Error(err),
		)
	} else {
		s.logger.Error("invoice cadence failed for contract",
			zap.String("contract_id", contract.ID.String()),
			zap.Error(err),
		)
	}
	report.Fail(key, err)
}
