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

// ReconciliationService merges duplicate recurring invoices into one canonical
// invoice per billing period
type ReconciliationService struct {
	clock
	db           *gorm.DB
	contractRepo *repository.ContractRepository
	invoiceRepo  *repository.InvoiceRepository
	paymentRepo  *repository.PaymentRepository
	logger       *zap.Logger
}

func NewReconciliationService(
	db *gorm.DB,
	contractRepo *repository.ContractRepository,
	invoiceRepo *repository.InvoiceRepository,
	paymentRepo *repository.PaymentRepository,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		clock:        newClock(),
		db:           db,
		contractRepo: contractRepo,
		invoiceRepo:  invoiceRepo,
		paymentRepo:  paymentRepo,
		logger:       logger,
	}
}

// PlanContract returns the merge plans for a contract's duplicate groups and
// the conflicts that would be left for manual review. Nothing is written.
func (s *ReconciliationService) PlanContract(ctx context.Context, id uuid.UUID) ([]*billing.ReconcilePlan, []error, error) {
	if _, err := s.contractRepo.GetByID(ctx, id); err != nil {
		return nil, nil, notFound(err, "contract")
	}
	invoices, err := s.invoiceRepo.ListByContract(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	payments, err := s.paymentRepo.ListByInvoices(ctx, invoiceIDs(invoices))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list payments: %w", err)
	}
	plans, conflicts := billing.Reconcile(invoices, payments)
	return plans, conflicts, nil
}

// ReconcileContract reconciles every duplicate group of one contract. Each
// group is applied in its own transaction; a conflicting group is skipped and
// the others still proceed.
func (s *ReconciliationService) ReconcileContract(ctx context.Context, id uuid.UUID, dryRun bool) (*domain.BatchReport, error) {
	report := domain.NewBatchReport("invoice_reconcile", s.now())
	report.DryRun = dryRun

	plans, conflicts, err := s.PlanContract(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, c := range conflicts {
		s.logger.Warn("duplicate group needs manual review",
			zap.String("contract_id", id.String()),
			zap.Error(c),
		)
		report.ClassifyUnitError(conflictKey(id, c), c)
	}

	for _, plan := range plans {
		key := plan.Key.String()
		if dryRun {
			report.Success(key, len(plan.Superseded),
				fmt.Sprintf("would keep %s and cancel %d duplicate(s)", plan.Canonical.InvoiceNumber, len(plan.Superseded)))
			continue
		}

		applied, err := s.applyGroup(ctx, plan.Key)
		if err != nil {
			s.logger.Error("failed to reconcile duplicate group",
				zap.String("group", key),
				zap.Error(err),
			)
			report.ClassifyUnitError(key, err)
			continue
		}
		if applied == nil {
			report.Skip(key, "group already reconciled")
			continue
		}
		report.Success(key, len(applied.Superseded),
			fmt.Sprintf("kept %s, cancelled %d duplicate(s), moved %d payment(s)",
				applied.Canonical.InvoiceNumber, len(applied.Superseded), len(applied.PaymentMoves)))
	}

	report.Finish(s.now())
	return report, nil
}

// ReconcileAll reconciles every contract that holds more than one recurring invoice
func (s *ReconciliationService) ReconcileAll(ctx context.Context, dryRun bool) *domain.BatchReport {
	report := domain.NewBatchReport("invoice_reconcile", s.now())
	report.DryRun = dryRun

	ids, err := s.invoiceRepo.ListContractIDsWithDuplicateCandidates(ctx)
	if err != nil {
		report.Fail("list_contracts", err)
		report.Finish(s.now())
		return report
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			report.Fail(id.String(), ctx.Err())
			continue
		}
		contractReport, err := s.ReconcileContract(ctx, id, dryRun)
		if err != nil {
			report.Fail(id.String(), err)
			continue
		}
		report.Merge(contractReport)
	}

	report.Finish(s.now())
	succeeded, skipped, failed := report.Counts()
	s.logger.Info("invoice reconciliation finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("contracts", len(ids)),
		zap.Int("cancelled", report.Total()),
		zap.Int("succeeded", succeeded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return report
}

// applyGroup re-plans the group under the contract lock and applies it: move
// payments, cancel superseded invoices, recompute the canonical invoice.
// Returns nil when the group no longer has duplicates.
func (s *ReconciliationService) applyGroup(ctx context.Context, key billing.GroupKey) (*billing.ReconcilePlan, error) {
	var plan *billing.ReconcilePlan

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.contractRepo.WithTx(tx).LockByID(ctx, key.ContractID); err != nil {
			return notFound(err, "contract")
		}

		invoices := s.invoiceRepo.WithTx(tx)
		payments := s.paymentRepo.WithTx(tx)

		all, err := invoices.ListByContract(ctx, key.ContractID)
		if err != nil {
			return fmt.Errorf("failed to list invoices: %w", err)
		}
		group, ok := findGroup(billing.GroupDuplicates(all), key)
		if !ok {
			return nil
		}

		// a payment's contract_id may be stale; the invoice link is authoritative
		groupPayments, err := payments.ListByInvoices(ctx, invoiceIDs(group.Invoices))
		if err != nil {
			return fmt.Errorf("failed to list payments: %w", err)
		}
		p, err := billing.PlanReconciliation(group, groupPayments)
		if err != nil {
			return err
		}

		for _, move := range p.PaymentMoves {
			moved, err := payments.MoveToInvoice(ctx, move.PaymentID, move.FromInvoiceID, move.ToInvoiceID)
			if err != nil {
				return fmt.Errorf("failed to move payment %s: %w", move.PaymentID, err)
			}
			if !moved {
				return fmt.Errorf("%w: payment %s changed invoice concurrently", ErrConflict, move.PaymentID)
			}
		}

		note := billing.SupersededNote(p.Canonical.InvoiceNumber)
		for _, dup := range p.Superseded {
			cancelled, err := invoices.Cancel(ctx, dup.ID, note)
			if err != nil {
				return fmt.Errorf("failed to cancel invoice %s: %w", dup.InvoiceNumber, err)
			}
			if !cancelled {
				return fmt.Errorf("%w: invoice %s was cancelled concurrently", ErrConflict, dup.InvoiceNumber)
			}
		}

		attached, err := payments.ListByInvoice(ctx, p.Canonical.ID)
		if err != nil {
			return fmt.Errorf("failed to list canonical payments: %w", err)
		}
		amounts := billing.RecomputeInvoiceAmounts(p.Canonical.TotalAmount, attached)
		if err := invoices.UpdateAmounts(ctx, p.Canonical.ID, amounts.PaidAmount, amounts.BalanceDue, amounts.PaymentStatus); err != nil {
			return fmt.Errorf("failed to update canonical invoice: %w", err)
		}

		plan = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if plan != nil {
		s.logger.Info("duplicate invoices reconciled",
			zap.String("group", key.String()),
			zap.String("canonical", plan.Canonical.InvoiceNumber),
			zap.Int("cancelled", len(plan.Superseded)),
			zap.Int("payments_moved", len(plan.PaymentMoves)),
		)
	}
	return plan, nil
}

func findGroup(groups []billing.DuplicateGroup, key billing.GroupKey) (billing.DuplicateGroup, bool) {
	for _, g := range groups {
		if g.Key == key {
			return g, true
		}
	}
	return billing.DuplicateGroup{}, false
}

func conflictKey(contractID uuid.UUID, err error) string {
	var c *domain.ReconciliationConflict
	if errors.As(err, &c) {
		return billing.GroupKey{ContractID: c.ContractID, Period: c.Period}.String()
	}
	return contractID.String()
}

func invoiceIDs(invoices []domain.Invoice) []uuid.UUID {
	ids := make([]uuid.UUID, len(invoices))
	for i := range invoices {
		ids[i] = invoices[i].ID
	}
	return ids
}
