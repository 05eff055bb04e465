package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alaraf/fleet-finance/internal/billing"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/payment"
	"github.com/alaraf/fleet-finance/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentService validates and records payments against contracts
type PaymentService struct {
	clock
	db           *gorm.DB
	contractRepo *repository.ContractRepository
	invoiceRepo  *repository.InvoiceRepository
	paymentRepo  *repository.PaymentRepository
	policies     PolicySource
	numbers      *NumberSequenceService
	logger       *zap.Logger
}

func NewPaymentService(
	db *gorm.DB,
	contractRepo *repository.ContractRepository,
	invoiceRepo *repository.InvoiceRepository,
	paymentRepo *repository.PaymentRepository,
	policies PolicySource,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		clock:        newClock(),
		db:           db,
		contractRepo: contractRepo,
		invoiceRepo:  invoiceRepo,
		paymentRepo:  paymentRepo,
		policies:     policies,
		logger:       logger,
	}
}

// SetNumberSequence makes Record number payments that arrive without a number
func (s *PaymentService) SetNumberSequence(numbers *NumberSequenceService) {
	s.numbers = numbers
}

// Validate runs the payment validator against the contract's current state
// without writing. A blocked payment is a normal result, not an error.
func (s *PaymentService) Validate(ctx context.Context, req *domain.PaymentRequest) (payment.Result, error) {
	contract, err := s.contractRepo.GetByID(ctx, req.ContractID)
	if err != nil {
		return payment.Result{}, notFound(err, "contract")
	}
	invoice, err := s.loadInvoice(ctx, s.invoiceRepo, contract, req)
	if err != nil {
		return payment.Result{}, err
	}
	return s.validate(contract, invoice, req.Amount), nil
}

// Record validates the payment under the contract lock and, when it is not
// blocked, inserts it and recomputes the linked invoice and the contract's
// total paid in the same transaction. A blocked payment returns the result
// together with a *domain.ValidationError.
func (s *PaymentService) Record(ctx context.Context, req *domain.PaymentRequest) (*domain.Payment, payment.Result, error) {
	paymentDate, err := s.paymentDate(req.PaymentDate)
	if err != nil {
		return nil, payment.Result{}, err
	}
	status := req.PaymentStatus
	if status == "" {
		status = domain.PaymentStatusCompleted
	}

	var created *domain.Payment
	var result payment.Result

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contracts := s.contractRepo.WithTx(tx)
		invoices := s.invoiceRepo.WithTx(tx)
		payments := s.paymentRepo.WithTx(tx)

		contract, err := contracts.LockByID(ctx, req.ContractID)
		if err != nil {
			return notFound(err, "contract")
		}
		invoice, err := s.loadInvoice(ctx, invoices, contract, req)
		if err != nil {
			return err
		}

		result = s.validate(contract, invoice, req.Amount)
		if err := result.Err(); err != nil {
			return err
		}

		number := req.PaymentNumber
		if number == "" && s.numbers != nil {
			number, err = s.numbers.WithTx(tx).Next(ctx, contract.CompanyID, PaymentNumberPrefix, paymentDate)
			if err != nil {
				return err
			}
		}

		p := &domain.Payment{
			CompanyID:     contract.CompanyID,
			PaymentNumber: number,
			InvoiceID:     req.InvoiceID,
			ContractID:    contract.ID,
			Amount:        req.Amount,
			PaymentDate:   paymentDate,
			PaymentStatus: status,
			Notes:         req.Notes,
		}
		if err := payments.Create(ctx, p); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		if invoice != nil {
			attached, err := payments.ListByInvoice(ctx, invoice.ID)
			if err != nil {
				return fmt.Errorf("failed to list invoice payments: %w", err)
			}
			amounts := billing.RecomputeInvoiceAmounts(invoice.TotalAmount, attached)
			if err := invoices.UpdateAmounts(ctx, invoice.ID, amounts.PaidAmount, amounts.BalanceDue, amounts.PaymentStatus); err != nil {
				return fmt.Errorf("failed to update invoice: %w", err)
			}
		}

		all, err := payments.ListByContract(ctx, contract.ID)
		if err != nil {
			return fmt.Errorf("failed to list contract payments: %w", err)
		}
		if err := contracts.UpdateTotalPaid(ctx, contract.ID, completedTotal(all)); err != nil {
			return fmt.Errorf("failed to update contract total paid: %w", err)
		}

		created = p
		return nil
	})
	if err != nil {
		if result.IsBlocked {
			s.logger.Info("payment blocked",
				zap.String("contract_id", req.ContractID.String()),
				zap.String("amount", req.Amount.String()),
				zap.String("reason", result.Message),
			)
		}
		return nil, result, err
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", created.ID.String()),
		zap.String("contract_id", created.ContractID.String()),
		zap.String("amount", created.Amount.String()),
		zap.Bool("warning", result.IsWarning),
	)
	return created, result, nil
}

func (s *PaymentService) validate(contract *domain.Contract, invoice *domain.Invoice, amount decimal.Decimal) payment.Result {
	policy := s.policies.For(contract.CompanyID)
	contractCtx := &payment.ContractContext{
		MonthlyAmount:  contract.MonthlyAmount,
		ContractAmount: contract.ContractAmount,
		TotalPaid:      contract.TotalPaid,
	}
	var invoiceCtx *payment.InvoiceContext
	if invoice != nil {
		invoiceCtx = &payment.InvoiceContext{TotalAmount: invoice.TotalAmount}
	}
	return payment.Validate(policy.Payment, contractCtx, invoiceCtx, amount)
}

// loadInvoice returns the invoice named by the request, which must belong to
// the contract and not be cancelled
func (s *PaymentService) loadInvoice(ctx context.Context, repo *repository.InvoiceRepository, contract *domain.Contract, req *domain.PaymentRequest) (*domain.Invoice, error) {
	if req.InvoiceID == nil {
		return nil, nil
	}
	invoice, err := repo.GetByID(ctx, *req.InvoiceID)
	if err != nil {
		return nil, notFound(err, "invoice")
	}
	if invoice.ContractID == nil || *invoice.ContractID != contract.ID {
		return nil, fmt.Errorf("%w: invoice %s does not belong to contract %s", ErrInvalidInput, invoice.InvoiceNumber, contract.ContractNumber)
	}
	if invoice.Status == domain.InvoiceStatusCancelled {
		return nil, fmt.Errorf("%w: invoice %s is cancelled", ErrInvalidInput, invoice.InvoiceNumber)
	}
	return invoice, nil
}

func (s *PaymentService) paymentDate(raw string) (time.Time, error) {
	if raw == "" {
		return s.today(), nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: paymentDate must be YYYY-MM-DD", ErrInvalidInput)
	}
	return d, nil
}

func completedTotal(payments []domain.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.PaymentStatus == domain.PaymentStatusCompleted {
			total = total.Add(p.Amount)
		}
	}
	return total
}
