package repository

import (
	"context"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *InvoiceRepository) WithTx(tx *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: tx}
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyCompanyFilter(ctx, query)
	if err := query.First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListByContract returns every invoice of a contract, cancelled ones included
func (r *InvoiceRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	query := r.db.WithContext(ctx).Where("contract_id = ?", contractID)
	query = ApplyCompanyFilter(ctx, query)
	err := query.Order("invoice_date ASC, created_at ASC").Find(&invoices).Error
	return invoices, err
}

// ListContractIDsWithDuplicateCandidates returns the contracts holding more than
// one non-cancelled invoice. The exact per-period grouping happens in
// the reconciler; this only narrows the contracts worth loading.
func (r *InvoiceRepository) ListContractIDsWithDuplicateCandidates(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("contract_id IS NOT NULL AND status <> ?", domain.InvoiceStatusCancelled)
	query = ApplyCompanyFilter(ctx, query)
	err := query.Group("contract_id").Having("COUNT(*) > 1").Pluck("contract_id", &ids).Error
	return ids, err
}

// ListContractIDsWithOpenBalance returns contracts with at least one issued or
// overdue invoice that still has a balance
func (r *InvoiceRepository) ListContractIDsWithOpenBalance(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("contract_id IS NOT NULL AND balance_due > 0 AND status IN ?",
			[]domain.InvoiceStatus{domain.InvoiceStatusIssued, domain.InvoiceStatusOverdue})
	query = ApplyCompanyFilter(ctx, query)
	err := query.Distinct("contract_id").Pluck("contract_id", &ids).Error
	return ids, err
}

// Cancel marks a duplicate as cancelled and appends the audit note. The update
// is guarded on the invoice not being cancelled already; false means another
// writer got there first.
func (r *InvoiceRepository) Cancel(ctx context.Context, id uuid.UUID, note string) (bool, error) {
	var invoice domain.Invoice
	if err := r.db.WithContext(ctx).Select("notes").Where("id = ?", id).First(&invoice).Error; err != nil {
		return false, err
	}
	notes := note
	if invoice.Notes != "" {
		notes = invoice.Notes + "\n" + note
	}

	result := r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("id = ? AND status <> ?", id, domain.InvoiceStatusCancelled).
		Updates(map[string]interface{}{
			"status":     domain.InvoiceStatusCancelled,
			"notes":      notes,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected == 1, result.Error
}

// UpdateAmounts stores paid amount, balance and payment status
func (r *InvoiceRepository) UpdateAmounts(ctx context.Context, id uuid.UUID, paid, balance decimal.Decimal, status domain.InvoicePaymentStatus) error {
	return r.db.WithContext(ctx).Model(&domain.Invoice{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"paid_amount":    paid,
			"balance_due":    balance,
			"payment_status": status,
			"updated_at":     time.Now().UTC(),
		}).Error
}
