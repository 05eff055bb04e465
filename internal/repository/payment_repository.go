package repository

import (
	"context"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *PaymentRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]domain.Payment, error) {
	var payments []domain.Payment
	query := r.db.WithContext(ctx).Where("contract_id = ?", contractID)
	query = ApplyCompanyFilter(ctx, query)
	err := query.Order("payment_date ASC, created_at ASC").Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).
		Order("payment_date ASC").Find(&payments).Error
	return payments, err
}

// ListByInvoices returns the payments attached to any of the given invoices,
// whatever contract they reference
func (r *PaymentRepository) ListByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) ([]domain.Payment, error) {
	var payments []domain.Payment
	if len(invoiceIDs) == 0 {
		return payments, nil
	}
	err := r.db.WithContext(ctx).Where("invoice_id IN ?", invoiceIDs).
		Order("payment_date ASC, created_at ASC").Find(&payments).Error
	return payments, err
}

// MoveToInvoice re-points a payment from one invoice to another, guarded on the
// payment still pointing at from
func (r *PaymentRepository) MoveToInvoice(ctx context.Context, paymentID, from, to uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND invoice_id = ?", paymentID, from).
		Updates(map[string]interface{}{
			"invoice_id": to,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected == 1, result.Error
}
