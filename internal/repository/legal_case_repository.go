package repository

import (
	"context"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LegalCaseRepository struct {
	db *gorm.DB
}

func NewLegalCaseRepository(db *gorm.DB) *LegalCaseRepository {
	return &LegalCaseRepository{db: db}
}

func (r *LegalCaseRepository) Create(ctx context.Context, legalCase *domain.LegalCase) error {
	return r.db.WithContext(ctx).Create(legalCase).Error
}

// HasAnyForCustomer reports whether the customer has ever had a legal case, open or closed
func (r *LegalCaseRepository) HasAnyForCustomer(ctx context.Context, customerID uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.LegalCase{}).Where("customer_id = ?", customerID)
	query = ApplyCompanyFilter(ctx, query)
	err := query.Count(&count).Error
	return count > 0, err
}
