package repository

import (
	"context"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ViolationRepository struct {
	db *gorm.DB
}

func NewViolationRepository(db *gorm.DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

func (r *ViolationRepository) Create(ctx context.Context, violation *domain.TrafficViolation) error {
	return r.db.WithContext(ctx).Create(violation).Error
}

// CountUnpaidByCustomer counts the customer's recorded fines that are not paid
func (r *ViolationRepository) CountUnpaidByCustomer(ctx context.Context, customerID uuid.UUID) (int, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.TrafficViolation{}).
		Where("customer_id = ? AND status <> ?", customerID, "paid")
	query = ApplyCompanyFilter(ctx, query)
	err := query.Count(&count).Error
	return int(count), err
}
