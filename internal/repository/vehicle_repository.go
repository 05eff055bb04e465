package repository

import (
	"context"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

func (r *VehicleRepository) Create(ctx context.Context, vehicle *domain.Vehicle) error {
	return r.db.WithContext(ctx).Create(vehicle).Error
}

func (r *VehicleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vehicle, error) {
	var vehicle domain.Vehicle
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyCompanyFilter(ctx, query)
	if err := query.First(&vehicle).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// ListAll returns the fleet, inactive vehicles included
func (r *VehicleRepository) ListAll(ctx context.Context) ([]domain.Vehicle, error) {
	var vehicles []domain.Vehicle
	query := ApplyCompanyFilter(ctx, r.db.WithContext(ctx).Model(&domain.Vehicle{}))
	err := query.Order("plate_number ASC").Find(&vehicles).Error
	return vehicles, err
}

// UpdateStatus changes the status only if it is still oldStatus. Returns false
// when the vehicle moved on in the meantime.
func (r *VehicleRepository) UpdateStatus(ctx context.Context, id uuid.UUID, oldStatus, newStatus domain.VehicleStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Vehicle{}).
		Where("id = ? AND status = ?", id, oldStatus).
		Updates(map[string]interface{}{
			"status":     newStatus,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected == 1, result.Error
}
