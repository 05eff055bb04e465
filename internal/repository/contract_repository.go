package repository

import (
	"context"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *ContractRepository) WithTx(tx *gorm.DB) *ContractRepository {
	return &ContractRepository{db: tx}
}

func (r *ContractRepository) Create(ctx context.Context, contract *domain.Contract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	var contract domain.Contract
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyCompanyFilter(ctx, query)
	if err := query.First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// LockByID loads the contract with SELECT ... FOR UPDATE. Writers that derive
// new rows from the contract's current invoices take this lock first so two
// runs cannot both see a period as uncovered.
func (r *ContractRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	var contract domain.Contract
	query := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id)
	query = ApplyCompanyFilter(ctx, query)
	if err := query.First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// ListBillable returns the contracts that accrue recurring invoices
func (r *ContractRepository) ListBillable(ctx context.Context) ([]domain.Contract, error) {
	var contracts []domain.Contract
	query := r.db.WithContext(ctx).Where("status IN ?", domain.BillableContractStatuses)
	query = ApplyCompanyFilter(ctx, query)
	err := query.Order("contract_number ASC").Find(&contracts).Error
	return contracts, err
}

// ListByStatus returns contracts in any of the given statuses
func (r *ContractRepository) ListByStatus(ctx context.Context, statuses ...domain.ContractStatus) ([]domain.Contract, error) {
	var contracts []domain.Contract
	query := r.db.WithContext(ctx).Where("status IN ?", statuses)
	query = ApplyCompanyFilter(ctx, query)
	err := query.Order("contract_number ASC").Find(&contracts).Error
	return contracts, err
}

// ListByIDs returns the contracts with the given ids
func (r *ContractRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Contract, error) {
	var contracts []domain.Contract
	if len(ids) == 0 {
		return contracts, nil
	}
	query := r.db.WithContext(ctx).Where("id IN ?", ids)
	query = ApplyCompanyFilter(ctx, query)
	err := query.Order("contract_number ASC").Find(&contracts).Error
	return contracts, err
}

// RelinkVehicle points the contract at a new vehicle only if it still points at
// oldVehicleID (or nowhere when oldVehicleID is nil). Returns false when another
// writer changed the link first.
func (r *ContractRepository) RelinkVehicle(ctx context.Context, id uuid.UUID, oldVehicleID *uuid.UUID, newVehicleID uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).Model(&domain.Contract{}).Where("id = ?", id)
	if oldVehicleID == nil {
		query = query.Where("vehicle_id IS NULL")
	} else {
		query = query.Where("vehicle_id = ?", *oldVehicleID)
	}
	result := query.Updates(map[string]interface{}{
		"vehicle_id": newVehicleID,
		"updated_at": time.Now().UTC(),
	})
	return result.RowsAffected == 1, result.Error
}

// UpdateTotalPaid stores the contract's completed payment total
func (r *ContractRepository) UpdateTotalPaid(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&domain.Contract{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_paid": total,
			"updated_at": time.Now().UTC(),
		}).Error
}
