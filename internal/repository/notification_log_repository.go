package repository

import (
	"context"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationLogRepository is the dedup ledger for contract notifications
type NotificationLogRepository struct {
	db *gorm.DB
}

func NewNotificationLogRepository(db *gorm.DB) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// Claim inserts the (contract, type, day) row. It returns false without error
// when the row already exists, so exactly one caller wins a given slot.
func (r *NotificationLogRepository) Claim(ctx context.Context, entry *domain.NotificationLog) (bool, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contract_id"}, {Name: "type"}, {Name: "sent_on"}},
			DoNothing: true,
		}).
		Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Release removes a claim so a failed delivery can be retried
func (r *NotificationLogRepository) Release(ctx context.Context, contractID uuid.UUID, notificationType domain.NotificationType, sentOn string) error {
	return r.db.WithContext(ctx).
		Where("contract_id = ? AND type = ? AND sent_on = ?", contractID, notificationType, sentOn).
		Delete(&domain.NotificationLog{}).Error
}

// ListByContract returns the notifications sent for a contract, newest first
func (r *NotificationLogRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]domain.NotificationLog, error) {
	var logs []domain.NotificationLog
	query := r.db.WithContext(ctx).Where("contract_id = ?", contractID)
	query = ApplyCompanyFilter(ctx, query)
	err := query.Order("sent_on DESC").Find(&logs).Error
	return logs, err
}
