package repository

import (
	"context"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobRunRepository struct {
	db *gorm.DB
}

func NewJobRunRepository(db *gorm.DB) *JobRunRepository {
	return &JobRunRepository{db: db}
}

func (r *JobRunRepository) Create(ctx context.Context, run *domain.JobRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// ListRecent returns the latest runs, optionally for one job
func (r *JobRunRepository) ListRecent(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error) {
	_, limit = NormalizePagination(1, limit)

	var runs []domain.JobRun
	query := r.db.WithContext(ctx).Model(&domain.JobRun{})
	if jobName != "" {
		query = query.Where("job_name = ?", jobName)
	}
	err := query.Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
