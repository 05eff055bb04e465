package jobs

import (
	"context"
	"time"

	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/fleet"
	"github.com/alaraf/fleet-finance/internal/storage"
	"go.uber.org/zap"
)

// Job names
const (
	InvoiceCadenceJob        = "invoice_cadence"
	InvoiceReconcileJob      = "invoice_reconcile"
	VehicleOccupancyJob      = "vehicle_occupancy"
	ContractNotificationsJob = "contract_notifications"
)

// The services the jobs drive. Declared here so the jobs do not import the
// service package.
type (
	CadenceRunner interface {
		GenerateAll(ctx context.Context, dryRun bool) *domain.BatchReport
	}
	ReconcileRunner interface {
		ReconcileAll(ctx context.Context, dryRun bool) *domain.BatchReport
	}
	OccupancyRunner interface {
		Sync(ctx context.Context, dryRun bool) (*domain.BatchReport, fleet.SyncPlan)
	}
	NotificationRunner interface {
		RunDaily(ctx context.Context, today time.Time, dryRun bool) *domain.BatchReport
	}
)

// Services bundles the job targets
type Services struct {
	Cadence       CadenceRunner
	Reconcile     ReconcileRunner
	Occupancy     OccupancyRunner
	Notifications NotificationRunner
}

// FinanceJobs returns the four batch jobs with their configured schedules
func FinanceJobs(cfg *config.JobsConfig, svc Services) []Job {
	return []Job{
		{
			Name:     InvoiceCadenceJob,
			Schedule: cfg.InvoiceCadence,
			Run:      svc.Cadence.GenerateAll,
		},
		{
			Name:     InvoiceReconcileJob,
			Schedule: cfg.InvoiceReconcile,
			Run:      svc.Reconcile.ReconcileAll,
		},
		{
			Name:     VehicleOccupancyJob,
			Schedule: cfg.VehicleOccupancy,
			Run: func(ctx context.Context, dryRun bool) *domain.BatchReport {
				report, _ := svc.Occupancy.Sync(ctx, dryRun)
				return report
			},
		},
		{
			Name:     ContractNotificationsJob,
			Schedule: cfg.ContractNotification,
			Run: func(ctx context.Context, dryRun bool) *domain.BatchReport {
				return svc.Notifications.RunDaily(ctx, time.Now().UTC(), dryRun)
			},
		},
	}
}

// NewFinanceRunner registers the finance jobs on a new runner
func NewFinanceRunner(cfg *config.Config, svc Services, runs RunStore, archive storage.Storage, logger *zap.Logger) (*Runner, error) {
	runner := NewRunner(runs, archive, cfg.Storage.ReportPrefix, cfg.Jobs.TimeoutDuration(), logger)
	for _, job := range FinanceJobs(&cfg.Jobs, svc) {
		if err := runner.Register(job); err != nil {
			return nil, err
		}
	}
	return runner, nil
}
