// Package app assembles repositories, services and the job runner from
// configuration. Both the API server and the operator CLI start from here.
package app

import (
	"context"
	"fmt"

	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/database"
	"github.com/alaraf/fleet-finance/internal/datawarehouse"
	"github.com/alaraf/fleet-finance/internal/jobs"
	"github.com/alaraf/fleet-finance/internal/notifier"
	"github.com/alaraf/fleet-finance/internal/repository"
	"github.com/alaraf/fleet-finance/internal/service"
	"github.com/alaraf/fleet-finance/internal/storage"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories groups the gorm repositories
type Repositories struct {
	Contracts     *repository.ContractRepository
	Invoices      *repository.InvoiceRepository
	Payments      *repository.PaymentRepository
	Vehicles      *repository.VehicleRepository
	Customers     *repository.CustomerRepository
	Violations    *repository.ViolationRepository
	LegalCases    *repository.LegalCaseRepository
	Sequences     *repository.NumberSequenceRepository
	Notifications *repository.NotificationLogRepository
	JobRuns       *repository.JobRunRepository
}

// Services groups the application services
type Services struct {
	Payment        *service.PaymentService
	Delinquency    *service.DelinquencyService
	Cadence        *service.CadenceService
	Reconciliation *service.ReconciliationService
	Occupancy      *service.OccupancyService
	Notification   *service.NotificationService
}

// App is the wired application
type App struct {
	Config       *config.Config
	DB           *gorm.DB
	Repositories Repositories
	Services     Services
	Runner       *jobs.Runner
	Archive      storage.Storage
	Warehouse    *datawarehouse.Client
	Redis        *redis.Client
	logger       *zap.Logger
}

// NewRepositories builds every repository on db
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Contracts:     repository.NewContractRepository(db),
		Invoices:      repository.NewInvoiceRepository(db),
		Payments:      repository.NewPaymentRepository(db),
		Vehicles:      repository.NewVehicleRepository(db),
		Customers:     repository.NewCustomerRepository(db),
		Violations:    repository.NewViolationRepository(db),
		LegalCases:    repository.NewLegalCaseRepository(db),
		Sequences:     repository.NewNumberSequenceRepository(db),
		Notifications: repository.NewNotificationLogRepository(db),
		JobRuns:       repository.NewJobRunRepository(db),
	}
}

// Options are the optional collaborators. Nil values disable the feature.
type Options struct {
	Archive   storage.Storage
	Warehouse *datawarehouse.Client
	Redis     *redis.Client
}

// New wires services and the job runner on an open database
func New(cfg *config.Config, db *gorm.DB, opts Options, logger *zap.Logger) (*App, error) {
	policies, err := config.NewPolicyProvider(&cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	repos := NewRepositories(db)

	// a nil *Client inside the interface would not compare equal to nil
	var warehouse service.ViolationCounter
	if opts.Warehouse != nil {
		warehouse = opts.Warehouse
	}

	deliver, err := notifier.New(&cfg.Notifications, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}
	dedup, err := notifier.NewDedupStore(cfg, repos.Notifications, opts.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification dedup store: %w", err)
	}

	delinquencyService := service.NewDelinquencyService(
		repos.Contracts, repos.Invoices, repos.Customers, repos.Violations, repos.LegalCases,
		warehouse, policies, logger,
	)
	svc := Services{
		Payment:        service.NewPaymentService(db, repos.Contracts, repos.Invoices, repos.Payments, policies, logger),
		Delinquency:    delinquencyService,
		Cadence:        service.NewCadenceService(db, repos.Contracts, repos.Invoices, repos.Sequences, logger),
		Reconciliation: service.NewReconciliationService(db, repos.Contracts, repos.Invoices, repos.Payments, logger),
		Occupancy:      service.NewOccupancyService(repos.Contracts, repos.Vehicles, logger),
		Notification: service.NewNotificationService(
			repos.Contracts, repos.Invoices, delinquencyService, policies, deliver, dedup, logger,
		),
	}

	svc.Payment.SetNumberSequence(service.NewNumberSequenceService(repos.Sequences, logger))

	runner, err := jobs.NewFinanceRunner(cfg, jobs.Services{
		Cadence:       svc.Cadence,
		Reconcile:     svc.Reconciliation,
		Occupancy:     svc.Occupancy,
		Notifications: svc.Notification,
	}, repos.JobRuns, opts.Archive, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	return &App{
		Config:       cfg,
		DB:           db,
		Repositories: repos,
		Services:     svc,
		Runner:       runner,
		Archive:      opts.Archive,
		Warehouse:    opts.Warehouse,
		Redis:        opts.Redis,
		logger:       logger,
	}, nil
}

// Bootstrap connects to postgres and the optional collaborators named in cfg,
// then wires the application. Optional collaborators that fail to connect are
// logged and left out.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	archive, err := storage.NewStorage(&cfg.Storage, logger)
	if err != nil {
		logger.Warn("Report archive unavailable, job reports will not be archived", zap.Error(err))
		archive = nil
	} else {
		logger.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))
	}

	var opts Options
	opts.Archive = archive

	// read-only and optional, the local violation count is used without it
	if cfg.DataWarehouse.Enabled {
		dw, err := datawarehouse.NewClient(&cfg.DataWarehouse, logger)
		if err != nil {
			logger.Warn("Data warehouse connection failed, continuing without it", zap.Error(err))
		} else {
			opts.Warehouse = dw
		}
	} else {
		logger.Info("Data warehouse not configured, skipping")
	}

	if cfg.Redis.Enabled {
		rdb, err := notifier.NewRedisClient(ctx, cfg.Redis.URL, logger)
		if err != nil {
			if cfg.Notifications.Dedup == notifier.DedupRedis {
				return nil, err
			}
			logger.Warn("Redis unavailable, continuing without it", zap.Error(err))
		} else {
			opts.Redis = rdb
		}
	}

	return New(cfg, db, opts, logger)
}

// Close releases the connections opened by Bootstrap
func (a *App) Close() {
	if a.Warehouse != nil {
		if err := a.Warehouse.Close(); err != nil {
			a.logger.Warn("Error closing data warehouse connection", zap.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("Error closing redis connection", zap.Error(err))
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Warn("Error closing database connection", zap.Error(err))
		}
	}
}
