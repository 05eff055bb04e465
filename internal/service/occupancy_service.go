package service

import (
	"context"
	"fmt"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/fleet"
	"github.com/alaraf/fleet-finance/internal/repository"
	"go.uber.org/zap"
)

// OccupancyService keeps vehicle status in line with the active rental contracts
type OccupancyService struct {
	clock
	contractRepo *repository.ContractRepository
	vehicleRepo  *repository.VehicleRepository
	logger       *zap.Logger
}

func NewOccupancyService(
	contractRepo *repository.ContractRepository,
	vehicleRepo *repository.VehicleRepository,
	logger *zap.Logger,
) *OccupancyService {
	return &OccupancyService{
		clock:        newClock(),
		contractRepo: contractRepo,
		vehicleRepo:  vehicleRepo,
		logger:       logger,
	}
}

// Plan reads the fleet and the active contracts and returns the sync plan
// without writing anything
func (s *OccupancyService) Plan(ctx context.Context) (fleet.SyncPlan, error) {
	vehicles, err := s.vehicleRepo.ListAll(ctx)
	if err != nil {
		return fleet.SyncPlan{}, fmt.Errorf("failed to list vehicles: %w", err)
	}
	contracts, err := s.contractRepo.ListByStatus(ctx, domain.ContractStatusActive)
	if err != nil {
		return fleet.SyncPlan{}, fmt.Errorf("failed to list active contracts: %w", err)
	}
	return fleet.PlanSync(vehicles, contracts, s.today()), nil
}

// Sync repairs stale contract links and then moves vehicles between rented and
// available. Every write is guarded on the value the plan was computed from; a
// row that changed in the meantime is skipped and picked up by the next run.
func (s *OccupancyService) Sync(ctx context.Context, dryRun bool) (*domain.BatchReport, fleet.SyncPlan) {
	report := domain.NewBatchReport("vehicle_occupancy", s.now())
	report.DryRun = dryRun

	plan, err := s.Plan(ctx)
	if err != nil {
		report.Fail("plan", err)
		report.Finish(s.now())
		return report, plan
	}

	for _, issue := range plan.Issues {
		key := "contract:" + issue.ContractNumber
		s.logger.Warn("contract vehicle link needs review",
			zap.String("contract_id", issue.ContractID.String()),
			zap.String("kind", string(issue.Kind)),
			zap.String("detail", issue.Detail),
		)
		if issue.Err != nil {
			report.ClassifyUnitError(key, issue.Err)
			continue
		}
		report.Skip(key, issue.Detail)
	}

	for _, repair := range plan.LinkRepairs {
		s.applyLinkRepair(ctx, repair, dryRun, report)
	}
	for _, change := range plan.StatusChanges {
		s.applyStatusChange(ctx, change, dryRun, report)
	}

	report.Finish(s.now())
	succeeded, skipped, failed := report.Counts()
	s.logger.Info("vehicle occupancy sync finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("link_repairs", len(plan.LinkRepairs)),
		zap.Int("status_changes", len(plan.StatusChanges)),
		zap.Int("succeeded", succeeded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return report, plan
}

func (s *OccupancyService) applyLinkRepair(ctx context.Context, repair fleet.LinkRepair, dryRun bool, report *domain.BatchReport) {
	key := "contract:" + repair.ContractNumber
	if dryRun {
		report.Success(key, 1, fmt.Sprintf("would link to vehicle %s", repair.NewVehicleID))
		return
	}
	if ctx.Err() != nil {
		report.Fail(key, ctx.Err())
		return
	}

	ok, err := s.contractRepo.RelinkVehicle(ctx, repair.ContractID, repair.OldVehicleID, repair.NewVehicleID)
	if err != nil {
		s.logger.Error("failed to repair contract vehicle link",
			zap.String("contract_id", repair.ContractID.String()),
			zap.Error(err),
		)
		report.Fail(key, err)
		return
	}
	if !ok {
		report.Skip(key, "vehicle link changed concurrently")
		return
	}
	report.Success(key, 1, fmt.Sprintf("linked to vehicle %s by plate %s", repair.NewVehicleID, repair.LicensePlate))
}

func (s *OccupancyService) applyStatusChange(ctx context.Context, change fleet.StatusChange, dryRun bool, report *domain.BatchReport) {
	key := "vehicle:" + change.PlateNumber
	if dryRun {
		report.Success(key, 1, fmt.Sprintf("would change %s -> %s", change.OldStatus, change.NewStatus))
		return
	}
	if ctx.Err() != nil {
		report.Fail(key, ctx.Err())
		return
	}

	ok, err := s.vehicleRepo.UpdateStatus(ctx, change.VehicleID, change.OldStatus, change.NewStatus)
	if err != nil {
		s.logger.Error("failed to update vehicle status",
			zap.String("vehicle_id", change.VehicleID.String()),
			zap.Error(err),
		)
		report.Fail(key, err)
		return
	}
	if !ok {
		report.Skip(key, "vehicle status changed concurrently")
		return
	}
	report.Success(key, 1, fmt.Sprintf("%s -> %s", change.OldStatus, change.NewStatus))
}
