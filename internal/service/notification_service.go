package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/repository"
	"go.uber.org/zap"
)

// Notifier delivers a notification. Delivery is best effort; the caller
// decides what to do with an error.
type Notifier interface {
	Notify(ctx context.Context, n *domain.Notification) error
}

// DedupStore hands out each (contract, type, day) slot once
type DedupStore interface {
	// Claim returns true when the caller owns the slot and must deliver
	Claim(ctx context.Context, key domain.NotificationKey, n *domain.Notification) (bool, error)
	// Release gives the slot back after a failed delivery
	Release(ctx context.Context, key domain.NotificationKey) error
}

// NotificationService decides which contracts need a renewal, expiry or
// overdue notification today and hands them to the Notifier
type NotificationService struct {
	contractRepo *repository.ContractRepository
	invoiceRepo  *repository.InvoiceRepository
	delinquency  *DelinquencyService
	policies     PolicySource
	notifier     Notifier
	dedup        DedupStore
	logger       *zap.Logger
}

func NewNotificationService(
	contractRepo *repository.ContractRepository,
	invoiceRepo *repository.InvoiceRepository,
	delinquency *DelinquencyService,
	policies PolicySource,
	notifier Notifier,
	dedup DedupStore,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		contractRepo: contractRepo,
		invoiceRepo:  invoiceRepo,
		delinquency:  delinquency,
		policies:     policies,
		notifier:     notifier,
		dedup:        dedup,
		logger:       logger,
	}
}

// unitFailure is a contract or collection step that could not be evaluated
type unitFailure struct {
	unit string
	err  error
}

// Due returns the notifications that fire on the given day, before dedup. A
// contract that cannot be evaluated does not hide the others; the returned
// error joins every such failure.
func (s *NotificationService) Due(ctx context.Context, today time.Time) ([]*domain.Notification, error) {
	due, failures := s.collect(ctx, domain.DateOnly(today.UTC()))
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = fmt.Errorf("%s: %w", f.unit, f.err)
	}
	return due, errors.Join(errs...)
}

func (s *NotificationService) collect(ctx context.Context, day time.Time) ([]*domain.Notification, []unitFailure) {
	var failures []unitFailure

	renewals, err := s.renewalNotifications(ctx, day)
	if err != nil {
		failures = append(failures, unitFailure{unit: "collect_renewals", err: err})
	}
	overdue, overdueFailures := s.overdueNotifications(ctx, day)
	failures = append(failures, overdueFailures...)
	return append(renewals, overdue...), failures
}

// RunDaily sends every notification due on the given day that has not been
// sent yet. A failed delivery releases its slot so the next run retries it.
func (s *NotificationService) RunDaily(ctx context.Context, today time.Time, dryRun bool) *domain.BatchReport {
	report := domain.NewBatchReport("contract_notifications", time.Now())
	report.DryRun = dryRun

	due, failures := s.collect(ctx, domain.DateOnly(today.UTC()))
	for _, f := range failures {
		s.logger.Error("failed to evaluate notifications",
			zap.String("unit", f.unit),
			zap.Error(f.err),
		)
		report.Fail(f.unit, f.err)
	}

	for _, n := range due {
		key := n.Key(today)
		unit := fmt.Sprintf("%v/%s", n.Payload["contractNumber"], n.Type)

		if dryRun {
			report.Success(unit, 1, "would notify")
			continue
		}
		if ctx.Err() != nil {
			report.Fail(unit, ctx.Err())
			continue
		}

		claimed, err := s.dedup.Claim(ctx, key, n)
		if err != nil {
			report.Fail(unit, fmt.Errorf("failed to claim notification slot: %w", err))
			continue
		}
		if !claimed {
			report.Skip(unit, "already sent today")
			continue
		}

		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Error("notification delivery failed",
				zap.String("contract_id", n.ContractID.String()),
				zap.String("type", string(n.Type)),
				zap.Error(err),
			)
			if relErr := s.dedup.Release(ctx, key); relErr != nil {
				s.logger.Error("failed to release notification slot",
					zap.String("slot", key.String()),
					zap.Error(relErr),
				)
			}
			report.Fail(unit, err)
			continue
		}
		report.Success(unit, 1, "sent")
	}

	report.Finish(time.Now())
	succeeded, skipped, failed := report.Counts()
	s.logger.Info("contract notifications finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("due", len(due)),
		zap.Int("succeeded", succeeded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return report
}

// renewalNotifications fires contract_expiring on each configured number of
// days before the end date, and contract_expired on the day after it.
func (s *NotificationService) renewalNotifications(ctx context.Context, day time.Time) ([]*domain.Notification, error) {
	contracts, err := s.contractRepo.ListByStatus(ctx, domain.ContractStatusActive, domain.ContractStatusExpired)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}

	var out []*domain.Notification
	for i := range contracts {
		c := &contracts[i]
		if c.EndDate == nil {
			continue
		}
		daysLeft := domain.DaysBetween(day, *c.EndDate)
		end := domain.DateOnly(*c.EndDate).Format("2006-01-02")

		if daysLeft == -1 {
			out = append(out, newNotification(domain.NotificationTypeContractExpired, c, day, map[string]interface{}{
				"endDate": end,
			}))
			continue
		}
		if c.Status != domain.ContractStatusActive {
			continue
		}
		if containsDay(s.policies.For(c.CompanyID).Notification.RenewalReminderDays, daysLeft) {
			out = append(out, newNotification(domain.NotificationTypeContractExpiring, c, day, map[string]interface{}{
				"endDate":       end,
				"daysRemaining": daysLeft,
			}))
		}
	}
	return out, nil
}

// overdueNotifications fires payment_overdue when a contract's oldest unpaid
// invoice is exactly one of the escalation thresholds days late
func (s *NotificationService) overdueNotifications(ctx context.Context, day time.Time) ([]*domain.Notification, []unitFailure) {
	ids, err := s.invoiceRepo.ListContractIDsWithOpenBalance(ctx)
	if err != nil {
		return nil, []unitFailure{{unit: "collect_overdue", err: fmt.Errorf("failed to list contracts with open balance: %w", err)}}
	}
	contracts, err := s.contractRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, []unitFailure{{unit: "collect_overdue", err: fmt.Errorf("failed to load contracts: %w", err)}}
	}

	var out []*domain.Notification
	var failures []unitFailure
	for i := range contracts {
		c := &contracts[i]
		levels := s.policies.For(c.CompanyID).Notification.OverdueEscalationDays

		a, err := s.delinquency.assessOn(ctx, c, day)
		if err != nil {
			failures = append(failures, unitFailure{
				unit: fmt.Sprintf("%s/%s", c.ContractNumber, domain.NotificationTypePaymentOverdue),
				err:  err,
			})
			continue
		}
		if !a.Assessment.IsDelinquent() || !containsDay(levels, a.Assessment.DaysOverdue) {
			continue
		}
		out = append(out, newNotification(domain.NotificationTypePaymentOverdue, c, day, map[string]interface{}{
			"daysOverdue":       a.Assessment.DaysOverdue,
			"overdueAmount":     a.Assessment.OverdueAmount.StringFixed(2),
			"totalPenalty":      a.Assessment.TotalPenalty.StringFixed(2),
			"escalationLevel":   a.EscalationLevel,
			"riskScore":         a.Assessment.RiskScore,
			"riskLevel":         a.Assessment.RiskLevel,
			"recommendedAction": a.Assessment.RecommendedAction,
		}))
	}
	return out, failures
}

func newNotification(t domain.NotificationType, c *domain.Contract, day time.Time, payload map[string]interface{}) *domain.Notification {
	payload["contractNumber"] = c.ContractNumber
	payload["customerId"] = c.CustomerID.String()
	return &domain.Notification{
		Type:       t,
		ContractID: c.ID,
		CompanyID:  c.CompanyID,
		Payload:    payload,
		CreatedAt:  day,
	}
}

func containsDay(days []int, d int) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}
