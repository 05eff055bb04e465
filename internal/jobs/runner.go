package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/logger"
	"github.com/alaraf/fleet-finance/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrUnknownJob is returned when no job is registered under the name
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobRunning is returned when the job is already executing
	ErrJobRunning = errors.New("job is already running")
)

// BatchFunc runs one batch and reports every unit it touched
type BatchFunc func(ctx context.Context, dryRun bool) *domain.BatchReport

// Job is a named batch with its cron schedule
type Job struct {
	Name     string
	Schedule string
	Run      BatchFunc
}

// RunStore persists the header of each finished run
type RunStore interface {
	Create(ctx context.Context, run *domain.JobRun) error
}

// Runner executes registered jobs, from cron or on demand, never two runs of
// the same job at once. Every live run is recorded as a JobRun and its full
// report archived as JSON.
type Runner struct {
	jobs         map[string]Job
	runs         RunStore
	archive      storage.Storage
	reportPrefix string
	timeout      time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	running map[string]bool
}

// NewRunner creates a runner. runs and archive may be nil to skip recording
// and archiving.
func NewRunner(runs RunStore, archive storage.Storage, reportPrefix string, timeout time.Duration, logger *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Runner{
		jobs:         make(map[string]Job),
		runs:         runs,
		archive:      archive,
		reportPrefix: reportPrefix,
		timeout:      timeout,
		logger:       logger,
		running:      make(map[string]bool),
	}
}

// Register adds a job
func (r *Runner) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a run function")
	}
	if _, exists := r.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	r.jobs[job.Name] = job
	return nil
}

// Names returns the registered job names, sorted
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schedule adds every job with a schedule to the cron scheduler
func (r *Runner) Schedule(s *Scheduler) error {
	for _, name := range r.Names() {
		job := r.jobs[name]
		if job.Schedule == "" {
			continue
		}
		jobName := job.Name
		err := s.AddJob(jobName, job.Schedule, func() {
			if _, err := r.RunNow(context.Background(), jobName, false); err != nil && !errors.Is(err, ErrJobRunning) {
				r.logger.Error("scheduled job failed", zap.String("job", jobName), zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RunNow executes the named job and waits for it. The run gets its own
// timeout derived from ctx.
func (r *Runner) RunNow(ctx context.Context, name string, dryRun bool) (*domain.BatchReport, error) {
	job, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !r.acquire(name) {
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	defer r.release(name)

	runID := uuid.New()
	log := logger.WithJob(r.logger, name, runID.String(), dryRun)

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	log.Info("job started")

	report := job.Run(runCtx, dryRun)
	if report == nil {
		report = domain.NewBatchReport(name, start)
		report.Finish(time.Now())
	}

	succeeded, skipped, failed := report.Counts()
	log.Info("job completed",
		zap.Int("succeeded", succeeded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Int("total", report.Total()),
		zap.Duration("duration", time.Since(start)),
	)

	if dryRun {
		return report, nil
	}

	// Recording uses a fresh context so a run that hit its timeout is still recorded.
	recordCtx, recordCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer recordCancel()

	reportPath := r.archiveReport(recordCtx, log, runID, report)
	run := &domain.JobRun{
		ID:         runID,
		JobName:    name,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Succeeded:  succeeded,
		Skipped:    skipped,
		Failed:     failed,
		ReportPath: reportPath,
	}
	if runCtx.Err() != nil {
		run.Error = runCtx.Err().Error()
	}
	if r.runs == nil {
		return report, nil
	}
	if err := r.runs.Create(recordCtx, run); err != nil {
		log.Error("failed to record job run", zap.Error(err))
	}
	return report, nil
}

// ReportKey is the archive key of a run's report
func ReportKey(prefix, job string, startedAt time.Time, runID uuid.UUID) string {
	return path.Join(prefix, job, startedAt.UTC().Format("2006/01/02"), runID.String()+".json")
}

// archiveReport stores the report and returns its key, or "" when archiving
// is off or failed
func (r *Runner) archiveReport(ctx context.Context, log *zap.Logger, runID uuid.UUID, report *domain.BatchReport) string {
	if r.archive == nil {
		return ""
	}
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Warn("failed to encode job report", zap.Error(err))
		return ""
	}
	key := ReportKey(r.reportPrefix, report.Job, report.StartedAt, runID)
	if _, err := r.archive.Put(ctx, key, "application/json", bytes.NewReader(body)); err != nil {
		log.Warn("failed to archive job report", zap.String("key", key), zap.Error(err))
		return ""
	}
	return key
}

func (r *Runner) acquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[name] {
		return false
	}
	r.running[name] = true
	return true
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	delete(r.running, name)
	r.mu.Unlock()
}
