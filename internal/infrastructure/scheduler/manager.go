// Package scheduler runs the engine's periodic jobs on gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/logger"
)

// BatchJob processes one batch and returns the number of items it handled.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// BatchJobFunc adapts a function to BatchJob.
type BatchJobFunc func(ctx context.Context) (int, error)

func (f BatchJobFunc) Execute(ctx context.Context) (int, error) { return f(ctx) }

// Intervals of the registered jobs. Zero values fall back to defaults.
type Intervals struct {
	Sweep  time.Duration
	Outbox time.Duration
	// SweepTimeout bounds one sweep run.
	SweepTimeout time.Duration
}

func (i Intervals) normalized() Intervals {
	if i.Sweep <= 0 {
		i.Sweep = time.Hour
	}
	if i.Outbox <= 0 {
		i.Outbox = 30 * time.Second
	}
	if i.SweepTimeout <= 0 {
		i.SweepTimeout = 30 * time.Minute
	}
	return i
}

// SchedulerManager owns the single gocron scheduler of a process.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	intervals Intervals
	logger    logger.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a scheduler whose cron expressions use the
// business timezone.
func NewSchedulerManager(intervals Intervals, log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		intervals: intervals.normalized(),
		logger:    log,
	}, nil
}

// ========================================
// Sweep Jobs
// ========================================

// RegisterSweepJobs registers the periodic sweeper. Retries are submitted
// before dunning steps run so a step sees the retry state of the same tick.
func (m *SchedulerManager) RegisterSweepJobs(retrySweep, dunningSweep BatchJob) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(m.intervals.Sweep),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), m.intervals.SweepTimeout)
			defer cancel()
			m.runSweeps(ctx, retrySweep, dunningSweep)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("sweep", "retry", "dunning"),
		gocron.WithName("engine-sweep"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered sweep jobs", "interval", m.intervals.Sweep)
	return nil
}

func (m *SchedulerManager) runSweeps(ctx context.Context, retrySweep, dunningSweep BatchJob) {
	startTime := biztime.NowUTC()
	m.runBatch(ctx, "retry sweep", retrySweep)
	m.runBatch(ctx, "dunning sweep", dunningSweep)
	m.logger.Debugw("sweep finished", "duration", time.Since(startTime))
}

// ========================================
// Outbox Jobs
// ========================================

// RegisterOutboxJob registers the side-effect drain.
func (m *SchedulerManager) RegisterOutboxJob(drain BatchJob) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(m.intervals.Outbox),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			m.runBatch(ctx, "outbox drain", drain)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("outbox"),
		gocron.WithName("outbox-drain"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered outbox job", "interval", m.intervals.Outbox)
	return nil
}

// ========================================
// Maintenance Jobs
// ========================================

// RegisterMaintenanceJobs registers daily housekeeping at 03:30.
func (m *SchedulerManager) RegisterMaintenanceJobs(purgeLinks BatchJob) error {
	_, err := m.scheduler.NewJob(
		gocron.CronJob("30 3 * * *", false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			m.runBatch(ctx, "payment link purge", purgeLinks)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("maintenance", "payment-links"),
		gocron.WithName("payment-link-purge"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered maintenance jobs", "payment_link_purge", "03:30")
	return nil
}

func (m *SchedulerManager) runBatch(ctx context.Context, name string, job BatchJob) {
	if job == nil {
		return
	}
	startTime := biztime.NowUTC()
	count, err := job.Execute(ctx)
	if err != nil {
		m.logger.Errorw("scheduled job failed",
			"job", name,
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}
	if count > 0 {
		m.logger.Infow("scheduled job processed items",
			"job", name,
			"count", count,
			"duration", time.Since(startTime),
		)
	}
}

// ========================================
// Scheduler Lifecycle Methods
// ========================================

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop waits for running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
