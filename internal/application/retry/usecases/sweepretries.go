package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/infrastructure/metrics"
	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/db"
	"github.com/payops/payops/internal/shared/logger"
)

// SweepConfig bounds one sweep.
type SweepConfig struct {
	BatchSize   int
	Parallelism int
	// StaleAfter is how long a submitted retry may wait for its outcome before
	// it is recorded as an execution error and becomes due again.
	StaleAfter time.Duration
}

func (c SweepConfig) normalized() SweepConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 4
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 24 * time.Hour
	}
	return c
}

type SweepRetriesResult struct {
	Due       int `json:"due"`
	Submitted int `json:"submitted"`
	Unrouted  int `json:"unrouted"`
	Expired   int `json:"expired"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// SweepRetriesUseCase submits every due retry and expires submissions whose
// outcome never arrived. Each schedule is processed in isolation under its
// own lock; one failing schedule never stops the others.
type SweepRetriesUseCase struct {
	mutator  scheduleMutator
	router   PaymentRouter
	payments PaymentSource
	executor PaymentRetryExecutor
	cfg      SweepConfig
	logger   logger.Interface
}

func NewSweepRetriesUseCase(
	scheduleRepo retry.ScheduleRepository,
	attemptRepo retry.AttemptRepository,
	txMgr db.Transactor,
	locker Locker,
	router PaymentRouter,
	payments PaymentSource,
	executor PaymentRetryExecutor,
	ledgerService *ledger.Service,
	metricsEngine *metrics.Engine,
	clock biztime.Clock,
	cfg SweepConfig,
	logger logger.Interface,
) *SweepRetriesUseCase {
	return &SweepRetriesUseCase{
		mutator: scheduleMutator{
			scheduleRepo: scheduleRepo,
			attemptRepo:  attemptRepo,
			txMgr:        txMgr,
			locker:       locker,
			ledger:       ledgerService,
			metrics:      metricsEngine,
			clock:        clock,
			logger:       logger,
		},
		router:   router,
		payments: payments,
		executor: executor,
		cfg:      cfg.normalized(),
		logger:   logger.With("component", "retry_sweep"),
	}
}

type sweepCounters struct {
	submitted, unrouted, expired, failed, skipped atomic.Int64
}

func (uc *SweepRetriesUseCase) Execute(ctx context.Context) (*SweepRetriesResult, error) {
	start := time.Now()
	now := uc.mutator.clock.Now()
	var c sweepCounters

	staleBefore := now.Add(-uc.cfg.StaleAfter)
	_, err := uc.eachPage(ctx, func(ctx context.Context, afterID string) ([]*retry.Schedule, error) {
		return uc.mutator.scheduleRepo.ListStaleSubmissions(ctx, staleBefore, afterID, uc.cfg.BatchSize)
	}, func(ctx context.Context, s *retry.Schedule) error {
		if err := uc.expire(ctx, s.ID()); err != nil {
			return err
		}
		c.expired.Add(1)
		return nil
	}, &c)
	if err != nil {
		uc.logger.Errorw("failed to list stale submissions", "error", err)
		return nil, fmt.Errorf("failed to list stale submissions: %w", err)
	}

	dueAt := uc.mutator.clock.Now()
	due, err := uc.eachPage(ctx, func(ctx context.Context, afterID string) ([]*retry.Schedule, error) {
		return uc.mutator.scheduleRepo.ListDue(ctx, dueAt, afterID, uc.cfg.BatchSize)
	}, func(ctx context.Context, s *retry.Schedule) error {
		return uc.submit(ctx, s, &c)
	}, &c)
	if err != nil {
		uc.logger.Errorw("failed to list due retry schedules", "error", err)
		return nil, fmt.Errorf("failed to list due retry schedules: %w", err)
	}

	result := &SweepRetriesResult{
		Due:       due,
		Submitted: int(c.submitted.Load()),
		Unrouted:  int(c.unrouted.Load()),
		Expired:   int(c.expired.Load()),
		Failed:    int(c.failed.Load()),
		Skipped:   int(c.skipped.Load()),
	}
	uc.mutator.metrics.ObserveSweep("retry", start, result.Submitted+result.Unrouted+result.Expired, result.Failed, result.Skipped)
	if result.Due > 0 || result.Expired > 0 {
		uc.logger.Infow("retry sweep finished",
			"due", result.Due,
			"submitted", result.Submitted,
			"unrouted", result.Unrouted,
			"expired", result.Expired,
			"failed", result.Failed,
			"skipped", result.Skipped,
			"duration", time.Since(start),
		)
	}
	return result, nil
}

// eachPage walks every page list returns and fans each one out to fn. A
// schedule that stays listed after fn, such as an unrouted one, does not hold
// back the schedules sorted after it.
func (uc *SweepRetriesUseCase) eachPage(
	ctx context.Context,
	list func(ctx context.Context, afterID string) ([]*retry.Schedule, error),
	fn func(context.Context, *retry.Schedule) error,
	c *sweepCounters,
) (int, error) {
	seen := 0
	afterID := ""
	for {
		page, err := list(ctx, afterID)
		if err != nil {
			return seen, err
		}
		if len(page) == 0 {
			return seen, nil
		}
		seen += len(page)
		afterID = page[len(page)-1].ID()
		uc.fanOut(ctx, page, fn, c)
		if len(page) < uc.cfg.BatchSize || ctx.Err() != nil {
			return seen, nil
		}
	}
}

// fanOut runs fn for each schedule with bounded parallelism. Errors are
// counted and logged, never propagated.
func (uc *SweepRetriesUseCase) fanOut(ctx context.Context, list []*retry.Schedule, fn func(context.Context, *retry.Schedule) error, c *sweepCounters) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.Parallelism)
	for _, s := range list {
		g.Go(func() error {
			err := safeRun(gctx, s, fn)
			switch {
			case err == nil:
			case isBenign(err):
				c.skipped.Add(1)
				uc.logger.Debugw("retry schedule skipped", "schedule_id", s.ID(), "reason", err)
			default:
				c.failed.Add(1)
				uc.logger.Errorw("retry schedule processing failed", "schedule_id", s.ID(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func safeRun(ctx context.Context, s *retry.Schedule, fn func(context.Context, *retry.Schedule) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing schedule %s: %v", s.ID(), r)
		}
	}()
	return fn(ctx, s)
}

// submit routes a due schedule and hands it to the executor. A payment that
// routes nowhere, or a submission that fails, is recorded as an execution
// error and stays due.
func (uc *SweepRetriesUseCase) submit(ctx context.Context, listed *retry.Schedule, c *sweepCounters) error {
	p, err := uc.payments.LoadPayment(ctx, listed)
	if err != nil {
		return err
	}
	decision, err := uc.router.Route(ctx, listed.OrganizationID(), listed.CompanyID(), p)
	if err != nil {
		return fmt.Errorf("failed to route payment %s: %w", listed.PaymentID(), err)
	}
	if !decision.Found() {
		_, _, err := uc.mutator.apply(ctx, listed.ID(), mutationSpec{action: "attempt.unrouted"},
			func(_ context.Context, s *retry.Schedule, now time.Time) (*retry.Attempt, error) {
				if !s.IsDue(now) {
					return nil, errNotDue
				}
				return s.RecordOutcome(retry.Outcome{
					Kind:         retry.OutcomeExecutionError,
					ErrorMessage: "no provider account: " + decision.Reason,
				}, now)
			})
		if err != nil {
			return err
		}
		c.unrouted.Add(1)
		return nil
	}

	_, _, err = uc.mutator.apply(ctx, listed.ID(), mutationSpec{action: "submit"},
		func(ctx context.Context, s *retry.Schedule, now time.Time) (*retry.Attempt, error) {
			if !s.IsDue(now) {
				return nil, errNotDue
			}
			if err := s.MarkSubmitted(decision.ProviderAccountID, now); err != nil {
				return nil, err
			}
			_, err := uc.executor.SubmitRetry(ctx, RetrySubmission{
				OrganizationID:    s.OrganizationID(),
				CompanyID:         s.CompanyID(),
				ScheduleID:        s.ID(),
				PaymentID:         s.PaymentID(),
				ClientID:          s.ClientID(),
				SubscriptionID:    s.SubscriptionID(),
				ProviderAccountID: decision.ProviderAccountID,
				AmountCents:       s.AmountCents(),
				Currency:          s.Currency(),
				AttemptNumber:     s.CurrentAttempt() + 1,
			})
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errSubmitFailed, err)
			}
			return nil, nil
		})
	switch {
	case errors.Is(err, errSubmitFailed):
		uc.logger.Warnw("retry submission failed", "schedule_id", listed.ID(), "error", err)
		if _, _, recErr := uc.mutator.apply(ctx, listed.ID(), mutationSpec{action: "attempt.execution_error"},
			func(_ context.Context, s *retry.Schedule, now time.Time) (*retry.Attempt, error) {
				return s.RecordOutcome(retry.Outcome{Kind: retry.OutcomeExecutionError, ErrorMessage: err.Error()}, now)
			}); recErr != nil {
			return recErr
		}
		return err
	case errors.Is(err, errNotDue):
		c.skipped.Add(1)
		return nil
	case err != nil:
		return err
	}
	c.submitted.Add(1)
	return nil
}

// expire records a missing outcome as an execution error so the retry can be
// submitted again.
func (uc *SweepRetriesUseCase) expire(ctx context.Context, scheduleID string) error {
	staleBefore := uc.mutator.clock.Now().Add(-uc.cfg.StaleAfter)
	_, _, err := uc.mutator.apply(ctx, scheduleID, mutationSpec{action: "attempt.expired"},
		func(_ context.Context, s *retry.Schedule, now time.Time) (*retry.Attempt, error) {
			if !s.AwaitingOutcome() || s.SubmittedAt() == nil || !s.SubmittedAt().Before(staleBefore) {
				return nil, errNotDue
			}
			return s.RecordOutcome(retry.Outcome{
				Kind:         retry.OutcomeExecutionError,
				ErrorMessage: "no outcome received for submitted retry",
			}, now)
		})
	return err
}

var (
	errNotDue       = errors.New("retry schedule not due")
	errSubmitFailed = errors.New("retry submission failed")
)
