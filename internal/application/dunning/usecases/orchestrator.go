package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/payops/payops/internal/application/dunning/dto"
	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/infrastructure/metrics"
	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

// Orchestrator moves dunning runs through their steps. Callers hold the run
// lock; every step commits in its own transaction with its audit entry and
// outbox tasks.
type Orchestrator struct {
	configRepo dunning.ConfigRepository
	runRepo    dunning.RunRepository
	steps      stepDeps
	txMgr      db.Transactor
	locker     Locker
	ledger     *ledger.Service
	metrics    *metrics.Engine
	clock      biztime.Clock
	logger     logger.Interface
}

func NewOrchestrator(
	configRepo dunning.ConfigRepository,
	runRepo dunning.RunRepository,
	paymentScheduleRepo billing.PaymentScheduleRepository,
	retryScheduleRepo retry.ScheduleRepository,
	outboxRepo outbox.Repository,
	links LinkIssuer,
	txMgr db.Transactor,
	locker Locker,
	ledgerService *ledger.Service,
	metricsEngine *metrics.Engine,
	clock biztime.Clock,
	contactText string,
	logger logger.Interface,
) *Orchestrator {
	log := logger.With("component", "dunning")
	return &Orchestrator{
		configRepo: configRepo,
		runRepo:    runRepo,
		steps: stepDeps{
			paymentScheduleRepo: paymentScheduleRepo,
			retryScheduleRepo:   retryScheduleRepo,
			outboxRepo:          outboxRepo,
			links:               links,
			contactText:         contactText,
			logger:              log,
		},
		txMgr:   txMgr,
		locker:  locker,
		ledger:  ledgerService,
		metrics: metricsEngine,
		clock:   clock,
		logger:  log,
	}
}

// lockRun acquires the per-subscription lock.
func (o *Orchestrator) lockRun(ctx context.Context, organizationID, subscriptionID string) (func(), error) {
	return o.locker.Acquire(ctx, runLockKey(organizationID, subscriptionID))
}

// advance executes every due step of the run in order and returns how many
// ran. A run opened late catches up on all steps that became due meanwhile.
func (o *Orchestrator) advance(ctx context.Context, runID string) (int, error) {
	executed := 0
	for {
		ran, err := o.executeNext(ctx, runID)
		if err != nil {
			return executed, err
		}
		if !ran {
			return executed, nil
		}
		executed++
	}
}

// executeNext runs the next pending step if it is due. A failing step rolls
// back entirely and leaves lastCompletedStep where it was; the error is kept
// on the run for operators.
func (o *Orchestrator) executeNext(ctx context.Context, runID string) (bool, error) {
	var (
		ran      bool
		kind     dunning.ActionKind
		resolved *dunning.Run
	)
	err := o.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		run, err := o.runRepo.GetByID(ctx, runID)
		if err != nil {
			return err
		}
		if run.IsResolved() {
			return nil
		}
		cfg, err := o.configRepo.GetByID(ctx, run.ConfigID())
		if err != nil {
			return fmt.Errorf("failed to load dunning config %s: %w", run.ConfigID(), err)
		}

		now := o.clock.Now()
		before := dto.ToDunningRunDTO(run)
		step, idx, due := run.PendingStep(cfg, now)
		if !due {
			if !run.StepsExhausted(cfg) {
				return nil
			}
			if err := run.Resolve(dunning.ResolutionStepsExhausted, audit.SystemActor, now); err != nil {
				return err
			}
			if err := o.save(ctx, run, before, "resolve", audit.SystemActor); err != nil {
				return err
			}
			resolved = run
			return nil
		}

		kind = step.Kind()
		exec := &stepExecution{ctx: ctx, deps: &o.steps, run: run, step: step, index: idx, now: now}
		if err := step.Action().Accept(exec); err != nil {
			return &stepError{index: idx, kind: kind, err: err}
		}
		if err := run.CompleteStep(idx, now); err != nil {
			return err
		}
		if exec.resolution != "" {
			if err := run.Resolve(exec.resolution, audit.SystemActor, now); err != nil {
				return err
			}
			resolved = run
		}
		if err := o.save(ctx, run, before, "step."+strings.ToLower(string(kind)), audit.SystemActor); err != nil {
			return err
		}
		ran = true
		o.logger.Infow("dunning step executed",
			"run_id", run.ID(),
			"subscription_id", run.SubscriptionID(),
			"step", idx,
			"action", kind,
			"label", step.Label(),
		)
		return nil
	})

	var se *stepError
	switch {
	case errors.As(err, &se):
		o.metrics.StepExecuted(string(se.kind), false)
		o.logger.Errorw("dunning step failed", "run_id", runID, "step", se.index, "action", se.kind, "error", se.err)
		if recErr := o.recordFailure(ctx, runID, se); recErr != nil {
			o.logger.Errorw("failed to record dunning step failure", "run_id", runID, "error", recErr)
		}
		return false, err
	case err != nil:
		return false, err
	}

	if ran {
		o.metrics.StepExecuted(string(kind), true)
	}
	if resolved != nil {
		o.metrics.Resolved(string(audit.EntityDunningRun), string(resolved.ResolutionReason()))
		o.logger.Infow("dunning run resolved",
			"run_id", resolved.ID(),
			"subscription_id", resolved.SubscriptionID(),
			"reason", resolved.ResolutionReason(),
		)
		return false, nil
	}
	return ran, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, runID string, se *stepError) error {
	return o.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		run, err := o.runRepo.GetByID(ctx, runID)
		if err != nil {
			return err
		}
		if run.IsResolved() {
			return nil
		}
		run.RecordFailure(se, o.clock.Now())
		return o.runRepo.Update(ctx, run)
	})
}

// save persists the run and its audit entry in the caller's transaction.
func (o *Orchestrator) save(ctx context.Context, run *dunning.Run, before *dto.DunningRunDTO, action, actor string) error {
	if err := o.runRepo.Update(ctx, run); err != nil {
		return err
	}
	return o.record(ctx, run, before, action, actor, "")
}

func (o *Orchestrator) record(ctx context.Context, run *dunning.Run, before *dto.DunningRunDTO, action, actor, idempotencyKey string) error {
	var b any
	if before != nil {
		b = before
	}
	return o.ledger.Record(ctx, ledger.Transition{
		OrganizationID: run.OrganizationID(),
		EntityType:     audit.EntityDunningRun,
		EntityID:       run.ID(),
		Action:         action,
		Actor:          actor,
		Before:         b,
		After:          dto.ToDunningRunDTO(run),
		IdempotencyKey: idempotencyKey,
	})
}

type stepError struct {
	index int
	kind  dunning.ActionKind
	err   error
}

func (e *stepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.index, e.kind, e.err)
}

func (e *stepError) Unwrap() error { return e.err }

// isBenign reports errors that mean another worker owns or finished the run.
func isBenign(err error) bool {
	return errors.Is(err, apperrors.ErrRunResolved) ||
		errors.Is(err, apperrors.ErrAlreadyProcessed) ||
		errors.Is(err, apperrors.ErrLockNotAcquired) ||
		errors.Is(err, apperrors.ErrVersionConflict)
}
