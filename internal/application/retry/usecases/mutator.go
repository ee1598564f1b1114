package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/application/retry/dto"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/infrastructure/metrics"
	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

// mutation changes a freshly loaded schedule. It may return the attempt to
// persist with it.
type mutation func(ctx context.Context, s *retry.Schedule, now time.Time) (*retry.Attempt, error)

type mutationSpec struct {
	action         string
	actor          string
	idempotencyKey string
}

// scheduleMutator applies a mutation under the schedule lock, in one
// transaction with its audit entry, against the persisted state.
type scheduleMutator struct {
	scheduleRepo retry.ScheduleRepository
	attemptRepo  retry.AttemptRepository
	txMgr        db.Transactor
	locker       Locker
	ledger       *ledger.Service
	metrics      *metrics.Engine
	clock        biztime.Clock
	logger       logger.Interface
}

func (m *scheduleMutator) apply(ctx context.Context, scheduleID string, spec mutationSpec, fn mutation) (*retry.Schedule, *retry.Attempt, error) {
	release, err := m.locker.Acquire(ctx, scheduleLockKey(scheduleID))
	if err != nil {
		return nil, nil, err
	}
	defer release()

	var (
		schedule *retry.Schedule
		attempt  *retry.Attempt
	)
	err = m.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		claimed, err := m.ledger.Claim(ctx, spec.idempotencyKey, "retry_schedule:"+spec.action)
		if err != nil {
			return err
		}
		if !claimed {
			return apperrors.ErrAlreadyProcessed
		}

		s, err := m.scheduleRepo.GetByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		if s.IsResolved() {
			return apperrors.ErrScheduleResolved
		}
		before := dto.ToRetryScheduleDTO(s)

		now := m.clock.Now()
		a, err := fn(ctx, s, now)
		if err != nil {
			return err
		}
		if err := m.scheduleRepo.Update(ctx, s); err != nil {
			return err
		}
		if a != nil {
			if err := m.attemptRepo.Create(ctx, a); err != nil {
				return fmt.Errorf("failed to store retry attempt: %w", err)
			}
		}
		if err := m.ledger.Record(ctx, ledger.Transition{
			OrganizationID: s.OrganizationID(),
			EntityType:     audit.EntityRetrySchedule,
			EntityID:       s.ID(),
			Action:         spec.action,
			Actor:          spec.actor,
			Before:         before,
			After:          dto.ToRetryScheduleDTO(s),
			IdempotencyKey: spec.idempotencyKey,
		}); err != nil {
			return err
		}
		schedule, attempt = s, a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if attempt != nil {
		m.metrics.Attempt(string(attempt.Status()))
	}
	if schedule.IsResolved() {
		m.metrics.Resolved(string(audit.EntityRetrySchedule), string(schedule.ResolutionReason()))
		m.logger.Infow("retry schedule resolved",
			"schedule_id", schedule.ID(),
			"payment_id", schedule.PaymentID(),
			"reason", schedule.ResolutionReason(),
			"attempts", schedule.CurrentAttempt(),
		)
	}
	return schedule, attempt, nil
}

// isBenign reports errors that mean the work is already done or taken.
func isBenign(err error) bool {
	return errors.Is(err, errNotDue) ||
		errors.Is(err, apperrors.ErrScheduleResolved) ||
		errors.Is(err, apperrors.ErrAlreadyProcessed) ||
		errors.Is(err, apperrors.ErrLockNotAcquired) ||
		errors.Is(err, apperrors.ErrVersionConflict)
}
