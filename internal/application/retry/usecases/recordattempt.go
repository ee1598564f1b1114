package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/application/retry/dto"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/infrastructure/metrics"
	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

type RecordAttemptCommand struct {
	ScheduleID     string
	Kind           retry.OutcomeKind
	RejectionCode  string
	ProviderRef    string
	ErrorMessage   string
	AttemptedAt    time.Time
	IdempotencyKey string
	Actor          string
}

type RecordAttemptResult struct {
	Schedule *dto.RetryScheduleDTO
	Attempt  *dto.RetryAttemptDTO
	// Duplicate is set when the idempotency key was already consumed.
	Duplicate bool
}

// RecordAttemptUseCase applies the outcome of one retry execution.
type RecordAttemptUseCase struct {
	mutator scheduleMutator
	logger  logger.Interface
}

func NewRecordAttemptUseCase(
	scheduleRepo retry.ScheduleRepository,
	attemptRepo retry.AttemptRepository,
	txMgr db.Transactor,
	locker Locker,
	ledgerService *ledger.Service,
	metricsEngine *metrics.Engine,
	clock biztime.Clock,
	logger logger.Interface,
) *RecordAttemptUseCase {
	return &RecordAttemptUseCase{
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
		logger: logger,
	}
}

func (uc *RecordAttemptUseCase) Execute(ctx context.Context, cmd RecordAttemptCommand) (*RecordAttemptResult, error) {
	switch cmd.Kind {
	case retry.OutcomeSucceeded, retry.OutcomeRejected, retry.OutcomeExecutionError:
	default:
		return nil, apperrors.NewValidationError("invalid outcome", string(cmd.Kind))
	}

	outcome := retry.Outcome{
		Kind:          cmd.Kind,
		RejectionCode: cmd.RejectionCode,
		ProviderRef:   cmd.ProviderRef,
		ErrorMessage:  cmd.ErrorMessage,
		AttemptedAt:   cmd.AttemptedAt,
	}
	s, a, err := uc.mutator.apply(ctx, cmd.ScheduleID, mutationSpec{
		action:         "attempt." + string(cmd.Kind),
		actor:          cmd.Actor,
		idempotencyKey: cmd.IdempotencyKey,
	}, func(_ context.Context, s *retry.Schedule, now time.Time) (*retry.Attempt, error) {
		return s.RecordOutcome(outcome, now)
	})
	if errors.Is(err, apperrors.ErrAlreadyProcessed) {
		current, getErr := uc.mutator.scheduleRepo.GetByID(ctx, cmd.ScheduleID)
		if getErr != nil {
			return nil, getErr
		}
		return &RecordAttemptResult{Schedule: dto.ToRetryScheduleDTO(current), Duplicate: true}, nil
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrScheduleResolved) {
			uc.logger.Infow("outcome ignored for resolved retry schedule", "schedule_id", cmd.ScheduleID, "kind", cmd.Kind)
		} else {
			uc.logger.Errorw("failed to record retry attempt", "error", err, "schedule_id", cmd.ScheduleID)
		}
		return nil, err
	}

	uc.logger.Infow("retry attempt recorded",
		"schedule_id", s.ID(),
		"attempt", a.AttemptNumber(),
		"status", a.Status(),
		"current_attempt", s.CurrentAttempt(),
		"next_retry_date", s.NextRetryDate(),
	)
	return &RecordAttemptResult{Schedule: dto.ToRetryScheduleDTO(s), Attempt: dto.ToRetryAttemptDTO(a)}, nil
}
