package usecases

import (
	"context"
	"time"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/application/retry/dto"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/infrastructure/metrics"
	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/db"
	"github.com/payops/payops/internal/shared/logger"
)

type ResolveRetryScheduleCommand struct {
	ScheduleID string
	Reason     retry.ResolutionReason
	Actor      string
}

// ResolveRetryScheduleUseCase ends a schedule with an explicit reason.
// MANUAL_CANCEL also marks the schedule as cancelled by the operator.
type ResolveRetryScheduleUseCase struct {
	mutator scheduleMutator
	logger  logger.Interface
}

func NewResolveRetryScheduleUseCase(
	scheduleRepo retry.ScheduleRepository,
	attemptRepo retry.AttemptRepository,
	txMgr db.Transactor,
	locker Locker,
	ledgerService *ledger.Service,
	metricsEngine *metrics.Engine,
	clock biztime.Clock,
	logger logger.Interface,
) *ResolveRetryScheduleUseCase {
	return &ResolveRetryScheduleUseCase{
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

func (uc *ResolveRetryScheduleUseCase) Execute(ctx context.Context, cmd ResolveRetryScheduleCommand) (*dto.RetryScheduleDTO, error) {
	action := "resolve"
	if cmd.Reason == retry.ResolutionManualCancel {
		action = "cancel"
	}
	s, _, err := uc.mutator.apply(ctx, cmd.ScheduleID, mutationSpec{action: action, actor: cmd.Actor},
		func(_ context.Context, s *retry.Schedule, now time.Time) (*retry.Attempt, error) {
			if cmd.Reason == retry.ResolutionManualCancel {
				return nil, s.Cancel(cmd.Actor, now)
			}
			return nil, s.Resolve(cmd.Reason, cmd.Actor, now)
		})
	if err != nil {
		uc.logger.Errorw("failed to resolve retry schedule", "error", err, "schedule_id", cmd.ScheduleID, "reason", cmd.Reason)
		return nil, err
	}
	return dto.ToRetryScheduleDTO(s), nil
}
