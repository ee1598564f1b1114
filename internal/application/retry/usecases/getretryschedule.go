package usecases

import (
	"context"
	"fmt"

	"github.com/payops/payops/internal/application/retry/dto"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/shared/logger"
)

type GetRetryScheduleQuery struct {
	ScheduleID string
}

type GetRetryScheduleUseCase struct {
	scheduleRepo retry.ScheduleRepository
	attemptRepo  retry.AttemptRepository
	reminderRepo retry.ReminderRepository
	logger       logger.Interface
}

func NewGetRetryScheduleUseCase(
	scheduleRepo retry.ScheduleRepository,
	attemptRepo retry.AttemptRepository,
	reminderRepo retry.ReminderRepository,
	logger logger.Interface,
) *GetRetryScheduleUseCase {
	return &GetRetryScheduleUseCase{
		scheduleRepo: scheduleRepo,
		attemptRepo:  attemptRepo,
		reminderRepo: reminderRepo,
		logger:       logger,
	}
}

func (uc *GetRetryScheduleUseCase) Execute(ctx context.Context, query GetRetryScheduleQuery) (*dto.ScheduleDetailDTO, error) {
	s, err := uc.scheduleRepo.GetByID(ctx, query.ScheduleID)
	if err != nil {
		return nil, err
	}
	attempts, err := uc.attemptRepo.ListBySchedule(ctx, s.ID())
	if err != nil {
		uc.logger.Errorw("failed to list retry attempts", "error", err, "schedule_id", s.ID())
		return nil, fmt.Errorf("failed to list retry attempts: %w", err)
	}
	reminders, err := uc.reminderRepo.ListBySchedule(ctx, s.ID())
	if err != nil {
		uc.logger.Errorw("failed to list reminders", "error", err, "schedule_id", s.ID())
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return dto.ToScheduleDetailDTO(s, attempts, reminders), nil
}
