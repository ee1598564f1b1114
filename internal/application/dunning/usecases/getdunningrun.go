package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/payops/payops/internal/application/dunning/dto"
	retrydto "github.com/payops/payops/internal/application/retry/dto"
	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/shared/logger"
)

type GetDunningRunQuery struct {
	RunID string
}

type DunningRunDetail struct {
	Run         *dto.DunningRunDTO      `json:"run"`
	Config      *dto.DunningConfigDTO   `json:"config,omitempty"`
	NextStep    *dto.DunningStepDTO     `json:"next_step,omitempty"`
	NextDueDate *time.Time              `json:"next_due_date,omitempty"`
	Reminders   []*retrydto.ReminderDTO `json:"reminders"`
}

type GetDunningRunUseCase struct {
	runRepo      dunning.RunRepository
	configRepo   dunning.ConfigRepository
	reminderRepo retry.ReminderRepository
	logger       logger.Interface
}

func NewGetDunningRunUseCase(
	runRepo dunning.RunRepository,
	configRepo dunning.ConfigRepository,
	reminderRepo retry.ReminderRepository,
	logger logger.Interface,
) *GetDunningRunUseCase {
	return &GetDunningRunUseCase{
		runRepo:      runRepo,
		configRepo:   configRepo,
		reminderRepo: reminderRepo,
		logger:       logger,
	}
}

func (uc *GetDunningRunUseCase) Execute(ctx context.Context, query GetDunningRunQuery) (*DunningRunDetail, error) {
	run, err := uc.runRepo.GetByID(ctx, query.RunID)
	if err != nil {
		return nil, err
	}
	reminders, err := uc.reminderRepo.ListByRun(ctx, run.ID())
	if err != nil {
		uc.logger.Errorw("failed to list reminders", "error", err, "run_id", run.ID())
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	detail := &DunningRunDetail{
		Run:       dto.ToDunningRunDTO(run),
		Reminders: retrydto.ToReminderDTOs(reminders),
	}
	if run.ConfigID() == "" {
		return detail, nil
	}

	cfg, err := uc.configRepo.GetByID(ctx, run.ConfigID())
	if err != nil {
		// A deleted config still leaves the run readable.
		uc.logger.Warnw("dunning config unavailable", "config_id", run.ConfigID(), "error", err)
		return detail, nil
	}
	detail.Config = dto.ToDunningConfigDTO(cfg)
	if run.IsResolved() {
		return detail, nil
	}
	idx := run.NextStepIndex()
	if step, ok := cfg.Step(idx); ok {
		detail.NextStep = dto.ToDunningStepDTO(idx, step)
		if due, ok := run.DueDate(cfg, idx); ok {
			detail.NextDueDate = &due
		}
	}
	return detail, nil
}
