package usecases

import (
	"context"
	"fmt"

	"github.com/payops/payops/internal/application/dunning/dto"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/dunning"
	apperrors "github.com/payops/payops/internal/shared/errors"
)

type CancelDunningRunCommand struct {
	RunID string
	Actor string
}

// CancelDunningRunUseCase closes a run on operator request. A sweep that
// loaded the run before the cancel finds it resolved and stops.
type CancelDunningRunUseCase struct {
	orchestrator *Orchestrator
}

func NewCancelDunningRunUseCase(orchestrator *Orchestrator) *CancelDunningRunUseCase {
	return &CancelDunningRunUseCase{orchestrator: orchestrator}
}

func (uc *CancelDunningRunUseCase) Execute(ctx context.Context, cmd CancelDunningRunCommand) (*dto.DunningRunDTO, error) {
	o := uc.orchestrator
	if cmd.Actor == "" {
		return nil, apperrors.NewValidationError("actor is required to cancel a dunning run")
	}

	current, err := o.runRepo.GetByID(ctx, cmd.RunID)
	if err != nil {
		return nil, err
	}
	release, err := o.lockRun(ctx, current.OrganizationID(), current.SubscriptionID())
	if err != nil {
		return nil, err
	}
	defer release()

	var run *dunning.Run
	err = o.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := o.runRepo.GetByID(ctx, cmd.RunID)
		if err != nil {
			return err
		}
		before := dto.ToDunningRunDTO(r)
		if err := r.Resolve(dunning.ResolutionManualCancel, cmd.Actor, o.clock.Now()); err != nil {
			return apperrors.NewConflictError("dunning run already resolved", cmd.RunID)
		}
		if err := o.save(ctx, r, before, "cancel", cmd.Actor); err != nil {
			return err
		}
		run = r
		return nil
	})
	if err != nil {
		o.logger.Warnw("failed to cancel dunning run", "run_id", cmd.RunID, "error", err)
		return nil, fmt.Errorf("failed to cancel dunning run: %w", err)
	}

	o.metrics.Resolved(string(audit.EntityDunningRun), string(dunning.ResolutionManualCancel))
	o.logger.Infow("dunning run cancelled", "run_id", run.ID(), "actor", cmd.Actor)
	return dto.ToDunningRunDTO(run), nil
}
