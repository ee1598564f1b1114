package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/payops/payops/internal/application/dunning/dto"
	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/billing"
	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/domain/outbox"
	"github.com/payops/payops/internal/domain/shared/events"
	apperrors "github.com/payops/payops/internal/shared/errors"
)

type HandlePaymentSuccessCommand struct {
	OrganizationID string
	SubscriptionID string
	PaymentID      string
	Actor          string
	IdempotencyKey string
}

type HandlePaymentSuccessResult struct {
	Run       *dto.DunningRunDTO `json:"run,omitempty"`
	Resolved  bool               `json:"resolved"`
	Restored  bool               `json:"restored"`
	Duplicate bool               `json:"duplicate"`
}

// HandlePaymentSuccessUseCase closes the open run of a subscription that paid
// and restores a schedule a suspension paused.
type HandlePaymentSuccessUseCase struct {
	orchestrator *Orchestrator
}

func NewHandlePaymentSuccessUseCase(orchestrator *Orchestrator) *HandlePaymentSuccessUseCase {
	return &HandlePaymentSuccessUseCase{orchestrator: orchestrator}
}

func (uc *HandlePaymentSuccessUseCase) Execute(ctx context.Context, cmd HandlePaymentSuccessCommand) (*HandlePaymentSuccessResult, error) {
	o := uc.orchestrator
	if cmd.OrganizationID == "" || cmd.SubscriptionID == "" {
		return nil, apperrors.NewValidationError("organization and subscription are required")
	}
	actor := cmd.Actor
	if actor == "" {
		actor = audit.SystemActor
	}

	release, err := o.lockRun(ctx, cmd.OrganizationID, cmd.SubscriptionID)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &HandlePaymentSuccessResult{}
	var run *dunning.Run
	err = o.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		claimed, err := o.ledger.Claim(ctx, cmd.IdempotencyKey, "dunning_run:success")
		if err != nil {
			return err
		}
		if !claimed {
			result.Duplicate = true
			return nil
		}

		now := o.clock.Now()
		run, err = o.runRepo.FindActiveBySubscription(ctx, cmd.OrganizationID, cmd.SubscriptionID)
		if err != nil {
			return err
		}
		if run != nil {
			before := dto.ToDunningRunDTO(run)
			if err := run.Resolve(dunning.ResolutionPaymentSucceeded, actor, now); err != nil {
				return err
			}
			if err := o.runRepo.Update(ctx, run); err != nil {
				return err
			}
			if err := o.record(ctx, run, before, "resolve", actor, cmd.IdempotencyKey); err != nil {
				return err
			}
			result.Resolved = true
		}

		restored, err := uc.restoreSchedule(ctx, cmd, run, actor, now)
		if err != nil {
			return err
		}
		result.Restored = restored

		if result.Resolved || result.Restored {
			return uc.emitRestoration(ctx, cmd, run, now)
		}
		return nil
	})
	if err != nil {
		o.logger.Errorw("failed to handle payment success", "subscription_id", cmd.SubscriptionID, "error", err)
		return nil, fmt.Errorf("failed to handle payment success: %w", err)
	}

	if result.Resolved {
		o.metrics.Resolved(string(audit.EntityDunningRun), string(dunning.ResolutionPaymentSucceeded))
		o.logger.Infow("dunning run resolved", "run_id", run.ID(), "subscription_id", cmd.SubscriptionID, "reason", dunning.ResolutionPaymentSucceeded)
	}
	if result.Restored {
		o.logger.Infow("payment schedule reactivated", "subscription_id", cmd.SubscriptionID)
	}
	result.Run = dto.ToDunningRunDTO(run)
	return result, nil
}

// restoreSchedule reactivates a paused backing schedule and clears its retry
// counter. It reports whether the schedule was paused.
func (uc *HandlePaymentSuccessUseCase) restoreSchedule(ctx context.Context, cmd HandlePaymentSuccessCommand, run *dunning.Run, actor string, now time.Time) (bool, error) {
	o := uc.orchestrator
	var (
		ps  *billing.PaymentSchedule
		err error
	)
	if run != nil && run.PaymentScheduleID() != "" {
		ps, err = o.steps.paymentScheduleRepo.GetByID(ctx, run.PaymentScheduleID())
	} else {
		ps, err = o.steps.paymentScheduleRepo.FindBySubscription(ctx, cmd.OrganizationID, cmd.SubscriptionID)
	}
	if err != nil || ps == nil {
		return false, err
	}

	before := map[string]any{"status": ps.Status(), "retry_count": ps.RetryCount()}
	restored := ps.Reactivate(now)
	if !restored {
		if ps.RetryCount() == 0 {
			return false, nil
		}
		ps.ResetRetryCount(now)
	}
	if err := o.steps.paymentScheduleRepo.Update(ctx, ps); err != nil {
		return false, fmt.Errorf("failed to reactivate payment schedule: %w", err)
	}
	action := "reset_retry_count"
	if restored {
		action = "reactivate"
	}
	return restored, o.ledger.Record(ctx, ledger.Transition{
		OrganizationID: ps.OrganizationID(),
		EntityType:     audit.EntityPaymentSchedule,
		EntityID:       ps.ID(),
		Action:         action,
		Actor:          actor,
		Before:         before,
		After:          map[string]any{"status": ps.Status(), "retry_count": ps.RetryCount()},
		IdempotencyKey: cmd.IdempotencyKey,
	})
}

func (uc *HandlePaymentSuccessUseCase) emitRestoration(ctx context.Context, cmd HandlePaymentSuccessCommand, run *dunning.Run, now time.Time) error {
	key := "success:" + cmd.OrganizationID + ":" + cmd.SubscriptionID
	switch {
	case cmd.PaymentID != "":
		key = "success:" + cmd.OrganizationID + ":" + cmd.PaymentID
	case run != nil:
		key = "success:" + run.ID()
	}
	var clientID string
	if run != nil {
		clientID = run.ClientID()
	}
	for _, t := range []events.Type{events.SubscriptionRestored, events.CommissionRestartRecurring} {
		ev := events.New(t, cmd.OrganizationID, cmd.SubscriptionID, clientID, string(dunning.ResolutionPaymentSucceeded), now)
		if cmd.PaymentID != "" {
			ev.Attributes = map[string]string{"payment_id": cmd.PaymentID}
		}
		task, err := outbox.NewEventTask(key, ev, now)
		if err != nil {
			return err
		}
		if _, err := uc.orchestrator.steps.outboxRepo.Enqueue(ctx, task); err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", t, err)
		}
	}
	return nil
}
