package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/payops/payops/internal/application/dunning/dto"
	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/dunning"
	apperrors "github.com/payops/payops/internal/shared/errors"
)

type HandlePaymentFailureCommand struct {
	OrganizationID    string
	CompanyID         string
	SubscriptionID    string
	ClientID          string
	ContractID        string
	PaymentScheduleID string
	RetryScheduleID   string
	ContactEmail      string
	ContactPhone      string
	IdempotencyKey    string
}

type HandlePaymentFailureResult struct {
	Run           *dto.DunningRunDTO `json:"run"`
	Opened        bool               `json:"opened"`
	Abandoned     bool               `json:"abandoned"`
	StepsExecuted int                `json:"steps_executed"`
	Duplicate     bool               `json:"duplicate"`
}

// HandlePaymentFailureUseCase opens a dunning run for a failed subscription
// payment and executes the J0 step at once. A failure on a subscription
// that already has an open run only links the new retry schedule.
type HandlePaymentFailureUseCase struct {
	orchestrator *Orchestrator
}

func NewHandlePaymentFailureUseCase(orchestrator *Orchestrator) *HandlePaymentFailureUseCase {
	return &HandlePaymentFailureUseCase{orchestrator: orchestrator}
}

func (uc *HandlePaymentFailureUseCase) Execute(ctx context.Context, cmd HandlePaymentFailureCommand) (*HandlePaymentFailureResult, error) {
	o := uc.orchestrator
	if cmd.OrganizationID == "" || cmd.SubscriptionID == "" {
		return nil, apperrors.NewValidationError("organization and subscription are required")
	}

	release, err := o.lockRun(ctx, cmd.OrganizationID, cmd.SubscriptionID)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &HandlePaymentFailureResult{}
	var run *dunning.Run
	err = o.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		claimed, err := o.ledger.Claim(ctx, cmd.IdempotencyKey, "dunning_run:failure")
		if err != nil {
			return err
		}
		active, err := o.runRepo.FindActiveBySubscription(ctx, cmd.OrganizationID, cmd.SubscriptionID)
		if err != nil {
			return err
		}
		if !claimed {
			result.Duplicate = true
			run = active
			return nil
		}

		now := o.clock.Now()
		if active != nil {
			before := dto.ToDunningRunDTO(active)
			active.AttachRetrySchedule(cmd.RetryScheduleID, now)
			if err := o.runRepo.Update(ctx, active); err != nil {
				return err
			}
			run = active
			return o.record(ctx, active, before, "failure.linked", audit.SystemActor, cmd.IdempotencyKey)
		}

		run, err = uc.open(ctx, cmd, now)
		if err != nil {
			return err
		}
		result.Opened = true
		result.Abandoned = run.IsResolved()
		return o.record(ctx, run, nil, "open", audit.SystemActor, cmd.IdempotencyKey)
	})
	if err != nil {
		o.logger.Errorw("failed to handle payment failure",
			"subscription_id", cmd.SubscriptionID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to handle payment failure: %w", err)
	}

	if run != nil && !run.IsResolved() && !result.Duplicate {
		n, err := o.advance(ctx, run.ID())
		result.StepsExecuted = n
		if err != nil && !isBenign(err) {
			// The run is committed; the sweep retries the failed step.
			o.logger.Warnw("dunning step deferred to next sweep", "run_id", run.ID(), "error", err)
		}
		if run, err = o.runRepo.GetByID(ctx, run.ID()); err != nil {
			return nil, err
		}
	}
	if result.Abandoned {
		o.metrics.Resolved(string(audit.EntityDunningRun), string(dunning.ResolutionConfigNotFound))
	}
	if result.Opened {
		o.logger.Infow("dunning run opened",
			"run_id", run.ID(),
			"subscription_id", run.SubscriptionID(),
			"config_id", run.ConfigID(),
			"abandoned", result.Abandoned,
			"steps_executed", result.StepsExecuted,
		)
	}
	result.Run = dto.ToDunningRunDTO(run)
	return result, nil
}

// open starts a run under the most specific enabled config. Without one the
// run is recorded as abandoned and operators are alerted.
func (uc *HandlePaymentFailureUseCase) open(ctx context.Context, cmd HandlePaymentFailureCommand, now time.Time) (*dunning.Run, error) {
	o := uc.orchestrator
	failure := dunning.Failure{
		OrganizationID:    cmd.OrganizationID,
		CompanyID:         cmd.CompanyID,
		SubscriptionID:    cmd.SubscriptionID,
		ClientID:          cmd.ClientID,
		ContractID:        cmd.ContractID,
		PaymentScheduleID: cmd.PaymentScheduleID,
		RetryScheduleID:   cmd.RetryScheduleID,
		ContactEmail:      cmd.ContactEmail,
		ContactPhone:      cmd.ContactPhone,
		FailedAt:          now,
	}

	configs, err := o.configRepo.ListByOrganization(ctx, cmd.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dunning configs: %w", err)
	}
	cfg := dunning.SelectConfig(configs, cmd.OrganizationID, cmd.CompanyID)

	var run *dunning.Run
	if cfg == nil {
		run, err = dunning.OpenAbandonedRun(failure, now)
	} else {
		run, err = dunning.OpenRun(failure, cfg, now)
	}
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := o.runRepo.Create(ctx, run); err != nil {
		return nil, err
	}

	if cfg == nil {
		a := alert.New(cmd.OrganizationID, cmd.CompanyID, alert.CodeDunningConfigMissing, alert.SeverityWarning,
			"no enabled dunning config for subscription failure",
			map[string]string{"subscription_id": cmd.SubscriptionID, "run_id": run.ID()}, now)
		if _, err := o.ledger.Raise(ctx, a, ""); err != nil {
			o.logger.Errorw("failed to raise dunning config alert", "run_id", run.ID(), "error", err)
		}
	}
	return run, nil
}
