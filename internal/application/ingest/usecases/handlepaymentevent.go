package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	dunningdto "github.com/payops/payops/internal/application/dunning/dto"
	dunningusecases "github.com/payops/payops/internal/application/dunning/usecases"
	retrydto "github.com/payops/payops/internal/application/retry/dto"
	retryusecases "github.com/payops/payops/internal/application/retry/usecases"
	"github.com/payops/payops/internal/domain/retry"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

const (
	EventPaymentFailed    = "payment.failed"
	EventPaymentSucceeded = "payment.succeeded"
)

type RetryScheduleOpener interface {
	Execute(ctx context.Context, cmd retryusecases.OpenRetryScheduleCommand) (*retryusecases.OpenRetryScheduleResult, error)
}

type AttemptRecorder interface {
	Execute(ctx context.Context, cmd retryusecases.RecordAttemptCommand) (*retryusecases.RecordAttemptResult, error)
}

type FailureHandler interface {
	Execute(ctx context.Context, cmd dunningusecases.HandlePaymentFailureCommand) (*dunningusecases.HandlePaymentFailureResult, error)
}

type SuccessHandler interface {
	Execute(ctx context.Context, cmd dunningusecases.HandlePaymentSuccessCommand) (*dunningusecases.HandlePaymentSuccessResult, error)
}

type HandlePaymentEventCommand struct {
	EventID           string
	Type              string
	OrganizationID    string
	CompanyID         string
	PaymentID         string
	ClientID          string
	ContractID        string
	SubscriptionID    string
	PaymentScheduleID string
	ProductCode       string
	Channel           string
	AmountCents       int64
	Currency          string
	RejectionCode     string
	RawRejectionCode  string
	ProviderRef       string
	OccurredAt        time.Time
	ContactEmail      string
	ContactPhone      string
	Actor             string
}

type HandlePaymentEventResult struct {
	Type           string                     `json:"type"`
	RetrySchedule  *retrydto.RetryScheduleDTO `json:"retry_schedule,omitempty"`
	ScheduleOpened bool                       `json:"schedule_opened"`
	DunningRun     *dunningdto.DunningRunDTO  `json:"dunning_run,omitempty"`
	StepsExecuted  int                        `json:"steps_executed"`
	Restored       bool                       `json:"restored"`
	Duplicate      bool                       `json:"duplicate"`
}

// HandlePaymentEventUseCase feeds payment outcomes reported by the billing
// platform into the retry schedule of the payment and the dunning run of its
// subscription.
type HandlePaymentEventUseCase struct {
	scheduleRepo retry.ScheduleRepository
	opener       RetryScheduleOpener
	attempts     AttemptRecorder
	failures     FailureHandler
	successes    SuccessHandler
	logger       logger.Interface
}

func NewHandlePaymentEventUseCase(
	scheduleRepo retry.ScheduleRepository,
	opener RetryScheduleOpener,
	attempts AttemptRecorder,
	failures FailureHandler,
	successes SuccessHandler,
	logger logger.Interface,
) *HandlePaymentEventUseCase {
	return &HandlePaymentEventUseCase{
		scheduleRepo: scheduleRepo,
		opener:       opener,
		attempts:     attempts,
		failures:     failures,
		successes:    successes,
		logger:       logger.With("component", "payment_ingest"),
	}
}

func (uc *HandlePaymentEventUseCase) Execute(ctx context.Context, cmd HandlePaymentEventCommand) (*HandlePaymentEventResult, error) {
	if cmd.EventID == "" || cmd.OrganizationID == "" || cmd.PaymentID == "" {
		return nil, apperrors.NewValidationError("event id, organization and payment are required")
	}
	switch strings.ToLower(cmd.Type) {
	case EventPaymentFailed:
		return uc.failed(ctx, cmd)
	case EventPaymentSucceeded:
		return uc.succeeded(ctx, cmd)
	default:
		return nil, apperrors.NewValidationError("unsupported payment event type", cmd.Type)
	}
}

func (uc *HandlePaymentEventUseCase) failed(ctx context.Context, cmd HandlePaymentEventCommand) (*HandlePaymentEventResult, error) {
	if cmd.ClientID == "" {
		return nil, apperrors.NewValidationError("client is required for a failed payment")
	}
	result := &HandlePaymentEventResult{Type: EventPaymentFailed}
	key := EventPaymentFailed + ":" + cmd.EventID

	opened, err := uc.opener.Execute(ctx, retryusecases.OpenRetryScheduleCommand{
		OrganizationID:   cmd.OrganizationID,
		CompanyID:        cmd.CompanyID,
		PaymentID:        cmd.PaymentID,
		ClientID:         cmd.ClientID,
		ContractID:       cmd.ContractID,
		SubscriptionID:   cmd.SubscriptionID,
		ProductCode:      cmd.ProductCode,
		Channel:          cmd.Channel,
		AmountCents:      cmd.AmountCents,
		Currency:         cmd.Currency,
		RejectionCode:    cmd.RejectionCode,
		RawRejectionCode: cmd.RawRejectionCode,
		RejectedAt:       cmd.OccurredAt,
	})
	switch {
	case apperrors.IsConfigurationError(err):
		// Dunning still runs for a payment no retry policy covers.
		uc.logger.Warnw("payment failure has no retry schedule", "payment_id", cmd.PaymentID, "error", err)
	case err != nil:
		return nil, err
	default:
		result.RetrySchedule = opened.Schedule
		result.ScheduleOpened = opened.Created
		if !opened.Created && opened.Schedule.AwaitingOutcome {
			// A rejection of a retry we submitted.
			recorded, err := uc.attempts.Execute(ctx, retryusecases.RecordAttemptCommand{
				ScheduleID:     opened.Schedule.ID,
				Kind:           retry.OutcomeRejected,
				RejectionCode:  cmd.RejectionCode,
				ProviderRef:    cmd.ProviderRef,
				AttemptedAt:    cmd.OccurredAt,
				IdempotencyKey: key + ":retry",
				Actor:          cmd.Actor,
			})
			if err != nil && !errors.Is(err, apperrors.ErrScheduleResolved) {
				return nil, err
			}
			if recorded != nil {
				result.RetrySchedule = recorded.Schedule
				result.Duplicate = recorded.Duplicate
			}
		}
	}

	if cmd.SubscriptionID == "" {
		uc.logger.Infow("failed payment carries no subscription, dunning skipped", "payment_id", cmd.PaymentID)
		return result, nil
	}

	retryScheduleID := ""
	if result.RetrySchedule != nil {
		retryScheduleID = result.RetrySchedule.ID
	}
	dunningOut, err := uc.failures.Execute(ctx, dunningusecases.HandlePaymentFailureCommand{
		OrganizationID:    cmd.OrganizationID,
		CompanyID:         cmd.CompanyID,
		SubscriptionID:    cmd.SubscriptionID,
		ClientID:          cmd.ClientID,
		ContractID:        cmd.ContractID,
		PaymentScheduleID: cmd.PaymentScheduleID,
		RetryScheduleID:   retryScheduleID,
		ContactEmail:      cmd.ContactEmail,
		ContactPhone:      cmd.ContactPhone,
		IdempotencyKey:    key + ":dunning",
	})
	if err != nil {
		return nil, err
	}
	result.DunningRun = dunningOut.Run
	result.StepsExecuted = dunningOut.StepsExecuted
	result.Duplicate = result.Duplicate || dunningOut.Duplicate

	uc.logger.Infow("payment failure ingested",
		"event_id", cmd.EventID,
		"payment_id", cmd.PaymentID,
		"subscription_id", cmd.SubscriptionID,
		"schedule_opened", result.ScheduleOpened,
		"steps_executed", result.StepsExecuted,
	)
	return result, nil
}

func (uc *HandlePaymentEventUseCase) succeeded(ctx context.Context, cmd HandlePaymentEventCommand) (*HandlePaymentEventResult, error) {
	result := &HandlePaymentEventResult{Type: EventPaymentSucceeded}
	key := EventPaymentSucceeded + ":" + cmd.EventID

	schedule, err := uc.scheduleRepo.FindByPayment(ctx, cmd.OrganizationID, cmd.PaymentID)
	if err != nil {
		return nil, err
	}
	if schedule != nil && !schedule.IsResolved() {
		recorded, err := uc.attempts.Execute(ctx, retryusecases.RecordAttemptCommand{
			ScheduleID:     schedule.ID(),
			Kind:           retry.OutcomeSucceeded,
			ProviderRef:    cmd.ProviderRef,
			AttemptedAt:    cmd.OccurredAt,
			IdempotencyKey: key + ":retry",
			Actor:          cmd.Actor,
		})
		if err != nil && !errors.Is(err, apperrors.ErrScheduleResolved) {
			return nil, err
		}
		if recorded != nil {
			result.RetrySchedule = recorded.Schedule
			result.Duplicate = recorded.Duplicate
		}
	} else if schedule != nil {
		result.RetrySchedule = retrydto.ToRetryScheduleDTO(schedule)
	}

	subscriptionID := cmd.SubscriptionID
	if subscriptionID == "" && schedule != nil {
		subscriptionID = schedule.SubscriptionID()
	}
	if subscriptionID == "" {
		return result, nil
	}

	out, err := uc.successes.Execute(ctx, dunningusecases.HandlePaymentSuccessCommand{
		OrganizationID: cmd.OrganizationID,
		SubscriptionID: subscriptionID,
		PaymentID:      cmd.PaymentID,
		Actor:          cmd.Actor,
		IdempotencyKey: key + ":dunning",
	})
	if err != nil {
		return nil, err
	}
	result.DunningRun = out.Run
	result.Restored = out.Restored
	result.Duplicate = result.Duplicate || out.Duplicate

	uc.logger.Infow("payment success ingested",
		"event_id", cmd.EventID,
		"payment_id", cmd.PaymentID,
		"subscription_id", subscriptionID,
		"restored", result.Restored,
	)
	return result, nil
}
