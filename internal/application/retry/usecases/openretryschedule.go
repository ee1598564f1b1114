package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/application/retry/dto"
	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/infrastructure/metrics"
	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

type OpenRetryScheduleCommand struct {
	OrganizationID   string
	CompanyID        string
	PaymentID        string
	ClientID         string
	ContractID       string
	SubscriptionID   string
	ProductCode      string
	Channel          string
	AmountCents      int64
	Currency         string
	RejectionCode    string
	RawRejectionCode string
	RejectedAt       time.Time
	AlreadySettled   bool
}

type OpenRetryScheduleResult struct {
	Schedule *dto.RetryScheduleDTO
	Created  bool
}

// OpenRetryScheduleUseCase opens the retry plan of a rejected payment. A
// payment has at most one schedule; opening it again returns the existing one.
type OpenRetryScheduleUseCase struct {
	policyRepo   retry.PolicyRepository
	scheduleRepo retry.ScheduleRepository
	txMgr        db.Transactor
	ledger       *ledger.Service
	metrics      *metrics.Engine
	clock        biztime.Clock
	logger       logger.Interface
}

func NewOpenRetryScheduleUseCase(
	policyRepo retry.PolicyRepository,
	scheduleRepo retry.ScheduleRepository,
	txMgr db.Transactor,
	ledgerService *ledger.Service,
	metricsEngine *metrics.Engine,
	clock biztime.Clock,
	logger logger.Interface,
) *OpenRetryScheduleUseCase {
	return &OpenRetryScheduleUseCase{
		policyRepo:   policyRepo,
		scheduleRepo: scheduleRepo,
		txMgr:        txMgr,
		ledger:       ledgerService,
		metrics:      metricsEngine,
		clock:        clock,
		logger:       logger,
	}
}

func (uc *OpenRetryScheduleUseCase) Execute(ctx context.Context, cmd OpenRetryScheduleCommand) (*OpenRetryScheduleResult, error) {
	if cmd.OrganizationID == "" || cmd.PaymentID == "" || cmd.ClientID == "" {
		return nil, apperrors.NewValidationError("organization, payment and client are required")
	}

	existing, err := uc.scheduleRepo.FindByPayment(ctx, cmd.OrganizationID, cmd.PaymentID)
	if err != nil {
		uc.logger.Errorw("failed to look up retry schedule", "error", err, "payment_id", cmd.PaymentID)
		return nil, err
	}
	if existing != nil {
		return &OpenRetryScheduleResult{Schedule: dto.ToRetryScheduleDTO(existing)}, nil
	}

	scope := retry.Scope{
		OrganizationID: cmd.OrganizationID,
		CompanyID:      cmd.CompanyID,
		ProductCode:    cmd.ProductCode,
		Channel:        cmd.Channel,
	}
	policies, err := uc.policyRepo.ListByOrganization(ctx, cmd.OrganizationID)
	if err != nil {
		uc.logger.Errorw("failed to load retry policies", "error", err, "organization_id", cmd.OrganizationID)
		return nil, fmt.Errorf("failed to load retry policies: %w", err)
	}
	policy := retry.SelectPolicy(policies, scope)
	now := uc.clock.Now()
	if policy == nil {
		a := alert.New(cmd.OrganizationID, cmd.CompanyID, alert.CodeRetryPolicyMissing, alert.SeverityWarning,
			"no retry policy covers rejected payment "+cmd.PaymentID,
			map[string]string{"payment_id": cmd.PaymentID, "product_code": cmd.ProductCode, "channel": cmd.Channel},
			now,
		)
		if _, err := uc.ledger.Raise(ctx, a, ""); err != nil {
			uc.logger.Errorw("failed to raise policy alert", "error", err)
		}
		uc.logger.Warnw("no retry policy found, payment will not be retried", "payment_id", cmd.PaymentID, "scope", scope.Key())
		return nil, apperrors.NewConfigurationError("no retry policy found", scope.Key())
	}

	schedule, err := retry.OpenSchedule(retry.RejectedPayment{
		OrganizationID:   cmd.OrganizationID,
		CompanyID:        cmd.CompanyID,
		PaymentID:        cmd.PaymentID,
		ClientID:         cmd.ClientID,
		ContractID:       cmd.ContractID,
		SubscriptionID:   cmd.SubscriptionID,
		AmountCents:      cmd.AmountCents,
		Currency:         cmd.Currency,
		RejectionCode:    cmd.RejectionCode,
		RawRejectionCode: cmd.RawRejectionCode,
		RejectedAt:       cmd.RejectedAt,
		AlreadySettled:   cmd.AlreadySettled,
	}, policy, now)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	err = uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := uc.scheduleRepo.Create(ctx, schedule); err != nil {
			return err
		}
		return uc.ledger.Record(ctx, ledger.Transition{
			OrganizationID: schedule.OrganizationID(),
			EntityType:     audit.EntityRetrySchedule,
			EntityID:       schedule.ID(),
			Action:         "open",
			After:          dto.ToRetryScheduleDTO(schedule),
		})
	})
	if apperrors.IsConflictError(err) {
		// Lost the race against a concurrent open of the same payment.
		winner, findErr := uc.scheduleRepo.FindByPayment(ctx, cmd.OrganizationID, cmd.PaymentID)
		if findErr == nil && winner != nil {
			return &OpenRetryScheduleResult{Schedule: dto.ToRetryScheduleDTO(winner)}, nil
		}
	}
	if err != nil {
		uc.logger.Errorw("failed to open retry schedule", "error", err, "payment_id", cmd.PaymentID)
		return nil, err
	}

	if schedule.IsResolved() {
		uc.metrics.Resolved(string(audit.EntityRetrySchedule), string(schedule.ResolutionReason()))
	}
	uc.logger.Infow("retry schedule opened",
		"schedule_id", schedule.ID(),
		"payment_id", schedule.PaymentID(),
		"policy_id", policy.ID(),
		"eligibility", schedule.Eligibility(),
		"next_retry_date", schedule.NextRetryDate(),
	)
	return &OpenRetryScheduleResult{Schedule: dto.ToRetryScheduleDTO(schedule), Created: true}, nil
}
