package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/infrastructure/metrics"
	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

// errSignalIgnored rolls back a schedule whose policy does not stop on the signal.
var errSignalIgnored = errors.New("signal ignored by policy")

type ApplySignalCommand struct {
	OrganizationID string
	Signal         retry.Signal
	// PaymentID addresses PAYMENT_SETTLED, ContractID contract cancellation
	// and mandate revocation, ClientID a blocked client.
	PaymentID  string
	ContractID string
	ClientID   string
}

type ApplySignalResult struct {
	Matched  int `json:"matched"`
	Resolved int `json:"resolved"`
	Ignored  int `json:"ignored"`
}

// ApplySignalUseCase revises the eligibility of open schedules on an external
// event, following each schedule's stop conditions.
type ApplySignalUseCase struct {
	mutator scheduleMutator
	logger  logger.Interface
}

func NewApplySignalUseCase(
	scheduleRepo retry.ScheduleRepository,
	attemptRepo retry.AttemptRepository,
	txMgr db.Transactor,
	locker Locker,
	ledgerService *ledger.Service,
	metricsEngine *metrics.Engine,
	clock biztime.Clock,
	logger logger.Interface,
) *ApplySignalUseCase {
	return &ApplySignalUseCase{
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

func (uc *ApplySignalUseCase) Execute(ctx context.Context, cmd ApplySignalCommand) (*ApplySignalResult, error) {
	if !cmd.Signal.Valid() {
		return nil, apperrors.NewValidationError("unknown signal", string(cmd.Signal))
	}
	targets, err := uc.targets(ctx, cmd)
	if err != nil {
		uc.logger.Errorw("failed to select schedules for signal", "error", err, "signal", cmd.Signal)
		return nil, err
	}

	result := &ApplySignalResult{Matched: len(targets)}
	for _, target := range targets {
		_, _, err := uc.mutator.apply(ctx, target.ID(), mutationSpec{action: "signal." + string(cmd.Signal)},
			func(_ context.Context, s *retry.Schedule, now time.Time) (*retry.Attempt, error) {
				stopped, err := s.ApplySignal(cmd.Signal, now)
				if err == nil && !stopped {
					return nil, errSignalIgnored
				}
				return nil, err
			})
		switch {
		case errors.Is(err, apperrors.ErrScheduleResolved), errors.Is(err, errSignalIgnored):
			result.Ignored++
		case err != nil:
			return result, fmt.Errorf("failed to apply %s to schedule %s: %w", cmd.Signal, target.ID(), err)
		default:
			result.Resolved++
		}
	}

	uc.logger.Infow("signal applied",
		"signal", cmd.Signal,
		"organization_id", cmd.OrganizationID,
		"matched", result.Matched,
		"resolved", result.Resolved,
	)
	return result, nil
}

func (uc *ApplySignalUseCase) targets(ctx context.Context, cmd ApplySignalCommand) ([]*retry.Schedule, error) {
	repo := uc.mutator.scheduleRepo
	switch cmd.Signal {
	case retry.SignalPaymentSettled:
		if cmd.PaymentID == "" {
			return nil, apperrors.NewValidationError("payment_id is required for " + string(cmd.Signal))
		}
		s, err := repo.FindByPayment(ctx, cmd.OrganizationID, cmd.PaymentID)
		if err != nil || s == nil || s.IsResolved() {
			return nil, err
		}
		return []*retry.Schedule{s}, nil
	case retry.SignalContractCancelled, retry.SignalMandateRevoked:
		if cmd.ContractID == "" {
			return nil, apperrors.NewValidationError("contract_id is required for " + string(cmd.Signal))
		}
		return repo.ListOpenByContract(ctx, cmd.OrganizationID, cmd.ContractID)
	default:
		if cmd.ClientID == "" {
			return nil, apperrors.NewValidationError("client_id is required for " + string(cmd.Signal))
		}
		return repo.ListOpenByClient(ctx, cmd.OrganizationID, cmd.ClientID)
	}
}
