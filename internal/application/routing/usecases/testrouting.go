package usecases

import (
	"context"

	"github.com/payops/payops/internal/application/routing/dto"
	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/shared/biztime"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

type TestRoutingCommand struct {
	OrganizationID string
	CompanyID      string
	Payment        routing.Payment
}

// TestRoutingUseCase runs the same evaluation as EvaluateRoutingUseCase and
// returns the full trace. Nothing is logged, alerted or counted.
type TestRoutingUseCase struct {
	candidates candidateLoader
	clock      biztime.Clock
	logger     logger.Interface
}

func NewTestRoutingUseCase(
	ruleRepo routing.RuleRepository,
	overrideRepo routing.OverrideRepository,
	clock biztime.Clock,
	logger logger.Interface,
) *TestRoutingUseCase {
	return &TestRoutingUseCase{
		candidates: candidateLoader{ruleRepo: ruleRepo, overrideRepo: overrideRepo},
		clock:      clock,
		logger:     logger,
	}
}

func (uc *TestRoutingUseCase) Execute(ctx context.Context, cmd TestRoutingCommand) (*dto.RoutingDecisionDTO, error) {
	if cmd.OrganizationID == "" || cmd.CompanyID == "" {
		return nil, apperrors.NewValidationError("organization and company are required")
	}
	candidates, err := uc.candidates.load(ctx, cmd.OrganizationID, cmd.CompanyID, cmd.Payment)
	if err != nil {
		uc.logger.Errorw("failed to load routing candidates", "error", err, "payment_id", cmd.Payment.ID)
		return nil, err
	}
	d := routing.Evaluate(cmd.Payment, candidates, uc.clock.Now())
	return dto.ToRoutingDecisionDTO(cmd.Payment, cmd.CompanyID, d), nil
}
