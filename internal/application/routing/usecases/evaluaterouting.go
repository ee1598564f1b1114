package usecases

import (
	"context"
	"fmt"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/application/routing/dto"
	"github.com/payops/payops/internal/domain/alert"
	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/infrastructure/metrics"
	"github.com/payops/payops/internal/shared/biztime"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/id"
	"github.com/payops/payops/internal/shared/logger"
)

type EvaluateRoutingCommand struct {
	OrganizationID string
	CompanyID      string
	Payment        routing.Payment
}

// EvaluateRoutingUseCase selects the provider account of a payment, logs the
// decision and alerts the company when nothing matched.
type EvaluateRoutingUseCase struct {
	candidates   candidateLoader
	decisionRepo routing.DecisionLogRepository
	ledger       *ledger.Service
	metrics      *metrics.Engine
	clock        biztime.Clock
	logger       logger.Interface
}

func NewEvaluateRoutingUseCase(
	ruleRepo routing.RuleRepository,
	overrideRepo routing.OverrideRepository,
	decisionRepo routing.DecisionLogRepository,
	ledgerService *ledger.Service,
	metricsEngine *metrics.Engine,
	clock biztime.Clock,
	logger logger.Interface,
) *EvaluateRoutingUseCase {
	return &EvaluateRoutingUseCase{
		candidates:   candidateLoader{ruleRepo: ruleRepo, overrideRepo: overrideRepo},
		decisionRepo: decisionRepo,
		ledger:       ledgerService,
		metrics:      metricsEngine,
		clock:        clock,
		logger:       logger,
	}
}

func (uc *EvaluateRoutingUseCase) Execute(ctx context.Context, cmd EvaluateRoutingCommand) (*dto.RoutingDecisionDTO, error) {
	d, err := uc.Route(ctx, cmd.OrganizationID, cmd.CompanyID, cmd.Payment)
	if err != nil {
		return nil, err
	}
	return dto.ToRoutingDecisionDTO(cmd.Payment, cmd.CompanyID, d), nil
}

// Route evaluates p and returns the raw decision. A NONE decision is not an
// error; callers must handle the missing provider themselves.
func (uc *EvaluateRoutingUseCase) Route(ctx context.Context, organizationID, companyID string, p routing.Payment) (routing.Decision, error) {
	if organizationID == "" || companyID == "" {
		return routing.Decision{}, apperrors.NewValidationError("organization and company are required")
	}
	if p.OrganizationID == "" {
		p.OrganizationID = organizationID
	}

	candidates, err := uc.candidates.load(ctx, organizationID, companyID, p)
	if err != nil {
		uc.logger.Errorw("failed to load routing candidates", "error", err, "payment_id", p.ID, "company_id", companyID)
		return routing.Decision{}, err
	}

	now := uc.clock.Now()
	d := routing.Evaluate(p, candidates, now)
	uc.metrics.RoutingDecision(string(d.MatchedBy))

	entry := &routing.DecisionLog{
		ID:             id.New(id.PrefixRoutingDecision),
		OrganizationID: organizationID,
		CompanyID:      companyID,
		PaymentID:      p.ID,
		Input:          p,
		Decision:       d,
		CreatedAt:      now,
	}
	if err := uc.decisionRepo.Append(ctx, entry); err != nil {
		uc.logger.Errorw("failed to log routing decision", "error", err, "payment_id", p.ID)
		return routing.Decision{}, fmt.Errorf("failed to log routing decision: %w", err)
	}

	if !d.Found() {
		a := alert.New(organizationID, companyID, alert.CodeRoutingNotFound, alert.SeverityWarning,
			fmt.Sprintf("no provider account matched payment %s", p.ID),
			map[string]string{"payment_id": p.ID, "client_id": p.ClientID, "reason": d.Reason},
			now,
		)
		if _, err := uc.ledger.Raise(ctx, a, ""); err != nil {
			uc.logger.Errorw("failed to raise routing alert", "error", err, "payment_id", p.ID)
		}
		return d, nil
	}

	uc.logger.Debugw("payment routed",
		"payment_id", p.ID,
		"company_id", companyID,
		"matched_by", d.MatchedBy,
		"provider_account_id", d.ProviderAccountID,
	)
	return d, nil
}
