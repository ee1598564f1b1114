package usecases

import (
	"context"
	"strings"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/application/retry/dto"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

type UpsertRetryPolicyCommand struct {
	Scope     retry.Scope
	Name      string
	Plan      retry.Plan
	IsDefault bool
	Enabled   bool
	Actor     string
}

type UpsertRetryPolicyResult struct {
	Policy  *dto.RetryPolicyDTO `json:"policy"`
	Created bool                `json:"created"`
}

// UpsertRetryPolicyUseCase creates or replaces the policy named Name in its
// scope. A new default demotes the previous default of the same scope.
type UpsertRetryPolicyUseCase struct {
	policyRepo retry.PolicyRepository
	txMgr      db.Transactor
	ledger     *ledger.Service
	logger     logger.Interface
}

func NewUpsertRetryPolicyUseCase(
	policyRepo retry.PolicyRepository,
	txMgr db.Transactor,
	ledgerService *ledger.Service,
	logger logger.Interface,
) *UpsertRetryPolicyUseCase {
	return &UpsertRetryPolicyUseCase{policyRepo: policyRepo, txMgr: txMgr, ledger: ledgerService, logger: logger}
}

func (uc *UpsertRetryPolicyUseCase) Execute(ctx context.Context, cmd UpsertRetryPolicyCommand) (*UpsertRetryPolicyResult, error) {
	if err := cmd.Plan.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	name := strings.TrimSpace(cmd.Name)

	result := &UpsertRetryPolicyResult{}
	err := uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := uc.policyRepo.ListByOrganization(ctx, cmd.Scope.OrganizationID)
		if err != nil {
			return err
		}

		var (
			target *retry.Policy
			before *dto.RetryPolicyDTO
		)
		for _, p := range existing {
			if p.Scope().Key() == cmd.Scope.Key() && strings.EqualFold(p.Name(), name) {
				target = p
			}
		}
		if target == nil {
			target, err = retry.NewPolicy(cmd.Scope, name, cmd.Plan, cmd.IsDefault)
			if err != nil {
				return apperrors.NewValidationError(err.Error())
			}
			if !cmd.Enabled {
				if err := target.Update(name, cmd.Plan, cmd.IsDefault, false); err != nil {
					return apperrors.NewValidationError(err.Error())
				}
			}
			result.Created = true
		} else {
			before = dto.ToRetryPolicyDTO(target)
			if err := target.Update(name, cmd.Plan, cmd.IsDefault, cmd.Enabled); err != nil {
				return apperrors.NewValidationError(err.Error())
			}
		}

		if target.IsDefault() {
			for _, p := range existing {
				if p.ID() == target.ID() || !p.IsDefault() || p.Scope().Key() != cmd.Scope.Key() {
					continue
				}
				demoted := dto.ToRetryPolicyDTO(p)
				p.ClearDefault()
				if err := uc.policyRepo.Update(ctx, p); err != nil {
					return err
				}
				if err := uc.record(ctx, p, "clear_default", cmd.Actor, demoted); err != nil {
					return err
				}
			}
		}

		if result.Created {
			err = uc.policyRepo.Create(ctx, target)
		} else {
			err = uc.policyRepo.Update(ctx, target)
		}
		if err != nil {
			return err
		}
		action := "update"
		if result.Created {
			action = "create"
		}
		result.Policy = dto.ToRetryPolicyDTO(target)
		return uc.record(ctx, target, action, cmd.Actor, before)
	})
	if err != nil {
		uc.logger.Errorw("failed to upsert retry policy", "error", err, "scope", cmd.Scope.Key(), "name", name)
		return nil, err
	}

	uc.logger.Infow("retry policy saved",
		"policy_id", result.Policy.ID,
		"scope", cmd.Scope.Key(),
		"created", result.Created,
		"default", result.Policy.IsDefault,
	)
	return result, nil
}

func (uc *UpsertRetryPolicyUseCase) record(ctx context.Context, p *retry.Policy, action, actor string, before *dto.RetryPolicyDTO) error {
	t := ledger.Transition{
		OrganizationID: p.Scope().OrganizationID,
		EntityType:     audit.EntityRetryPolicy,
		EntityID:       p.ID(),
		Action:         action,
		Actor:          actor,
		After:          dto.ToRetryPolicyDTO(p),
	}
	if before != nil {
		t.Before = before
	}
	return uc.ledger.Record(ctx, t)
}

type ListRetryPoliciesQuery struct {
	OrganizationID string
}

type ListRetryPoliciesUseCase struct {
	policyRepo retry.PolicyRepository
	logger     logger.Interface
}

func NewListRetryPoliciesUseCase(policyRepo retry.PolicyRepository, logger logger.Interface) *ListRetryPoliciesUseCase {
	return &ListRetryPoliciesUseCase{policyRepo: policyRepo, logger: logger}
}

func (uc *ListRetryPoliciesUseCase) Execute(ctx context.Context, query ListRetryPoliciesQuery) ([]*dto.RetryPolicyDTO, error) {
	policies, err := uc.policyRepo.ListByOrganization(ctx, query.OrganizationID)
	if err != nil {
		uc.logger.Errorw("failed to list retry policies", "error", err, "organization_id", query.OrganizationID)
		return nil, err
	}
	return dto.ToRetryPolicyDTOs(policies), nil
}

type ResolveRetryPolicyQuery struct {
	Scope retry.Scope
}

// ResolveRetryPolicyUseCase shows which policy a rejected payment in Scope
// would open its schedule under.
type ResolveRetryPolicyUseCase struct {
	policyRepo retry.PolicyRepository
}

func NewResolveRetryPolicyUseCase(policyRepo retry.PolicyRepository) *ResolveRetryPolicyUseCase {
	return &ResolveRetryPolicyUseCase{policyRepo: policyRepo}
}

func (uc *ResolveRetryPolicyUseCase) Execute(ctx context.Context, query ResolveRetryPolicyQuery) (*dto.RetryPolicyDTO, error) {
	policies, err := uc.policyRepo.ListByOrganization(ctx, query.Scope.OrganizationID)
	if err != nil {
		return nil, err
	}
	p := retry.SelectPolicy(policies, query.Scope)
	if p == nil {
		return nil, apperrors.NewNotFoundError("no retry policy applies", query.Scope.Key())
	}
	return dto.ToRetryPolicyDTO(p), nil
}
