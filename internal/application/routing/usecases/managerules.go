package usecases

import (
	"context"
	"fmt"

	"github.com/payops/payops/internal/application/ledger"
	"github.com/payops/payops/internal/application/routing/dto"
	"github.com/payops/payops/internal/domain/audit"
	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

type CreateRoutingRuleCommand struct {
	OrganizationID    string
	CompanyID         string
	Name              string
	Priority          int
	Conditions        routing.Conditions
	ProviderAccountID string
	Fallback          bool
	Actor             string
}

type CreateRoutingRuleUseCase struct {
	ruleRepo routing.RuleRepository
	txMgr    db.Transactor
	ledger   *ledger.Service
	logger   logger.Interface
}

func NewCreateRoutingRuleUseCase(
	ruleRepo routing.RuleRepository,
	txMgr db.Transactor,
	ledgerService *ledger.Service,
	logger logger.Interface,
) *CreateRoutingRuleUseCase {
	return &CreateRoutingRuleUseCase{ruleRepo: ruleRepo, txMgr: txMgr, ledger: ledgerService, logger: logger}
}

func (uc *CreateRoutingRuleUseCase) Execute(ctx context.Context, cmd CreateRoutingRuleCommand) (*dto.RoutingRuleDTO, error) {
	rule, err := routing.NewRule(cmd.OrganizationID, cmd.CompanyID, cmd.Name, cmd.Priority, cmd.Conditions, cmd.ProviderAccountID, cmd.Fallback)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	err = uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		if rule.IsFallback() {
			if err := ensureSingleFallback(ctx, uc.ruleRepo, rule); err != nil {
				return err
			}
		}
		if err := uc.ruleRepo.Create(ctx, rule); err != nil {
			return err
		}
		return uc.ledger.Record(ctx, ledger.Transition{
			OrganizationID: rule.OrganizationID(),
			EntityType:     audit.EntityRoutingRule,
			EntityID:       rule.ID(),
			Action:         "create",
			Actor:          cmd.Actor,
			After:          dto.ToRoutingRuleDTO(rule),
		})
	})
	if err != nil {
		uc.logger.Errorw("failed to create routing rule", "error", err, "company_id", cmd.CompanyID)
		return nil, err
	}

	uc.logger.Infow("routing rule created",
		"rule_id", rule.ID(),
		"company_id", rule.CompanyID(),
		"priority", rule.Priority(),
		"fallback", rule.IsFallback(),
	)
	return dto.ToRoutingRuleDTO(rule), nil
}

type UpdateRoutingRuleCommand struct {
	RuleID            string
	Name              *string
	Priority          *int
	Conditions        *routing.Conditions
	ProviderAccountID *string
	Enabled           *bool
	Actor             string
}

type UpdateRoutingRuleUseCase struct {
	ruleRepo routing.RuleRepository
	txMgr    db.Transactor
	ledger   *ledger.Service
	logger   logger.Interface
}

func NewUpdateRoutingRuleUseCase(
	ruleRepo routing.RuleRepository,
	txMgr db.Transactor,
	ledgerService *ledger.Service,
	logger logger.Interface,
) *UpdateRoutingRuleUseCase {
	return &UpdateRoutingRuleUseCase{ruleRepo: ruleRepo, txMgr: txMgr, ledger: ledgerService, logger: logger}
}

func (uc *UpdateRoutingRuleUseCase) Execute(ctx context.Context, cmd UpdateRoutingRuleCommand) (*dto.RoutingRuleDTO, error) {
	var updated *routing.Rule
	err := uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		rule, err := uc.ruleRepo.GetByID(ctx, cmd.RuleID)
		if err != nil {
			return err
		}
		before := dto.ToRoutingRuleDTO(rule)

		name, priority, conditions, provider := rule.Name(), rule.Priority(), rule.Conditions(), rule.ProviderAccountID()
		if cmd.Name != nil {
			name = *cmd.Name
		}
		if cmd.Priority != nil {
			priority = *cmd.Priority
		}
		if cmd.Conditions != nil {
			conditions = *cmd.Conditions
		}
		if cmd.ProviderAccountID != nil {
			provider = *cmd.ProviderAccountID
		}
		enabled := rule.IsEnabled()
		if cmd.Enabled != nil {
			enabled = *cmd.Enabled
		}
		if err := rule.Revise(name, priority, conditions, provider, enabled); err != nil {
			return apperrors.NewValidationError(err.Error())
		}
		if rule.IsFallback() && rule.IsEnabled() {
			if err := ensureSingleFallback(ctx, uc.ruleRepo, rule); err != nil {
				return err
			}
		}

		if err := uc.ruleRepo.Update(ctx, rule); err != nil {
			return err
		}
		updated = rule
		return uc.ledger.Record(ctx, ledger.Transition{
			OrganizationID: rule.OrganizationID(),
			EntityType:     audit.EntityRoutingRule,
			EntityID:       rule.ID(),
			Action:         "update",
			Actor:          cmd.Actor,
			Before:         before,
			After:          dto.ToRoutingRuleDTO(rule),
		})
	})
	if err != nil {
		uc.logger.Errorw("failed to update routing rule", "error", err, "rule_id", cmd.RuleID)
		return nil, err
	}

	uc.logger.Infow("routing rule updated", "rule_id", updated.ID(), "enabled", updated.IsEnabled())
	return dto.ToRoutingRuleDTO(updated), nil
}

type DeleteRoutingRuleCommand struct {
	RuleID string
	Actor  string
}

type DeleteRoutingRuleUseCase struct {
	ruleRepo routing.RuleRepository
	txMgr    db.Transactor
	ledger   *ledger.Service
	logger   logger.Interface
}

func NewDeleteRoutingRuleUseCase(
	ruleRepo routing.RuleRepository,
	txMgr db.Transactor,
	ledgerService *ledger.Service,
	logger logger.Interface,
) *DeleteRoutingRuleUseCase {
	return &DeleteRoutingRuleUseCase{ruleRepo: ruleRepo, txMgr: txMgr, ledger: ledgerService, logger: logger}
}

func (uc *DeleteRoutingRuleUseCase) Execute(ctx context.Context, cmd DeleteRoutingRuleCommand) error {
	err := uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		rule, err := uc.ruleRepo.GetByID(ctx, cmd.RuleID)
		if err != nil {
			return err
		}
		if err := uc.ruleRepo.Delete(ctx, rule.ID()); err != nil {
			return err
		}
		return uc.ledger.Record(ctx, ledger.Transition{
			OrganizationID: rule.OrganizationID(),
			EntityType:     audit.EntityRoutingRule,
			EntityID:       rule.ID(),
			Action:         "delete",
			Actor:          cmd.Actor,
			Before:         dto.ToRoutingRuleDTO(rule),
		})
	})
	if err != nil {
		uc.logger.Errorw("failed to delete routing rule", "error", err, "rule_id", cmd.RuleID)
		return err
	}
	uc.logger.Infow("routing rule deleted", "rule_id", cmd.RuleID)
	return nil
}

type ListRoutingRulesQuery struct {
	OrganizationID string
	CompanyID      string
}

type ListRoutingRulesUseCase struct {
	ruleRepo routing.RuleRepository
	logger   logger.Interface
}

func NewListRoutingRulesUseCase(ruleRepo routing.RuleRepository, logger logger.Interface) *ListRoutingRulesUseCase {
	return &ListRoutingRulesUseCase{ruleRepo: ruleRepo, logger: logger}
}

func (uc *ListRoutingRulesUseCase) Execute(ctx context.Context, query ListRoutingRulesQuery) ([]*dto.RoutingRuleDTO, error) {
	rules, err := uc.ruleRepo.ListByCompany(ctx, query.OrganizationID, query.CompanyID)
	if err != nil {
		uc.logger.Errorw("failed to list routing rules", "error", err, "company_id", query.CompanyID)
		return nil, fmt.Errorf("failed to list routing rules: %w", err)
	}
	return dto.ToRoutingRuleDTOs(rules), nil
}

// ensureSingleFallback rejects a second enabled fallback rule in a company.
func ensureSingleFallback(ctx context.Context, repo routing.RuleRepository, rule *routing.Rule) error {
	rules, err := repo.ListByCompany(ctx, rule.OrganizationID(), rule.CompanyID())
	if err != nil {
		return err
	}
	for _, r := range rules {
		if r.ID() != rule.ID() && r.IsFallback() && r.IsEnabled() {
			return apperrors.NewConflictError("company already has an enabled fallback rule", r.ID())
		}
	}
	return nil
}
