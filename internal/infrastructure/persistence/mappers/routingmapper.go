package mappers

import (
	"encoding/json"
	"fmt"

	"github.com/payops/payops/internal/domain/routing"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/shared/mapper"
)

// RoutingMapper converts routing rules, overrides and decision logs.
type RoutingMapper interface {
	RuleToEntity(model *models.RoutingRuleModel) (*routing.Rule, error)
	RuleToModel(entity *routing.Rule) (*models.RoutingRuleModel, error)
	RulesToEntities(models []*models.RoutingRuleModel) ([]*routing.Rule, error)
	OverrideToEntity(model *models.ProviderOverrideModel) *routing.Override
	OverrideToModel(entity *routing.Override) *models.ProviderOverrideModel
	DecisionToModel(entry *routing.DecisionLog) (*models.RoutingDecisionModel, error)
	DecisionToEntity(model *models.RoutingDecisionModel) (*routing.DecisionLog, error)
}

type RoutingMapperImpl struct{}

func NewRoutingMapper() RoutingMapper {
	return &RoutingMapperImpl{}
}

func (m *RoutingMapperImpl) RuleToEntity(model *models.RoutingRuleModel) (*routing.Rule, error) {
	if model == nil {
		return nil, nil
	}
	var conditions routing.Conditions
	if len(model.Conditions) > 0 {
		if err := json.Unmarshal(model.Conditions, &conditions); err != nil {
			return nil, fmt.Errorf("failed to decode rule conditions: %w", err)
		}
	}
	return routing.ReconstructRule(
		model.ID,
		model.OrganizationID,
		model.CompanyID,
		model.Name,
		model.Priority,
		conditions,
		model.ProviderAccountID,
		model.IsFallback,
		model.Enabled,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	), nil
}

func (m *RoutingMapperImpl) RuleToModel(entity *routing.Rule) (*models.RoutingRuleModel, error) {
	if entity == nil {
		return nil, nil
	}
	conditions, err := json.Marshal(entity.Conditions())
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule conditions: %w", err)
	}
	return &models.RoutingRuleModel{
		ID:                entity.ID(),
		OrganizationID:    entity.OrganizationID(),
		CompanyID:         entity.CompanyID(),
		Name:              entity.Name(),
		Priority:          entity.Priority(),
		Conditions:        conditions,
		ProviderAccountID: entity.ProviderAccountID(),
		IsFallback:        entity.IsFallback(),
		Enabled:           entity.IsEnabled(),
		Version:           entity.Version(),
		CreatedAt:         entity.CreatedAt(),
		UpdatedAt:         entity.UpdatedAt(),
	}, nil
}

func (m *RoutingMapperImpl) RulesToEntities(modelList []*models.RoutingRuleModel) ([]*routing.Rule, error) {
	return mapper.MapSlicePtrWithID(modelList, m.RuleToEntity, func(model *models.RoutingRuleModel) string { return model.ID })
}

func (m *RoutingMapperImpl) OverrideToEntity(model *models.ProviderOverrideModel) *routing.Override {
	if model == nil {
		return nil
	}
	return routing.ReconstructOverride(
		model.ID,
		model.OrganizationID,
		routing.OverrideScope(model.Scope),
		model.ScopeID,
		model.ProviderAccountID,
		model.Reason,
		model.CreatedBy,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func (m *RoutingMapperImpl) OverrideToModel(entity *routing.Override) *models.ProviderOverrideModel {
	return &models.ProviderOverrideModel{
		ID:                entity.ID(),
		OrganizationID:    entity.OrganizationID(),
		Scope:             string(entity.Scope()),
		ScopeID:           entity.ScopeID(),
		ProviderAccountID: entity.ProviderAccountID(),
		Reason:            entity.Reason(),
		CreatedBy:         entity.CreatedBy(),
		Version:           entity.Version(),
		CreatedAt:         entity.CreatedAt(),
		UpdatedAt:         entity.UpdatedAt(),
	}
}

func (m *RoutingMapperImpl) DecisionToModel(entry *routing.DecisionLog) (*models.RoutingDecisionModel, error) {
	input, err := json.Marshal(entry.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode routing input: %w", err)
	}
	decision, err := json.Marshal(entry.Decision)
	if err != nil {
		return nil, fmt.Errorf("failed to encode routing decision: %w", err)
	}
	return &models.RoutingDecisionModel{
		ID:                entry.ID,
		OrganizationID:    entry.OrganizationID,
		PaymentID:         entry.PaymentID,
		CompanyID:         entry.CompanyID,
		MatchedBy:         string(entry.Decision.MatchedBy),
		ProviderAccountID: entry.Decision.ProviderAccountID,
		Input:             input,
		Decision:          decision,
		CreatedAt:         entry.CreatedAt,
	}, nil
}

func (m *RoutingMapperImpl) DecisionToEntity(model *models.RoutingDecisionModel) (*routing.DecisionLog, error) {
	entry := &routing.DecisionLog{
		ID:             model.ID,
		OrganizationID: model.OrganizationID,
		CompanyID:      model.CompanyID,
		PaymentID:      model.PaymentID,
		CreatedAt:      model.CreatedAt,
	}
	if err := json.Unmarshal(model.Input, &entry.Input); err != nil {
		return nil, fmt.Errorf("failed to decode routing input: %w", err)
	}
	if err := json.Unmarshal(model.Decision, &entry.Decision); err != nil {
		return nil, fmt.Errorf("failed to decode routing decision: %w", err)
	}
	return entry, nil
}
