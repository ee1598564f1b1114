package mappers

import (
	"encoding/json"
	"fmt"

	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/shared/mapper"
)

type RetryMapper interface {
	PolicyToEntity(model *models.RetryPolicyModel) (*retry.Policy, error)
	PolicyToModel(entity *retry.Policy) (*models.RetryPolicyModel, error)
	PoliciesToEntities(models []*models.RetryPolicyModel) ([]*retry.Policy, error)
	ScheduleToEntity(model *models.RetryScheduleModel) (*retry.Schedule, error)
	ScheduleToModel(entity *retry.Schedule) (*models.RetryScheduleModel, error)
	SchedulesToEntities(models []*models.RetryScheduleModel) ([]*retry.Schedule, error)
	AttemptToEntity(model *models.RetryAttemptModel) *retry.Attempt
	AttemptToModel(entity *retry.Attempt) *models.RetryAttemptModel
	ReminderToEntity(model *models.ReminderModel) *retry.Reminder
	ReminderToModel(entity *retry.Reminder) *models.ReminderModel
}

type RetryMapperImpl struct{}

func NewRetryMapper() RetryMapper {
	return &RetryMapperImpl{}
}

func decodePlan(raw []byte) (retry.Plan, error) {
	var plan retry.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return retry.Plan{}, fmt.Errorf("failed to decode retry plan: %w", err)
	}
	return plan, nil
}

func (m *RetryMapperImpl) PolicyToEntity(model *models.RetryPolicyModel) (*retry.Policy, error) {
	if model == nil {
		return nil, nil
	}
	plan, err := decodePlan(model.Plan)
	if err != nil {
		return nil, err
	}
	scope := retry.Scope{
		OrganizationID: model.OrganizationID,
		CompanyID:      model.CompanyID,
		ProductCode:    model.ProductCode,
		Channel:        model.Channel,
	}
	return retry.ReconstructPolicy(model.ID, scope, model.Name, plan, model.IsDefault, model.Enabled, model.Version, model.CreatedAt, model.UpdatedAt), nil
}

func (m *RetryMapperImpl) PolicyToModel(entity *retry.Policy) (*models.RetryPolicyModel, error) {
	plan, err := json.Marshal(entity.Plan())
	if err != nil {
		return nil, fmt.Errorf("failed to encode retry plan: %w", err)
	}
	scope := entity.Scope()
	return &models.RetryPolicyModel{
		ID:             entity.ID(),
		OrganizationID: scope.OrganizationID,
		CompanyID:      scope.CompanyID,
		ProductCode:    scope.ProductCode,
		Channel:        scope.Channel,
		Name:           entity.Name(),
		Plan:           plan,
		IsDefault:      entity.IsDefault(),
		Enabled:        entity.IsEnabled(),
		Version:        entity.Version(),
		CreatedAt:      entity.CreatedAt(),
		UpdatedAt:      entity.UpdatedAt(),
	}, nil
}

func (m *RetryMapperImpl) PoliciesToEntities(modelList []*models.RetryPolicyModel) ([]*retry.Policy, error) {
	return mapper.MapSlicePtrWithID(modelList, m.PolicyToEntity, func(model *models.RetryPolicyModel) string { return model.ID })
}

func (m *RetryMapperImpl) ScheduleToEntity(model *models.RetryScheduleModel) (*retry.Schedule, error) {
	if model == nil {
		return nil, nil
	}
	plan, err := decodePlan(model.Plan)
	if err != nil {
		return nil, err
	}
	return retry.ReconstructSchedule(
		model.ID,
		model.OrganizationID,
		model.CompanyID,
		model.PaymentID,
		model.ClientID,
		model.ContractID,
		model.SubscriptionID,
		model.PolicyID,
		plan,
		model.AmountCents,
		model.Currency,
		model.RejectionCode,
		model.RawRejectionCode,
		model.RejectedAt,
		model.CurrentAttempt,
		model.NextRetryDate,
		retry.Eligibility(model.Eligibility),
		model.AwaitingOutcome,
		model.SubmittedAt,
		model.ProviderAccountID,
		model.IsResolved,
		retry.ResolutionReason(model.ResolutionReason),
		model.ResolvedAt,
		model.ResolvedBy,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	), nil
}

func (m *RetryMapperImpl) ScheduleToModel(entity *retry.Schedule) (*models.RetryScheduleModel, error) {
	plan, err := json.Marshal(entity.Plan())
	if err != nil {
		return nil, fmt.Errorf("failed to encode retry plan: %w", err)
	}
	return &models.RetryScheduleModel{
		ID:                entity.ID(),
		OrganizationID:    entity.OrganizationID(),
		PaymentID:         entity.PaymentID(),
		CompanyID:         entity.CompanyID(),
		ClientID:          entity.ClientID(),
		ContractID:        entity.ContractID(),
		SubscriptionID:    entity.SubscriptionID(),
		PolicyID:          entity.PolicyID(),
		Plan:              plan,
		AmountCents:       entity.AmountCents(),
		Currency:          entity.Currency(),
		RejectionCode:     entity.RejectionCode(),
		RawRejectionCode:  entity.RawRejectionCode(),
		RejectedAt:        entity.RejectedAt(),
		CurrentAttempt:    entity.CurrentAttempt(),
		NextRetryDate:     entity.NextRetryDate(),
		Eligibility:       string(entity.Eligibility()),
		AwaitingOutcome:   entity.AwaitingOutcome(),
		SubmittedAt:       entity.SubmittedAt(),
		ProviderAccountID: entity.ProviderAccountID(),
		IsResolved:        entity.IsResolved(),
		ResolutionReason:  string(entity.ResolutionReason()),
		ResolvedAt:        entity.ResolvedAt(),
		ResolvedBy:        entity.ResolvedBy(),
		Version:           entity.Version(),
		CreatedAt:         entity.CreatedAt(),
		UpdatedAt:         entity.UpdatedAt(),
	}, nil
}

func (m *RetryMapperImpl) SchedulesToEntities(modelList []*models.RetryScheduleModel) ([]*retry.Schedule, error) {
	return mapper.MapSlicePtrWithID(modelList, m.ScheduleToEntity, func(model *models.RetryScheduleModel) string { return model.ID })
}

func (m *RetryMapperImpl) AttemptToEntity(model *models.RetryAttemptModel) *retry.Attempt {
	return retry.ReconstructAttempt(
		model.ID,
		model.ScheduleID,
		model.AttemptNumber,
		retry.AttemptStatus(model.Status),
		model.ProviderAccountID,
		model.ProviderRef,
		model.RejectionCode,
		model.ErrorMessage,
		model.AttemptedAt,
	)
}

func (m *RetryMapperImpl) AttemptToModel(entity *retry.Attempt) *models.RetryAttemptModel {
	return &models.RetryAttemptModel{
		ID:                entity.ID(),
		ScheduleID:        entity.ScheduleID(),
		AttemptNumber:     entity.AttemptNumber(),
		Status:            string(entity.Status()),
		ProviderAccountID: entity.ProviderAccountID(),
		ProviderRef:       entity.ProviderRef(),
		RejectionCode:     entity.RejectionCode(),
		ErrorMessage:      entity.ErrorMessage(),
		AttemptedAt:       entity.AttemptedAt(),
	}
}

func (m *RetryMapperImpl) ReminderToEntity(model *models.ReminderModel) *retry.Reminder {
	return retry.ReconstructReminder(
		model.ID,
		model.OrganizationID,
		model.ScheduleID,
		model.DunningRunID,
		model.StepIndex,
		model.Channel,
		model.Recipient,
		model.MessageID,
		retry.ReminderStatus(model.Status),
		model.ErrorCode,
		model.SentAt,
	)
}

func (m *RetryMapperImpl) ReminderToModel(entity *retry.Reminder) *models.ReminderModel {
	return &models.ReminderModel{
		ID:             entity.ID(),
		OrganizationID: entity.OrganizationID(),
		ScheduleID:     entity.ScheduleID(),
		DunningRunID:   entity.DunningRunID(),
		StepIndex:      entity.StepIndex(),
		Channel:        entity.Channel(),
		Recipient:      entity.Recipient(),
		MessageID:      entity.MessageID(),
		Status:         string(entity.Status()),
		ErrorCode:      entity.ErrorCode(),
		SentAt:         entity.SentAt(),
	}
}
