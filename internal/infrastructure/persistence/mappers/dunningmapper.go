package mappers

import (
	"encoding/json"
	"fmt"

	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/infrastructure/persistence/models"
	"github.com/payops/payops/internal/shared/mapper"
)

// stepRecord is the stored form of one dunning step.
type stepRecord struct {
	DelayDays          int      `json:"delay_days"`
	Action             string   `json:"action"`
	Channels           []string `json:"channels,omitempty"`
	IncludePaymentLink bool     `json:"include_payment_link,omitempty"`
	Label              string   `json:"label,omitempty"`
}

type DunningMapper interface {
	ConfigToEntity(model *models.DunningConfigModel) (*dunning.Config, error)
	ConfigToModel(entity *dunning.Config) (*models.DunningConfigModel, error)
	ConfigsToEntities(models []*models.DunningConfigModel) ([]*dunning.Config, error)
	RunToEntity(model *models.DunningRunModel) *dunning.Run
	RunToModel(entity *dunning.Run) *models.DunningRunModel
}

type DunningMapperImpl struct{}

func NewDunningMapper() DunningMapper {
	return &DunningMapperImpl{}
}

func (m *DunningMapperImpl) ConfigToEntity(model *models.DunningConfigModel) (*dunning.Config, error) {
	if model == nil {
		return nil, nil
	}
	var records []stepRecord
	if err := json.Unmarshal(model.Steps, &records); err != nil {
		return nil, fmt.Errorf("failed to decode dunning steps: %w", err)
	}
	steps := make([]dunning.Step, 0, len(records))
	for i, rec := range records {
		channels := make([]dunning.Channel, 0, len(rec.Channels))
		for _, c := range rec.Channels {
			channels = append(channels, dunning.Channel(c))
		}
		step, err := dunning.NewStep(rec.DelayDays, dunning.ActionKind(rec.Action), channels, rec.IncludePaymentLink, rec.Label)
		if err != nil {
			return nil, fmt.Errorf("invalid stored step %d: %w", i, err)
		}
		steps = append(steps, step)
	}
	return dunning.ReconstructConfig(model.ID, model.OrganizationID, model.CompanyID, model.Name, steps,
		model.IsDefault, model.Enabled, model.Version, model.CreatedAt, model.UpdatedAt), nil
}

func (m *DunningMapperImpl) ConfigToModel(entity *dunning.Config) (*models.DunningConfigModel, error) {
	records := make([]stepRecord, 0, entity.StepCount())
	for _, s := range entity.Steps() {
		rec := stepRecord{
			DelayDays:          s.DelayDays(),
			Action:             string(s.Kind()),
			IncludePaymentLink: s.IncludesPaymentLink(),
			Label:              s.Label(),
		}
		for _, c := range s.Channels() {
			rec.Channels = append(rec.Channels, string(c))
		}
		records = append(records, rec)
	}
	steps, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dunning steps: %w", err)
	}
	return &models.DunningConfigModel{
		ID:             entity.ID(),
		OrganizationID: entity.OrganizationID(),
		CompanyID:      entity.CompanyID(),
		Name:           entity.Name(),
		Steps:          steps,
		IsDefault:      entity.IsDefault(),
		Enabled:        entity.IsEnabled(),
		Version:        entity.Version(),
		CreatedAt:      entity.CreatedAt(),
		UpdatedAt:      entity.UpdatedAt(),
	}, nil
}

func (m *DunningMapperImpl) ConfigsToEntities(modelList []*models.DunningConfigModel) ([]*dunning.Config, error) {
	return mapper.MapSlicePtrWithID(modelList, m.ConfigToEntity, func(model *models.DunningConfigModel) string { return model.ID })
}

func (m *DunningMapperImpl) RunToEntity(model *models.DunningRunModel) *dunning.Run {
	if model == nil {
		return nil
	}
	return dunning.ReconstructRun(
		model.ID,
		model.OrganizationID,
		model.CompanyID,
		model.SubscriptionID,
		model.ClientID,
		model.ContractID,
		model.PaymentScheduleID,
		model.RetryScheduleID,
		model.ConfigID,
		model.ContactEmail,
		model.ContactPhone,
		model.LastCompletedStep,
		model.FailureDate,
		model.TotalAttempts,
		model.LastError,
		model.IsResolved,
		dunning.ResolutionReason(model.ResolutionReason),
		model.ResolvedAt,
		model.ResolvedBy,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

// ActiveRunKey is the value of the open-run unique column.
func ActiveRunKey(organizationID, subscriptionID string) string {
	return organizationID + "|" + subscriptionID
}

func (m *DunningMapperImpl) RunToModel(entity *dunning.Run) *models.DunningRunModel {
	model := &models.DunningRunModel{
		ID:                entity.ID(),
		OrganizationID:    entity.OrganizationID(),
		SubscriptionID:    entity.SubscriptionID(),
		CompanyID:         entity.CompanyID(),
		ClientID:          entity.ClientID(),
		ContractID:        entity.ContractID(),
		PaymentScheduleID: entity.PaymentScheduleID(),
		RetryScheduleID:   entity.RetryScheduleID(),
		ConfigID:          entity.ConfigID(),
		ContactEmail:      entity.ContactEmail(),
		ContactPhone:      entity.ContactPhone(),
		LastCompletedStep: entity.LastCompletedStep(),
		FailureDate:       entity.FailureDate(),
		TotalAttempts:     entity.TotalAttempts(),
		LastError:         entity.LastError(),
		IsResolved:        entity.IsResolved(),
		ResolutionReason:  string(entity.ResolutionReason()),
		ResolvedAt:        entity.ResolvedAt(),
		ResolvedBy:        entity.ResolvedBy(),
		Version:           entity.Version(),
		CreatedAt:         entity.CreatedAt(),
		UpdatedAt:         entity.UpdatedAt(),
	}
	if !entity.IsResolved() {
		key := ActiveRunKey(entity.OrganizationID(), entity.SubscriptionID())
		model.ActiveKey = &key
	}
	return model
}
