package dto

import (
	"time"

	"github.com/payops/payops/internal/domain/dunning"
	"github.com/payops/payops/internal/shared/mapper"
)

type DunningStepDTO struct {
	Index              int      `json:"index"`
	DelayDays          int      `json:"delay_days"`
	Action             string   `json:"action"`
	Channels           []string `json:"channels,omitempty"`
	IncludePaymentLink bool     `json:"include_payment_link"`
	Label              string   `json:"label,omitempty"`
}

type DunningConfigDTO struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	CompanyID      string            `json:"company_id,omitempty"`
	Name           string            `json:"name"`
	Steps          []*DunningStepDTO `json:"steps"`
	IsDefault      bool              `json:"is_default"`
	Enabled        bool              `json:"enabled"`
	Version        int               `json:"version"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

type DunningRunDTO struct {
	ID                string     `json:"id"`
	OrganizationID    string     `json:"organization_id"`
	CompanyID         string     `json:"company_id"`
	SubscriptionID    string     `json:"subscription_id"`
	ClientID          string     `json:"client_id"`
	ContractID        string     `json:"contract_id,omitempty"`
	PaymentScheduleID string     `json:"payment_schedule_id,omitempty"`
	RetryScheduleID   string     `json:"retry_schedule_id,omitempty"`
	ConfigID          string     `json:"config_id,omitempty"`
	LastCompletedStep int        `json:"last_completed_step"`
	FailureDate       time.Time  `json:"failure_date"`
	TotalAttempts     int        `json:"total_attempts"`
	LastError         string     `json:"last_error,omitempty"`
	IsResolved        bool       `json:"is_resolved"`
	ResolutionReason  string     `json:"resolution_reason,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy        string     `json:"resolved_by,omitempty"`
	Version           int        `json:"version"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func ToDunningStepDTO(index int, s dunning.Step) *DunningStepDTO {
	channels := make([]string, 0, len(s.Channels()))
	for _, c := range s.Channels() {
		channels = append(channels, string(c))
	}
	return &DunningStepDTO{
		Index:              index,
		DelayDays:          s.DelayDays(),
		Action:             string(s.Kind()),
		Channels:           channels,
		IncludePaymentLink: s.IncludesPaymentLink(),
		Label:              s.Label(),
	}
}

func ToDunningConfigDTO(c *dunning.Config) *DunningConfigDTO {
	if c == nil {
		return nil
	}
	steps := make([]*DunningStepDTO, 0, c.StepCount())
	for i, s := range c.Steps() {
		steps = append(steps, ToDunningStepDTO(i, s))
	}
	return &DunningConfigDTO{
		ID:             c.ID(),
		OrganizationID: c.OrganizationID(),
		CompanyID:      c.CompanyID(),
		Name:           c.Name(),
		Steps:          steps,
		IsDefault:      c.IsDefault(),
		Enabled:        c.IsEnabled(),
		Version:        c.Version(),
		CreatedAt:      c.CreatedAt(),
		UpdatedAt:      c.UpdatedAt(),
	}
}

func ToDunningConfigDTOs(configs []*dunning.Config) []*DunningConfigDTO {
	return mapper.MapSlicePtr(configs, ToDunningConfigDTO)
}

func ToDunningRunDTO(r *dunning.Run) *DunningRunDTO {
	if r == nil {
		return nil
	}
	return &DunningRunDTO{
		ID:                r.ID(),
		OrganizationID:    r.OrganizationID(),
		CompanyID:         r.CompanyID(),
		SubscriptionID:    r.SubscriptionID(),
		ClientID:          r.ClientID(),
		ContractID:        r.ContractID(),
		PaymentScheduleID: r.PaymentScheduleID(),
		RetryScheduleID:   r.RetryScheduleID(),
		ConfigID:          r.ConfigID(),
		LastCompletedStep: r.LastCompletedStep(),
		FailureDate:       r.FailureDate(),
		TotalAttempts:     r.TotalAttempts(),
		LastError:         r.LastError(),
		IsResolved:        r.IsResolved(),
		ResolutionReason:  string(r.ResolutionReason()),
		ResolvedAt:        r.ResolvedAt(),
		ResolvedBy:        r.ResolvedBy(),
		Version:           r.Version(),
		UpdatedAt:         r.UpdatedAt(),
	}
}

// StepInput is the wire form of a dunning step in admin requests.
type StepInput struct {
	DelayDays          int      `json:"delay_days" yaml:"delay_days" binding:"gte=0" validate:"gte=0"`
	Action             string   `json:"action" yaml:"action" binding:"required,oneof=RETRY_PAYMENT RETRY_PAYMENT_AND_NOTIFY SUSPEND" validate:"required,oneof=RETRY_PAYMENT RETRY_PAYMENT_AND_NOTIFY SUSPEND"`
	Channels           []string `json:"channels" yaml:"channels"`
	IncludePaymentLink bool     `json:"include_payment_link" yaml:"include_payment_link"`
	Label              string   `json:"label" yaml:"label"`
}

// ToSteps converts admin input into validated domain steps.
func ToSteps(in []StepInput) ([]dunning.Step, error) {
	return mapper.MapSliceWithError(in, func(s StepInput) (dunning.Step, error) {
		channels := make([]dunning.Channel, 0, len(s.Channels))
		for _, c := range s.Channels {
			channels = append(channels, dunning.Channel(c))
		}
		return dunning.NewStep(s.DelayDays, dunning.ActionKind(s.Action), channels, s.IncludePaymentLink, s.Label)
	})
}
