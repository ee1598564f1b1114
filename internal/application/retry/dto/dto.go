package dto

import (
	"time"

	"github.com/payops/payops/internal/domain/retry"
	"github.com/payops/payops/internal/shared/mapper"
)

type RetryPolicyDTO struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	CompanyID      string     `json:"company_id,omitempty"`
	ProductCode    string     `json:"product_code,omitempty"`
	Channel        string     `json:"channel,omitempty"`
	Name           string     `json:"name"`
	Plan           retry.Plan `json:"plan"`
	IsDefault      bool       `json:"is_default"`
	Enabled        bool       `json:"enabled"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type RetryScheduleDTO struct {
	ID                string     `json:"id"`
	OrganizationID    string     `json:"organization_id"`
	CompanyID         string     `json:"company_id"`
	PaymentID         string     `json:"payment_id"`
	ClientID          string     `json:"client_id"`
	ContractID        string     `json:"contract_id,omitempty"`
	SubscriptionID    string     `json:"subscription_id,omitempty"`
	PolicyID          string     `json:"policy_id"`
	AmountCents       int64      `json:"amount_cents"`
	Currency          string     `json:"currency,omitempty"`
	RejectionCode     string     `json:"rejection_code"`
	RawRejectionCode  string     `json:"raw_rejection_code,omitempty"`
	RejectedAt        time.Time  `json:"rejected_at"`
	CurrentAttempt    int        `json:"current_attempt"`
	MaxAttempts       int        `json:"max_attempts"`
	NextRetryDate     *time.Time `json:"next_retry_date,omitempty"`
	Eligibility       string     `json:"eligibility"`
	AwaitingOutcome   bool       `json:"awaiting_outcome"`
	ProviderAccountID string     `json:"provider_account_id,omitempty"`
	IsResolved        bool       `json:"is_resolved"`
	ResolutionReason  string     `json:"resolution_reason,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy        string     `json:"resolved_by,omitempty"`
	Version           int        `json:"version"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type RetryAttemptDTO struct {
	ID                string    `json:"id"`
	ScheduleID        string    `json:"schedule_id"`
	AttemptNumber     int       `json:"attempt_number"`
	Status            string    `json:"status"`
	ProviderAccountID string    `json:"provider_account_id,omitempty"`
	ProviderRef       string    `json:"provider_ref,omitempty"`
	RejectionCode     string    `json:"rejection_code,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	AttemptedAt       time.Time `json:"attempted_at"`
}

type ReminderDTO struct {
	ID           string    `json:"id"`
	ScheduleID   string    `json:"schedule_id,omitempty"`
	DunningRunID string    `json:"dunning_run_id,omitempty"`
	StepIndex    int       `json:"step_index"`
	Channel      string    `json:"channel"`
	Recipient    string    `json:"recipient"`
	MessageID    string    `json:"message_id,omitempty"`
	Status       string    `json:"status"`
	ErrorCode    string    `json:"error_code,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

// ScheduleDetailDTO is a schedule with its attempt history.
type ScheduleDetailDTO struct {
	*RetryScheduleDTO
	Attempts  []*RetryAttemptDTO `json:"attempts"`
	Reminders []*ReminderDTO     `json:"reminders"`
}

func ToRetryPolicyDTO(p *retry.Policy) *RetryPolicyDTO {
	if p == nil {
		return nil
	}
	s := p.Scope()
	return &RetryPolicyDTO{
		ID:             p.ID(),
		OrganizationID: s.OrganizationID,
		CompanyID:      s.CompanyID,
		ProductCode:    s.ProductCode,
		Channel:        s.Channel,
		Name:           p.Name(),
		Plan:           p.Plan(),
		IsDefault:      p.IsDefault(),
		Enabled:        p.IsEnabled(),
		Version:        p.Version(),
		CreatedAt:      p.CreatedAt(),
		UpdatedAt:      p.UpdatedAt(),
	}
}

func ToRetryPolicyDTOs(policies []*retry.Policy) []*RetryPolicyDTO {
	return mapper.MapSlicePtr(policies, ToRetryPolicyDTO)
}

func ToRetryScheduleDTO(s *retry.Schedule) *RetryScheduleDTO {
	if s == nil {
		return nil
	}
	return &RetryScheduleDTO{
		ID:                s.ID(),
		OrganizationID:    s.OrganizationID(),
		CompanyID:         s.CompanyID(),
		PaymentID:         s.PaymentID(),
		ClientID:          s.ClientID(),
		ContractID:        s.ContractID(),
		SubscriptionID:    s.SubscriptionID(),
		PolicyID:          s.PolicyID(),
		AmountCents:       s.AmountCents(),
		Currency:          s.Currency(),
		RejectionCode:     s.RejectionCode(),
		RawRejectionCode:  s.RawRejectionCode(),
		RejectedAt:        s.RejectedAt(),
		CurrentAttempt:    s.CurrentAttempt(),
		MaxAttempts:       s.MaxAttempts(),
		NextRetryDate:     s.NextRetryDate(),
		Eligibility:       string(s.Eligibility()),
		AwaitingOutcome:   s.AwaitingOutcome(),
		ProviderAccountID: s.ProviderAccountID(),
		IsResolved:        s.IsResolved(),
		ResolutionReason:  string(s.ResolutionReason()),
		ResolvedAt:        s.ResolvedAt(),
		ResolvedBy:        s.ResolvedBy(),
		Version:           s.Version(),
		UpdatedAt:         s.UpdatedAt(),
	}
}

func ToRetryScheduleDTOs(schedules []*retry.Schedule) []*RetryScheduleDTO {
	return mapper.MapSlicePtr(schedules, ToRetryScheduleDTO)
}

func ToRetryAttemptDTO(a *retry.Attempt) *RetryAttemptDTO {
	if a == nil {
		return nil
	}
	return &RetryAttemptDTO{
		ID:                a.ID(),
		ScheduleID:        a.ScheduleID(),
		AttemptNumber:     a.AttemptNumber(),
		Status:            string(a.Status()),
		ProviderAccountID: a.ProviderAccountID(),
		ProviderRef:       a.ProviderRef(),
		RejectionCode:     a.RejectionCode(),
		ErrorMessage:      a.ErrorMessage(),
		AttemptedAt:       a.AttemptedAt(),
	}
}

func ToReminderDTO(r *retry.Reminder) *ReminderDTO {
	if r == nil {
		return nil
	}
	return &ReminderDTO{
		ID:           r.ID(),
		ScheduleID:   r.ScheduleID(),
		DunningRunID: r.DunningRunID(),
		StepIndex:    r.StepIndex(),
		Channel:      r.Channel(),
		Recipient:    r.Recipient(),
		MessageID:    r.MessageID(),
		Status:       string(r.Status()),
		ErrorCode:    r.ErrorCode(),
		SentAt:       r.SentAt(),
	}
}

func ToReminderDTOs(reminders []*retry.Reminder) []*ReminderDTO {
	return mapper.MapSlicePtr(reminders, ToReminderDTO)
}

func ToScheduleDetailDTO(s *retry.Schedule, attempts []*retry.Attempt, reminders []*retry.Reminder) *ScheduleDetailDTO {
	return &ScheduleDetailDTO{
		RetryScheduleDTO: ToRetryScheduleDTO(s),
		Attempts:         mapper.MapSlicePtr(attempts, ToRetryAttemptDTO),
		Reminders:        ToReminderDTOs(reminders),
	}
}
