package billing

import (
	"fmt"
	"maps"
	"time"
)

type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "ACTIVE"
	SchedulePaused    ScheduleStatus = "PAUSED"
	ScheduleCancelled ScheduleStatus = "CANCELLED"
)

// Metadata keys written on payment schedules.
const (
	MetaServiceCode      = "service_code"
	MetaDunningLastStep  = "dunning_last_step"
	MetaDunningStepLabel = "dunning_step_label"
	MetaDunningRunID     = "dunning_run_id"
)

// PaymentSchedule is the recurring collection plan of one subscribed service.
type PaymentSchedule struct {
	id             string
	organizationID string
	clientID       string
	contractID     string
	subscriptionID string
	status         ScheduleStatus
	retryCount     int
	pauseReason    string
	pausedAt       *time.Time
	metadata       map[string]string
	version        int
	createdAt      time.Time
	updatedAt      time.Time
}

func NewPaymentSchedule(scheduleID, organizationID, clientID, contractID, subscriptionID, serviceCode string, now time.Time) (*PaymentSchedule, error) {
	if scheduleID == "" || organizationID == "" || clientID == "" {
		return nil, fmt.Errorf("schedule, organization and client are required")
	}
	return &PaymentSchedule{
		id:             scheduleID,
		organizationID: organizationID,
		clientID:       clientID,
		contractID:     contractID,
		subscriptionID: subscriptionID,
		status:         ScheduleActive,
		metadata:       map[string]string{MetaServiceCode: serviceCode},
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

func ReconstructPaymentSchedule(
	scheduleID, organizationID, clientID, contractID, subscriptionID string,
	status ScheduleStatus,
	retryCount int,
	pauseReason string,
	pausedAt *time.Time,
	metadata map[string]string,
	version int,
	createdAt, updatedAt time.Time,
) *PaymentSchedule {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &PaymentSchedule{
		id:             scheduleID,
		organizationID: organizationID,
		clientID:       clientID,
		contractID:     contractID,
		subscriptionID: subscriptionID,
		status:         status,
		retryCount:     retryCount,
		pauseReason:    pauseReason,
		pausedAt:       pausedAt,
		metadata:       metadata,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// ID returns the payment schedule ID.
func (s *PaymentSchedule) ID() string {
	return s.id
}

// OrganizationID returns the organization ID.
func (s *PaymentSchedule) OrganizationID() string {
	return s.organizationID
}

// ClientID returns the client ID.
func (s *PaymentSchedule) ClientID() string {
	return s.clientID
}

// ContractID returns the contract ID.
func (s *PaymentSchedule) ContractID() string {
	return s.contractID
}

// SubscriptionID returns the subscription ID.
func (s *PaymentSchedule) SubscriptionID() string {
	return s.subscriptionID
}

// Status returns the payment schedule status.
func (s *PaymentSchedule) Status() ScheduleStatus {
	return s.status
}

// RetryCount returns the retry count.
func (s *PaymentSchedule) RetryCount() int {
	return s.retryCount
}

// PauseReason returns the pause reason.
func (s *PaymentSchedule) PauseReason() string {
	return s.pauseReason
}

// PausedAt returns when the payment schedule was paused, or nil.
func (s *PaymentSchedule) PausedAt() *time.Time {
	return s.pausedAt
}

// Metadata returns the payment schedule metadata.
func (s *PaymentSchedule) Metadata() map[string]string {
	return maps.Clone(s.metadata)
}

// Version returns the optimistic lock version.
func (s *PaymentSchedule) Version() int {
	return s.version
}

// CreatedAt returns when the payment schedule was created.
func (s *PaymentSchedule) CreatedAt() time.Time {
	return s.createdAt
}

// UpdatedAt returns when the payment schedule was last updated.
func (s *PaymentSchedule) UpdatedAt() time.Time {
	return s.updatedAt
}

// ServiceCode returns the service code.
func (s *PaymentSchedule) ServiceCode() string {
	return s.metadata[MetaServiceCode]
}

// IsActive reports whether the payment schedule is active.
func (s *PaymentSchedule) IsActive() bool {
	return s.status == ScheduleActive
}

// IsPaused reports whether the payment schedule is paused.
func (s *PaymentSchedule) IsPaused() bool {
	return s.status == SchedulePaused
}

// Pause stops collection. It returns false when the schedule was not active.
func (s *PaymentSchedule) Pause(reason string, now time.Time) bool {
	if s.status != ScheduleActive {
		return false
	}
	s.status = SchedulePaused
	s.pauseReason = reason
	s.pausedAt = &now
	s.updatedAt = now
	return true
}

// Reactivate resumes a paused schedule and clears its retry counter.
func (s *PaymentSchedule) Reactivate(now time.Time) bool {
	if s.status != SchedulePaused {
		return false
	}
	s.status = ScheduleActive
	s.pauseReason = ""
	s.pausedAt = nil
	s.retryCount = 0
	s.updatedAt = now
	return true
}

func (s *PaymentSchedule) IncrementRetryCount(now time.Time) {
	s.retryCount++
	s.updatedAt = now
}

func (s *PaymentSchedule) ResetRetryCount(now time.Time) {
	s.retryCount = 0
	s.updatedAt = now
}

func (s *PaymentSchedule) SetMetadata(key, value string, now time.Time) {
	s.metadata[key] = value
	s.updatedAt = now
}

func (s *PaymentSchedule) SetVersion(v int) { s.version = v }
