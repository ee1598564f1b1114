package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/payops/payops/internal/shared/constants"
)

type RetryPolicyModel struct {
	ID             string         `gorm:"primaryKey;size:32"`
	OrganizationID string         `gorm:"not null;size:64;index"`
	CompanyID      string         `gorm:"size:64"`
	ProductCode    string         `gorm:"size:64"`
	Channel        string         `gorm:"size:64"`
	Name           string         `gorm:"not null;size:120"`
	Plan           datatypes.JSON `gorm:"not null"`
	IsDefault      bool           `gorm:"not null;default:false"`
	Enabled        bool           `gorm:"not null"`
	Version        int            `gorm:"not null;default:1"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (RetryPolicyModel) TableName() string {
	return constants.TableRetryPolicies
}

// RetryScheduleModel holds one schedule per rejected payment.
type RetryScheduleModel struct {
	ID                string         `gorm:"primaryKey;size:32"`
	OrganizationID    string         `gorm:"not null;size:64;uniqueIndex:uk_retry_schedule_payment,priority:1;index:idx_retry_schedule_client,priority:1;index:idx_retry_schedule_contract,priority:1"`
	PaymentID         string         `gorm:"not null;size:64;uniqueIndex:uk_retry_schedule_payment,priority:2"`
	CompanyID         string         `gorm:"size:64"`
	ClientID          string         `gorm:"not null;size:64;index:idx_retry_schedule_client,priority:2"`
	ContractID        string         `gorm:"size:64;index:idx_retry_schedule_contract,priority:2"`
	SubscriptionID    string         `gorm:"size:64"`
	PolicyID          string         `gorm:"size:32"`
	Plan              datatypes.JSON `gorm:"not null"`
	AmountCents       int64          `gorm:"not null"`
	Currency          string         `gorm:"size:3"`
	RejectionCode     string         `gorm:"size:32"`
	RawRejectionCode  string         `gorm:"size:64"`
	RejectedAt        time.Time      `gorm:"not null"`
	CurrentAttempt    int            `gorm:"not null;default:0"`
	NextRetryDate     *time.Time     `gorm:"index:idx_retry_schedule_due,priority:2"`
	Eligibility       string         `gorm:"not null;size:40"`
	AwaitingOutcome   bool           `gorm:"not null;default:false"`
	SubmittedAt       *time.Time
	ProviderAccountID string `gorm:"size:64"`
	IsResolved        bool   `gorm:"not null;default:false;index:idx_retry_schedule_due,priority:1"`
	ResolutionReason  string `gorm:"size:40"`
	ResolvedAt        *time.Time
	ResolvedBy        string `gorm:"size:64"`
	Version           int    `gorm:"not null;default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (RetryScheduleModel) TableName() string {
	return constants.TableRetrySchedules
}

type RetryAttemptModel struct {
	ID                string `gorm:"primaryKey;size:32"`
	ScheduleID        string `gorm:"not null;size:32;index:idx_retry_attempt,priority:1"`
	AttemptNumber     int    `gorm:"not null;index:idx_retry_attempt,priority:2"`
	Status            string `gorm:"not null;size:20"`
	ProviderAccountID string `gorm:"size:64"`
	ProviderRef       string `gorm:"size:128"`
	RejectionCode     string `gorm:"size:64"`
	ErrorMessage      string `gorm:"size:1000"`
	AttemptedAt       time.Time
}

func (RetryAttemptModel) TableName() string {
	return constants.TableRetryAttempts
}

type ReminderModel struct {
	ID             string `gorm:"primaryKey;size:32"`
	OrganizationID string `gorm:"not null;size:64"`
	ScheduleID     string `gorm:"size:32;index"`
	DunningRunID   string `gorm:"size:32;index"`
	StepIndex      int    `gorm:"not null"`
	Channel        string `gorm:"not null;size:16"`
	Recipient      string `gorm:"size:255"`
	MessageID      string `gorm:"size:128"`
	Status         string `gorm:"not null;size:16"`
	ErrorCode      string `gorm:"size:255"`
	SentAt         time.Time
}

func (ReminderModel) TableName() string {
	return constants.TableReminders
}
