package retry

import (
	"time"

	"github.com/payops/payops/internal/shared/id"
)

type AttemptStatus string

const (
	AttemptSucceeded      AttemptStatus = "SUCCEEDED"
	AttemptFailed         AttemptStatus = "FAILED"
	AttemptExecutionError AttemptStatus = "EXECUTION_ERROR"
)

// Attempt is one execution of a retry against a provider.
type Attempt struct {
	id                string
	scheduleID        string
	attemptNumber     int
	status            AttemptStatus
	providerAccountID string
	providerRef       string
	rejectionCode     string
	errorMessage      string
	attemptedAt       time.Time
}

func ReconstructAttempt(attemptID, scheduleID string, attemptNumber int, status AttemptStatus,
	providerAccountID, providerRef, rejectionCode, errorMessage string, attemptedAt time.Time,
) *Attempt {
	return &Attempt{
		id:                attemptID,
		scheduleID:        scheduleID,
		attemptNumber:     attemptNumber,
		status:            status,
		providerAccountID: providerAccountID,
		providerRef:       providerRef,
		rejectionCode:     rejectionCode,
		errorMessage:      errorMessage,
		attemptedAt:       attemptedAt,
	}
}

// ID returns the retry attempt ID.
func (a *Attempt) ID() string {
	return a.id
}

// ScheduleID returns the schedule ID.
func (a *Attempt) ScheduleID() string {
	return a.scheduleID
}

// AttemptNumber returns the attempt number.
func (a *Attempt) AttemptNumber() int {
	return a.attemptNumber
}

// Status returns the retry attempt status.
func (a *Attempt) Status() AttemptStatus {
	return a.status
}

// ProviderAccountID returns the provider account ID.
func (a *Attempt) ProviderAccountID() string {
	return a.providerAccountID
}

// ProviderRef returns the provider ref.
func (a *Attempt) ProviderRef() string {
	return a.providerRef
}

// RejectionCode returns the rejection code.
func (a *Attempt) RejectionCode() string {
	return a.rejectionCode
}

// ErrorMessage returns the error message.
func (a *Attempt) ErrorMessage() string {
	return a.errorMessage
}

// AttemptedAt returns when the retry attempt was made.
func (a *Attempt) AttemptedAt() time.Time {
	return a.attemptedAt
}

type ReminderStatus string

const (
	ReminderSent   ReminderStatus = "SENT"
	ReminderFailed ReminderStatus = "FAILED"
)

// Reminder is one notification sent to a client about a failed payment.
type Reminder struct {
	id             string
	organizationID string
	scheduleID     string
	dunningRunID   string
	stepIndex      int
	channel        string
	recipient      string
	messageID      string
	status         ReminderStatus
	errorCode      string
	sentAt         time.Time
}

func NewReminder(organizationID, scheduleID, dunningRunID string, stepIndex int, channel, recipient, messageID string, status ReminderStatus, errorCode string, sentAt time.Time) *Reminder {
	return &Reminder{
		id:             id.New(id.PrefixReminder),
		organizationID: organizationID,
		scheduleID:     scheduleID,
		dunningRunID:   dunningRunID,
		stepIndex:      stepIndex,
		channel:        channel,
		recipient:      recipient,
		messageID:      messageID,
		status:         status,
		errorCode:      errorCode,
		sentAt:         sentAt,
	}
}

func ReconstructReminder(reminderID, organizationID, scheduleID, dunningRunID string, stepIndex int, channel, recipient, messageID string, status ReminderStatus, errorCode string, sentAt time.Time) *Reminder {
	r := NewReminder(organizationID, scheduleID, dunningRunID, stepIndex, channel, recipient, messageID, status, errorCode, sentAt)
	r.id = reminderID
	return r
}

// ID returns the reminder ID.
func (r *Reminder) ID() string {
	return r.id
}

// OrganizationID returns the organization ID.
func (r *Reminder) OrganizationID() string {
	return r.organizationID
}

// ScheduleID returns the schedule ID.
func (r *Reminder) ScheduleID() string {
	return r.scheduleID
}

// DunningRunID returns the dunning run ID.
func (r *Reminder) DunningRunID() string {
	return r.dunningRunID
}

// StepIndex returns the step index.
func (r *Reminder) StepIndex() int {
	return r.stepIndex
}

// Channel returns the reminder channel.
func (r *Reminder) Channel() string {
	return r.channel
}

// Recipient returns the reminder recipient.
func (r *Reminder) Recipient() string {
	return r.recipient
}

// MessageID returns the message ID.
func (r *Reminder) MessageID() string {
	return r.messageID
}

// Status returns the reminder status.
func (r *Reminder) Status() ReminderStatus {
	return r.status
}

// ErrorCode returns the error code.
func (r *Reminder) ErrorCode() string {
	return r.errorCode
}

// SentAt returns when the reminder was sent.
func (r *Reminder) SentAt() time.Time {
	return r.sentAt
}
