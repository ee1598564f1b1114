// Package outbox models side effects committed with a state change and
// delivered afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/payops/payops/internal/domain/shared/events"
	"github.com/payops/payops/internal/shared/id"
)

type Kind string

const (
	KindEmail            Kind = "NOTIFY_EMAIL"
	KindSMS              Kind = "NOTIFY_SMS"
	KindNotifySuspension Kind = "NOTIFY_SUSPENSION"
	KindPublishEvent     Kind = "PUBLISH_EVENT"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusDone    Status = "DONE"
	StatusDead    Status = "DEAD"
)

// Template keys of the messages the engine sends.
const (
	TemplateRetryNotice      = "dunning.retry_notice"
	TemplatePaymentLinkSMS   = "dunning.payment_link_sms"
	TemplateContactSMS       = "dunning.contact_sms"
	TemplateSuspensionNotice = "dunning.suspension_notice"
)

// Message is the payload of an EMAIL or SMS task.
type Message struct {
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	TemplateKey  string            `json:"template_key"`
	Data         map[string]string `json:"data,omitempty"`
	ClientID     string            `json:"client_id"`
	ScheduleID   string            `json:"schedule_id,omitempty"`
	DunningRunID string            `json:"dunning_run_id,omitempty"`
	StepIndex    int               `json:"step_index"`
}

// Suspension is the payload of a NOTIFY_SUSPENSION task.
type Suspension struct {
	SubscriptionID string    `json:"subscription_id"`
	Reason         string    `json:"reason"`
	EffectiveDate  time.Time `json:"effective_date"`
}

// Task is one pending side effect. DedupKey is unique, so enqueueing the same
// effect twice stores it once.
type Task struct {
	id             string
	organizationID string
	kind           Kind
	dedupKey       string
	payload        json.RawMessage
	status         Status
	attempts       int
	nextAttemptAt  time.Time
	lastError      string
	createdAt      time.Time
	updatedAt      time.Time
	completedAt    *time.Time
}

func NewTask(organizationID string, kind Kind, dedupKey string, payload any, now time.Time) (*Task, error) {
	if dedupKey == "" {
		return nil, fmt.Errorf("dedup key is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	return &Task{
		id:             id.New(id.PrefixSideEffect),
		organizationID: organizationID,
		kind:           kind,
		dedupKey:       dedupKey,
		payload:        raw,
		status:         StatusPending,
		nextAttemptAt:  now,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// NewEventTask wraps an outbound event; the event id is the dedup key suffix.
func NewEventTask(key string, e events.Event, now time.Time) (*Task, error) {
	return NewTask(e.OrganizationID, KindPublishEvent, key+":"+string(e.Type), e, now)
}

func ReconstructTask(taskID, organizationID string, kind Kind, dedupKey string, payload json.RawMessage,
	status Status, attempts int, nextAttemptAt time.Time, lastError string,
	createdAt, updatedAt time.Time, completedAt *time.Time,
) *Task {
	return &Task{
		id:             taskID,
		organizationID: organizationID,
		kind:           kind,
		dedupKey:       dedupKey,
		payload:        payload,
		status:         status,
		attempts:       attempts,
		nextAttemptAt:  nextAttemptAt,
		lastError:      lastError,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
		completedAt:    completedAt,
	}
}

// ID returns the side effect ID.
func (t *Task) ID() string {
	return t.id
}

// OrganizationID returns the organization ID.
func (t *Task) OrganizationID() string {
	return t.organizationID
}

// Kind returns the side effect kind.
func (t *Task) Kind() Kind {
	return t.kind
}

// DedupKey returns the dedup key.
func (t *Task) DedupKey() string {
	return t.dedupKey
}

// Payload returns the side effect payload.
func (t *Task) Payload() json.RawMessage {
	return t.payload
}

// Status returns the side effect status.
func (t *Task) Status() Status {
	return t.status
}

// Attempts returns how many deliveries were made.
func (t *Task) Attempts() int {
	return t.attempts
}

// NextAttemptAt returns when the side effect is next delivered. While
// claimed it is the lease expiry.
func (t *Task) NextAttemptAt() time.Time {
	return t.nextAttemptAt
}

// LastError returns the last error.
func (t *Task) LastError() string {
	return t.lastError
}

// CreatedAt returns when the side effect was created.
func (t *Task) CreatedAt() time.Time {
	return t.createdAt
}

// UpdatedAt returns when the side effect was last updated.
func (t *Task) UpdatedAt() time.Time {
	return t.updatedAt
}

// CompletedAt returns when the side effect was completed, or nil.
func (t *Task) CompletedAt() *time.Time {
	return t.completedAt
}

func (t *Task) Decode(v any) error {
	if err := json.Unmarshal(t.payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", t.kind, err)
	}
	return nil
}

// Claim leases the task to one dispatcher until leaseUntil. A task whose
// dispatcher died becomes due again once the lease lapses.
func (t *Task) Claim(leaseUntil, now time.Time) {
	t.nextAttemptAt = leaseUntil
	t.updatedAt = now
}

func (t *Task) MarkDone(now time.Time) {
	t.attempts++
	t.status = StatusDone
	t.lastError = ""
	t.completedAt = &now
	t.updatedAt = now
}

// MarkFailed schedules another delivery at next, or dead-letters the task once
// maxAttempts deliveries failed. It reports whether the task is now dead.
func (t *Task) MarkFailed(err error, next time.Time, maxAttempts int, now time.Time) bool {
	t.attempts++
	t.lastError = err.Error()
	t.updatedAt = now
	if t.attempts >= maxAttempts {
		t.status = StatusDead
		t.completedAt = &now
		return true
	}
	t.nextAttemptAt = next
	return false
}

type Repository interface {
	// Enqueue stores t unless its dedup key exists and reports whether it did.
	Enqueue(ctx context.Context, t *Task) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Task, error)
	// Claim stores t's lease if the stored task is still pending and due at
	// now. It reports false when another dispatcher got there first.
	Claim(ctx context.Context, t *Task, now time.Time) (bool, error)
	ListByDedupPrefix(ctx context.Context, prefix string) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
}
